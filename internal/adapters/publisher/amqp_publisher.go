package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fleet-reposition-service/internal/api/dto"
	"fleet-reposition-service/internal/domain"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const DefaultExchange = "dispatch"

// AMQPPublisher sends finished plans to a durable topic exchange so the live
// dispatch system can act on them. It reconnects in the background when the
// broker drops the connection.
type AMQPPublisher struct {
	logger   *slog.Logger
	url      string
	exchange string

	mu        sync.RWMutex
	conn      *amqp091.Connection
	ch        *amqp091.Channel
	connClose chan *amqp091.Error
	isClosed  atomic.Bool
}

func NewAMQPPublisher(url, exchange string, logger *slog.Logger) (*AMQPPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	p := &AMQPPublisher{logger: logger, url: url, exchange: exchange}

	if err := p.createChannel(); err != nil {
		return nil, fmt.Errorf("amqp publisher: %w", err)
	}

	go p.reconnectConn()
	return p, nil
}

func (p *AMQPPublisher) Close() error {
	p.isClosed.Store(true)
	defer p.logger.Info("amqp publisher closed")

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.conn.Close()
}

func (p *AMQPPublisher) reconnectConn() {
	for {
		p.mu.RLock()
		closed := p.connClose
		p.mu.RUnlock()

		<-closed
		if p.isClosed.Load() {
			return
		}
		p.logger.Warn("rabbitmq connection lost")
		for {
			if p.isClosed.Load() {
				return
			}
			p.logger.Info("trying to connect to rabbitmq")
			if err := p.createChannel(); err != nil {
				time.Sleep(3 * time.Second)
				continue
			}
			p.logger.Info("connected to rabbitmq")
			break
		}
	}
}

func (p *AMQPPublisher) createChannel() error {
	conn, err := amqp091.Dial(p.url)
	if err != nil {
		return err
	}
	closed := make(chan *amqp091.Error, 1)
	conn.NotifyClose(closed)

	ch, err := conn.Channel()
	if err != nil {
		return errors.Join(conn.Close(), err)
	}

	err = ch.ExchangeDeclare(
		p.exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return errors.Join(conn.Close(), err)
	}

	p.mu.Lock()
	p.conn, p.ch, p.connClose = conn, ch, closed
	p.mu.Unlock()
	return nil
}

// RoutingKey is the topic a region's plans are published under.
func RoutingKey(regionID int64) string {
	return fmt.Sprintf("plan.region.%d", regionID)
}

// EncodePlan renders the plan message body.
func EncodePlan(plan domain.Plan) ([]byte, error) {
	return json.Marshal(dto.FromPlan(plan))
}

func (p *AMQPPublisher) PublishPlan(ctx context.Context, plan domain.Plan) error {
	body, err := EncodePlan(plan)
	if err != nil {
		return fmt.Errorf("publish plan %s: encode: %w", plan.RunID, err)
	}

	p.mu.RLock()
	ch := p.ch
	p.mu.RUnlock()

	err = ch.PublishWithContext(ctx,
		p.exchange,
		RoutingKey(plan.RegionID),
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    plan.RunID,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish plan %s: %w", plan.RunID, err)
	}
	return nil
}
