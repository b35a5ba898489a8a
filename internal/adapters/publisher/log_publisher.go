package publisher

import (
	"context"
	"fleet-reposition-service/internal/domain"
	"log/slog"
)

// LogPublisher stands in for the broker when AMQP_URL is unset: it only
// records that a plan would have been sent.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) PublishPlan(ctx context.Context, plan domain.Plan) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "plan ready",
		"run_id", plan.RunID,
		"routing_key", RoutingKey(plan.RegionID),
		"batches", len(plan.Batches),
		"adjusted_score", plan.AdjustedScore,
	)
	return nil
}
