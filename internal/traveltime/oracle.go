// Package traveltime fronts the external routing provider with a
// rounded-coordinate cache and precomputes per-run zone summaries and
// zone-to-zone travel times.
package traveltime

import (
	"context"
	"errors"
	"fleet-reposition-service/internal/domain"
	"fleet-reposition-service/internal/platform/metrics"
	"fleet-reposition-service/internal/ports"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// Unreachable is returned and cached when the provider fails or finds no route.
	Unreachable = 360000
	// Ceiling is the longest trip the provider is asked to search for.
	Ceiling = time.Hour
)

// Oracle never returns an error: failures degrade to Unreachable.
// It is safe for concurrent use.
type Oracle struct {
	provider ports.RoutingProvider
	cache    ports.TravelTimeCache
	group    singleflight.Group
}

func NewOracle(provider ports.RoutingProvider, cache ports.TravelTimeCache) *Oracle {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Oracle{provider: provider, cache: cache}
}

// TravelTime returns the travel time in seconds from origin to destination.
func (o *Oracle) TravelTime(ctx context.Context, origin, destination domain.Coordinates, departAt time.Time) int {
	key := Key(origin, destination)
	if v, ok := o.lookup(ctx, key); ok {
		return v
	}

	// Callers on the same key share one provider call, which runs detached
	// from the cancellation of whoever started it. A caller whose ctx ends
	// first gets Unreachable without caching it.
	ch := o.group.DoChan(key, func() (any, error) {
		shared := context.WithoutCancel(ctx)
		if v, ok := o.lookup(shared, key); ok {
			return v, nil
		}

		seconds := Unreachable
		if o.provider != nil {
			s, err := o.provider.TravelTime(shared, origin, destination, departAt)
			seconds = o.settle(shared, key, s, err)
		}
		o.store(shared, key, seconds)
		return seconds, nil
	})

	select {
	case res := <-ch:
		return res.Val.(int)
	case <-ctx.Done():
		return Unreachable
	}
}

// TravelTimes returns travel times from origin to each destination in order.
// Cache misses are resolved with one batched provider call when the provider
// supports it.
func (o *Oracle) TravelTimes(ctx context.Context, origin domain.Coordinates, destinations []domain.Coordinates, departAt time.Time) []int {
	out := make([]int, len(destinations))
	mp, batched := o.provider.(ports.MatrixRoutingProvider)

	var missIdx []int
	for i, d := range destinations {
		if v, ok := o.lookup(ctx, Key(origin, d)); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
	}
	if len(missIdx) == 0 {
		return out
	}

	if !batched {
		for _, i := range missIdx {
			out[i] = o.TravelTime(ctx, origin, destinations[i], departAt)
		}
		return out
	}

	misses := make([]domain.Coordinates, len(missIdx))
	for j, i := range missIdx {
		misses[j] = destinations[i]
	}

	secs, err := mp.TravelTimes(ctx, origin, misses, departAt)
	if err == nil && len(secs) != len(misses) {
		err = fmt.Errorf("provider returned %d durations for %d destinations", len(secs), len(misses))
	}

	for j, i := range missIdx {
		key := Key(origin, destinations[i])
		s := -1
		if err == nil {
			s = secs[j]
		}
		var rowErr error
		switch {
		case err != nil:
			rowErr = err
		case s < 0:
			rowErr = ports.ErrNoRoute
		}
		out[i] = o.settle(ctx, key, s, rowErr)
		if ctx.Err() == nil {
			o.store(ctx, key, out[i])
		}
	}
	return out
}

func (o *Oracle) lookup(ctx context.Context, key string) (int, bool) {
	v, ok, err := o.cache.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "travel time cache read failed", "key", key, "err", err)
		ok = false
	}
	if ok {
		metrics.TravelTimeLookups.WithLabelValues("hit").Inc()
		return v, true
	}
	metrics.TravelTimeLookups.WithLabelValues("miss").Inc()
	return 0, false
}

// settle turns a provider answer into a cacheable duration.
func (o *Oracle) settle(ctx context.Context, key string, seconds int, err error) int {
	switch {
	case errors.Is(err, ports.ErrNoRoute):
		metrics.ProviderCalls.WithLabelValues("routing", "no_route").Inc()
		return Unreachable
	case err != nil:
		metrics.ProviderCalls.WithLabelValues("routing", "error").Inc()
		slog.WarnContext(ctx, "routing provider failed, using unreachable cost", "key", key, "err", err)
		return Unreachable
	case seconds < 0 || time.Duration(seconds)*time.Second > Ceiling:
		metrics.ProviderCalls.WithLabelValues("routing", "no_route").Inc()
		return Unreachable
	default:
		metrics.ProviderCalls.WithLabelValues("routing", "ok").Inc()
		return seconds
	}
}

func (o *Oracle) store(ctx context.Context, key string, seconds int) {
	if err := o.cache.PutIfAbsent(ctx, key, seconds); err != nil {
		slog.WarnContext(ctx, "travel time cache write failed", "key", key, "err", err)
	}
}
