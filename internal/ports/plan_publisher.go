package ports

import (
	"context"
	"fleet-reposition-service/internal/domain"
)

// Hands recommended plans to the live dispatch system.
type PlanPublisher interface {
	PublishPlan(ctx context.Context, plan domain.Plan) error
}
