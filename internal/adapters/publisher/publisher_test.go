package publisher

import (
	"context"
	"encoding/json"
	"fleet-reposition-service/internal/domain"
	"testing"
	"time"
)

func TestRoutingKey(t *testing.T) {
	if got := RoutingKey(42); got != "plan.region.42" {
		t.Fatalf("RoutingKey = %q, want %q", got, "plan.region.42")
	}
}

func TestEncodePlan(t *testing.T) {
	at := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	plan := domain.Plan{
		RunID:         "run-1",
		RegionID:      3,
		StartAt:       at,
		Score:         -2,
		CostSeconds:   600,
		AdjustedScore: -2.5,
		Batches: []domain.ActionBatch{
			domain.NewActionBatch(at, domain.Action{DriverID: "d1", FromZone: 0, ToZone: 1, CostSeconds: 600, At: at}),
			domain.NewActionBatch(at.Add(10 * time.Minute)),
		},
	}

	body, err := EncodePlan(plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var msg struct {
		RunID   string `json:"run_id"`
		Cost    int    `json:"cost"`
		Batches []struct {
			BatchCost int `json:"batch_cost"`
			Actions   []struct {
				DriverID string `json:"driver_id"`
				ToZone   int    `json:"to_zone"`
			} `json:"actions"`
		} `json:"batches"`
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.RunID != "run-1" || msg.Cost != 600 || len(msg.Batches) != 2 {
		t.Fatalf("message = %+v", msg)
	}
	if msg.Batches[0].BatchCost != 600 || msg.Batches[0].Actions[0].DriverID != "d1" || msg.Batches[0].Actions[0].ToZone != 1 {
		t.Fatalf("first batch = %+v", msg.Batches[0])
	}
	if msg.Batches[1].Actions == nil || len(msg.Batches[1].Actions) != 0 {
		t.Fatalf("empty batch should encode actions as [], got %+v", msg.Batches[1])
	}
}

func TestLogPublisherNeverFails(t *testing.T) {
	if err := (LogPublisher{}).PublishPlan(context.Background(), domain.Plan{RunID: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
