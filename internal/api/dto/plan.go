package dto

import (
	"fleet-reposition-service/internal/domain"
	"time"
)

type SearchRequest struct {
	Depth      int        `json:"depth"`
	At         *time.Time `json:"at"`
	DeadlineMs int        `json:"deadline_ms"`
}

type ActionResponse struct {
	DriverID string `json:"driver_id"`
	FromZone int    `json:"from_zone"`
	ToZone   int    `json:"to_zone"`
	Cost     int    `json:"cost"`
}

type BatchResponse struct {
	Time      time.Time        `json:"time"`
	Actions   []ActionResponse `json:"actions"`
	BatchCost int              `json:"batch_cost"`
}

// PlanResponse is the wire form of a plan, used by the HTTP API and the
// plan publisher alike.
type PlanResponse struct {
	RunID          string          `json:"run_id"`
	RegionID       int64           `json:"region_id"`
	StartAt        time.Time       `json:"start_at"`
	Score          float64         `json:"score"`
	Cost           int             `json:"cost"`
	AdjustedScore  float64         `json:"adjusted_score"`
	ExploredStates int             `json:"explored_states"`
	CacheHits      int             `json:"cache_hits"`
	Aborted        bool            `json:"aborted"`
	Batches        []BatchResponse `json:"batches"`
}

func FromPlan(p domain.Plan) PlanResponse {
	res := PlanResponse{
		RunID:          p.RunID,
		RegionID:       p.RegionID,
		StartAt:        p.StartAt,
		Score:          p.Score,
		Cost:           p.CostSeconds,
		AdjustedScore:  p.AdjustedScore,
		ExploredStates: p.ExploredStates,
		CacheHits:      p.CacheHits,
		Aborted:        p.Aborted,
		Batches:        make([]BatchResponse, 0, len(p.Batches)),
	}
	for _, b := range p.Batches {
		br := BatchResponse{
			Time:      b.At,
			Actions:   make([]ActionResponse, 0, len(b.Actions)),
			BatchCost: b.CostSeconds,
		}
		for _, a := range b.Actions {
			br.Actions = append(br.Actions, ActionResponse{
				DriverID: a.DriverID,
				FromZone: a.FromZone,
				ToZone:   a.ToZone,
				Cost:     a.CostSeconds,
			})
		}
		res.Batches = append(res.Batches, br)
	}
	return res
}
