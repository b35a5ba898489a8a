package domain

import "time"

// UnknownZone marks an action whose origin zone could not be classified.
const UnknownZone = -1

// Action is a single proposed driver reassignment.
type Action struct {
	DriverID    string
	FromZone    int
	ToZone      int
	CostSeconds int
	At          time.Time
}

// ActionBatch is a set of simultaneous actions at one time step. No driver
// appears twice. The empty batch means "do nothing".
type ActionBatch struct {
	At          time.Time
	Actions     []Action
	CostSeconds int
}

func NewActionBatch(at time.Time, actions ...Action) ActionBatch {
	b := ActionBatch{At: at, Actions: actions}
	for _, a := range actions {
		b.CostSeconds += a.CostSeconds
	}
	return b
}

func (b ActionBatch) Empty() bool { return len(b.Actions) == 0 }

// HasDriver reports whether the batch already moves the given driver.
func (b ActionBatch) HasDriver(id string) bool {
	for _, a := range b.Actions {
		if a.DriverID == id {
			return true
		}
	}
	return false
}

// CostPerAction is the ordering key used when prioritising batches.
// The empty batch has zero cost per action.
func (b ActionBatch) CostPerAction() float64 {
	if len(b.Actions) == 0 {
		return 0
	}
	return float64(b.CostSeconds) / float64(len(b.Actions))
}

// Plan is the result of one search run: the best action batch per time step
// plus run diagnostics.
type Plan struct {
	RunID          string
	RegionID       int64
	StartAt        time.Time
	Score          float64
	CostSeconds    int
	AdjustedScore  float64
	Batches        []ActionBatch
	ExploredStates int
	CacheHits      int
	Aborted        bool
}
