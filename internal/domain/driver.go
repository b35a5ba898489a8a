package domain

import (
	"fmt"
	"strings"
)

type DriverStatus string

const (
	DriverOnline  DriverStatus = "online"
	DriverEngaged DriverStatus = "engaged"
	DriverOffline DriverStatus = "offline"
)

func ParseDriverStatus(s string) (DriverStatus, error) {
	switch st := DriverStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case DriverOnline, DriverEngaged, DriverOffline:
		return st, nil
	default:
		return "", fmt.Errorf("parse driver status: unknown status %q", s)
	}
}

// Driver is a roster snapshot entry. The search never mutates it; proposed
// reassignments live in the search's own overlay.
type Driver struct {
	ID              string
	RegionID        int64
	Status          DriverStatus
	Position        Coordinates
	DestinationZone *int
}

// Idle reports whether the driver is online with no destination assigned.
func (d Driver) Idle() bool {
	return d.Status == DriverOnline && d.DestinationZone == nil
}
