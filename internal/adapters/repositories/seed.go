package repositories

import (
	"encoding/json"
	"fleet-reposition-service/internal/domain"
	"fmt"
	"os"
	"strings"
	"time"
)

type RegionSeed struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type DriverSeed struct {
	ID              string  `json:"id"`
	RegionID        int64   `json:"region_id"`
	Status          string  `json:"status"`
	Lon             float64 `json:"lon"`
	Lat             float64 `json:"lat"`
	DestinationZone *int    `json:"destination_zone,omitempty"`
}

type PickupSeed struct {
	RegionID int64     `json:"region_id"`
	Lon      float64   `json:"lon"`
	Lat      float64   `json:"lat"`
	At       time.Time `json:"at"`
}

// Seed is the demo data file layout shared by the Postgres and in-memory stores.
type Seed struct {
	Regions []RegionSeed `json:"regions"`
	Drivers []DriverSeed `json:"drivers"`
	Pickups []PickupSeed `json:"pickups"`
}

// LoadSeed reads and validates a seed file.
func LoadSeed(path string) (*Seed, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read %q: %w", path, err)
	}

	var seed Seed
	if err := json.Unmarshal(bytes, &seed); err != nil {
		return nil, fmt.Errorf("seed: parse json: %w", err)
	}
	if err := seed.validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

func (s *Seed) validate() error {
	regions := make(map[int64]bool, len(s.Regions))
	for i, r := range s.Regions {
		if r.ID <= 0 {
			return fmt.Errorf("seed: invalid region id at index %d: %d", i+1, r.ID)
		}
		if strings.TrimSpace(r.Name) == "" {
			return fmt.Errorf("seed: region at index %d: name cannot be empty", i+1)
		}
		regions[r.ID] = true
	}

	for i, d := range s.Drivers {
		if strings.TrimSpace(d.ID) == "" {
			return fmt.Errorf("seed: driver at index %d: id cannot be empty", i+1)
		}
		if !regions[d.RegionID] {
			return fmt.Errorf("seed: driver %q: unknown region %d", d.ID, d.RegionID)
		}
		if _, err := domain.ParseDriverStatus(d.Status); err != nil {
			return fmt.Errorf("seed: driver %q: %w", d.ID, err)
		}
		if err := (domain.Coordinates{Lon: d.Lon, Lat: d.Lat}).Validate(); err != nil {
			return fmt.Errorf("seed: driver %q: %w", d.ID, err)
		}
	}

	for i, p := range s.Pickups {
		if !regions[p.RegionID] {
			return fmt.Errorf("seed: pickup at index %d: unknown region %d", i+1, p.RegionID)
		}
		if p.At.IsZero() {
			return fmt.Errorf("seed: pickup at index %d: time is required", i+1)
		}
		if err := (domain.Coordinates{Lon: p.Lon, Lat: p.Lat}).Validate(); err != nil {
			return fmt.Errorf("seed: pickup at index %d: %w", i+1, err)
		}
	}
	return nil
}

func (d DriverSeed) toDomain() domain.Driver {
	status, _ := domain.ParseDriverStatus(d.Status)
	return domain.Driver{
		ID:              d.ID,
		RegionID:        d.RegionID,
		Status:          status,
		Position:        domain.Coordinates{Lon: d.Lon, Lat: d.Lat},
		DestinationZone: d.DestinationZone,
	}
}
