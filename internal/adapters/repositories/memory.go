package repositories

import (
	"context"
	"fleet-reposition-service/internal/domain"
	"fleet-reposition-service/internal/ports"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"
)

// Memory is an in-memory store used when no DATABASE_URL is set and in tests.
// It implements the region, driver and pickup ports.
type Memory struct {
	mu      sync.RWMutex
	regions map[int64]*domain.Region
	drivers map[int64][]domain.Driver
	pickups map[int64][]domain.Pickup
	nextID  int64
}

func NewMemory() *Memory {
	return &Memory{
		regions: map[int64]*domain.Region{},
		drivers: map[int64][]domain.Driver{},
		pickups: map[int64][]domain.Pickup{},
	}
}

// NewMemoryFromSeed builds a store holding the seed's regions, drivers and pickups.
func NewMemoryFromSeed(seed *Seed) *Memory {
	m := NewMemory()
	for _, r := range seed.Regions {
		m.PutRegion(&domain.Region{ID: r.ID, Name: r.Name})
	}
	for _, d := range seed.Drivers {
		m.PutDriver(d.toDomain())
	}
	for _, p := range seed.Pickups {
		m.AddPickup(p.RegionID, domain.Coordinates{Lon: p.Lon, Lat: p.Lat}, p.At)
	}
	return m
}

func (m *Memory) PutRegion(r *domain.Region) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.regions[r.ID] = &cp
}

// PutDriver inserts or replaces a driver by id.
func (m *Memory) PutDriver(d domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.drivers[d.RegionID]
	for i := range list {
		if list[i].ID == d.ID {
			list[i] = d
			return
		}
	}
	m.drivers[d.RegionID] = append(list, d)
}

func (m *Memory) AddPickup(regionID int64, pos domain.Coordinates, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.pickups[regionID] = append(m.pickups[regionID], domain.Pickup{
		ID:       m.nextID,
		RegionID: regionID,
		Position: pos,
		At:       at,
	})
}

func (m *Memory) GetRegion(_ context.Context, id int64) (*domain.Region, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.regions[id]
	if !ok {
		return nil, fmt.Errorf("get region %d: %w", id, ports.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (m *Memory) ListRegions(_ context.Context) ([]*domain.Region, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Region, 0, len(m.regions))
	for _, r := range m.regions {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveRegionZones(_ context.Context, id int64, zs []domain.Zone, samples []domain.DensitySample, table domain.DensityTable) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regions[id]
	if !ok {
		return fmt.Errorf("save region %d: %w", id, ports.ErrNotFound)
	}
	now := time.Now().UTC()
	cp := *r
	cp.Zones = slices.Clone(zs)
	cp.Samples = slices.Clone(samples)
	cp.Density = table
	cp.BuiltAt = &now
	m.regions[id] = &cp
	return nil
}

func (m *Memory) ListDrivers(_ context.Context, regionID int64) ([]domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.drivers[regionID]), nil
}

// ListPickups returns pickups ordered by time, then insertion.
func (m *Memory) ListPickups(_ context.Context, regionID int64) ([]domain.Pickup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Clone(m.pickups[regionID])
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}
