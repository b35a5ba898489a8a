package traveltime

import (
	"context"
	"fleet-reposition-service/internal/domain"
	"fleet-reposition-service/internal/ports"
	"log/slog"
	"strconv"
	"sync"
)

// KeyPrecision is the number of decimals coordinates are rounded to in cache keys.
const KeyPrecision = 6

// Key builds the cache key "lat,lng-lat,lng" from rounded coordinates.
// Departure time is not part of the key.
func Key(origin, destination domain.Coordinates) string {
	o := origin.Rounded(KeyPrecision)
	d := destination.Rounded(KeyPrecision)
	return formatCoord(o) + "-" + formatCoord(d)
}

func formatCoord(c domain.Coordinates) string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}

// MemoryCache is an in-process TravelTimeCache. The first write for a key wins.
type MemoryCache struct {
	m sync.Map
}

func NewMemoryCache() *MemoryCache { return &MemoryCache{} }

func (c *MemoryCache) Get(_ context.Context, key string) (int, bool, error) {
	v, ok := c.m.Load(key)
	if !ok {
		return 0, false, nil
	}
	return v.(int), true, nil
}

func (c *MemoryCache) PutIfAbsent(_ context.Context, key string, seconds int) error {
	c.m.LoadOrStore(key, seconds)
	return nil
}

// TieredCache keeps a MemoryCache in front of a shared backend (Redis or
// Postgres). Backend errors are logged and the memory tier keeps serving.
type TieredCache struct {
	local  *MemoryCache
	shared ports.TravelTimeCache
}

func NewTieredCache(shared ports.TravelTimeCache) *TieredCache {
	return &TieredCache{local: NewMemoryCache(), shared: shared}
}

func (c *TieredCache) Get(ctx context.Context, key string) (int, bool, error) {
	if v, ok, _ := c.local.Get(ctx, key); ok {
		return v, true, nil
	}
	if c.shared == nil {
		return 0, false, nil
	}

	v, ok, err := c.shared.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "shared travel time cache read failed", "key", key, "err", err)
		return 0, false, nil
	}
	if ok {
		_ = c.local.PutIfAbsent(ctx, key, v)
	}
	return v, ok, nil
}

func (c *TieredCache) PutIfAbsent(ctx context.Context, key string, seconds int) error {
	_ = c.local.PutIfAbsent(ctx, key, seconds)
	if c.shared == nil {
		return nil
	}
	if err := c.shared.PutIfAbsent(ctx, key, seconds); err != nil {
		slog.WarnContext(ctx, "shared travel time cache write failed", "key", key, "err", err)
	}
	return nil
}
