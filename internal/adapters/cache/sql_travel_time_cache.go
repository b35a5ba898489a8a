package cache

import (
	"context"
	"database/sql"
	"errors"
	"fleet-reposition-service/internal/platform/obs"
	"fmt"
	"strings"
)

// SQLTravelTimeCache is a Postgres-backed cache of travel durations keyed by
// rounded coordinate pairs. Entries are never overwritten.
type SQLTravelTimeCache struct {
	DB *sql.DB
}

func NewSQLTravelTimeCache(db *sql.DB) *SQLTravelTimeCache {
	return &SQLTravelTimeCache{DB: db}
}

func (s *SQLTravelTimeCache) Get(ctx context.Context, key string) (_ int, _ bool, err error) {
	defer obs.Time(ctx, "traveltime.cache.Get")(&err)

	if s.DB == nil {
		return 0, false, errors.New("travel time cache: db is nil")
	}
	if strings.TrimSpace(key) == "" {
		return 0, false, errors.New("get travel time cache: key must not be empty")
	}

	var seconds int
	err = s.DB.QueryRowContext(ctx, `
	SELECT duration_seconds
	FROM travel_time_cache
	WHERE cache_key = $1;
	`, key).Scan(&seconds)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get travel time cache: query: %w", err)
	}
	return seconds, true, nil
}

func (s *SQLTravelTimeCache) PutIfAbsent(ctx context.Context, key string, seconds int) error {
	if s.DB == nil {
		return errors.New("travel time cache: db is nil")
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("insert travel time cache: key must not be empty")
	}

	_, err := s.DB.ExecContext(ctx, `
	INSERT INTO travel_time_cache (cache_key, duration_seconds)
	VALUES ($1, $2)
	ON CONFLICT (cache_key) DO NOTHING;
	`, key, seconds)
	if err != nil {
		return fmt.Errorf("insert travel time cache key=%q: %w", key, err)
	}
	return nil
}
