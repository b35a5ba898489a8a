package ports

import "context"

// Persistent store of travel durations keyed by a rounded coordinate pair.
// Writes use insert-if-absent: an existing entry is never overwritten.
type TravelTimeCache interface {
	Get(ctx context.Context, key string) (seconds int, ok bool, err error)
	PutIfAbsent(ctx context.Context, key string, seconds int) error
}
