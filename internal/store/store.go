package store

import (
	"context"
	"errors"
)

// ErrCorrupt is returned by a Partition whose backing data cannot be
// decoded at all. The bridge clears such partitions.
var ErrCorrupt = errors.New("corrupt partition data")

// Partition is a string key-value layer the notification feed is mirrored
// into. Implementations must be safe for concurrent use.
type Partition interface {
	// Get returns the value stored under key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Keys lists stored keys beginning with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
