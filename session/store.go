package session

import (
	"context"
	"errors"
)

var (
	// ErrNoRecord is returned when a key has no value in the store.
	ErrNoRecord = errors.New("no record")

	// ErrStorage wraps faults of the underlying storage layer.  Reads that
	// fail this way are treated as "absent" by callers; writes that fail are
	// surfaced, since a failed write means the caller's belief about the
	// session state is wrong.
	ErrStorage = errors.New("storage failure")

	// ErrInvalidParameter is returned for invalid function parameters.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Store is the key/value state of one browser session.  Implementations
// must be safe for concurrent use.
type Store interface {
	// Get returns the value for key, or ErrNoRecord.
	Get(ctx context.Context, key string) (string, error)

	// Set writes the value for key, overwriting any prior value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key.  Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every key in the session.
	Clear(ctx context.Context) error

	// Keys lists the keys currently present.
	Keys(ctx context.Context) ([]string, error)
}

// Provider opens the Store bound to a session id.
type Provider interface {
	Open(sid string) Store
}
