package cluster

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is returned for sessions that never existed or were invalidated.
var ErrNotFound = errors.New("session not found")

// Store is the session state shared by every node of the reference cluster.
type Store interface {
	// Create registers a new session with counter 0 and returns its id.
	Create(ctx context.Context) (string, error)
	// Exists reports whether id is a live session.
	Exists(ctx context.Context, id string) (bool, error)
	// Increment bumps the counter and returns the value it had before.
	Increment(ctx context.Context, id string) (int, error)
	// Invalidate removes the session and reports whether it was live.
	Invalidate(ctx context.Context, id string) (bool, error)
	// Count returns the number of live sessions.
	Count(ctx context.Context) (int, error)
	Close() error
}

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// OpenStore opens a store by driver name. dsn is the database file for
// sqlite and a redis:// URL for redis; memory ignores it.
func OpenStore(driver, dsn string) (Store, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		store, err := NewSQLiteStore(dsn)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverRedis:
		store, err := NewRedisStore(dsn)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

func newSessionID() string {
	return uuid.NewString()
}
