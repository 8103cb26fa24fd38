package storage

import (
	"context"
	"errors"
	"time"

	"slotwatch/internal/domain"
)

var (
	ErrUnknownDriver = errors.New("unknown state driver")
	ErrClosed        = errors.New("state store closed")
)

// Logical keys. Each is replaced atomically on write.
const (
	KeyTargets  = "target_dates"
	KeyCursor   = "inbound_cursor"
	KeyCounters = "notify_counters"
)

// Config configures the state store.
//
// Driver values:
//   - "file": one JSON file per logical key under Path (a directory)
//   - "sqlite": SQLite database file at Path
//   - "redis": keys under Redis.Prefix on Redis.Addr
//   - "memory": process-local, lost on exit
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	Redis       RedisConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// State is everything the system remembers between invocations.
type State struct {
	Targets  *domain.TargetSet
	Cursor   domain.Cursor
	Counters domain.Counters

	// Dropped lists stored entries that failed validation on load.
	Dropped []string
}

// EmptyState is what a fresh deployment starts from.
func EmptyState() State {
	return State{
		Targets:  domain.NewTargetSet(),
		Cursor:   domain.UnsetCursor(),
		Counters: domain.Counters{},
	}
}

// Store persists State. Load never fails on malformed content; only
// backend I/O errors are returned.
type Store interface {
	Load(ctx context.Context) (State, error)
	SaveTargets(ctx context.Context, t *domain.TargetSet) error
	SaveCursor(ctx context.Context, c domain.Cursor) error
	SaveCounters(ctx context.Context, c domain.Counters) error
	Close() error
}

// backend is the byte-level key/value surface each driver implements.
type backend interface {
	get(ctx context.Context, key string) ([]byte, bool, error)
	put(ctx context.Context, key string, val []byte) error
	close() error
	name() string
}
