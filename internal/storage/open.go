package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"slotwatch/internal/domain"
	logx "slotwatch/pkg/logx"
)

// Open initializes the configured store.
func Open(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	var (
		b   backend
		err error
	)
	switch driver {
	case "", "file":
		b, err = openFile(cfg)
	case "sqlite", "sqlite3":
		b, err = openSQLite(ctx, cfg)
	case "redis":
		b, err = openRedis(ctx, cfg)
	case "memory":
		b = newMemory()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	return newStore(b, log), nil
}

// kvStore maps State onto three logical keys of a backend.
type kvStore struct {
	b   backend
	log logx.Logger

	mu     sync.Mutex
	closed bool
}

func newStore(b backend, log logx.Logger) *kvStore {
	return &kvStore{b: b, log: log.With(logx.String("comp", "storage"), logx.String("driver", b.name()))}
}

func (s *kvStore) Load(ctx context.Context) (State, error) {
	st := EmptyState()
	if err := s.check(); err != nil {
		return st, err
	}

	if raw, ok, err := s.b.get(ctx, KeyTargets); err != nil {
		return st, fmt.Errorf("load %s: %w", KeyTargets, err)
	} else if ok {
		var dropped []string
		st.Targets, dropped = decodeTargets(raw)
		st.Dropped = append(st.Dropped, dropped...)
	}

	if raw, ok, err := s.b.get(ctx, KeyCursor); err != nil {
		return st, fmt.Errorf("load %s: %w", KeyCursor, err)
	} else if ok {
		var dropped []string
		st.Cursor, dropped = decodeCursor(raw)
		st.Dropped = append(st.Dropped, dropped...)
	}

	if raw, ok, err := s.b.get(ctx, KeyCounters); err != nil {
		return st, fmt.Errorf("load %s: %w", KeyCounters, err)
	} else if ok {
		var dropped []string
		st.Counters, dropped = decodeCounters(raw)
		st.Dropped = append(st.Dropped, dropped...)
	}

	if len(st.Dropped) > 0 {
		s.log.Warn("dropped invalid stored entries", logx.Strings("entries", st.Dropped))
	}
	s.log.Debug("state loaded",
		logx.Int("targets", st.Targets.Len()),
		logx.String("cursor", st.Cursor.String()),
		logx.Int("counters", len(st.Counters)),
	)
	return st, nil
}

func (s *kvStore) SaveTargets(ctx context.Context, t *domain.TargetSet) error {
	b, err := encodeTargets(t)
	if err != nil {
		return err
	}
	return s.put(ctx, KeyTargets, b)
}

func (s *kvStore) SaveCursor(ctx context.Context, c domain.Cursor) error {
	return s.put(ctx, KeyCursor, encodeCursor(c))
}

func (s *kvStore) SaveCounters(ctx context.Context, c domain.Counters) error {
	b, err := encodeCounters(c)
	if err != nil {
		return err
	}
	return s.put(ctx, KeyCounters, b)
}

func (s *kvStore) put(ctx context.Context, key string, val []byte) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := s.b.put(ctx, key, val); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (s *kvStore) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *kvStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.b.close()
}
