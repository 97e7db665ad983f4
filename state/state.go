// Package state persists the bridge's dedup state (signal cursor and
// reported-trade ledger) between runs. The default memory store keeps
// nothing across restarts, so a restarted bridge re-reports everything and
// relies on the backend's upsert semantics.
package state

import (
	"context"
	"fmt"
	"sync"
)

type Store interface {
	LoadCursor(ctx context.Context, account string) (int64, error)
	SaveCursor(ctx context.Context, account string, cursor int64) error
	// LoadLedger returns ledger keys oldest first.
	LoadLedger(ctx context.Context, account string) ([]string, error)
	SaveLedger(ctx context.Context, account string, keys []string) error
	Close() error
}

// Open builds a store from a kind ("memory", "sqlite", "redis") and its
// DSN (file path or redis address).
func Open(kind, dsn string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(dsn)
	case "redis":
		return NewRedis(RedisOptions{Addr: dsn})
	default:
		return nil, fmt.Errorf("unknown state store %q", kind)
	}
}

type Memory struct {
	mu      sync.Mutex
	cursors map[string]int64
	ledgers map[string][]string
}

func NewMemory() *Memory {
	return &Memory{
		cursors: make(map[string]int64),
		ledgers: make(map[string][]string),
	}
}

func (m *Memory) LoadCursor(_ context.Context, account string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursors[account], nil
}

func (m *Memory) SaveCursor(_ context.Context, account string, cursor int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[account] = cursor
	return nil
}

func (m *Memory) LoadLedger(_ context.Context, account string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ledgers[account]...), nil
}

func (m *Memory) SaveLedger(_ context.Context, account string, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledgers[account] = append([]string(nil), keys...)
	return nil
}

func (m *Memory) Close() error { return nil }
