package ledger

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

var (
	ErrKeyExists   = errors.New("ledger: key already exists")
	ErrKeyNotFound = errors.New("ledger: key not found")
	ErrClosed      = errors.New("ledger: backend closed")
)

// Backend is the world state the contract writes to. Keys are written once.
type Backend interface {
	// Put stores value under key and fails with ErrKeyExists if key is taken.
	Put(ctx context.Context, key string, value []byte) error
	// Get fails with ErrKeyNotFound for an unknown key.
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns up to limit entries whose keys carry prefix and sort at or
	// after start, in ascending key order.
	List(ctx context.Context, prefix, start string, limit int) ([]KV, error)
	Close() error
}

type KV struct {
	Key   string
	Value []byte
}

// MemoryBackend keeps world state in a map.
type MemoryBackend struct {
	mu     sync.RWMutex
	state  map[string][]byte
	closed bool
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{state: make(map[string][]byte)}
}

func (m *MemoryBackend) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if _, ok := m.state[key]; ok {
		return ErrKeyExists
	}
	m.state[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	v, ok := m.state[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryBackend) List(ctx context.Context, prefix, start string, limit int) ([]KV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	keys := maps.Keys(m.state)
	slices.Sort(keys)
	var out []KV
	for _, k := range keys {
		if len(out) >= limit {
			break
		}
		if !strings.HasPrefix(k, prefix) || k < start {
			continue
		}
		out = append(out, KV{Key: k, Value: append([]byte(nil), m.state[k]...)})
	}
	return out, nil
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
