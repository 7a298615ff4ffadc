// Package vault holds artifact keys in a secret store, one named secret per
// artifact, value transported as base64 text.
package vault

import (
	"context"
	"sync"

	"github.com/opentdf/ctivault/pkg/cti"
)

// Store is a write-once secret store. PutSecret fails with AlreadyExists
// when the name is taken.
type Store interface {
	PutSecret(ctx context.Context, name, value string) error
	GetSecret(ctx context.Context, name string) (string, error)
}

// MemoryStore is an in-process secret store.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string]string)}
}

func (s *MemoryStore) PutSecret(ctx context.Context, name, value string) error {
	if err := ctx.Err(); err != nil {
		return cti.E(cti.KindTransient, "memory put secret", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.secrets[name]; ok {
		return cti.Errorf(cti.KindAlreadyExists, "memory put secret", "secret %s already exists", name)
	}
	s.secrets[name] = value
	return nil
}

func (s *MemoryStore) GetSecret(ctx context.Context, name string) (string, error) {
	const op = "memory get secret"
	if err := ctx.Err(); err != nil {
		return "", cti.E(cti.KindTransient, op, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.secrets[name]
	if !ok {
		return "", cti.Errorf(cti.KindNotFound, op, "no secret named %s", name)
	}
	return v, nil
}

// Delete drops a secret, leaving any record that names it dangling.
func (s *MemoryStore) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, name)
}
