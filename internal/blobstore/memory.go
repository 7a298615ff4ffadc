package blobstore

import (
	"context"
	"sync"

	"github.com/opentdf/ctivault/pkg/cti"
)

// MemoryStore keeps blobs in process, addressed the same way as LocalStore.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, data []byte) (string, error) {
	if err := checkContext(ctx, "memory put"); err != nil {
		return "", err
	}
	id, err := ComputeCID(data)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[id.String()] = append([]byte(nil), data...)
	return id.String(), nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) ([]byte, error) {
	const op = "memory get"
	if err := checkContext(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[id]
	if !ok {
		return nil, cti.Errorf(cti.KindNotFound, op, "no blob for cid %s", id)
	}
	return append([]byte(nil), b...), nil
}

// Replace overwrites the bytes stored under id. It exists to simulate
// substitution and corruption in the backing store.
func (s *MemoryStore) Replace(id string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[id] = append([]byte(nil), data...)
}

// Delete drops a blob, leaving any record that names it dangling.
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, id)
}
