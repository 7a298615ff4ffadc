package blobstore

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"
	"github.com/opentdf/ctivault/pkg/cti"
)

// LocalStore is a filesystem content-addressed store. Objects are written
// once under root/<first two cid chars>/<cid> and verified on read.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, errors.New("blobstore: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) Put(ctx context.Context, data []byte) (string, error) {
	const op = "local put"
	if err := checkContext(ctx, op); err != nil {
		return "", err
	}
	id, err := ComputeCID(data)
	if err != nil {
		return "", cti.E(cti.KindInvalidRecord, op, err)
	}

	path := s.pathFor(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", cti.Classify(op, err, cti.KindTransient)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o444)
	if err != nil {
		if os.IsExist(err) {
			existing, rerr := s.Get(ctx, id.String())
			if rerr != nil || !bytes.Equal(existing, data) {
				return "", cti.E(cti.KindAlreadyExists, op, ErrImmutable)
			}
			return id.String(), nil
		}
		return "", cti.Classify(op, err, cti.KindTransient)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", cti.Classify(op, err, cti.KindTransient)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", cti.Classify(op, err, cti.KindTransient)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", cti.Classify(op, err, cti.KindTransient)
	}
	return id.String(), nil
}

func (s *LocalStore) Get(ctx context.Context, id string) ([]byte, error) {
	const op = "local get"
	if err := checkContext(ctx, op); err != nil {
		return nil, err
	}
	c, err := decodeCID(op, id)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.pathFor(c))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cti.Errorf(cti.KindNotFound, op, "no blob for cid %s", id)
		}
		return nil, cti.Classify(op, err, cti.KindTransient)
	}
	// A stored object that no longer hashes to its address was altered at rest.
	got, err := ComputeCID(b)
	if err != nil {
		return nil, cti.E(cti.KindResponseFormat, op, err)
	}
	if !got.Equals(c) {
		return nil, cti.E(cti.KindAuthenticationFailure, op, ErrCIDMismatch)
	}
	return b, nil
}

func (s *LocalStore) pathFor(id cid.Cid) string {
	str := id.String()
	if len(str) < 2 {
		return filepath.Join(s.root, str)
	}
	return filepath.Join(s.root, str[:2], str)
}
