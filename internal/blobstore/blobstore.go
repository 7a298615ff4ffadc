// Package blobstore stores encrypted artifact envelopes by content address.
package blobstore

import (
	"context"
	"errors"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/opentdf/ctivault/pkg/cti"
)

// Store puts and gets bytes by content address. The address is chosen by the
// backend and is opaque to callers.
type Store interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, id string) ([]byte, error)
}

var (
	ErrCIDMismatch = errors.New("blobstore: content does not match cid")
	ErrImmutable   = errors.New("blobstore: different content already stored under cid")
)

// ComputeCID derives a CIDv1 with the raw codec and a sha2-256 multihash.
func ComputeCID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

func decodeCID(op, id string) (cid.Cid, error) {
	c, err := cid.Decode(id)
	if err != nil {
		return cid.Undef, cti.E(cti.KindResponseFormat, op, errors.Join(errors.New("invalid cid "+id), err))
	}
	return c, nil
}

func checkContext(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return cti.E(cti.KindTransient, op, err)
	}
	return nil
}
