// Package storage publishes and retrieves status list credentials and other
// signed artifacts by content identifier.
package storage

import (
	"context"

	"github.com/ipfs/go-cid"
)

// CAS is a content-addressable store.
//
// Contract:
//   - Put MUST be idempotent.
//   - Stored objects MUST be immutable.
//   - CIDs MUST be derived from the bytes written (see cidutil.Of).
//   - Get MUST return ErrNotFound when the CID is absent, and ErrCIDMismatch
//     when the stored bytes no longer hash to the CID.
type CAS interface {
	Put(ctx context.Context, b []byte) (cid.Cid, error)
	Get(ctx context.Context, id cid.Cid) ([]byte, error)
	Has(ctx context.Context, id cid.Cid) (bool, error)
}

// Index maps stable names (status list ids) to the CID of their current
// publication. Names are mutable pointers; the objects they point to are not.
type Index interface {
	Bind(ctx context.Context, name string, id cid.Cid) error
	Lookup(ctx context.Context, name string) (cid.Cid, error)
}

// Store is a CAS with a name index.
type Store interface {
	CAS
	Index
}

// Publish stores b and binds name to it.
func Publish(ctx context.Context, s Store, name string, b []byte) (cid.Cid, error) {
	id, err := s.Put(ctx, b)
	if err != nil {
		return cid.Undef, err
	}
	if err := s.Bind(ctx, name, id); err != nil {
		return cid.Undef, err
	}
	return id, nil
}

// Fetch returns the object name currently points to.
func Fetch(ctx context.Context, s Store, name string) ([]byte, error) {
	id, err := s.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}
