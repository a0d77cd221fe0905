package storage

import (
	"context"
	"errors"

	"github.com/ipfs/go-cid"
)

// Multi provides deterministic, ordered fallback across several stores, e.g.
// a local mirror in front of a shared directory.
//
// Reads try stores in slice order; callers MUST supply a fixed order. Writes
// and bindings go only to the first store.
type Multi struct {
	Stores []Store
}

var _ Store = Multi{}

func (m Multi) first() (Store, error) {
	if len(m.Stores) == 0 {
		return nil, errors.New("storage: Multi has no stores")
	}
	return m.Stores[0], nil
}

func (m Multi) Put(ctx context.Context, b []byte) (cid.Cid, error) {
	s, err := m.first()
	if err != nil {
		return cid.Undef, err
	}
	return s.Put(ctx, b)
}

func (m Multi) Bind(ctx context.Context, name string, id cid.Cid) error {
	s, err := m.first()
	if err != nil {
		return err
	}
	return s.Bind(ctx, name, id)
}

func (m Multi) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	for _, s := range m.Stores {
		b, err := s.Get(ctx, id)
		if err == nil {
			return b, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

func (m Multi) Lookup(ctx context.Context, name string) (cid.Cid, error) {
	for _, s := range m.Stores {
		id, err := s.Lookup(ctx, name)
		if err == nil {
			return id, nil
		}
		if !IsNotFound(err) {
			return cid.Undef, err
		}
	}
	return cid.Undef, ErrNotFound
}

func (m Multi) Has(ctx context.Context, id cid.Cid) (bool, error) {
	for _, s := range m.Stores {
		ok, err := s.Has(ctx, id)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
