package trust

import (
	"context"
	"fmt"

	"xdao.co/vcb/cidutil"
	"xdao.co/vcb/proof"
	"xdao.co/vcb/storage"
)

// KeySource resolves keys; *Static is the usual implementation.
type KeySource interface {
	ResolveKey(ctx context.Context, keyID string) (*proof.PublicKey, error)
}

// CASResolver fetches status lists from a storage.Store. A list id is first
// looked up in the store's name index; a list id that is itself a CID is read
// directly. Keys come from Keys.
type CASResolver struct {
	Keys  KeySource
	Store storage.Store
}

var _ Resolver = (*CASResolver)(nil)

func (r *CASResolver) ResolveKey(ctx context.Context, keyID string) (*proof.PublicKey, error) {
	if r.Keys == nil {
		return nil, ErrNotFound
	}
	return r.Keys.ResolveKey(ctx, keyID)
}

func (r *CASResolver) FetchStatusList(ctx context.Context, listID string) ([]byte, error) {
	if r.Store == nil {
		return nil, ErrUnavailable
	}
	if id, err := cidutil.Parse(listID); err == nil {
		b, err := r.Store.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return b, nil
	}
	b, err := storage.Fetch(ctx, r.Store, listID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, listID, err)
	}
	return b, nil
}
