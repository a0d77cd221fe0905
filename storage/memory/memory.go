// Package memory is an in-process storage.Store, used by tests and by
// verifiers that preload status lists.
package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/ipfs/go-cid"

	"xdao.co/vcb/cidutil"
	"xdao.co/vcb/storage"
)

// Store is safe for concurrent use. The zero value is not usable; call New.
type Store struct {
	mu      sync.RWMutex
	objects map[cid.Cid][]byte
	names   map[string]cid.Cid
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{objects: map[cid.Cid][]byte{}, names: map[string]cid.Cid{}}
}

func (s *Store) Put(_ context.Context, b []byte) (cid.Cid, error) {
	id, err := cidutil.Of(b)
	if err != nil {
		return cid.Undef, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.objects[id]; ok {
		if !bytes.Equal(existing, b) {
			return cid.Undef, storage.ErrImmutable
		}
		return id, nil
	}
	s.objects[id] = append([]byte(nil), b...)
	return id, nil
}

func (s *Store) Get(_ context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.objects[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (s *Store) Has(_ context.Context, id cid.Cid) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[id]
	return ok, nil
}

func (s *Store) Bind(_ context.Context, name string, id cid.Cid) error {
	if name == "" {
		return storage.ErrInvalidName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[id]; !ok {
		return storage.ErrNotFound
	}
	s.names[name] = id
	return nil
}

func (s *Store) Lookup(_ context.Context, name string) (cid.Cid, error) {
	if name == "" {
		return cid.Undef, storage.ErrInvalidName
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.names[name]
	if !ok {
		return cid.Undef, storage.ErrNotFound
	}
	return id, nil
}
