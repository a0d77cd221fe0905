// Package trust is the collaborator layer between the verifier and the
// outside world: it resolves issuer keys and fetches status list credentials.
//
// The core pipelines never retry and never cache. Those concerns live here as
// decorators (Caching, Retrying) around a base Resolver.
package trust

import (
	"context"
	"errors"
	"sync"

	"xdao.co/vcb/proof"
)

var (
	// ErrNotFound means no key is known for the requested key id.
	ErrNotFound = errors.New("trust: key not found")
	// ErrUnavailable means a status list could not be fetched right now.
	ErrUnavailable = errors.New("trust: status list unavailable")
)

// Resolver supplies trust material to the verifier.
type Resolver interface {
	ResolveKey(ctx context.Context, keyID string) (*proof.PublicKey, error)
	FetchStatusList(ctx context.Context, listID string) ([]byte, error)
}

// Static is an in-memory Resolver. It is safe for concurrent use.
type Static struct {
	mu    sync.RWMutex
	keys  map[string]*proof.PublicKey
	lists map[string][]byte
}

var _ Resolver = (*Static)(nil)

func NewStatic() *Static {
	return &Static{keys: map[string]*proof.PublicKey{}, lists: map[string][]byte{}}
}

// AddKey registers pub under keyID, replacing any previous key.
func (s *Static) AddKey(keyID string, pub *proof.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[keyID] = pub
}

// AddStatusList registers status list credential bytes under listID.
func (s *Static) AddStatusList(listID string, credential []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[listID] = append([]byte(nil), credential...)
}

func (s *Static) ResolveKey(ctx context.Context, keyID string) (*proof.PublicKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[keyID]
	if !ok {
		return nil, ErrNotFound
	}
	return k, nil
}

func (s *Static) FetchStatusList(ctx context.Context, listID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.lists[listID]
	if !ok {
		return nil, ErrUnavailable
	}
	return append([]byte(nil), b...), nil
}

// KeyIDs lists registered key ids.
func (s *Static) KeyIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.keys))
	for id := range s.keys {
		out = append(out, id)
	}
	return out
}
