// Package testkit holds conformance suites every storage.Store must pass.
package testkit

import (
	"bytes"
	"context"
	"testing"

	"github.com/ipfs/go-cid"

	"xdao.co/vcb/cidutil"
	"xdao.co/vcb/storage"
)

// NewStore constructs a fresh, empty store for a test.
// The returned store MUST be isolated from other tests.
type NewStore func(t *testing.T) storage.Store

func RunStoreConformance(t *testing.T, newStore NewStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		s := newStore(t)
		want := []byte("status list credential bytes")

		id, err := s.Put(ctx, want)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		wantID, err := cidutil.Of(want)
		if err != nil {
			t.Fatalf("cidutil.Of failed: %v", err)
		}
		if id != wantID {
			t.Fatalf("Put CID mismatch: got %s want %s", id, wantID)
		}

		got, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch")
		}
		if !cidutil.Matches(id, got) {
			t.Fatalf("Get returned bytes not matching requested CID")
		}
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		s := newStore(t)
		b := []byte("same bytes")

		id1, err := s.Put(ctx, b)
		if err != nil {
			t.Fatalf("Put(1) failed: %v", err)
		}
		id2, err := s.Put(ctx, b)
		if err != nil {
			t.Fatalf("Put(2) failed: %v", err)
		}
		if id1 != id2 {
			t.Fatalf("Put not idempotent: %s vs %s", id1, id2)
		}
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		s := newStore(t)
		b := []byte("missing")
		id, err := cidutil.Of(b)
		if err != nil {
			t.Fatalf("cidutil.Of failed: %v", err)
		}

		if ok, err := s.Has(ctx, id); err != nil || ok {
			t.Fatalf("Has missing: got %v, %v", ok, err)
		}
		if _, err := s.Get(ctx, id); !storage.IsNotFound(err) {
			t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
		}

		if _, err := s.Put(ctx, b); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if ok, err := s.Has(ctx, id); err != nil || !ok {
			t.Fatalf("Has after Put: got %v, %v", ok, err)
		}
	})

	t.Run("RejectUndefCID", func(t *testing.T) {
		s := newStore(t)
		var undef cid.Cid
		if ok, _ := s.Has(ctx, undef); ok {
			t.Fatalf("Has should be false for undefined CID")
		}
		if _, err := s.Get(ctx, undef); err == nil {
			t.Fatalf("Get should fail for undefined CID")
		}
	})

	t.Run("BindLookupRebind", func(t *testing.T) {
		s := newStore(t)
		name := "https://status.example/revocation/0"

		if _, err := s.Lookup(ctx, name); !storage.IsNotFound(err) {
			t.Fatalf("Lookup unbound: got err=%v want ErrNotFound", err)
		}

		v1, err := storage.Publish(ctx, s, name, []byte("list v1"))
		if err != nil {
			t.Fatalf("Publish v1 failed: %v", err)
		}
		got, err := s.Lookup(ctx, name)
		if err != nil || got != v1 {
			t.Fatalf("Lookup after v1: got %s, %v want %s", got, err, v1)
		}

		v2, err := storage.Publish(ctx, s, name, []byte("list v2"))
		if err != nil {
			t.Fatalf("Publish v2 failed: %v", err)
		}
		b, err := storage.Fetch(ctx, s, name)
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if string(b) != "list v2" {
			t.Fatalf("Fetch after rebind: got %q", b)
		}
		if old, err := s.Get(ctx, v1); err != nil || string(old) != "list v1" {
			t.Fatalf("old publication must stay readable: %q, %v", old, err)
		}
		if v1 == v2 {
			t.Fatalf("distinct publications share a CID")
		}
	})

	t.Run("BindRequiresObject", func(t *testing.T) {
		s := newStore(t)
		id, err := cidutil.Of([]byte("never stored"))
		if err != nil {
			t.Fatalf("cidutil.Of failed: %v", err)
		}
		if err := s.Bind(ctx, "n", id); !storage.IsNotFound(err) {
			t.Fatalf("Bind to missing object: got err=%v want ErrNotFound", err)
		}
		if err := s.Bind(ctx, "", id); err == nil {
			t.Fatalf("Bind with empty name should fail")
		}
	})
}
