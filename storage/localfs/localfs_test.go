package localfs

import (
	"context"
	"os"
	"testing"

	"xdao.co/vcb/cidutil"
	"xdao.co/vcb/storage"
	"xdao.co/vcb/storage/testkit"
)

func TestLocalFS_Conformance(t *testing.T) {
	testkit.RunStoreConformance(t, func(t *testing.T) storage.Store {
		t.Helper()
		s, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		return s
	})
}

func TestLocalFS_RejectMutationByOverwrite(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	orig := []byte("original")
	id, err := s.Put(ctx, orig)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Corrupt the stored object out-of-band.
	path := s.objectPath(id)
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("corrupted"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	// Get must detect hash mismatch.
	if _, err := s.Get(ctx, id); err != storage.ErrCIDMismatch {
		t.Fatalf("Get mismatch: got %v want %v", err, storage.ErrCIDMismatch)
	}

	// Put must not "repair" or overwrite the corrupted object.
	if _, err := s.Put(ctx, orig); err != storage.ErrImmutable {
		t.Fatalf("Put after corruption: got %v want %v", err, storage.ErrImmutable)
	}

	if !cidutil.Matches(id, orig) {
		t.Fatalf("unexpected CID %s", id)
	}
}

func TestLocalFS_NamesSurviveReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	id, err := storage.Publish(ctx, s, "https://status.example/suspension/7", []byte("list"))
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	reopened, err := New(dir)
	if err != nil {
		t.Fatalf("New(reopen) failed: %v", err)
	}
	got, err := reopened.Lookup(ctx, "https://status.example/suspension/7")
	if err != nil || got != id {
		t.Fatalf("Lookup after reopen: got %s, %v want %s", got, err, id)
	}
}
