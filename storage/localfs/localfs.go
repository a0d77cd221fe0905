package localfs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"

	"xdao.co/vcb/cidutil"
	"xdao.co/vcb/storage"
)

// Store is a local filesystem-backed content-addressable store with a name
// index.
//
// Objects live under objects/ keyed strictly by CID and are written once.
// Names live under names/, one file per name holding the bound CID; a name
// file is replaced atomically on Bind. The store never uses the network.
type Store struct {
	root string
}

var _ storage.Store = (*Store)(nil)

// New constructs a filesystem store rooted at root. The directory will be
// created if needed.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	for _, dir := range []string{"objects", "names"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, err
		}
	}
	return &Store{root: root}, nil
}

func (s *Store) Put(ctx context.Context, b []byte) (cid.Cid, error) {
	if err := ctx.Err(); err != nil {
		return cid.Undef, err
	}
	id, err := cidutil.Of(b)
	if err != nil {
		return cid.Undef, err
	}

	path := s.objectPath(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cid.Undef, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o444)
	if err != nil {
		if os.IsExist(err) {
			existing, rerr := s.Get(ctx, id)
			if rerr != nil || !bytes.Equal(existing, b) {
				// An unreadable or corrupted object is never repaired in place.
				return cid.Undef, storage.ErrImmutable
			}
			return id, nil
		}
		return cid.Undef, err
	}

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return cid.Undef, err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return cid.Undef, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return cid.Undef, err
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	b, err := os.ReadFile(s.objectPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if !cidutil.Matches(id, b) {
		return nil, storage.ErrCIDMismatch
	}
	return b, nil
}

func (s *Store) Has(ctx context.Context, id cid.Cid) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !id.Defined() {
		return false, nil
	}
	_, err := os.Stat(s.objectPath(id))
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, err
	}
}

// Bind points name at id. The object must already be stored.
func (s *Store) Bind(ctx context.Context, name string, id cid.Cid) error {
	ok, err := s.Has(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrNotFound
	}
	path, err := s.namePath(name)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".bind-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(id.String() + "\n"); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *Store) Lookup(ctx context.Context, name string) (cid.Cid, error) {
	if err := ctx.Err(); err != nil {
		return cid.Undef, err
	}
	path, err := s.namePath(name)
	if err != nil {
		return cid.Undef, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cid.Undef, storage.ErrNotFound
		}
		return cid.Undef, err
	}
	id, err := cidutil.Parse(strings.TrimSpace(string(raw)))
	if err != nil {
		return cid.Undef, storage.ErrInvalidCID
	}
	return id, nil
}

func (s *Store) objectPath(id cid.Cid) string {
	str := id.String()
	if len(str) < 2 {
		return filepath.Join(s.root, "objects", str)
	}
	return filepath.Join(s.root, "objects", str[len(str)-2:], str)
}

// namePath maps a name (typically a URL) to a flat file name. Base32 keeps
// the mapping reversible and free of path separators.
func (s *Store) namePath(name string) (string, error) {
	if name == "" {
		return "", storage.ErrInvalidName
	}
	enc, err := multibase.Encode(multibase.Base32, []byte(name))
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, "names", enc), nil
}
