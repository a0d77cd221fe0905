// Package bundle moves status list credentials to offline verifiers as a
// deterministic TAR archive: one entry per object plus an index binding list
// ids to CIDs.
package bundle

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"xdao.co/vcb/cidutil"
	"xdao.co/vcb/storage"
)

// FormatVersion is the current bundle index schema version.
const FormatVersion = 1

// MaxObjectSize bounds a single archive entry on import.
const MaxObjectSize = 4 << 20

var epoch0 = time.Unix(0, 0).UTC()

// Export writes the objects that names currently point to in s, plus
// index.json recording the bindings. Output is byte-identical for the same
// store contents regardless of the order of names.
func Export(ctx context.Context, w io.Writer, s storage.Store, names []string) error {
	if s == nil {
		return fmt.Errorf("bundle: nil store")
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	labels := make([]indexLabel, 0, len(sorted))
	uniq := map[string]cid.Cid{}
	for i, name := range sorted {
		if name == "" {
			return fmt.Errorf("bundle: empty name")
		}
		if i > 0 && sorted[i-1] == name {
			continue
		}
		id, err := s.Lookup(ctx, name)
		if err != nil {
			return fmt.Errorf("bundle: %s: %w", name, err)
		}
		labels = append(labels, indexLabel{Name: name, CID: id.String()})
		uniq[id.String()] = id
	}

	cidStrings := make([]string, 0, len(uniq))
	for k := range uniq {
		cidStrings = append(cidStrings, k)
	}
	sort.Strings(cidStrings)

	tw := tar.NewWriter(w)
	blocks := make([]indexBlock, 0, len(cidStrings))
	for _, k := range cidStrings {
		id := uniq[k]
		b, err := s.Get(ctx, id)
		if err != nil {
			_ = tw.Close()
			return err
		}
		if !cidutil.Matches(id, b) {
			_ = tw.Close()
			return storage.ErrCIDMismatch
		}
		if err := writeFile(tw, "objects/"+k, b); err != nil {
			_ = tw.Close()
			return err
		}
		blocks = append(blocks, indexBlock{CID: k, Size: len(b)})
	}

	idx, err := json.Marshal(indexJSON{
		Version:   FormatVersion,
		CIDCodec:  "raw",
		Multihash: "sha2-256",
		Objects:   blocks,
		Labels:    labels,
	})
	if err != nil {
		_ = tw.Close()
		return err
	}
	if err := writeFile(tw, "index.json", append(idx, '\n')); err != nil {
		_ = tw.Close()
		return err
	}
	return tw.Close()
}

// Import reads a bundle into s. Every object must hash to its entry name,
// every label must point at an object in the bundle, and unknown entries
// are rejected. Labels are bound only after all objects are stored.
func Import(ctx context.Context, r io.Reader, s storage.Store) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("bundle: nil store")
	}

	tr := tar.NewReader(r)
	seen := map[string]struct{}{}
	var idx *indexJSON

	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		name := cleanTarPath(h.Name)
		if name == "" {
			return nil, fmt.Errorf("bundle: invalid entry path: %q", h.Name)
		}
		if h.Typeflag != tar.TypeReg {
			return nil, fmt.Errorf("bundle: unexpected tar entry type: %v (%s)", h.Typeflag, name)
		}
		if h.Size > MaxObjectSize {
			return nil, fmt.Errorf("bundle: entry %s exceeds %d bytes", name, MaxObjectSize)
		}
		content, err := io.ReadAll(io.LimitReader(tr, MaxObjectSize))
		if err != nil {
			return nil, err
		}

		if name == "index.json" {
			if idx != nil {
				return nil, fmt.Errorf("bundle: duplicate index.json")
			}
			var parsed indexJSON
			if err := json.Unmarshal(content, &parsed); err != nil {
				return nil, fmt.Errorf("bundle: index.json: %w", err)
			}
			if parsed.Version != FormatVersion {
				return nil, fmt.Errorf("bundle: unsupported index version %d", parsed.Version)
			}
			idx = &parsed
			continue
		}

		cidStr, ok := strings.CutPrefix(name, "objects/")
		if !ok {
			return nil, fmt.Errorf("bundle: unknown entry: %s", name)
		}
		id, err := cidutil.Parse(cidStr)
		if err != nil {
			return nil, storage.ErrInvalidCID
		}
		if !cidutil.Matches(id, content) {
			return nil, storage.ErrCIDMismatch
		}
		if _, dup := seen[cidStr]; dup {
			return nil, fmt.Errorf("bundle: duplicate object entry: %s", cidStr)
		}
		seen[cidStr] = struct{}{}

		putID, err := s.Put(ctx, content)
		if err != nil {
			return nil, err
		}
		if putID != id {
			return nil, storage.ErrCIDMismatch
		}
	}

	if idx == nil {
		return nil, fmt.Errorf("bundle: missing index.json")
	}
	bound := make([]string, 0, len(idx.Labels))
	for _, l := range idx.Labels {
		if _, ok := seen[l.CID]; !ok {
			return bound, fmt.Errorf("bundle: label %q points outside the bundle", l.Name)
		}
		id, err := cidutil.Parse(l.CID)
		if err != nil {
			return bound, storage.ErrInvalidCID
		}
		if err := s.Bind(ctx, l.Name, id); err != nil {
			return bound, err
		}
		bound = append(bound, l.Name)
	}
	return bound, nil
}

type indexJSON struct {
	Version   int          `json:"version"`
	CIDCodec  string       `json:"cidCodec"`
	Multihash string       `json:"multihash"`
	Objects   []indexBlock `json:"objects"`
	Labels    []indexLabel `json:"labels,omitempty"`
}

type indexBlock struct {
	CID  string `json:"cid"`
	Size int    `json:"size"`
}

type indexLabel struct {
	Name string `json:"name"`
	CID  string `json:"cid"`
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch0,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatUSTAR,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return err
}

func cleanTarPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}
	parts := strings.Split(name, "/")
	for _, part := range parts {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return strings.Join(parts, "/")
}
