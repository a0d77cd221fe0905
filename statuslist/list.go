// Package statuslist implements bitstring status lists: the bit array, its
// encodedList text form, the signed status list credential and the checker
// verifiers consult before accepting a barcode.
package statuslist

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/multiformats/go-multibase"
)

// MaxListBytes bounds a decoded list (8 Mi entries).
const MaxListBytes = 1 << 20

// MinListEntries is the herd-privacy floor recommended for published lists.
// It is not enforced, so small lists remain usable in tests.
const MinListEntries = 131072

// List is a bit-packed status array. Entry i lives in byte i/8, most
// significant bit first. A set bit means revoked (or suspended).
//
// A List is not safe for concurrent mutation.
type List struct {
	bits []byte
}

// New returns a list of size entries, all clear. size is rounded up to a
// whole byte.
func New(size int) (*List, error) {
	if size <= 0 {
		return nil, fmt.Errorf("statuslist: size must be positive")
	}
	n := (size + 7) / 8
	if n > MaxListBytes {
		return nil, fmt.Errorf("statuslist: size %d exceeds %d entries", size, MaxListBytes*8)
	}
	return &List{bits: make([]byte, n)}, nil
}

// FromBytes wraps a copy of raw bits.
func FromBytes(raw []byte) (*List, error) {
	if len(raw) == 0 || len(raw) > MaxListBytes {
		return nil, fmt.Errorf("statuslist: list of %d bytes out of range", len(raw))
	}
	return &List{bits: append([]byte(nil), raw...)}, nil
}

// Len is the number of entries.
func (l *List) Len() int { return len(l.bits) * 8 }

// Bytes returns a copy of the packed bits.
func (l *List) Bytes() []byte { return append([]byte(nil), l.bits...) }

func (l *List) Get(i int) (bool, error) {
	if i < 0 || i >= l.Len() {
		return false, fmt.Errorf("statuslist: index %d out of range [0,%d)", i, l.Len())
	}
	return l.bits[i/8]&(0x80>>(i%8)) != 0, nil
}

func (l *List) Set(i int, set bool) error {
	if i < 0 || i >= l.Len() {
		return fmt.Errorf("statuslist: index %d out of range [0,%d)", i, l.Len())
	}
	if set {
		l.bits[i/8] |= 0x80 >> (i % 8)
	} else {
		l.bits[i/8] &^= 0x80 >> (i % 8)
	}
	return nil
}

// Encode returns the encodedList form: GZIP, then multibase base64url.
// Output is deterministic for identical bits.
func (l *List) Encode() (string, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return "", fmt.Errorf("statuslist: gzip: %w", err)
	}
	if _, err := zw.Write(l.bits); err != nil {
		return "", fmt.Errorf("statuslist: gzip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("statuslist: gzip: %w", err)
	}
	return multibase.Encode(multibase.Base64url, buf.Bytes())
}

// Decode parses an encodedList string.
func Decode(encoded string) (*List, error) {
	enc, compressed, err := multibase.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("statuslist: multibase: %w", err)
	}
	if enc != multibase.Base64url {
		return nil, fmt.Errorf("statuslist: encodedList must be base64url, got %c", rune(enc))
	}
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("statuslist: gzip: %w", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(io.LimitReader(zr, MaxListBytes+1))
	if err != nil {
		return nil, fmt.Errorf("statuslist: gzip: %w", err)
	}
	return FromBytes(raw)
}
