// Package wire provides the minimal varint and fixed-width primitives used by
// the canonical, dictionary and payload byte layouts.
//
// All varints are unsigned LEB128 as defined by multiformats unsigned-varint
// and MUST be minimally encoded; a non-minimal varint is a canonicalization
// violation, not a tolerable alternate spelling.
package wire

import (
	"encoding/binary"
	"errors"

	"github.com/multiformats/go-varint"
)

var (
	// ErrShort means the buffer ended before a declared item did.
	ErrShort = errors.New("wire: buffer too short")
	// ErrNonMinimal means a varint was not minimally encoded.
	ErrNonMinimal = errors.New("wire: varint not minimally encoded")
	// ErrOverflow means a varint exceeded 63 bits.
	ErrOverflow = errors.New("wire: varint overflow")
)

// Writer accumulates bytes. The zero value is ready to use.
type Writer struct {
	buf []byte
}

func (w *Writer) Byte(b byte) { w.buf = append(w.buf, b) }

func (w *Writer) Raw(b []byte) { w.buf = append(w.buf, b...) }

func (w *Writer) Uvarint(v uint64) { w.buf = append(w.buf, varint.ToUvarint(v)...) }

// Uint64 writes v as 8 bytes big-endian.
func (w *Writer) Uint64(v uint64) { w.buf = binary.BigEndian.AppendUint64(w.buf, v) }

// Prefixed writes a uvarint length followed by b.
func (w *Writer) Prefixed(b []byte) {
	w.Uvarint(uint64(len(b)))
	w.Raw(b)
}

func (w *Writer) Len() int { return len(w.buf) }

// Bytes returns the accumulated bytes. The writer must not be reused after.
func (w *Writer) Bytes() []byte { return w.buf }

// Reader consumes bytes from a buffer.
type Reader struct {
	buf []byte
	off int
}

func NewReader(b []byte) *Reader { return &Reader{buf: b} }

func (r *Reader) Remaining() int { return len(r.buf) - r.off }

func (r *Reader) Offset() int { return r.off }

// Rest returns the unread bytes without consuming them.
func (r *Reader) Rest() []byte { return r.buf[r.off:] }

func (r *Reader) Byte() (byte, error) {
	if r.Remaining() < 1 {
		return 0, ErrShort
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

func (r *Reader) Uvarint() (uint64, error) {
	if r.Remaining() < 1 {
		return 0, ErrShort
	}
	v, n, err := varint.FromUvarint(r.buf[r.off:])
	switch {
	case err == nil:
	case errors.Is(err, varint.ErrUnderflow):
		return 0, ErrShort
	case errors.Is(err, varint.ErrNotMinimal):
		return 0, ErrNonMinimal
	case errors.Is(err, varint.ErrOverflow):
		return 0, ErrOverflow
	default:
		return 0, err
	}
	r.off += n
	return v, nil
}

// Uvarint64 reads a minimal uvarint over the full uint64 range. Uvarint stops
// at 63 bits, which zigzagged signed values can exceed.
func (r *Reader) Uvarint64() (uint64, error) {
	if r.Remaining() < 1 {
		return 0, ErrShort
	}
	v, n := binary.Uvarint(r.buf[r.off:])
	switch {
	case n == 0:
		return 0, ErrShort
	case n < 0:
		return 0, ErrOverflow
	case n > 1 && r.buf[r.off+n-1] == 0:
		return 0, ErrNonMinimal
	}
	r.off += n
	return v, nil
}

func (r *Reader) Uint64() (uint64, error) {
	if r.Remaining() < 8 {
		return 0, ErrShort
	}
	v := binary.BigEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}

// Next consumes n bytes.
func (r *Reader) Next(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, ErrShort
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// Prefixed consumes a uvarint length and that many bytes.
func (r *Reader) Prefixed() ([]byte, error) {
	n, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(r.Remaining()) {
		return nil, ErrShort
	}
	return r.Next(int(n))
}
