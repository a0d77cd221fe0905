package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	var w Writer
	w.Byte(0x01)
	w.Uvarint(300)
	w.Uint64(1<<40 + 7)
	w.Prefixed([]byte("alice"))
	w.Raw([]byte{0xAA})

	r := NewReader(w.Bytes())
	if b, err := r.Byte(); err != nil || b != 0x01 {
		t.Fatalf("Byte: %v %v", b, err)
	}
	if v, err := r.Uvarint(); err != nil || v != 300 {
		t.Fatalf("Uvarint: %v %v", v, err)
	}
	if v, err := r.Uint64(); err != nil || v != 1<<40+7 {
		t.Fatalf("Uint64: %v %v", v, err)
	}
	if b, err := r.Prefixed(); err != nil || string(b) != "alice" {
		t.Fatalf("Prefixed: %q %v", b, err)
	}
	if !bytes.Equal(r.Rest(), []byte{0xAA}) {
		t.Fatalf("Rest: %x", r.Rest())
	}
	if _, err := r.Next(2); !errors.Is(err, ErrShort) {
		t.Fatalf("Next past end: %v", err)
	}
}

func TestUvarintMinimal(t *testing.T) {
	var w Writer
	w.Uvarint(0)
	w.Uvarint(127)
	w.Uvarint(128)
	if got, want := w.Bytes(), []byte{0x00, 0x7F, 0x80, 0x01}; !bytes.Equal(got, want) {
		t.Fatalf("encoding: got %x want %x", got, want)
	}
}

func TestUvarintErrors(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want error
	}{
		{"empty", nil, ErrShort},
		{"unterminated", []byte{0x80}, ErrShort},
		{"non-minimal", []byte{0x80, 0x00}, ErrNonMinimal},
		{"overflow", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}, ErrOverflow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewReader(tc.in)
			_, err := r.Uvarint()
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v want %v", err, tc.want)
			}
			if r.Offset() != 0 {
				t.Fatalf("offset advanced to %d on error", r.Offset())
			}
		})
	}
}

func TestPrefixedLengthPastEnd(t *testing.T) {
	r := NewReader([]byte{0x05, 'a', 'b'})
	if _, err := r.Prefixed(); !errors.Is(err, ErrShort) {
		t.Fatalf("got %v want ErrShort", err)
	}
}

func TestUvarint64FullRange(t *testing.T) {
	for _, v := range []uint64{0, 1, 1<<63 - 1, 1 << 63, ^uint64(0)} {
		var w Writer
		w.Uvarint(v)
		r := NewReader(w.Bytes())
		got, err := r.Uvarint64()
		if err != nil || got != v {
			t.Fatalf("Uvarint64(%d): got %d %v", v, got, err)
		}
		if r.Remaining() != 0 {
			t.Fatalf("Uvarint64(%d): %d bytes left", v, r.Remaining())
		}
	}
}

func TestUvarint64Errors(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want error
	}{
		{"empty", nil, ErrShort},
		{"unterminated", []byte{0xFF, 0xFF}, ErrShort},
		{"non-minimal", []byte{0x81, 0x00}, ErrNonMinimal},
		{"overflow", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x02}, ErrOverflow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewReader(tc.in)
			if _, err := r.Uvarint64(); !errors.Is(err, tc.want) {
				t.Fatalf("got %v want %v", err, tc.want)
			}
			if r.Offset() != 0 {
				t.Fatalf("offset advanced to %d on error", r.Offset())
			}
		})
	}
}
