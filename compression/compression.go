// Package compression shrinks canonical claim bytes so a credential fits in a
// single barcode symbol.
package compression

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"

	"xdao.co/vcb/vcberr"
)

// Algorithm identifies the compression applied to canonical bytes. The value
// occupies two bits of the payload flags byte and must never be renumbered.
type Algorithm uint8

const (
	// Raw carries canonical bytes unchanged.
	Raw Algorithm = 0
	// Dictionary re-expresses keys and well-known values as dictionary codes.
	Dictionary Algorithm = 1
	// Deflate is RFC 1951 at a fixed level.
	Deflate Algorithm = 2
	// Tag 3 is reserved.
)

func (a Algorithm) String() string {
	switch a {
	case Raw:
		return "raw"
	case Dictionary:
		return "dictionary"
	case Deflate:
		return "deflate"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}

// ParseAlgorithm parses an algorithm name as printed by String.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch name {
	case "raw":
		return Raw, nil
	case "dictionary":
		return Dictionary, nil
	case "deflate":
		return Deflate, nil
	default:
		return 0, fmt.Errorf("unknown compression algorithm: %q", name)
	}
}

// Valid reports whether a is a supported algorithm.
func (a Algorithm) Valid() bool { return a <= Deflate }

// Compressed is compressed bytes plus the tag needed to reverse them.
type Compressed struct {
	Algorithm Algorithm
	Data      []byte
}

// SigningInput is the tag byte followed by Data. Proofs cover it so the tag
// cannot be swapped without invalidating the signature.
func (c Compressed) SigningInput() []byte {
	out := make([]byte, 0, 1+len(c.Data))
	out = append(out, byte(c.Algorithm))
	return append(out, c.Data...)
}

const (
	// MaxExpandedSize bounds decompressed output.
	MaxExpandedSize = 64 << 10

	// DeflateLevel is fixed so identical input yields identical output.
	DeflateLevel = flate.BestCompression
)

// Codec selects and applies compression. It is immutable and safe for
// concurrent use. The dictionary used for substitution is the one named by
// the version byte of the canonical input.
type Codec struct {
	maxExpanded int
}

// Option configures a Codec.
type Option func(*Codec)

// WithMaxExpandedSize overrides MaxExpandedSize.
func WithMaxExpandedSize(n int) Option {
	return func(c *Codec) {
		if n > 0 {
			c.maxExpanded = n
		}
	}
}

func NewCodec(opts ...Option) *Codec {
	c := &Codec{maxExpanded: MaxExpandedSize}
	for _, o := range opts {
		o(c)
	}
	return c
}

var defaultCodec = NewCodec()

// Compress picks the smallest form of canonical.
func Compress(canonical []byte) (Compressed, error) { return defaultCodec.Compress(canonical) }

// Decompress reverses Compress.
func Decompress(c Compressed) ([]byte, error) { return defaultCodec.Decompress(c) }

// Compress chooses Dictionary iff the input is eligible and strictly smaller
// than both other forms, otherwise Deflate iff strictly smaller than Raw,
// otherwise Raw.
func (c *Codec) Compress(canonical []byte) (Compressed, error) {
	deflated, err := deflate(canonical)
	if err != nil {
		return Compressed{}, err
	}
	best := Compressed{Algorithm: Raw, Data: append([]byte(nil), canonical...)}
	if len(deflated) < len(best.Data) {
		best = Compressed{Algorithm: Deflate, Data: deflated}
	}
	if dict, ok := c.substitute(canonical); ok && len(dict) < len(canonical) && len(dict) < len(deflated) {
		best = Compressed{Algorithm: Dictionary, Data: dict}
	}
	return best, nil
}

// CompressAs applies exactly alg. Dictionary fails with MalformedGraph when
// canonical holds a literal key.
func (c *Codec) CompressAs(alg Algorithm, canonical []byte) (Compressed, error) {
	switch alg {
	case Raw:
		return Compressed{Algorithm: Raw, Data: append([]byte(nil), canonical...)}, nil
	case Deflate:
		d, err := deflate(canonical)
		if err != nil {
			return Compressed{}, err
		}
		return Compressed{Algorithm: Deflate, Data: d}, nil
	case Dictionary:
		d, ok := c.substitute(canonical)
		if !ok {
			return Compressed{}, vcberr.New(vcberr.KindMalformedGraph, "VCB-COMP-005", "graph is not eligible for dictionary compression")
		}
		return Compressed{Algorithm: Dictionary, Data: d}, nil
	default:
		return Compressed{}, unsupported(alg)
	}
}

// Decompress returns the canonical bytes. Output never exceeds the
// configured expansion bound.
func (c *Codec) Decompress(in Compressed) ([]byte, error) {
	var out []byte
	switch in.Algorithm {
	case Raw:
		out = append([]byte(nil), in.Data...)
	case Deflate:
		var err error
		if out, err = c.inflate(in.Data); err != nil {
			return nil, err
		}
	case Dictionary:
		var err error
		if out, err = c.expand(in.Data); err != nil {
			return nil, err
		}
	default:
		return nil, unsupported(in.Algorithm)
	}
	if len(out) > c.maxExpanded {
		return nil, vcberr.Newf(vcberr.KindMalformedPayload, "VCB-COMP-003", "decompressed size exceeds %d bytes", c.maxExpanded)
	}
	return out, nil
}

func deflate(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, DeflateLevel)
	if err != nil {
		return nil, vcberr.Wrap(vcberr.KindInternal, "VCB-COMP-900", "deflate init", err)
	}
	if _, err := w.Write(b); err != nil {
		return nil, vcberr.Wrap(vcberr.KindInternal, "VCB-COMP-900", "deflate", err)
	}
	if err := w.Close(); err != nil {
		return nil, vcberr.Wrap(vcberr.KindInternal, "VCB-COMP-900", "deflate", err)
	}
	return buf.Bytes(), nil
}

func (c *Codec) inflate(b []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(b))
	defer r.Close()
	out, err := io.ReadAll(io.LimitReader(r, int64(c.maxExpanded)+1))
	if err != nil {
		return nil, vcberr.Wrap(vcberr.KindMalformedPayload, "VCB-COMP-002", "corrupt deflate stream", err)
	}
	if len(out) > c.maxExpanded {
		return nil, vcberr.Newf(vcberr.KindMalformedPayload, "VCB-COMP-003", "decompressed size exceeds %d bytes", c.maxExpanded)
	}
	return out, nil
}

func unsupported(a Algorithm) error {
	return vcberr.Newf(vcberr.KindUnsupportedAlgorithmTag, "VCB-COMP-001", "unsupported compression algorithm tag %d", uint8(a))
}
