// Package canon implements the deterministic canonical byte form of a claims
// graph.
//
// Wire form (v1):
//
//	dictVersion(1) | graph
//	graph  = count(uvarint) entry*
//	entry  = keyLen(uvarint) key | kind(1) | value
//	value  = string/bytes: len(uvarint) data
//	         integer/date: 8 bytes big-endian two's complement
//	         float:        8 bytes IEEE-754 big-endian
//	         boolean:      1 byte, 0x00 or 0x01
//	         graph:        graph
//
// Entries are ordered by the dictionary: term keys by ascending term code,
// then literal keys by byte-wise order. Decode rejects every other spelling.
package canon

import (
	"bytes"
	"errors"
	"math"
	"unicode/utf8"

	"xdao.co/vcb/claims"
	"xdao.co/vcb/dictionary"
	"xdao.co/vcb/internal/wire"
	"xdao.co/vcb/vcberr"
)

// MaxDepth bounds graph nesting.
const MaxDepth = 16

// Encoder canonicalizes graphs against one dictionary. It holds no mutable
// state and is safe for concurrent use.
type Encoder struct {
	dict *dictionary.Dictionary
}

// NewEncoder returns an encoder bound to d.
func NewEncoder(d *dictionary.Dictionary) *Encoder {
	return &Encoder{dict: d}
}

var defaultEncoder = NewEncoder(dictionary.Current())

// Encode canonicalizes g with the current dictionary.
func Encode(g *claims.Graph) ([]byte, error) { return defaultEncoder.Encode(g) }

// Decode parses canonical bytes produced by any registered dictionary version.
func Decode(b []byte) (*claims.Graph, error) { return defaultEncoder.Decode(b) }

// Canonicalize is the single choke point for canonical bytes arriving from
// outside: it rejects any non-canonical input and returns a private copy.
func Canonicalize(b []byte) ([]byte, error) {
	if _, err := Decode(b); err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

func (e *Encoder) Dictionary() *dictionary.Dictionary { return e.dict }

// Encode returns the canonical bytes of g.
func (e *Encoder) Encode(g *claims.Graph) ([]byte, error) {
	if g == nil {
		return nil, vcberr.New(vcberr.KindMalformedGraph, "VCB-CANON-001", "nil claims graph")
	}
	var w wire.Writer
	w.Byte(e.dict.Version())
	if err := encodeGraph(&w, e.dict, g, 0); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func encodeGraph(w *wire.Writer, d *dictionary.Dictionary, g *claims.Graph, depth int) error {
	if depth > MaxDepth {
		return vcberr.New(vcberr.KindMalformedGraph, "VCB-CANON-007", "claims graph nested too deeply")
	}
	entries := g.Claims()
	keys := make([]string, 0, len(entries))
	byKey := make(map[string]claims.Value, len(entries))
	for _, c := range entries {
		if c.Key == "" {
			return vcberr.New(vcberr.KindMalformedGraph, "VCB-CANON-002", "empty claim key")
		}
		if !utf8.ValidString(c.Key) {
			return vcberr.New(vcberr.KindMalformedGraph, "VCB-CANON-003", "claim key is not valid UTF-8")
		}
		if _, dup := byKey[c.Key]; dup {
			return vcberr.Newf(vcberr.KindMalformedGraph, "VCB-CANON-008", "duplicate claim key %q", c.Key)
		}
		byKey[c.Key] = c.Value
		keys = append(keys, c.Key)
	}
	d.SortKeys(keys)

	w.Uvarint(uint64(len(keys)))
	for _, k := range keys {
		w.Prefixed([]byte(k))
		if err := encodeValue(w, d, k, byKey[k], depth); err != nil {
			return err
		}
	}
	return nil
}

func encodeValue(w *wire.Writer, d *dictionary.Dictionary, key string, v claims.Value, depth int) error {
	w.Byte(byte(v.Kind()))
	switch v.Kind() {
	case claims.KindString:
		if !utf8.ValidString(v.Str()) {
			return vcberr.Newf(vcberr.KindMalformedGraph, "VCB-CANON-004", "claim %q: string is not valid UTF-8", key)
		}
		w.Prefixed([]byte(v.Str()))
	case claims.KindInteger:
		w.Uint64(uint64(v.Int()))
	case claims.KindFloat:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return vcberr.Newf(vcberr.KindMalformedGraph, "VCB-CANON-005", "claim %q: float must be finite", key)
		}
		w.Uint64(math.Float64bits(f))
	case claims.KindBoolean:
		if v.Bool() {
			w.Byte(1)
		} else {
			w.Byte(0)
		}
	case claims.KindDate:
		w.Uint64(uint64(v.UnixSeconds()))
	case claims.KindBytes:
		w.Prefixed(v.Raw())
	case claims.KindGraph:
		sub := v.Graph()
		if sub == nil {
			sub = claims.New()
		}
		return encodeGraph(w, d, sub, depth+1)
	default:
		return vcberr.Newf(vcberr.KindMalformedGraph, "VCB-CANON-006", "claim %q: unknown value kind %s", key, v.Kind())
	}
	return nil
}

// Decode parses canonical bytes. Bytes carrying the encoder's dictionary
// version use it; other versions are looked up in the registry.
func (e *Encoder) Decode(b []byte) (*claims.Graph, error) {
	if len(b) == 0 {
		return nil, vcberr.New(vcberr.KindMalformedGraph, "VCB-CANON-010", "empty canonical bytes")
	}
	d, err := e.dictionaryFor(b[0])
	if err != nil {
		return nil, err
	}
	r := wire.NewReader(b[1:])
	g, err := decodeGraph(r, d, 0)
	if err != nil {
		return nil, err
	}
	if r.Remaining() != 0 {
		return nil, vcberr.New(vcberr.KindMalformedGraph, "VCB-CANON-015", "trailing bytes after claims graph")
	}

	// Enforce full canonical byte identity by re-encoding and comparing.
	again, err := NewEncoder(d).Encode(g)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(again, b) {
		return nil, vcberr.New(vcberr.KindMalformedGraph, "VCB-CANON-016", "non-canonical claims encoding")
	}
	return g, nil
}

func (e *Encoder) dictionaryFor(version uint8) (*dictionary.Dictionary, error) {
	if e.dict != nil && e.dict.Version() == version {
		return e.dict, nil
	}
	if d, ok := dictionary.Lookup(version); ok {
		return d, nil
	}
	return nil, vcberr.Newf(vcberr.KindUnsupportedAlgorithmTag, "VCB-CANON-011", "unsupported dictionary version %d", version)
}

func decodeGraph(r *wire.Reader, d *dictionary.Dictionary, depth int) (*claims.Graph, error) {
	if depth > MaxDepth {
		return nil, vcberr.New(vcberr.KindMalformedGraph, "VCB-CANON-007", "claims graph nested too deeply")
	}
	n, err := r.Uvarint()
	if err != nil {
		return nil, wireErr(err)
	}
	// Every entry takes at least three bytes (key length, key, kind).
	if n > uint64(r.Remaining()) {
		return nil, vcberr.New(vcberr.KindMalformedGraph, "VCB-CANON-012", "entry count exceeds available bytes")
	}
	g := claims.New()
	prev := ""
	for i := uint64(0); i < n; i++ {
		kb, err := r.Prefixed()
		if err != nil {
			return nil, wireErr(err)
		}
		key := string(kb)
		if key == "" {
			return nil, vcberr.New(vcberr.KindMalformedGraph, "VCB-CANON-002", "empty claim key")
		}
		if !utf8.ValidString(key) {
			return nil, vcberr.New(vcberr.KindMalformedGraph, "VCB-CANON-003", "claim key is not valid UTF-8")
		}
		if i > 0 && !d.Less(prev, key) {
			return nil, vcberr.Newf(vcberr.KindMalformedGraph, "VCB-CANON-014", "claim %q out of canonical order", key)
		}
		prev = key
		v, err := decodeValue(r, d, key, depth)
		if err != nil {
			return nil, err
		}
		g.Set(key, v)
	}
	return g, nil
}

func decodeValue(r *wire.Reader, d *dictionary.Dictionary, key string, depth int) (claims.Value, error) {
	kb, err := r.Byte()
	if err != nil {
		return claims.Value{}, wireErr(err)
	}
	switch kind := claims.Kind(kb); kind {
	case claims.KindString:
		s, err := r.Prefixed()
		if err != nil {
			return claims.Value{}, wireErr(err)
		}
		if !utf8.Valid(s) {
			return claims.Value{}, vcberr.Newf(vcberr.KindMalformedGraph, "VCB-CANON-004", "claim %q: string is not valid UTF-8", key)
		}
		return claims.String(string(s)), nil
	case claims.KindInteger:
		u, err := r.Uint64()
		if err != nil {
			return claims.Value{}, typeErr(key, kind, err)
		}
		return claims.Integer(int64(u)), nil
	case claims.KindFloat:
		u, err := r.Uint64()
		if err != nil {
			return claims.Value{}, typeErr(key, kind, err)
		}
		f := math.Float64frombits(u)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return claims.Value{}, vcberr.Newf(vcberr.KindMalformedGraph, "VCB-CANON-005", "claim %q: float must be finite", key)
		}
		return claims.Float(f), nil
	case claims.KindBoolean:
		b, err := r.Byte()
		if err != nil {
			return claims.Value{}, typeErr(key, kind, err)
		}
		if b > 1 {
			return claims.Value{}, vcberr.Newf(vcberr.KindMalformedGraph, "VCB-CANON-013", "claim %q: boolean byte 0x%02x", key, b)
		}
		return claims.Boolean(b == 1), nil
	case claims.KindDate:
		u, err := r.Uint64()
		if err != nil {
			return claims.Value{}, typeErr(key, kind, err)
		}
		return claims.Unix(int64(u)), nil
	case claims.KindBytes:
		raw, err := r.Prefixed()
		if err != nil {
			return claims.Value{}, wireErr(err)
		}
		return claims.Bytes(raw), nil
	case claims.KindGraph:
		sub, err := decodeGraph(r, d, depth+1)
		if err != nil {
			return claims.Value{}, err
		}
		return claims.Nested(sub), nil
	default:
		return claims.Value{}, vcberr.Newf(vcberr.KindMalformedGraph, "VCB-CANON-006", "claim %q: unknown value kind %d", key, kb)
	}
}

func typeErr(key string, kind claims.Kind, cause error) error {
	return vcberr.Wrap(vcberr.KindMalformedGraph, "VCB-CANON-012", "claim "+key+": truncated "+kind.String()+" value", cause)
}

func wireErr(err error) error {
	if errors.Is(err, wire.ErrNonMinimal) {
		return vcberr.Wrap(vcberr.KindMalformedGraph, "VCB-CANON-017", "non-minimal length prefix", err)
	}
	return vcberr.Wrap(vcberr.KindMalformedGraph, "VCB-CANON-012", "truncated claims encoding", err)
}
