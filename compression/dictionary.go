package compression

import (
	"math"
	"unicode/utf8"

	"xdao.co/vcb/canon"
	"xdao.co/vcb/claims"
	"xdao.co/vcb/dictionary"
	"xdao.co/vcb/internal/wire"
	"xdao.co/vcb/vcberr"
)

// Dictionary form:
//
//	dictVersion(1) | graph
//	graph = count(uvarint) entry*
//	entry = termCode(uvarint) | kind(1) | value
//	value = string:       valueCode(uvarint), or 0 then len(uvarint) data
//	        integer/date: zigzag uvarint (full 64-bit range)
//	        float:        8 bytes IEEE-754 big-endian
//	        boolean:      1 byte
//	        bytes:        len(uvarint) data
//	        graph:        graph
//
// Term codes strictly ascend within a graph, and a string that has a value
// code is always written as that code, so every graph has exactly one
// dictionary form.

// substitute returns the dictionary form of canonical, or false when the input
// is not canonical or holds a key outside the dictionary.
func (c *Codec) substitute(canonical []byte) ([]byte, bool) {
	if len(canonical) == 0 {
		return nil, false
	}
	d, ok := dictionary.Lookup(canonical[0])
	if !ok {
		return nil, false
	}
	g, err := canon.NewEncoder(d).Decode(canonical)
	if err != nil {
		return nil, false
	}
	var w wire.Writer
	w.Byte(d.Version())
	if !writeGraph(&w, d, g) {
		return nil, false
	}
	return w.Bytes(), true
}

func writeGraph(w *wire.Writer, d *dictionary.Dictionary, g *claims.Graph) bool {
	entries := g.Claims()
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	d.SortKeys(keys)
	w.Uvarint(uint64(len(keys)))
	for _, k := range keys {
		code, ok := d.TermCode(k)
		if !ok {
			return false
		}
		v, _ := g.Get(k)
		w.Uvarint(code)
		w.Byte(byte(v.Kind()))
		switch v.Kind() {
		case claims.KindString:
			if vc, ok := d.ValueCode(v.Str()); ok {
				w.Uvarint(vc)
			} else {
				w.Uvarint(0)
				w.Prefixed([]byte(v.Str()))
			}
		case claims.KindInteger, claims.KindDate:
			w.Uvarint(zigzag(v.UnixSeconds()))
		case claims.KindFloat:
			w.Uint64(math.Float64bits(v.Float()))
		case claims.KindBoolean:
			if v.Bool() {
				w.Byte(1)
			} else {
				w.Byte(0)
			}
		case claims.KindBytes:
			w.Prefixed(v.Raw())
		case claims.KindGraph:
			if !writeGraph(w, d, v.Graph()) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// expand rebuilds canonical bytes from the dictionary form.
func (c *Codec) expand(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, corrupt("empty dictionary stream", nil)
	}
	d, ok := dictionary.Lookup(b[0])
	if !ok {
		return nil, vcberr.Newf(vcberr.KindUnsupportedAlgorithmTag, "VCB-COMP-006", "unsupported dictionary version %d", b[0])
	}
	r := wire.NewReader(b[1:])
	g, err := readGraph(r, d, 0)
	if err != nil {
		return nil, err
	}
	if r.Remaining() != 0 {
		return nil, corrupt("trailing bytes in dictionary stream", nil)
	}
	out, err := canon.NewEncoder(d).Encode(g)
	if err != nil {
		return nil, corrupt("dictionary stream does not describe a valid graph", err)
	}
	return out, nil
}

func readGraph(r *wire.Reader, d *dictionary.Dictionary, depth int) (*claims.Graph, error) {
	if depth > canon.MaxDepth {
		return nil, corrupt("dictionary stream nested too deeply", nil)
	}
	n, err := r.Uvarint()
	if err != nil {
		return nil, corrupt("bad entry count", err)
	}
	if n > uint64(r.Remaining()) {
		return nil, corrupt("entry count exceeds available bytes", nil)
	}
	g := claims.New()
	var prev uint64
	for i := uint64(0); i < n; i++ {
		code, err := r.Uvarint()
		if err != nil {
			return nil, corrupt("bad term code", err)
		}
		if code <= prev {
			return nil, corrupt("term codes out of order", nil)
		}
		prev = code
		key, ok := d.Term(code)
		if !ok {
			return nil, corrupt("unknown term code", nil)
		}
		v, err := readValue(r, d, depth)
		if err != nil {
			return nil, err
		}
		g.Set(key, v)
	}
	return g, nil
}

func readValue(r *wire.Reader, d *dictionary.Dictionary, depth int) (claims.Value, error) {
	kb, err := r.Byte()
	if err != nil {
		return claims.Value{}, corrupt("missing value kind", err)
	}
	switch claims.Kind(kb) {
	case claims.KindString:
		vc, err := r.Uvarint()
		if err != nil {
			return claims.Value{}, corrupt("bad value code", err)
		}
		if vc != 0 {
			s, ok := d.Value(vc)
			if !ok {
				return claims.Value{}, corrupt("unknown value code", nil)
			}
			return claims.String(s), nil
		}
		raw, err := r.Prefixed()
		if err != nil {
			return claims.Value{}, corrupt("bad string literal", err)
		}
		if !utf8.Valid(raw) {
			return claims.Value{}, corrupt("string literal is not valid UTF-8", nil)
		}
		if _, coded := d.ValueCode(string(raw)); coded {
			return claims.Value{}, corrupt("literal spelling of a coded value", nil)
		}
		return claims.String(string(raw)), nil
	case claims.KindInteger:
		u, err := r.Uvarint64()
		if err != nil {
			return claims.Value{}, corrupt("bad integer", err)
		}
		return claims.Integer(unzigzag(u)), nil
	case claims.KindDate:
		u, err := r.Uvarint64()
		if err != nil {
			return claims.Value{}, corrupt("bad date", err)
		}
		return claims.Unix(unzigzag(u)), nil
	case claims.KindFloat:
		u, err := r.Uint64()
		if err != nil {
			return claims.Value{}, corrupt("bad float", err)
		}
		return claims.Float(math.Float64frombits(u)), nil
	case claims.KindBoolean:
		b, err := r.Byte()
		if err != nil || b > 1 {
			return claims.Value{}, corrupt("bad boolean", err)
		}
		return claims.Boolean(b == 1), nil
	case claims.KindBytes:
		raw, err := r.Prefixed()
		if err != nil {
			return claims.Value{}, corrupt("bad byte string", err)
		}
		return claims.Bytes(raw), nil
	case claims.KindGraph:
		sub, err := readGraph(r, d, depth+1)
		if err != nil {
			return claims.Value{}, err
		}
		return claims.Nested(sub), nil
	default:
		return claims.Value{}, corrupt("unknown value kind", nil)
	}
}

func zigzag(v int64) uint64 { return uint64(v<<1) ^ uint64(v>>63) }

func unzigzag(u uint64) int64 { return int64(u>>1) ^ -int64(u&1) }

func corrupt(msg string, cause error) error {
	return vcberr.Wrap(vcberr.KindMalformedPayload, "VCB-COMP-004", "dictionary stream: "+msg, cause)
}
