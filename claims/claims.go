// Package claims models the credential claims graph carried in a barcode.
package claims

import (
	"bytes"
	"fmt"
	"math"
	"time"
)

// Kind is the type tag of a claim value. Tag values are part of the
// canonical wire form and must never be renumbered.
type Kind uint8

const (
	KindString  Kind = 1
	KindInteger Kind = 2
	KindFloat   Kind = 3
	KindBoolean Kind = 4
	KindDate    Kind = 5
	KindBytes   Kind = 6
	KindGraph   Kind = 7
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindBoolean:
		return "boolean"
	case KindDate:
		return "date"
	case KindBytes:
		return "bytes"
	case KindGraph:
		return "graph"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k >= KindString && k <= KindGraph
}

// Value is a typed claim value. The zero Value is invalid.
type Value struct {
	kind  Kind
	str   string
	num   int64
	float float64
	raw   []byte
	graph *Graph
}

func String(s string) Value  { return Value{kind: KindString, str: s} }
func Integer(i int64) Value  { return Value{kind: KindInteger, num: i} }
func Float(f float64) Value  { return Value{kind: KindFloat, float: f} }
func Bytes(b []byte) Value   { return Value{kind: KindBytes, raw: append([]byte(nil), b...)} }
func Nested(g *Graph) Value  { return Value{kind: KindGraph, graph: g} }
func Date(t time.Time) Value { return Value{kind: KindDate, num: t.Unix()} }
func Unix(sec int64) Value   { return Value{kind: KindDate, num: sec} }
func Boolean(b bool) Value {
	v := Value{kind: KindBoolean}
	if b {
		v.num = 1
	}
	return v
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) Str() string { return v.str }

func (v Value) Int() int64 { return v.num }

func (v Value) Float() float64 { return v.float }

func (v Value) Bool() bool { return v.num != 0 }

// Time returns the date value in UTC.
func (v Value) Time() time.Time { return time.Unix(v.num, 0).UTC() }

// UnixSeconds returns the raw date value.
func (v Value) UnixSeconds() int64 { return v.num }

func (v Value) Raw() []byte { return v.raw }

func (v Value) Graph() *Graph { return v.graph }

// Equal reports logical equality. Floats compare by bit pattern so that
// equality agrees with canonical byte identity.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindInteger, KindBoolean, KindDate:
		return v.num == o.num
	case KindFloat:
		return math.Float64bits(v.float) == math.Float64bits(o.float)
	case KindBytes:
		return bytes.Equal(v.raw, o.raw)
	case KindGraph:
		return v.graph.Equal(o.graph)
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return fmt.Sprintf("%q", v.str)
	case KindInteger:
		return fmt.Sprintf("%d", v.num)
	case KindFloat:
		return fmt.Sprintf("%g", v.float)
	case KindBoolean:
		return fmt.Sprintf("%t", v.Bool())
	case KindDate:
		return v.Time().Format(time.RFC3339)
	case KindBytes:
		return fmt.Sprintf("0x%x", v.raw)
	case KindGraph:
		return v.graph.String()
	default:
		return "<invalid>"
	}
}

// Claim is one key/value entry of a Graph.
type Claim struct {
	Key   string
	Value Value
}

// Graph is an ordered mapping from claim key to typed value.
//
// Insertion order is preserved for presentation only; the canonical encoder
// imposes its own order, so two graphs holding the same claims are equal
// regardless of the order they were built in.
type Graph struct {
	claims []Claim
	index  map[string]int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{index: make(map[string]int)}
}

// Set adds or replaces the value stored under key.
func (g *Graph) Set(key string, v Value) *Graph {
	if g.index == nil {
		g.index = make(map[string]int)
	}
	if i, ok := g.index[key]; ok {
		g.claims[i].Value = v
		return g
	}
	g.index[key] = len(g.claims)
	g.claims = append(g.claims, Claim{Key: key, Value: v})
	return g
}

// Get returns the value stored under key.
func (g *Graph) Get(key string) (Value, bool) {
	if g == nil {
		return Value{}, false
	}
	i, ok := g.index[key]
	if !ok {
		return Value{}, false
	}
	return g.claims[i].Value, true
}

// Lookup follows a key path through nested graphs, e.g.
// Lookup("credentialSubject", "name").
func (g *Graph) Lookup(path ...string) (Value, bool) {
	cur := g
	for i, key := range path {
		v, ok := cur.Get(key)
		if !ok {
			return Value{}, false
		}
		if i == len(path)-1 {
			return v, true
		}
		if v.Kind() != KindGraph {
			return Value{}, false
		}
		cur = v.Graph()
	}
	return Value{}, false
}

func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.claims)
}

// Claims returns a copy of the entries in insertion order.
func (g *Graph) Claims() []Claim {
	if g == nil {
		return nil
	}
	return append([]Claim(nil), g.claims...)
}

// Equal reports whether both graphs hold the same keys with equal values.
func (g *Graph) Equal(o *Graph) bool {
	if g.Len() != o.Len() {
		return false
	}
	for _, c := range g.Claims() {
		ov, ok := o.Get(c.Key)
		if !ok || !c.Value.Equal(ov) {
			return false
		}
	}
	return true
}

func (g *Graph) String() string {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, c := range g.Claims() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.Key)
		b.WriteString(": ")
		b.WriteString(c.Value.String())
	}
	b.WriteByte('}')
	return b.String()
}
