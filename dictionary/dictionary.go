// Package dictionary holds the versioned term tables shared by the canonical
// encoder and the dictionary-substitution compressor.
//
// Dictionaries are immutable once built. The registered set is fixed at
// package initialization and read concurrently by every encode and verify
// call; nothing in this package mutates it afterwards.
package dictionary

import (
	"fmt"
	"sort"
)

// Dictionary maps claim keys (terms) and well-known string values to short
// numeric codes. Codes start at 1; a code is the 1-based position in the
// table, so tables may only grow by appending in a new version.
type Dictionary struct {
	version    uint8
	terms      []string
	termCodes  map[string]uint64
	values     []string
	valueCodes map[string]uint64
}

// Build constructs a dictionary. Terms and values must be unique and non-empty.
func Build(version uint8, terms, values []string) (*Dictionary, error) {
	if version == 0 {
		return nil, fmt.Errorf("dictionary: version 0 is reserved")
	}
	d := &Dictionary{
		version:    version,
		terms:      append([]string(nil), terms...),
		termCodes:  make(map[string]uint64, len(terms)),
		values:     append([]string(nil), values...),
		valueCodes: make(map[string]uint64, len(values)),
	}
	for i, t := range d.terms {
		if t == "" {
			return nil, fmt.Errorf("dictionary: empty term at %d", i)
		}
		if _, dup := d.termCodes[t]; dup {
			return nil, fmt.Errorf("dictionary: duplicate term %q", t)
		}
		d.termCodes[t] = uint64(i + 1)
	}
	for i, v := range d.values {
		if v == "" {
			return nil, fmt.Errorf("dictionary: empty value at %d", i)
		}
		if _, dup := d.valueCodes[v]; dup {
			return nil, fmt.Errorf("dictionary: duplicate value %q", v)
		}
		d.valueCodes[v] = uint64(i + 1)
	}
	return d, nil
}

// MustBuild is like Build but panics on error.
func MustBuild(version uint8, terms, values []string) *Dictionary {
	d, err := Build(version, terms, values)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Dictionary) Version() uint8 { return d.version }

// TermCode returns the code for key, or false when key is a literal.
func (d *Dictionary) TermCode(key string) (uint64, bool) {
	c, ok := d.termCodes[key]
	return c, ok
}

// Term returns the key for code.
func (d *Dictionary) Term(code uint64) (string, bool) {
	if code == 0 || code > uint64(len(d.terms)) {
		return "", false
	}
	return d.terms[code-1], true
}

// ValueCode returns the code for a well-known string value.
func (d *Dictionary) ValueCode(s string) (uint64, bool) {
	c, ok := d.valueCodes[s]
	return c, ok
}

// Value returns the string value for code.
func (d *Dictionary) Value(code uint64) (string, bool) {
	if code == 0 || code > uint64(len(d.values)) {
		return "", false
	}
	return d.values[code-1], true
}

// Less is the canonical key order: dictionary terms by ascending code, then
// literal keys by byte-wise comparison.
func (d *Dictionary) Less(a, b string) bool {
	ca, aTerm := d.termCodes[a]
	cb, bTerm := d.termCodes[b]
	switch {
	case aTerm && bTerm:
		return ca < cb
	case aTerm:
		return true
	case bTerm:
		return false
	default:
		return a < b
	}
}

// SortKeys sorts keys in canonical order in place.
func (d *Dictionary) SortKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool { return d.Less(keys[i], keys[j]) })
}

// Terms returns a copy of the term table.
func (d *Dictionary) Terms() []string { return append([]string(nil), d.terms...) }

// Values returns a copy of the value table.
func (d *Dictionary) Values() []string { return append([]string(nil), d.values...) }

var registry = map[uint8]*Dictionary{}

func register(d *Dictionary) {
	if _, exists := registry[d.version]; exists {
		panic(fmt.Sprintf("dictionary: version %d registered twice", d.version))
	}
	registry[d.version] = d
}

// Lookup returns the registered dictionary for version.
func Lookup(version uint8) (*Dictionary, bool) {
	d, ok := registry[version]
	return d, ok
}

// Current returns the dictionary new payloads are encoded with.
func Current() *Dictionary {
	return registry[CurrentVersion]
}

// Versions lists registered versions in ascending order.
func Versions() []uint8 {
	out := make([]uint8, 0, len(registry))
	for v := range registry {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
