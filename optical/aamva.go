package optical

import (
	"bytes"
	"crypto/sha256"
	"sort"

	"github.com/multiformats/go-multibase"

	"xdao.co/vcb/vcberr"
)

// MandatoryElements are the AAMVA DL/ID mandatory data element ids.
var MandatoryElements = []string{
	"DCA", "DCB", "DCD", "DBA", "DCS", "DAC", "DAD", "DBD", "DBB", "DBC", "DAY",
	"DAU", "DAG", "DAI", "DAJ", "DAK", "DAQ", "DCF", "DCG", "DDE", "DDF", "DDG",
}

// componentOrder is MandatoryElements sorted by id. componentOrder[i] is
// bit 23-i of a ProtectedComponentIndex, so the first id in order is the most
// significant bit of the first encoded byte and the two low bits are unused.
var componentOrder = func() []string {
	out := append([]string(nil), MandatoryElements...)
	sort.Strings(out)
	return out
}()

var componentBit = func() map[string]ProtectedComponentIndex {
	m := make(map[string]ProtectedComponentIndex, len(componentOrder))
	for i, id := range componentOrder {
		m[id] = maskOf(i)
	}
	return m
}()

const indexBits = 24

// unusedBits covers the positions no mandatory element is assigned to.
var unusedBits = ProtectedComponentIndex(1)<<(indexBits-len(componentOrder)) - 1

func maskOf(i int) ProtectedComponentIndex { return 1 << (indexBits - 1 - i) }

// IndexClaimKey is the claim an encoded ProtectedComponentIndex is carried
// under, so a verifier knows which elements to hash.
const IndexClaimKey = "protectedComponentIndex"

// ProtectedComponentIndex is a 24-bit set of the mandatory elements covered
// by the optical digest.
type ProtectedComponentIndex uint32

// NewProtectedComponentIndex returns the index covering ids.
func NewProtectedComponentIndex(ids ...string) (ProtectedComponentIndex, error) {
	var p ProtectedComponentIndex
	for _, id := range ids {
		if err := p.Insert(id); err != nil {
			return 0, err
		}
	}
	return p, nil
}

func (p *ProtectedComponentIndex) Insert(id string) error {
	mask, ok := componentBit[id]
	if !ok {
		return vcberr.Newf(vcberr.KindMalformedGraph, "VCB-OPTICAL-010", "unknown AAMVA data element %q", id)
	}
	*p |= mask
	return nil
}

func (p *ProtectedComponentIndex) Remove(id string) {
	*p &^= componentBit[id]
}

func (p ProtectedComponentIndex) Contains(id string) bool {
	mask, ok := componentBit[id]
	return ok && p&mask != 0
}

// Elements lists the covered ids in index order.
func (p ProtectedComponentIndex) Elements() []string {
	var out []string
	for i, id := range componentOrder {
		if p&maskOf(i) != 0 {
			out = append(out, id)
		}
	}
	return out
}

// Encode returns the index as three big-endian bytes in multibase base64url.
func (p ProtectedComponentIndex) Encode() (string, error) {
	return multibase.Encode(multibase.Base64url, []byte{byte(p >> 16), byte(p >> 8), byte(p)})
}

// ParseProtectedComponentIndex reverses Encode. Any multibase base is
// accepted; the decoded value must be exactly three bytes.
func ParseProtectedComponentIndex(s string) (ProtectedComponentIndex, error) {
	_, b, err := multibase.Decode(s)
	if err != nil {
		return 0, vcberr.Wrap(vcberr.KindMalformedGraph, "VCB-OPTICAL-011", "invalid protected component index", err)
	}
	if len(b) != 3 {
		return 0, vcberr.Newf(vcberr.KindMalformedGraph, "VCB-OPTICAL-012", "protected component index is %d bytes, want 3", len(b))
	}
	p := ProtectedComponentIndex(uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]))
	if p&unusedBits != 0 {
		return 0, vcberr.New(vcberr.KindMalformedGraph, "VCB-OPTICAL-013", "protected component index sets unassigned bits")
	}
	return p, nil
}

// Digest hashes the covered elements of fields. Each element contributes
// id || value || "\n"; entries are sorted byte-wise before hashing. A
// covered element missing from fields contributes an empty value.
func (p ProtectedComponentIndex) Digest(fields map[string]string) []byte {
	entries := make([][]byte, 0, len(componentOrder))
	for _, id := range p.Elements() {
		e := make([]byte, 0, len(id)+len(fields[id])+1)
		e = append(e, id...)
		e = append(e, fields[id]...)
		e = append(e, '\n')
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return bytes.Compare(entries[i], entries[j]) < 0 })
	sum := sha256.Sum256(bytes.Join(entries, nil))
	return sum[:]
}
