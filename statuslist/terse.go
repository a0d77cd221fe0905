package statuslist

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"xdao.co/vcb/claims"
)

// DefaultListLength is the number of entries per list a terse index is split
// over.
const DefaultListLength = MinListEntries

const terseType = "TerseBitstringStatusListEntry"

// TerseEntry is the compact status entry carried inside a barcode. A single
// index spans every list published under BaseURL.
type TerseEntry struct {
	BaseURL string
	Index   uint32
}

// Reference expands e into the list id BaseURL/purpose/listIndex and the
// entry within that list.
func (e TerseEntry) Reference(purpose Purpose, listLength int) (Reference, error) {
	if listLength <= 0 {
		return Reference{}, fmt.Errorf("statuslist: list length must be positive")
	}
	if _, err := ParsePurpose(string(purpose)); err != nil {
		return Reference{}, err
	}
	listIndex := int(e.Index) / listLength
	return Reference{
		ListID: fmt.Sprintf("%s/%s/%d", strings.TrimSuffix(e.BaseURL, "/"), purpose, listIndex),
		Index:  int(e.Index) % listLength,
	}, nil
}

// TerseFromReference reverses TerseEntry.Reference. The list id must end in
// /purpose/listIndex.
func TerseFromReference(ref Reference, purpose Purpose, listLength int) (TerseEntry, error) {
	if listLength <= 0 {
		return TerseEntry{}, fmt.Errorf("statuslist: list length must be positive")
	}
	if ref.Index < 0 || ref.Index >= listLength {
		return TerseEntry{}, fmt.Errorf("statuslist: index %d outside list length %d", ref.Index, listLength)
	}
	rest, last, ok := cutLast(ref.ListID)
	if !ok {
		return TerseEntry{}, fmt.Errorf("statuslist: list id %q has no list index", ref.ListID)
	}
	listIndex, err := strconv.ParseUint(last, 10, 32)
	if err != nil {
		return TerseEntry{}, fmt.Errorf("statuslist: invalid list index %q", last)
	}
	base, p, ok := cutLast(rest)
	if !ok {
		return TerseEntry{}, fmt.Errorf("statuslist: list id %q has no status purpose", ref.ListID)
	}
	if Purpose(p) != purpose {
		return TerseEntry{}, fmt.Errorf("statuslist: list id purpose %q, want %q", p, purpose)
	}
	index := listIndex*uint64(listLength) + uint64(ref.Index)
	if index > math.MaxUint32 {
		return TerseEntry{}, fmt.Errorf("statuslist: terse index overflows 32 bits")
	}
	return TerseEntry{BaseURL: base, Index: uint32(index)}, nil
}

func cutLast(s string) (string, string, bool) {
	i := strings.LastIndexByte(s, '/')
	if i <= 0 || i == len(s)-1 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

// Graph returns the credentialStatus claims for e.
func (e TerseEntry) Graph() *claims.Graph {
	return claims.New().
		Set("type", claims.String(terseType)).
		Set("terseStatusListBaseUrl", claims.String(e.BaseURL)).
		Set("terseStatusListIndex", claims.Integer(int64(e.Index)))
}

// TerseFromGraph reads the credentialStatus claims of a credential graph.
func TerseFromGraph(credential *claims.Graph) (TerseEntry, bool) {
	t, ok := credential.Lookup("credentialStatus", "type")
	if !ok || t.Kind() != claims.KindString || t.Str() != terseType {
		return TerseEntry{}, false
	}
	base, ok := credential.Lookup("credentialStatus", "terseStatusListBaseUrl")
	if !ok || base.Kind() != claims.KindString {
		return TerseEntry{}, false
	}
	idx, ok := credential.Lookup("credentialStatus", "terseStatusListIndex")
	if !ok || idx.Kind() != claims.KindInteger || idx.Int() < 0 || idx.Int() > math.MaxUint32 {
		return TerseEntry{}, false
	}
	return TerseEntry{BaseURL: base.Str(), Index: uint32(idx.Int())}, true
}
