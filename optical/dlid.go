package optical

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/multiformats/go-multibase"

	"xdao.co/vcb/vcberr"
)

// AAMVA DL/ID file layout:
//
//	header     = "@\n\x1e\rANSI " issuerID(6 digits) version(2) jurisdictionVersion(2) entries(2)
//	designator = type(2) offset(4 digits) length(4 digits)      one per subfile
//	subfile    = type(2) element*                               at offset, length bytes
//	element    = id(3) value ('\n', or '\r' after the last element)
//
// Offsets count from the start of the file; a designator's length covers the
// subfile type and its elements.

const (
	filePrefix      = "@\n\x1e\rANSI "
	headerSize      = len(filePrefix) + 6 + 2 + 2 + 2
	designatorSize  = 2 + 4 + 4
	elementSep      = '\n'
	recordSep       = 0x1e
	segmentTerm     = '\r'
	maxFileSubfiles = 99
	maxFileOffset   = 9999
)

// Subfile types.
const (
	SubfileDL = "DL"
	// SubfileZZ is the jurisdiction subfile carrying the barcode payload in
	// its ZZA element.
	SubfileZZ = "ZZ"
)

// ZZAElement is the ZZ subfile element holding the base64url (padded) payload.
const ZZAElement = "ZZA"

// DLOptionalElements are the optional AAMVA DL data element ids, in the
// order they are written after the mandatory elements.
var DLOptionalElements = []string{
	"DAH", "DAW", "DAX", "DAZ", "DCI", "DCJ", "DCK", "DBN", "DBG", "DBS",
	"DCU", "DCE", "DCL", "DCM", "DCN", "DCO", "DCP", "DCQ", "DCR", "DDA",
	"DDB", "DDC", "DDD", "DDH", "DDI", "DDJ", "DDK", "DDL",
}

// dlWriteOrder is the order mandatory elements are written in a DL subfile.
var dlWriteOrder = []string{
	"DAQ", "DCS", "DDE", "DAC", "DDF", "DAD", "DDG", "DCA", "DCB", "DCD", "DBD",
	"DBB", "DBA", "DBC", "DAU", "DAY", "DAG", "DAI", "DAJ", "DAK", "DCF", "DCG",
}

var dlElementKnown = func() map[string]bool {
	m := make(map[string]bool, len(MandatoryElements)+len(DLOptionalElements))
	for _, id := range MandatoryElements {
		m[id] = true
	}
	for _, id := range DLOptionalElements {
		m[id] = true
	}
	return m
}()

// Header is the fixed-width head of a DL/ID file.
type Header struct {
	IssuerID            uint32 // six-digit issuer identification number
	Version             uint8
	JurisdictionVersion uint8
}

// Element is one data element of a subfile.
type Element struct {
	ID    string
	Value string
}

// Subfile is a typed list of data elements.
type Subfile struct {
	Type     string
	Elements []Element
}

// Get returns the value of the first element with id.
func (s Subfile) Get(id string) (string, bool) {
	for _, e := range s.Elements {
		if e.ID == id {
			return e.Value, true
		}
	}
	return "", false
}

// File is a decoded AAMVA DL/ID data file. Subfiles keep designator order.
type File struct {
	Header   Header
	Subfiles []Subfile
}

// Subfile returns the first subfile of type typ.
func (f *File) Subfile(typ string) (Subfile, bool) {
	for _, s := range f.Subfiles {
		if s.Type == typ {
			return s, true
		}
	}
	return Subfile{}, false
}

// IsDLIDFile reports whether b starts with the DL/ID file prefix.
func IsDLIDFile(b []byte) bool { return bytes.HasPrefix(b, []byte(filePrefix)) }

// MarshalBinary writes the header, one designator per subfile and the
// subfiles in order.
func (f *File) MarshalBinary() ([]byte, error) {
	if f.Header.IssuerID > 999999 {
		return nil, dlidErr("issuer id %d exceeds six digits", f.Header.IssuerID)
	}
	if f.Header.Version > 99 || f.Header.JurisdictionVersion > 99 {
		return nil, dlidErr("version fields exceed two digits")
	}
	if len(f.Subfiles) == 0 || len(f.Subfiles) > maxFileSubfiles {
		return nil, dlidErr("%d subfiles, want 1 to %d", len(f.Subfiles), maxFileSubfiles)
	}
	bodies := make([][]byte, len(f.Subfiles))
	for i, s := range f.Subfiles {
		b, err := s.MarshalBinary()
		if err != nil {
			return nil, err
		}
		bodies[i] = b
	}

	var buf bytes.Buffer
	buf.WriteString(filePrefix)
	fmt.Fprintf(&buf, "%06d%02d%02d%02d", f.Header.IssuerID, f.Header.Version, f.Header.JurisdictionVersion, len(f.Subfiles))
	offset := headerSize + designatorSize*len(f.Subfiles)
	for i, b := range bodies {
		if offset+len(b) > maxFileOffset {
			return nil, dlidErr("file exceeds %d bytes", maxFileOffset)
		}
		fmt.Fprintf(&buf, "%s%04d%04d", f.Subfiles[i].Type, offset, len(b))
		offset += len(b)
	}
	for _, b := range bodies {
		buf.Write(b)
	}
	return buf.Bytes(), nil
}

// MarshalBinary writes the subfile type and its elements.
func (s Subfile) MarshalBinary() ([]byte, error) {
	if len(s.Type) != 2 {
		return nil, dlidErr("subfile type %q is not two bytes", s.Type)
	}
	if len(s.Elements) == 0 {
		return nil, dlidErr("subfile %s has no elements", s.Type)
	}
	var buf bytes.Buffer
	buf.WriteString(s.Type)
	for i, e := range s.Elements {
		if len(e.ID) != 3 {
			return nil, dlidErr("element id %q is not three bytes", e.ID)
		}
		if bytes.ContainsAny([]byte(e.Value), "\n\r\x1e") {
			return nil, dlidErr("element %s value holds a separator", e.ID)
		}
		buf.WriteString(e.ID)
		buf.WriteString(e.Value)
		if i == len(s.Elements)-1 {
			buf.WriteByte(segmentTerm)
		} else {
			buf.WriteByte(elementSep)
		}
	}
	return buf.Bytes(), nil
}

// ParseFile decodes a DL/ID file. Every designated subfile must lie inside b
// and be consumed exactly by its elements.
func ParseFile(b []byte) (*File, error) {
	if len(b) < headerSize || !IsDLIDFile(b) {
		return nil, dlidErr("missing DL/ID file header")
	}
	h := b[len(filePrefix):headerSize]
	issuer, err := digits(h[0:6])
	if err != nil {
		return nil, err
	}
	version, err := digits(h[6:8])
	if err != nil {
		return nil, err
	}
	jversion, err := digits(h[8:10])
	if err != nil {
		return nil, err
	}
	entries, err := digits(h[10:12])
	if err != nil {
		return nil, err
	}
	if len(b) < headerSize+designatorSize*entries {
		return nil, dlidErr("file too short for %d subfile designators", entries)
	}

	f := &File{Header: Header{IssuerID: uint32(issuer), Version: uint8(version), JurisdictionVersion: uint8(jversion)}}
	for i := 0; i < entries; i++ {
		d := b[headerSize+designatorSize*i : headerSize+designatorSize*(i+1)]
		typ := string(d[0:2])
		offset, err := digits(d[2:6])
		if err != nil {
			return nil, err
		}
		length, err := digits(d[6:10])
		if err != nil {
			return nil, err
		}
		if offset+length > len(b) {
			return nil, dlidErr("subfile %s at %d+%d runs past the end of the file", typ, offset, length)
		}
		s, err := ParseSubfile(b[offset : offset+length])
		if err != nil {
			return nil, err
		}
		if s.Type != typ {
			return nil, dlidErr("designator names subfile %s but data holds %s", typ, s.Type)
		}
		f.Subfiles = append(f.Subfiles, s)
	}
	return f, nil
}

// ParseSubfile decodes one subfile: its two-byte type followed by elements,
// the last terminated by '\r'. Nothing may follow the terminator.
func ParseSubfile(b []byte) (Subfile, error) {
	if len(b) < 2 {
		return Subfile{}, dlidErr("subfile too short")
	}
	s := Subfile{Type: string(b[:2])}
	rest := b[2:]
	for {
		if len(rest) < 3 {
			return Subfile{}, dlidErr("subfile %s: truncated element", s.Type)
		}
		id := string(rest[:3])
		rest = rest[3:]
		end := bytes.IndexAny(rest, "\n\r\x1e")
		if end < 0 {
			return Subfile{}, dlidErr("subfile %s: element %s is not terminated", s.Type, id)
		}
		if rest[end] == recordSep {
			return Subfile{}, dlidErr("subfile %s: record separator inside element %s", s.Type, id)
		}
		s.Elements = append(s.Elements, Element{ID: id, Value: string(rest[:end])})
		last := rest[end] == segmentTerm
		rest = rest[end+1:]
		if last {
			break
		}
	}
	if len(rest) != 0 {
		return Subfile{}, dlidErr("subfile %s: %d bytes after the segment terminator", s.Type, len(rest))
	}
	return s, nil
}

// NewDLSubfile builds a DL subfile from element values. Every mandatory
// element must be present; optional elements are written when present.
func NewDLSubfile(fields map[string]string) (Subfile, error) {
	for id := range fields {
		if !dlElementKnown[id] {
			return Subfile{}, dlidErr("unknown DL data element %q", id)
		}
	}
	s := Subfile{Type: SubfileDL}
	for _, id := range dlWriteOrder {
		v, ok := fields[id]
		if !ok {
			return Subfile{}, dlidErr("missing DL data element %s", id)
		}
		s.Elements = append(s.Elements, Element{ID: id, Value: v})
	}
	for _, id := range DLOptionalElements {
		if v, ok := fields[id]; ok {
			s.Elements = append(s.Elements, Element{ID: id, Value: v})
		}
	}
	return s, nil
}

// DLFields returns the element values of a DL subfile after checking that
// every element is a known DL element and every mandatory one is present.
func DLFields(s Subfile) (map[string]string, error) {
	if s.Type != SubfileDL {
		return nil, dlidErr("subfile %s is not a DL subfile", s.Type)
	}
	fields := make(map[string]string, len(s.Elements))
	for _, e := range s.Elements {
		if !dlElementKnown[e.ID] {
			return nil, dlidErr("unknown DL data element %q", e.ID)
		}
		fields[e.ID] = e.Value
	}
	for _, id := range MandatoryElements {
		if _, ok := fields[id]; !ok {
			return nil, dlidErr("missing DL data element %s", id)
		}
	}
	return fields, nil
}

// NewZZSubfile carries payload in a ZZA element.
func NewZZSubfile(payload []byte) (Subfile, error) {
	enc, err := multibase.Encode(multibase.Base64urlPad, payload)
	if err != nil {
		return Subfile{}, vcberr.Wrap(vcberr.KindInternal, "VCB-DLID-010", "encode ZZA element", err)
	}
	return Subfile{Type: SubfileZZ, Elements: []Element{{ID: ZZAElement, Value: enc[1:]}}}, nil
}

// ZZPayload extracts the payload from a ZZ subfile holding exactly one ZZA
// element.
func ZZPayload(s Subfile) ([]byte, error) {
	if s.Type != SubfileZZ || len(s.Elements) != 1 || s.Elements[0].ID != ZZAElement {
		return nil, dlidErr("ZZ subfile must hold exactly one ZZA element")
	}
	_, b, err := multibase.Decode(string(rune(multibase.Base64urlPad)) + s.Elements[0].Value)
	if err != nil {
		return nil, vcberr.Wrap(vcberr.KindMalformedPayload, "VCB-DLID-011", "invalid ZZA element", err)
	}
	return b, nil
}

// Payload returns the barcode payload carried by f's ZZ subfile.
func (f *File) Payload() ([]byte, error) {
	zz, ok := f.Subfile(SubfileZZ)
	if !ok {
		return nil, dlidErr("file has no ZZ subfile")
	}
	return ZZPayload(zz)
}

// DLFields returns the DL subfile values of f.
func (f *File) DLFields() (map[string]string, error) {
	dl, ok := f.Subfile(SubfileDL)
	if !ok {
		return nil, dlidErr("file has no DL subfile")
	}
	return DLFields(dl)
}

func digits(b []byte) (int, error) {
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, dlidErr("non-digit %q in numeric field", b)
		}
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return 0, dlidErr("numeric field %q", b)
	}
	return n, nil
}

func dlidErr(format string, args ...any) error {
	return vcberr.Newf(vcberr.KindMalformedPayload, "VCB-DLID-001", format, args...)
}
