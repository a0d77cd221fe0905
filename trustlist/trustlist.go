// Package trustlist parses and renders the trust list: the sectioned text
// file that tells a verifier which issuer keys it accepts.
//
//	-----BEGIN VCB TRUST LIST-----
//	META
//	Version: 1
//	Spec: xdao-vcb-trustlist-1
//
//	TRUST
//	Key-Id: did:web:dmv.example#key-1
//	Key: u...
//	Role: issuer
//	-----END VCB TRUST LIST-----
package trustlist

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/multiformats/go-multibase"

	"xdao.co/vcb/compliance"
	"xdao.co/vcb/proof"
	"xdao.co/vcb/trust"
)

const (
	Preamble  = "-----BEGIN VCB TRUST LIST-----"
	Postamble = "-----END VCB TRUST LIST-----"
	SpecID    = "xdao-vcb-trustlist-1"
)

// Roles a trusted key may hold. Issuer keys sign barcodes; status keys sign
// status list credentials.
const (
	RoleIssuer = "issuer"
	RoleStatus = "status"
)

type List struct {
	Meta  map[string]string
	Trust []Entry
}

type Entry struct {
	KeyID string
	Key   *proof.PublicKey
	Role  string
}

// Parse reads a trust list. It is lenient about META content and roles.
func Parse(data []byte) (*List, error) {
	return parse(data, false)
}

// ParseStrict additionally requires Version and Spec metadata, a known Role
// on every entry and unique key ids.
func ParseStrict(data []byte) (*List, error) {
	return parse(data, true)
}

func ParseWithCompliance(data []byte, mode compliance.ComplianceMode) (*List, error) {
	return parse(data, mode == compliance.Strict)
}

func parse(data []byte, strict bool) (*List, error) {
	if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		return nil, errors.New("BOM not allowed")
	}
	if bytes.Contains(data, []byte("\r")) {
		return nil, errors.New("CR line endings not allowed")
	}
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(line) > 0 && (line[len(line)-1] == ' ' || line[len(line)-1] == '\t') {
			return nil, errors.New("trailing whitespace forbidden")
		}
	}
	if !bytes.HasPrefix(data, []byte(Preamble)) {
		return nil, errors.New("missing trust list preamble")
	}
	if !bytes.HasSuffix(bytes.TrimSpace(data), []byte(Postamble)) {
		return nil, errors.New("missing trust list postamble")
	}

	l := &List{Meta: map[string]string{}}
	var section string
	var cur *Entry
	var curKey string
	flush := func() error {
		if cur == nil {
			return nil
		}
		if cur.KeyID == "" || curKey == "" || cur.Role == "" {
			return fmt.Errorf("trust entry %q missing Key-Id, Key or Role", cur.KeyID)
		}
		pub, err := decodeKey(curKey)
		if err != nil {
			return fmt.Errorf("trust entry %q: %w", cur.KeyID, err)
		}
		cur.Key = pub
		l.Trust = append(l.Trust, *cur)
		cur, curKey = nil, ""
		return nil
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		switch line {
		case Preamble, Postamble, "":
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		case "META", "TRUST":
			if err := flush(); err != nil {
				return nil, err
			}
			section = line
			continue
		}
		k, v, ok := strings.Cut(line, ": ")
		if !ok {
			return nil, fmt.Errorf("malformed line %q", line)
		}
		switch section {
		case "META":
			l.Meta[k] = v
		case "TRUST":
			switch k {
			case "Key-Id":
				if err := flush(); err != nil {
					return nil, err
				}
				cur = &Entry{KeyID: v}
			case "Key":
				if cur == nil {
					return nil, errors.New("expected Key-Id before Key")
				}
				curKey = v
			case "Role":
				if cur == nil {
					return nil, errors.New("expected Key-Id before Role")
				}
				cur.Role = v
			default:
				return nil, fmt.Errorf("unknown TRUST field %q", k)
			}
		default:
			return nil, fmt.Errorf("line %q outside any section", line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if strict {
		if err := l.checkStrict(); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *List) checkStrict() error {
	if l.Meta["Version"] != "1" {
		return errors.New("strict: META Version must be 1")
	}
	if l.Meta["Spec"] != SpecID {
		return fmt.Errorf("strict: META Spec must be %s", SpecID)
	}
	seen := map[string]bool{}
	for _, e := range l.Trust {
		if e.Role != RoleIssuer && e.Role != RoleStatus {
			return fmt.Errorf("strict: unknown role %q for %s", e.Role, e.KeyID)
		}
		if seen[e.KeyID] {
			return fmt.Errorf("strict: duplicate key id %s", e.KeyID)
		}
		seen[e.KeyID] = true
	}
	return nil
}

func decodeKey(s string) (*proof.PublicKey, error) {
	_, b, err := multibase.Decode(s)
	if err != nil {
		return nil, err
	}
	return proof.ParsePublicKey(b)
}

// EncodeKey is the Key field form of pub: multibase base64url.
func EncodeKey(pub *proof.PublicKey) (string, error) {
	b, err := pub.MarshalBinary()
	if err != nil {
		return "", err
	}
	return multibase.Encode(multibase.Base64url, b)
}

// Render returns the canonical text: META keys sorted with Version and Spec
// first, entries sorted by key id then role.
func Render(l *List) ([]byte, error) {
	var b strings.Builder
	b.WriteString(Preamble + "\nMETA\n")
	meta := map[string]string{"Version": "1", "Spec": SpecID}
	for k, v := range l.Meta {
		meta[k] = v
	}
	b.WriteString("Version: " + meta["Version"] + "\n")
	b.WriteString("Spec: " + meta["Spec"] + "\n")
	var keys []string
	for k := range meta {
		if k != "Version" && k != "Spec" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k + ": " + meta[k] + "\n")
	}

	entries := append([]Entry(nil), l.Trust...)
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].KeyID != entries[j].KeyID {
			return entries[i].KeyID < entries[j].KeyID
		}
		return entries[i].Role < entries[j].Role
	})
	b.WriteString("\nTRUST\n")
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		key, err := EncodeKey(e.Key)
		if err != nil {
			return nil, fmt.Errorf("trust entry %q: %w", e.KeyID, err)
		}
		b.WriteString("Key-Id: " + e.KeyID + "\nKey: " + key + "\nRole: " + e.Role + "\n")
	}
	b.WriteString(Postamble + "\n")
	return []byte(b.String()), nil
}

// Keys returns the entries holding role, or every entry when role is "".
func (l *List) Keys(role string) []Entry {
	var out []Entry
	for _, e := range l.Trust {
		if role == "" || e.Role == role {
			out = append(out, e)
		}
	}
	return out
}

// Load registers the keys holding any of roles in s. With no roles every
// entry is loaded.
func (l *List) Load(s *trust.Static, roles ...string) int {
	n := 0
	for _, e := range l.Trust {
		if len(roles) > 0 && !contains(roles, e.Role) {
			continue
		}
		s.AddKey(e.KeyID, e.Key)
		n++
	}
	return n
}

// Static builds a trust.Static holding every key in l.
func (l *List) Static() *trust.Static {
	s := trust.NewStatic()
	l.Load(s)
	return s
}

func contains(xs []string, x string) bool {
	for _, y := range xs {
		if y == x {
			return true
		}
	}
	return false
}
