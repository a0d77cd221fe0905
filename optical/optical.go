// Package optical computes digests over the human-readable data printed next
// to a barcode (an MRZ or the fields of an AAMVA driver's license) so that
// the signed claims can be bound to it.
package optical

import (
	"bytes"
	"crypto/sha256"

	"xdao.co/vcb/claims"
	"xdao.co/vcb/vcberr"
)

// ClaimKey is the claim the optical digest is carried under.
const ClaimKey = "opticalDataHash"

const (
	MRZLines     = 3
	MRZLineWidth = 30
)

// MRZ is a three-line, thirty-column machine readable zone.
type MRZ [MRZLines]string

// Digest returns SHA-256(line1 \n line2 \n line3 \n).
func (m MRZ) Digest() ([]byte, error) {
	var buf bytes.Buffer
	for i, line := range m {
		if len(line) != MRZLineWidth {
			return nil, vcberr.Newf(vcberr.KindMalformedGraph, "VCB-OPTICAL-001", "MRZ line %d has %d characters, want %d", i+1, len(line), MRZLineWidth)
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	sum := sha256.Sum256(buf.Bytes())
	return sum[:], nil
}

// Bind returns g with digest set under ClaimKey.
func Bind(g *claims.Graph, digest []byte) *claims.Graph {
	return g.Set(ClaimKey, claims.Bytes(digest))
}

// Bound reports whether g carries exactly digest under ClaimKey.
func Bound(g *claims.Graph, digest []byte) bool {
	v, ok := g.Get(ClaimKey)
	if !ok || v.Kind() != claims.KindBytes {
		return false
	}
	return bytes.Equal(v.Raw(), digest)
}
