// Package qrtext maps payload bytes to the alphanumeric text carried by a QR
// symbol: "VC1-" followed by the multibase base45 form ('R' prefix).
package qrtext

import (
	"strings"

	"github.com/dasio/base45"

	"xdao.co/vcb/vcberr"
)

const (
	Prefix = "VC1-"
	// BaseCode is the multibase prefix for base45.
	BaseCode = 'R'
)

// Encode returns the QR text for payload.
func Encode(payload []byte) string {
	return Prefix + string(BaseCode) + base45.EncodeToString(payload)
}

// Decode reverses Encode. A missing prefix, another multibase base, invalid
// base45 or a spelling Encode would not produce is MalformedPayload.
func Decode(text string) ([]byte, error) {
	rest, ok := strings.CutPrefix(text, Prefix)
	if !ok {
		return nil, vcberr.Newf(vcberr.KindMalformedPayload, "VCB-QR-001", "QR text does not start with %q", Prefix)
	}
	if rest == "" || rest[0] != BaseCode {
		return nil, vcberr.New(vcberr.KindMalformedPayload, "VCB-QR-002", "QR text is not multibase base45")
	}
	body := rest[1:]
	b, err := base45.DecodeString(body)
	if err != nil {
		return nil, vcberr.Wrap(vcberr.KindMalformedPayload, "VCB-QR-004", "invalid base45", err)
	}
	// Overflowing groups and lowercase letters must not decode to a payload
	// whose canonical text differs from what was scanned.
	if base45.EncodeToString(b) != body {
		return nil, vcberr.New(vcberr.KindMalformedPayload, "VCB-QR-005", "base45 text is not in canonical form")
	}
	return b, nil
}
