// Package cidutil derives content identifiers for payloads and status list
// credentials.
//
// Every identifier is a CIDv1 with the "raw" multicodec and a sha2-256
// multihash, so the same bytes always map to the same string regardless of
// where they are stored.
package cidutil

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Of returns the CID of data.
func Of(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// String returns the CID of data in its default string form, or "" if the
// digest could not be computed.
func String(data []byte) string {
	id, err := Of(data)
	if err != nil {
		return ""
	}
	return id.String()
}

// Parse decodes s and rejects any CID that is not CIDv1 raw sha2-256.
func Parse(s string) (cid.Cid, error) {
	id, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, err
	}
	if err := check(id); err != nil {
		return cid.Undef, err
	}
	return id, nil
}

// Matches reports whether data hashes to id.
func Matches(id cid.Cid, data []byte) bool {
	got, err := Of(data)
	return err == nil && got == id
}

func check(id cid.Cid) error {
	p := id.Prefix()
	if p.Version != 1 || p.Codec != cid.Raw || p.MhType != multihash.SHA2_256 {
		return fmt.Errorf("cidutil: %s is not a CIDv1 raw sha2-256 identifier", id)
	}
	return nil
}
