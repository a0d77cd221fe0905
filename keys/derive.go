package keys

import (
	"crypto/ed25519"
	"fmt"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"
	"github.com/zeebo/blake3"

	"xdao.co/vcb/proof"
)

// SeedSize is the length of root and role seeds.
const SeedSize = 32

const deriveContext = "xdao-vcb-keys-v1 role seed"

// DeriveRoleSeed deterministically derives a role seed from a root seed with
// the BLAKE3 key derivation function.
func DeriveRoleSeed(rootSeed []byte, role string) ([]byte, error) {
	if len(rootSeed) != SeedSize {
		return nil, fmt.Errorf("root seed must be %d bytes", SeedSize)
	}
	if err := CheckRole(role); err != nil {
		return nil, err
	}
	material := make([]byte, 0, len(rootSeed)+1+len(role))
	material = append(material, rootSeed...)
	material = append(material, 0)
	material = append(material, role...)
	out := make([]byte, SeedSize)
	blake3.DeriveKey(deriveContext, material, out)
	return out, nil
}

// KeyFromSeed builds a signing key from a seed. Only algorithms with a
// standard seed expansion are supported: Ed25519 and Dilithium3.
func KeyFromSeed(alg proof.Algorithm, keyID string, seed []byte) (*proof.PrivateKey, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", SeedSize, len(seed))
	}
	switch alg {
	case proof.Ed25519:
		return proof.NewEd25519Key(keyID, ed25519.NewKeyFromSeed(seed)), nil
	case proof.Dilithium3:
		var s [mode3.SeedSize]byte
		copy(s[:], seed)
		_, priv := mode3.NewKeyFromSeed(&s)
		return proof.NewDilithium3Key(keyID, priv), nil
	default:
		return nil, fmt.Errorf("algorithm %s cannot be derived from a seed", alg)
	}
}

// Fingerprint is the multibase base58btc form of the sha2-256 multihash of
// the marshalled public key.
func Fingerprint(pub *proof.PublicKey) (string, error) {
	b, err := pub.MarshalBinary()
	if err != nil {
		return "", err
	}
	sum, err := multihash.Sum(b, multihash.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	return multibase.Encode(multibase.Base58BTC, sum)
}
