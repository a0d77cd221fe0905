package proof

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/sha3"

	"xdao.co/vcb/vcberr"
)

// Algorithm identifies a signature algorithm. The value occupies three bits
// of the payload flags byte; 0 is never valid.
type Algorithm uint8

const (
	Ed25519    Algorithm = 1
	ES256      Algorithm = 2
	ES384      Algorithm = 3
	Dilithium3 Algorithm = 4
)

// MaxAlgorithm is the largest id the flags byte can carry.
const MaxAlgorithm Algorithm = 7

func (a Algorithm) String() string {
	switch a {
	case Ed25519:
		return "ed25519"
	case ES256:
		return "es256"
	case ES384:
		return "es384"
	case Dilithium3:
		return "dilithium3"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}

// ParseAlgorithm accepts the names printed by String.
func ParseAlgorithm(name string) (Algorithm, error) {
	for _, a := range []Algorithm{Ed25519, ES256, ES384, Dilithium3} {
		if a.String() == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown signature algorithm: %q", name)
}

// Supported reports whether a is registered.
func (a Algorithm) Supported() bool {
	_, ok := algorithms[a]
	return ok
}

// DefaultDigest is the digest a signs over unless overridden.
func (a Algorithm) DefaultDigest() Digest {
	if spec, ok := algorithms[a]; ok {
		return spec.digest
	}
	return 0
}

// SignatureSize is the fixed signature length for a, or 0 if unknown.
func (a Algorithm) SignatureSize() int {
	if spec, ok := algorithms[a]; ok {
		return spec.sigSize
	}
	return 0
}

type algorithmSpec struct {
	digest  Digest
	sigSize int
}

var algorithms = map[Algorithm]algorithmSpec{
	Ed25519:    {digest: SHA256, sigSize: 64},
	ES256:      {digest: SHA256, sigSize: 64},
	ES384:      {digest: SHA384, sigSize: 96},
	Dilithium3: {digest: SHA3_256, sigSize: mode3.SignatureSize},
}

// Digest identifies the hash applied to the signing input.
type Digest uint8

const (
	SHA256   Digest = 1
	SHA384   Digest = 2
	SHA512   Digest = 3
	SHA3_256 Digest = 4
	BLAKE3   Digest = 5
)

func (d Digest) String() string {
	switch d {
	case SHA256:
		return "sha256"
	case SHA384:
		return "sha384"
	case SHA512:
		return "sha512"
	case SHA3_256:
		return "sha3-256"
	case BLAKE3:
		return "blake3"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(d))
	}
}

// ParseDigest accepts the names printed by String.
func ParseDigest(name string) (Digest, error) {
	for _, d := range []Digest{SHA256, SHA384, SHA512, SHA3_256, BLAKE3} {
		if d.String() == name {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown digest algorithm: %q", name)
}

func (d Digest) Supported() bool {
	return d >= SHA256 && d <= BLAKE3
}

// Sum returns the digest of message.
func (d Digest) Sum(message []byte) ([]byte, error) {
	switch d {
	case SHA256:
		s := sha256.Sum256(message)
		return s[:], nil
	case SHA384:
		s := sha512.Sum384(message)
		return s[:], nil
	case SHA512:
		s := sha512.Sum512(message)
		return s[:], nil
	case SHA3_256:
		s := sha3.Sum256(message)
		return s[:], nil
	case BLAKE3:
		s := blake3.Sum256(message)
		return s[:], nil
	default:
		return nil, vcberr.Newf(vcberr.KindUnsupportedAlgorithmTag, "VCB-PROOF-002", "unsupported digest algorithm %d", uint8(d))
	}
}
