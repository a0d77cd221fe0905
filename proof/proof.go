// Package proof signs and verifies compressed credential bytes.
//
// The signed message is H(DomainTag || alg || digest || keyIDLen keyID ||
// compressed), where H is the envelope's digest algorithm and keyIDLen is a
// uvarint. Every envelope field except the signature is covered. Signing
// always covers the compressed form, so a verifier never decompresses
// untrusted bytes before the signature is checked.
//
// Ed25519 and ECDSA signatures are produced with go-cose signers, so the
// algorithm/key binding rules match COSE (RFC 9053). Dilithium3 uses circl.
// The COSE ECDSA signers hash their input once more with the algorithm's own
// hash: an ES256 signature is over SHA-256(H(...)) and an ES384 signature is
// over SHA-384(H(...)). Envelope.Digest names H, not the hash the curve
// operates on.
//
// The package is pure: no key resolution, no caching, no I/O.
package proof

import (
	"crypto/rand"
	"io"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"github.com/veraison/go-cose"

	"xdao.co/vcb/internal/wire"
	"xdao.co/vcb/vcberr"
)

// DomainTag separates barcode proofs from any other use of the same key.
const DomainTag = "vcb-proof-v1\x00"

// Envelope carries everything a verifier needs besides the public key.
type Envelope struct {
	Algorithm Algorithm
	Digest    Digest
	KeyID     string
	Signature []byte
}

type signConfig struct {
	digest Digest
	rand   io.Reader
}

// SignOption configures Sign.
type SignOption func(*signConfig)

// WithDigest overrides the algorithm's default digest.
func WithDigest(d Digest) SignOption {
	return func(c *signConfig) { c.digest = d }
}

// WithRand sets the randomness source for ECDSA.
func WithRand(r io.Reader) SignOption {
	return func(c *signConfig) { c.rand = r }
}

// Sign produces an envelope over compressed.
func Sign(compressed []byte, key *PrivateKey, opts ...SignOption) (Envelope, error) {
	if key == nil {
		return Envelope{}, vcberr.New(vcberr.KindInternal, "VCB-PROOF-001", "missing private key")
	}
	cfg := signConfig{digest: key.alg.DefaultDigest(), rand: rand.Reader}
	for _, o := range opts {
		o(&cfg)
	}
	digest, err := signingDigest(key.alg, cfg.digest, key.id, compressed)
	if err != nil {
		return Envelope{}, err
	}

	var sig []byte
	switch key.alg {
	case Ed25519, ES256, ES384:
		signer, err := cose.NewSigner(coseAlgorithm(key.alg), key.classical)
		if err != nil {
			return Envelope{}, vcberr.Wrap(vcberr.KindInternal, "VCB-PROOF-003", "signer setup", err)
		}
		if sig, err = signer.Sign(cfg.rand, digest); err != nil {
			return Envelope{}, vcberr.Wrap(vcberr.KindInternal, "VCB-PROOF-004", "sign", err)
		}
	case Dilithium3:
		sig = make([]byte, mode3.SignatureSize)
		mode3.SignTo(key.pq, digest, sig)
	default:
		return Envelope{}, vcberr.Newf(vcberr.KindUnsupportedAlgorithmTag, "VCB-PROOF-005", "unsupported signature algorithm %d", uint8(key.alg))
	}
	return Envelope{Algorithm: key.alg, Digest: cfg.digest, KeyID: key.id, Signature: sig}, nil
}

// Verify checks env over compressed with pub.
//
// An envelope whose algorithm differs from the key's fails with
// SignatureAlgorithmMismatch. Unknown tags fail with UnsupportedAlgorithmTag.
// Every other failure is a generic InvalidSignature, whatever the cause.
func Verify(compressed []byte, env Envelope, pub *PublicKey) error {
	if !env.Algorithm.Supported() {
		return vcberr.Newf(vcberr.KindUnsupportedAlgorithmTag, "VCB-PROOF-005", "unsupported signature algorithm %d", uint8(env.Algorithm))
	}
	if !env.Digest.Supported() {
		return vcberr.Newf(vcberr.KindUnsupportedAlgorithmTag, "VCB-PROOF-002", "unsupported digest algorithm %d", uint8(env.Digest))
	}
	if pub == nil {
		return invalid()
	}
	if pub.alg != env.Algorithm {
		return vcberr.Newf(vcberr.KindSignatureAlgorithmMismatch, "VCB-PROOF-010",
			"envelope algorithm %s does not match %s key", env.Algorithm, pub.alg)
	}
	if len(env.Signature) != env.Algorithm.SignatureSize() {
		return invalid()
	}
	digest, err := signingDigest(env.Algorithm, env.Digest, env.KeyID, compressed)
	if err != nil {
		return err
	}

	switch env.Algorithm {
	case Ed25519, ES256, ES384:
		verifier, err := cose.NewVerifier(coseAlgorithm(env.Algorithm), pub.classical)
		if err != nil {
			return invalid()
		}
		if err := verifier.Verify(digest, env.Signature); err != nil {
			return invalid()
		}
		return nil
	case Dilithium3:
		if pub.pq == nil || !mode3.Verify(pub.pq, digest, env.Signature) {
			return invalid()
		}
		return nil
	default:
		return invalid()
	}
}

func signingDigest(alg Algorithm, d Digest, keyID string, compressed []byte) ([]byte, error) {
	var w wire.Writer
	w.Raw([]byte(DomainTag))
	w.Byte(byte(alg))
	w.Byte(byte(d))
	w.Prefixed([]byte(keyID))
	w.Raw(compressed)
	return d.Sum(w.Bytes())
}

func coseAlgorithm(a Algorithm) cose.Algorithm {
	switch a {
	case ES256:
		return cose.AlgorithmES256
	case ES384:
		return cose.AlgorithmES384
	default:
		return cose.AlgorithmEdDSA
	}
}

func invalid() error {
	return vcberr.New(vcberr.KindInvalidSignature, "VCB-PROOF-401", "signature invalid")
}
