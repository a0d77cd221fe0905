package proof

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/x509"
	"io"

	"github.com/cloudflare/circl/sign/dilithium/mode3"

	"xdao.co/vcb/vcberr"
)

// PrivateKey is an issuer signing key bound to the key id verifiers resolve.
type PrivateKey struct {
	alg Algorithm
	id  string

	classical crypto.Signer // ed25519.PrivateKey or *ecdsa.PrivateKey
	pq        *mode3.PrivateKey
}

// PublicKey is a resolved verification key.
type PublicKey struct {
	alg Algorithm

	classical crypto.PublicKey // ed25519.PublicKey or *ecdsa.PublicKey
	pq        *mode3.PublicKey
}

// GenerateKey creates a fresh key for alg.
func GenerateKey(alg Algorithm, keyID string, rand io.Reader) (*PrivateKey, error) {
	switch alg {
	case Ed25519:
		_, priv, err := ed25519.GenerateKey(rand)
		if err != nil {
			return nil, vcberr.Wrap(vcberr.KindInternal, "VCB-KEY-001", "generate ed25519 key", err)
		}
		return NewEd25519Key(keyID, priv), nil
	case ES256, ES384:
		priv, err := ecdsa.GenerateKey(curveFor(alg), rand)
		if err != nil {
			return nil, vcberr.Wrap(vcberr.KindInternal, "VCB-KEY-001", "generate ecdsa key", err)
		}
		return NewECDSAKey(keyID, priv)
	case Dilithium3:
		_, priv, err := mode3.GenerateKey(rand)
		if err != nil {
			return nil, vcberr.Wrap(vcberr.KindInternal, "VCB-KEY-001", "generate dilithium3 key", err)
		}
		return NewDilithium3Key(keyID, priv), nil
	default:
		return nil, vcberr.Newf(vcberr.KindUnsupportedAlgorithmTag, "VCB-KEY-002", "unsupported signature algorithm %d", uint8(alg))
	}
}

func NewEd25519Key(keyID string, priv ed25519.PrivateKey) *PrivateKey {
	return &PrivateKey{alg: Ed25519, id: keyID, classical: priv}
}

// NewECDSAKey accepts P-256 (ES256) and P-384 (ES384) keys.
func NewECDSAKey(keyID string, priv *ecdsa.PrivateKey) (*PrivateKey, error) {
	alg, err := ecdsaAlgorithm(&priv.PublicKey)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{alg: alg, id: keyID, classical: priv}, nil
}

func NewDilithium3Key(keyID string, priv *mode3.PrivateKey) *PrivateKey {
	return &PrivateKey{alg: Dilithium3, id: keyID, pq: priv}
}

func (k *PrivateKey) ID() string { return k.id }

func (k *PrivateKey) Algorithm() Algorithm { return k.alg }

// Public returns the verification half of k.
func (k *PrivateKey) Public() *PublicKey {
	if k.pq != nil {
		return &PublicKey{alg: k.alg, pq: k.pq.Public().(*mode3.PublicKey)}
	}
	return &PublicKey{alg: k.alg, classical: k.classical.Public()}
}

// MarshalBinary encodes the key as alg(1) || body, where body is PKCS#8 DER
// for classical keys and the packed form for Dilithium3.
func (k *PrivateKey) MarshalBinary() ([]byte, error) {
	var body []byte
	var err error
	if k.pq != nil {
		body, err = k.pq.MarshalBinary()
	} else {
		body, err = x509.MarshalPKCS8PrivateKey(k.classical)
	}
	if err != nil {
		return nil, vcberr.Wrap(vcberr.KindInternal, "VCB-KEY-003", "marshal private key", err)
	}
	return append([]byte{byte(k.alg)}, body...), nil
}

// ParsePrivateKey reverses PrivateKey.MarshalBinary.
func ParsePrivateKey(keyID string, b []byte) (*PrivateKey, error) {
	if len(b) < 2 {
		return nil, vcberr.New(vcberr.KindMalformedPayload, "VCB-KEY-004", "private key too short")
	}
	alg, body := Algorithm(b[0]), b[1:]
	switch alg {
	case Dilithium3:
		var priv mode3.PrivateKey
		if err := priv.UnmarshalBinary(body); err != nil {
			return nil, vcberr.Wrap(vcberr.KindMalformedPayload, "VCB-KEY-004", "invalid dilithium3 private key", err)
		}
		return NewDilithium3Key(keyID, &priv), nil
	case Ed25519, ES256, ES384:
		parsed, err := x509.ParsePKCS8PrivateKey(body)
		if err != nil {
			return nil, vcberr.Wrap(vcberr.KindMalformedPayload, "VCB-KEY-004", "invalid private key", err)
		}
		var k *PrivateKey
		switch priv := parsed.(type) {
		case ed25519.PrivateKey:
			k = NewEd25519Key(keyID, priv)
		case *ecdsa.PrivateKey:
			if k, err = NewECDSAKey(keyID, priv); err != nil {
				return nil, err
			}
		default:
			return nil, vcberr.New(vcberr.KindMalformedPayload, "VCB-KEY-004", "unsupported private key type")
		}
		if k.alg != alg {
			return nil, vcberr.New(vcberr.KindSignatureAlgorithmMismatch, "VCB-KEY-005", "key type does not match algorithm tag")
		}
		return k, nil
	default:
		return nil, vcberr.Newf(vcberr.KindUnsupportedAlgorithmTag, "VCB-KEY-002", "unsupported signature algorithm %d", uint8(alg))
	}
}

func (p *PublicKey) Algorithm() Algorithm { return p.alg }

// NewPublicKey wraps an ed25519.PublicKey, *ecdsa.PublicKey or
// *mode3.PublicKey.
func NewPublicKey(key any) (*PublicKey, error) {
	switch pub := key.(type) {
	case ed25519.PublicKey:
		if len(pub) != ed25519.PublicKeySize {
			return nil, vcberr.New(vcberr.KindMalformedPayload, "VCB-KEY-006", "invalid ed25519 public key length")
		}
		return &PublicKey{alg: Ed25519, classical: pub}, nil
	case *ecdsa.PublicKey:
		alg, err := ecdsaAlgorithm(pub)
		if err != nil {
			return nil, err
		}
		return &PublicKey{alg: alg, classical: pub}, nil
	case *mode3.PublicKey:
		return &PublicKey{alg: Dilithium3, pq: pub}, nil
	default:
		return nil, vcberr.Newf(vcberr.KindUnsupportedAlgorithmTag, "VCB-KEY-002", "unsupported public key type %T", key)
	}
}

// MarshalBinary encodes the key as alg(1) || body, where body is PKIX DER for
// classical keys and the packed form for Dilithium3.
func (p *PublicKey) MarshalBinary() ([]byte, error) {
	var body []byte
	var err error
	if p.pq != nil {
		body, err = p.pq.MarshalBinary()
	} else {
		body, err = x509.MarshalPKIXPublicKey(p.classical)
	}
	if err != nil {
		return nil, vcberr.Wrap(vcberr.KindInternal, "VCB-KEY-003", "marshal public key", err)
	}
	return append([]byte{byte(p.alg)}, body...), nil
}

// ParsePublicKey reverses PublicKey.MarshalBinary.
func ParsePublicKey(b []byte) (*PublicKey, error) {
	if len(b) < 2 {
		return nil, vcberr.New(vcberr.KindMalformedPayload, "VCB-KEY-006", "public key too short")
	}
	alg, body := Algorithm(b[0]), b[1:]
	switch alg {
	case Dilithium3:
		var pub mode3.PublicKey
		if err := pub.UnmarshalBinary(body); err != nil {
			return nil, vcberr.Wrap(vcberr.KindMalformedPayload, "VCB-KEY-006", "invalid dilithium3 public key", err)
		}
		return &PublicKey{alg: Dilithium3, pq: &pub}, nil
	case Ed25519, ES256, ES384:
		parsed, err := x509.ParsePKIXPublicKey(body)
		if err != nil {
			return nil, vcberr.Wrap(vcberr.KindMalformedPayload, "VCB-KEY-006", "invalid public key", err)
		}
		pub, err := NewPublicKey(parsed)
		if err != nil {
			return nil, err
		}
		if pub.alg != alg {
			return nil, vcberr.New(vcberr.KindSignatureAlgorithmMismatch, "VCB-KEY-005", "key type does not match algorithm tag")
		}
		return pub, nil
	default:
		return nil, vcberr.Newf(vcberr.KindUnsupportedAlgorithmTag, "VCB-KEY-002", "unsupported signature algorithm %d", uint8(alg))
	}
}

// Equal reports whether both keys hold the same key material.
func (p *PublicKey) Equal(o *PublicKey) bool {
	if p == nil || o == nil || p.alg != o.alg {
		return false
	}
	if p.pq != nil {
		return o.pq != nil && p.pq.Equal(o.pq)
	}
	type equaler interface{ Equal(crypto.PublicKey) bool }
	e, ok := p.classical.(equaler)
	return ok && e.Equal(o.classical)
}

func curveFor(alg Algorithm) elliptic.Curve {
	if alg == ES384 {
		return elliptic.P384()
	}
	return elliptic.P256()
}

func ecdsaAlgorithm(pub *ecdsa.PublicKey) (Algorithm, error) {
	switch pub.Curve {
	case elliptic.P256():
		return ES256, nil
	case elliptic.P384():
		return ES384, nil
	default:
		return 0, vcberr.New(vcberr.KindUnsupportedAlgorithmTag, "VCB-KEY-002", "unsupported ecdsa curve")
	}
}
