package statuslist

import (
	"context"
	"fmt"
	"time"

	"xdao.co/vcb/canon"
	"xdao.co/vcb/claims"
	"xdao.co/vcb/compression"
	"xdao.co/vcb/payload"
	"xdao.co/vcb/proof"
	"xdao.co/vcb/vcberr"
)

// Purpose is the statusPurpose of a list.
type Purpose string

const (
	Revocation Purpose = "revocation"
	Suspension Purpose = "suspension"
)

func ParsePurpose(s string) (Purpose, error) {
	switch p := Purpose(s); p {
	case Revocation, Suspension:
		return p, nil
	default:
		return "", fmt.Errorf("statuslist: unsupported status purpose %q", s)
	}
}

const (
	credentialType = "BitstringStatusListCredential"
	subjectType    = "BitstringStatusList"
)

// Credential is a status list credential: the list plus the metadata that is
// signed with it.
type Credential struct {
	ID      string
	Purpose Purpose
	List    *List
	// ValidUntil is optional; a zero value never expires.
	ValidUntil time.Time
}

// Graph returns the claims graph that is signed.
func (c *Credential) Graph() (*claims.Graph, error) {
	if c.ID == "" {
		return nil, fmt.Errorf("statuslist: credential id is required")
	}
	if _, err := ParsePurpose(string(c.Purpose)); err != nil {
		return nil, err
	}
	if c.List == nil {
		return nil, fmt.Errorf("statuslist: credential has no list")
	}
	encoded, err := c.List.Encode()
	if err != nil {
		return nil, err
	}
	subject := claims.New().
		Set("type", claims.String(subjectType)).
		Set("statusPurpose", claims.String(string(c.Purpose))).
		Set("encodedList", claims.String(encoded))
	g := claims.New().
		Set("id", claims.String(c.ID)).
		Set("type", claims.String(credentialType)).
		Set("credentialSubject", claims.Nested(subject))
	if !c.ValidUntil.IsZero() {
		g.Set("validUntil", claims.Date(c.ValidUntil))
	}
	return g, nil
}

// CredentialFromGraph reverses Credential.Graph.
func CredentialFromGraph(g *claims.Graph) (*Credential, error) {
	str := func(path ...string) (string, error) {
		v, ok := g.Lookup(path...)
		if !ok || v.Kind() != claims.KindString {
			return "", fmt.Errorf("statuslist: credential field %v missing or not a string", path)
		}
		return v.Str(), nil
	}
	if t, err := str("type"); err != nil || t != credentialType {
		return nil, fmt.Errorf("statuslist: not a %s", credentialType)
	}
	if t, err := str("credentialSubject", "type"); err != nil || t != subjectType {
		return nil, fmt.Errorf("statuslist: subject is not a %s", subjectType)
	}
	id, err := str("id")
	if err != nil {
		return nil, err
	}
	ps, err := str("credentialSubject", "statusPurpose")
	if err != nil {
		return nil, err
	}
	purpose, err := ParsePurpose(ps)
	if err != nil {
		return nil, err
	}
	encoded, err := str("credentialSubject", "encodedList")
	if err != nil {
		return nil, err
	}
	list, err := Decode(encoded)
	if err != nil {
		return nil, err
	}
	c := &Credential{ID: id, Purpose: purpose, List: list}
	if v, ok := g.Get("validUntil"); ok {
		if v.Kind() != claims.KindDate {
			return nil, fmt.Errorf("statuslist: validUntil is not a date")
		}
		c.ValidUntil = v.Time()
	}
	return c, nil
}

// Issue signs c with key and returns the credential bytes, laid out in the
// barcode payload format without a capacity limit.
func Issue(c *Credential, key *proof.PrivateKey, opts ...proof.SignOption) ([]byte, error) {
	g, err := c.Graph()
	if err != nil {
		return nil, err
	}
	canonical, err := canon.Encode(g)
	if err != nil {
		return nil, err
	}
	compressed, err := compression.Compress(canonical)
	if err != nil {
		return nil, err
	}
	env, err := proof.Sign(compressed.SigningInput(), key, opts...)
	if err != nil {
		return nil, err
	}
	return payload.Assemble(compressed, env, payload.Unlimited())
}

// KeyResolver supplies issuer public keys by key id.
type KeyResolver interface {
	ResolveKey(ctx context.Context, keyID string) (*proof.PublicKey, error)
}

// Open verifies credential bytes and returns the credential. The proof is
// checked before anything is decompressed.
func Open(ctx context.Context, b []byte, keys KeyResolver) (*Credential, error) {
	p, err := payload.Disassemble(b)
	if err != nil {
		return nil, err
	}
	pub, err := keys.ResolveKey(ctx, p.Envelope.KeyID)
	if err != nil {
		return nil, vcberr.Wrap(vcberr.KindKeyNotFound, "VCB-STATUS-001", "status list signer key unavailable", err)
	}
	if err := proof.Verify(p.Compressed.SigningInput(), p.Envelope, pub); err != nil {
		return nil, err
	}
	canonical, err := compression.Decompress(p.Compressed)
	if err != nil {
		return nil, err
	}
	g, err := canon.Decode(canonical)
	if err != nil {
		return nil, err
	}
	return CredentialFromGraph(g)
}
