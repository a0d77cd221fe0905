package statuslist

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/vcb/claims"
	"xdao.co/vcb/proof"
)

type keyMap map[string]*proof.PublicKey

func (m keyMap) ResolveKey(_ context.Context, id string) (*proof.PublicKey, error) {
	if k, ok := m[id]; ok {
		return k, nil
	}
	return nil, errors.New("not found")
}

func issuerKey(t *testing.T) *proof.PrivateKey {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	seed[0] = 7
	return proof.NewEd25519Key("did:web:status.example#k1", ed25519.NewKeyFromSeed(seed))
}

func TestBitOrder(t *testing.T) {
	l, err := New(16)
	require.NoError(t, err)
	require.NoError(t, l.Set(0, true))
	require.NoError(t, l.Set(9, true))
	assert.Equal(t, []byte{0x80, 0x40}, l.Bytes())

	on, err := l.Get(9)
	require.NoError(t, err)
	assert.True(t, on)
	off, err := l.Get(8)
	require.NoError(t, err)
	assert.False(t, off)

	require.NoError(t, l.Set(9, false))
	assert.Equal(t, []byte{0x80, 0x00}, l.Bytes())

	_, err = l.Get(16)
	assert.Error(t, err)
	assert.Error(t, l.Set(-1, true))
}

func TestNewRoundsUp(t *testing.T) {
	l, err := New(10)
	require.NoError(t, err)
	assert.Equal(t, 16, l.Len())
	_, err = New(0)
	assert.Error(t, err)
	_, err = New(MaxListBytes*8 + 1)
	assert.Error(t, err)
}

func TestEncodedListRoundTrip(t *testing.T) {
	l, err := New(MinListEntries)
	require.NoError(t, err)
	for _, i := range []int{0, 42, 1000, MinListEntries - 1} {
		require.NoError(t, l.Set(i, true))
	}
	enc, err := l.Encode()
	require.NoError(t, err)
	assert.Equal(t, byte('u'), enc[0])

	again, err := l.Encode()
	require.NoError(t, err)
	assert.Equal(t, enc, again)

	back, err := Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, l.Bytes(), back.Bytes())
}

func TestDecodeRejectsOtherBases(t *testing.T) {
	_, err := Decode("zabc")
	assert.Error(t, err)
	_, err = Decode("u!!!")
	assert.Error(t, err)
}

func issue(t *testing.T, purpose Purpose, set ...int) []byte {
	t.Helper()
	l, err := New(1024)
	require.NoError(t, err)
	for _, i := range set {
		require.NoError(t, l.Set(i, true))
	}
	b, err := Issue(&Credential{ID: "https://status.example/revocation/0", Purpose: purpose, List: l}, issuerKey(t))
	require.NoError(t, err)
	return b
}

func TestCheck(t *testing.T) {
	key := issuerKey(t)
	checker := NewChecker(keyMap{key.ID(): key.Public()})
	ctx := context.Background()

	cred := issue(t, Revocation, 42)
	assert.Equal(t, Valid, checker.Check(ctx, cred, 41))
	assert.Equal(t, Revoked, checker.Check(ctx, cred, 42))
	assert.Equal(t, Unknown, checker.Check(ctx, cred, 1024))
	assert.Equal(t, Unknown, checker.Check(ctx, cred, -1))

	susp := issue(t, Suspension, 3)
	assert.Equal(t, Suspended, checker.Check(ctx, susp, 3))
}

func TestCheckFailsClosed(t *testing.T) {
	key := issuerKey(t)
	ctx := context.Background()
	cred := issue(t, Revocation)

	other, err := proof.GenerateKey(proof.Ed25519, key.ID(), rand.Reader)
	require.NoError(t, err)
	assert.Equal(t, Unknown, NewChecker(keyMap{key.ID(): other.Public()}).Check(ctx, cred, 0))
	assert.Equal(t, Unknown, NewChecker(keyMap{}).Check(ctx, cred, 0))

	checker := NewChecker(keyMap{key.ID(): key.Public()})
	tampered := append([]byte(nil), cred...)
	tampered[5] ^= 0x01
	assert.Equal(t, Unknown, checker.Check(ctx, tampered, 0))
	assert.Equal(t, Unknown, checker.Check(ctx, nil, 0))
}

func TestCheckReferenceBindsListID(t *testing.T) {
	key := issuerKey(t)
	checker := NewChecker(keyMap{key.ID(): key.Public()})
	cred := issue(t, Revocation, 5)
	ctx := context.Background()

	assert.Equal(t, Revoked, checker.CheckReference(ctx, Reference{ListID: "https://status.example/revocation/0", Index: 5}, cred))
	assert.Equal(t, Unknown, checker.CheckReference(ctx, Reference{ListID: "https://status.example/revocation/1", Index: 5}, cred))
}

func TestExpiredCredentialIsUnknown(t *testing.T) {
	key := issuerKey(t)
	l, err := New(8)
	require.NoError(t, err)
	until := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	cred, err := Issue(&Credential{ID: "urn:list:1", Purpose: Revocation, List: l, ValidUntil: until}, key)
	require.NoError(t, err)

	before := NewChecker(keyMap{key.ID(): key.Public()}, WithClock(func() time.Time { return until.Add(-time.Hour) }))
	after := NewChecker(keyMap{key.ID(): key.Public()}, WithClock(func() time.Time { return until.Add(time.Hour) }))
	assert.Equal(t, Valid, before.Check(context.Background(), cred, 0))
	assert.Equal(t, Unknown, after.Check(context.Background(), cred, 0))
}

func TestTerseConversion(t *testing.T) {
	e := TerseEntry{BaseURL: "https://dmv.example/status", Index: 3*DefaultListLength + 42}
	ref, err := e.Reference(Revocation, DefaultListLength)
	require.NoError(t, err)
	assert.Equal(t, Reference{ListID: "https://dmv.example/status/revocation/3", Index: 42}, ref)

	back, err := TerseFromReference(ref, Revocation, DefaultListLength)
	require.NoError(t, err)
	assert.Equal(t, e, back)

	_, err = TerseFromReference(ref, Suspension, DefaultListLength)
	assert.Error(t, err)
	_, err = TerseFromReference(Reference{ListID: "https://dmv.example/x", Index: 1}, Revocation, DefaultListLength)
	assert.Error(t, err)

	got, ok := TerseFromGraph(claimsWithStatus(e))
	require.True(t, ok)
	assert.Equal(t, e, got)
}

func claimsWithStatus(e TerseEntry) *claims.Graph {
	return claims.New().
		Set("name", claims.String("Alice")).
		Set("credentialStatus", claims.Nested(e.Graph()))
}
