package barcode

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/vcb/claims"
	"xdao.co/vcb/compression"
	"xdao.co/vcb/metrics"
	"xdao.co/vcb/optical"
	"xdao.co/vcb/payload"
	"xdao.co/vcb/proof"
	"xdao.co/vcb/statuslist"
	"xdao.co/vcb/trust"
	"xdao.co/vcb/vcberr"
)

const listID = "https://dmv.example/status/revocation/0"

func issuer(t *testing.T) *proof.PrivateKey {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	seed[31] = 1
	return proof.NewEd25519Key("did:web:dmv.example#key-1", ed25519.NewKeyFromSeed(seed))
}

func alice() *claims.Graph {
	return claims.New().
		Set("name", claims.String("Alice")).
		Set("id", claims.Integer(42))
}

type fixture struct {
	key      *proof.PrivateKey
	resolver *trust.Static
}

func newFixture(t *testing.T, revoked ...int) fixture {
	t.Helper()
	key := issuer(t)
	r := trust.NewStatic()
	r.AddKey(key.ID(), key.Public())

	l, err := statuslist.New(statuslist.MinListEntries)
	require.NoError(t, err)
	for _, i := range revoked {
		require.NoError(t, l.Set(i, true))
	}
	cred, err := statuslist.Issue(&statuslist.Credential{ID: listID, Purpose: statuslist.Revocation, List: l}, key)
	require.NoError(t, err)
	r.AddStatusList(listID, cred)
	return fixture{key: key, resolver: r}
}

func ref(i int) *statuslist.Reference {
	return &statuslist.Reference{ListID: listID, Index: i}
}

func TestAliceFitsAndVerifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := NewEncoder().Encode(ctx, alice(), f.key)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(b), payload.DefaultMaxPayloadBytes)

	res := NewVerifier(f.resolver).Verify(ctx, b, VerifyRequest{Status: ref(42)})
	require.Equal(t, Verified, res.Outcome, "reason: %v", res.Reason)
	assert.True(t, res.Verified())
	assert.Equal(t, StageClaimsReconstructed, res.Stage)
	assert.Equal(t, SignatureValid, res.Signature)
	assert.Equal(t, statuslist.Valid, res.Status)
	assert.True(t, alice().Equal(res.Claims))
	assert.Equal(t, f.key.ID(), res.KeyID)
	assert.Equal(t, proof.Ed25519, res.Algorithm)
	assert.NotEmpty(t, res.PayloadCID)
	assert.Equal(t, vcberr.Kind(""), res.Kind())
}

func TestEncodeIsDeterministic(t *testing.T) {
	f := newFixture(t)
	enc := NewEncoder()
	a, err := enc.Encode(context.Background(), alice(), f.key)
	require.NoError(t, err)
	b, err := enc.Encode(context.Background(), alice(), f.key)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestTamperedSignatureRejected(t *testing.T) {
	f := newFixture(t)
	b, err := Encode(context.Background(), alice(), f.key)
	require.NoError(t, err)

	b[len(b)-1] ^= 0x01
	res := Verify(context.Background(), b, f.resolver, VerifyRequest{Status: ref(7)})
	assert.Equal(t, Rejected, res.Outcome)
	assert.Equal(t, vcberr.KindInvalidSignature, res.Kind())
	assert.Equal(t, SignatureInvalid, res.Signature)
	assert.Equal(t, StageDisassembled, res.Stage)
	assert.Nil(t, res.Claims)
}

func TestEveryBitFlipRejected(t *testing.T) {
	f := newFixture(t)
	b, err := Encode(context.Background(), alice(), f.key)
	require.NoError(t, err)
	v := NewVerifier(f.resolver)

	for i := range b {
		for bit := 0; bit < 8; bit++ {
			mut := append([]byte(nil), b...)
			mut[i] ^= 1 << bit
			res := v.Verify(context.Background(), mut, VerifyRequest{Status: ref(7)})
			if res.Outcome != Rejected {
				t.Fatalf("flip byte %d bit %d: outcome %s", i, bit, res.Outcome)
			}
			if res.Claims != nil {
				t.Fatalf("flip byte %d bit %d: rejected result carries claims", i, bit)
			}
		}
	}
}

func TestRevokedRejected(t *testing.T) {
	f := newFixture(t, 42)
	b, err := Encode(context.Background(), alice(), f.key)
	require.NoError(t, err)

	res := Verify(context.Background(), b, f.resolver, VerifyRequest{Status: ref(42)})
	assert.Equal(t, Rejected, res.Outcome)
	assert.Equal(t, vcberr.KindRevoked, res.Kind())
	assert.Equal(t, statuslist.Revoked, res.Status)
	assert.Equal(t, SignatureValid, res.Signature)
	assert.Nil(t, res.Claims)

	res = Verify(context.Background(), b, f.resolver, VerifyRequest{Status: ref(41)})
	assert.Equal(t, Verified, res.Outcome)
}

func TestStatusUnknownIsUnconfirmed(t *testing.T) {
	f := newFixture(t)
	b, err := Encode(context.Background(), alice(), f.key)
	require.NoError(t, err)
	v := NewVerifier(f.resolver)

	cases := map[string]VerifyRequest{
		"no reference":   {},
		"missing list":   {Status: &statuslist.Reference{ListID: "https://dmv.example/status/revocation/9", Index: 1}},
		"out of range":   {Status: ref(statuslist.MinListEntries)},
		"no terse entry": {StatusPurpose: statuslist.Revocation},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			res := v.Verify(context.Background(), b, req)
			assert.Equal(t, Unconfirmed, res.Outcome)
			assert.Equal(t, statuslist.Unknown, res.Status)
			assert.Error(t, res.StatusErr)
			assert.NoError(t, res.Reason)
			assert.True(t, alice().Equal(res.Claims))
		})
	}
}

func TestKeyNotFound(t *testing.T) {
	f := newFixture(t)
	b, err := Encode(context.Background(), alice(), f.key)
	require.NoError(t, err)

	res := Verify(context.Background(), b, trust.NewStatic(), VerifyRequest{})
	assert.Equal(t, Rejected, res.Outcome)
	assert.Equal(t, vcberr.KindKeyNotFound, res.Kind())
	assert.Equal(t, SignatureUnchecked, res.Signature)

	res = Verify(context.Background(), b, nil, VerifyRequest{})
	assert.Equal(t, vcberr.KindKeyNotFound, res.Kind())
}

func TestMalformedAndTruncated(t *testing.T) {
	f := newFixture(t)
	b, err := Encode(context.Background(), alice(), f.key)
	require.NoError(t, err)
	v := NewVerifier(f.resolver)

	res := v.Verify(context.Background(), b[:len(b)/2], VerifyRequest{})
	assert.Equal(t, vcberr.KindTruncatedPayload, res.Kind())
	assert.Equal(t, StageRawBytes, res.Stage)

	bad := append([]byte(nil), b...)
	bad[0] = 0x02
	res = v.Verify(context.Background(), bad, VerifyRequest{})
	assert.Equal(t, vcberr.KindMalformedPayload, res.Kind())

	res = v.Verify(context.Background(), nil, VerifyRequest{})
	assert.Equal(t, Rejected, res.Outcome)
}

func TestTerseStatusDiscovery(t *testing.T) {
	f := newFixture(t, 42)
	entry := statuslist.TerseEntry{BaseURL: "https://dmv.example/status", Index: 42}
	g := alice().Set("credentialStatus", claims.Nested(entry.Graph()))
	b, err := Encode(context.Background(), g, f.key)
	require.NoError(t, err)

	res := Verify(context.Background(), b, f.resolver, VerifyRequest{StatusPurpose: statuslist.Revocation})
	assert.Equal(t, Rejected, res.Outcome)
	assert.Equal(t, vcberr.KindRevoked, res.Kind())
	require.NotNil(t, res.StatusRef)
	assert.Equal(t, statuslist.Reference{ListID: listID, Index: 42}, *res.StatusRef)
}

func TestOpticalBinding(t *testing.T) {
	f := newFixture(t)
	mrz := optical.MRZ{
		"IAUTO0000007010SRC0000000701<<",
		"8804192M2601058NOT<<<<<<<<<<<5",
		"SMITH<<JOHN<<<<<<<<<<<<<<<<<<<",
	}
	d, err := mrz.Digest()
	require.NoError(t, err)
	b, err := Encode(context.Background(), optical.Bind(alice(), d), f.key)
	require.NoError(t, err)

	res := Verify(context.Background(), b, f.resolver, VerifyRequest{Status: ref(1), OpticalDigest: d})
	assert.Equal(t, Verified, res.Outcome)

	other := append([]byte(nil), d...)
	other[0] ^= 0xff
	res = Verify(context.Background(), b, f.resolver, VerifyRequest{Status: ref(1), OpticalDigest: other})
	assert.Equal(t, Rejected, res.Outcome)
	assert.Equal(t, "VCB-VERIFY-020", res.RuleID())
}

func TestCapacity(t *testing.T) {
	key, err := proof.GenerateKey(proof.Dilithium3, "did:web:pq.example#k", rand.Reader)
	require.NoError(t, err)

	_, err = Encode(context.Background(), alice(), key)
	require.Error(t, err)
	assert.Equal(t, vcberr.KindPayloadTooLarge, vcberr.KindOf(err))
	assert.Greater(t, vcberr.Overage(err), 0)

	b, err := Encode(context.Background(), alice(), key, WithMaxPayloadBytes(0))
	require.NoError(t, err)

	r := trust.NewStatic()
	r.AddKey(key.ID(), key.Public())
	res := Verify(context.Background(), b, r, VerifyRequest{})
	assert.Equal(t, Unconfirmed, res.Outcome)
	assert.Equal(t, proof.Dilithium3, res.Algorithm)
}

func TestForcedCompression(t *testing.T) {
	f := newFixture(t)
	for _, alg := range []compression.Algorithm{compression.Raw, compression.Dictionary, compression.Deflate} {
		b, err := Encode(context.Background(), alice(), f.key, WithCompression(alg))
		require.NoError(t, err)
		res := Verify(context.Background(), b, f.resolver, VerifyRequest{Status: ref(0)})
		require.Equal(t, Verified, res.Outcome, "%s: %v", alg, res.Reason)
		assert.Equal(t, alg, res.Compression)
	}
}

func TestMetricsRecorded(t *testing.T) {
	f := newFixture(t)
	m := metrics.New(prometheus.NewRegistry())
	b, err := Encode(context.Background(), alice(), f.key, WithMetrics(m))
	require.NoError(t, err)

	v := NewVerifier(f.resolver, WithMetrics(m))
	v.Verify(context.Background(), b, VerifyRequest{Status: ref(0)})
	v.Verify(context.Background(), b[:3], VerifyRequest{})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Verifications.WithLabelValues("verified", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Verifications.WithLabelValues("rejected", string(vcberr.KindTruncatedPayload))))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Encoded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatusChecks.WithLabelValues("valid")))
}

func TestCancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Encode(ctx, alice(), f.key)
	assert.Error(t, err)

	b, err := Encode(context.Background(), alice(), f.key)
	require.NoError(t, err)
	res := Verify(ctx, b, f.resolver, VerifyRequest{})
	assert.Equal(t, Rejected, res.Outcome)
}
