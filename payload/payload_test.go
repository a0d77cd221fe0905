package payload

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/vcb/compression"
	"xdao.co/vcb/proof"
	"xdao.co/vcb/vcberr"
)

func sample() (compression.Compressed, proof.Envelope) {
	return compression.Compressed{Algorithm: compression.Deflate, Data: []byte{1, 2, 3, 4}},
		proof.Envelope{
			Algorithm: proof.Ed25519,
			Digest:    proof.SHA256,
			KeyID:     "did:web:issuer.example#k1",
			Signature: bytes.Repeat([]byte{0xab}, 64),
		}
}

func TestRoundTrip(t *testing.T) {
	c, env := sample()
	b, err := Assemble(c, env)
	require.NoError(t, err)
	assert.Equal(t, Version, b[0])
	assert.Equal(t, byte(compression.Deflate)|byte(proof.Ed25519)<<2, b[1])

	p, err := Disassemble(b)
	require.NoError(t, err)
	assert.Equal(t, c, p.Compressed)
	assert.Equal(t, env, p.Envelope)

	// The parsed form must not alias the input.
	b[len(b)-1] ^= 0xff
	assert.Equal(t, env.Signature, p.Envelope.Signature)
}

func TestCapacity(t *testing.T) {
	c, env := sample()
	exact, err := Assemble(c, env)
	require.NoError(t, err)

	_, err = Assemble(c, env, WithMaxPayloadBytes(len(exact)))
	require.NoError(t, err)

	_, err = Assemble(c, env, WithMaxPayloadBytes(len(exact)-5))
	require.Error(t, err)
	assert.True(t, vcberr.IsKind(err, vcberr.KindPayloadTooLarge))
	assert.Equal(t, 5, vcberr.Overage(err))

	big := compression.Compressed{Algorithm: compression.Raw, Data: make([]byte, 2000)}
	_, err = Assemble(big, env)
	assert.True(t, vcberr.IsKind(err, vcberr.KindPayloadTooLarge))
	_, err = Assemble(big, env, Unlimited())
	assert.NoError(t, err)
}

func TestDisassembleRejects(t *testing.T) {
	c, env := sample()
	good, err := Assemble(c, env)
	require.NoError(t, err)

	mutate := func(fn func(b []byte) []byte) []byte {
		return fn(append([]byte(nil), good...))
	}

	cases := []struct {
		name string
		in   []byte
		kind vcberr.Kind
	}{
		{"empty", nil, vcberr.KindTruncatedPayload},
		{"version only", good[:1], vcberr.KindTruncatedPayload},
		{"unknown version", mutate(func(b []byte) []byte { b[0] = 0x02; return b }), vcberr.KindMalformedPayload},
		{"reserved bits", mutate(func(b []byte) []byte { b[1] |= 0x80; return b }), vcberr.KindMalformedPayload},
		{"reserved compression", mutate(func(b []byte) []byte { b[1] |= 0x03; return b }), vcberr.KindUnsupportedAlgorithmTag},
		{"unknown proof alg", mutate(func(b []byte) []byte { b[1] = b[1]&0x03 | 7<<2; return b }), vcberr.KindUnsupportedAlgorithmTag},
		{"flag mismatch", mutate(func(b []byte) []byte { b[1] = b[1]&0x03 | byte(proof.ES256)<<2; return b }), vcberr.KindMalformedPayload},
		{"compressed len past end", mutate(func(b []byte) []byte { b[2] = 0x7f; return b }), vcberr.KindTruncatedPayload},
		{"truncated signature", good[:len(good)-1], vcberr.KindTruncatedPayload},
		{"trailing", append(append([]byte(nil), good...), 0), vcberr.KindMalformedPayload},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Disassemble(tc.in)
			require.Error(t, err)
			assert.Equal(t, tc.kind, vcberr.KindOf(err), err.Error())
		})
	}
}

func TestEveryTruncationIsTruncated(t *testing.T) {
	c, env := sample()
	good, err := Assemble(c, env)
	require.NoError(t, err)
	for n := 0; n < len(good); n++ {
		_, err := Disassemble(good[:n])
		require.Error(t, err, "prefix %d", n)
		require.True(t, vcberr.IsKind(err, vcberr.KindTruncatedPayload), "prefix %d: %v", n, err)
	}
}

func TestAssembleRejectsBadEnvelope(t *testing.T) {
	c, env := sample()
	bad := env
	bad.KeyID = ""
	_, err := Assemble(c, bad)
	assert.True(t, vcberr.IsKind(err, vcberr.KindMalformedPayload))

	bad = env
	bad.Algorithm = 0
	_, err = Assemble(c, bad)
	assert.True(t, vcberr.IsKind(err, vcberr.KindUnsupportedAlgorithmTag))

	_, err = Assemble(compression.Compressed{Algorithm: 3}, env)
	assert.True(t, vcberr.IsKind(err, vcberr.KindUnsupportedAlgorithmTag))
}
