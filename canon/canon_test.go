package canon

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/vcb/claims"
	"xdao.co/vcb/internal/wire"
	"xdao.co/vcb/vcberr"
)

func sampleGraph() *claims.Graph {
	subject := claims.New().
		Set("givenName", claims.String("Alice")).
		Set("birthDate", claims.Date(time.Date(1990, 4, 1, 0, 0, 0, 0, time.UTC))).
		Set("ageOver18", claims.Boolean(true))
	return claims.New().
		Set("id", claims.Integer(42)).
		Set("name", claims.String("Alice")).
		Set("type", claims.String("VerifiableCredential")).
		Set("credentialSubject", claims.Nested(subject)).
		Set("score", claims.Float(-1.25)).
		Set("photo", claims.Bytes([]byte{0, 1, 2, 0xff}))
}

func TestRoundTrip(t *testing.T) {
	g := sampleGraph()
	b, err := Encode(g)
	require.NoError(t, err)

	back, err := Decode(b)
	require.NoError(t, err)
	assert.True(t, g.Equal(back), "got %s", back)
}

func TestInsertionOrderIrrelevant(t *testing.T) {
	a := claims.New().Set("name", claims.String("Alice")).Set("id", claims.Integer(42)).Set("zzz", claims.Boolean(false))
	b := claims.New().Set("zzz", claims.Boolean(false)).Set("id", claims.Integer(42)).Set("name", claims.String("Alice"))

	ea, err := Encode(a)
	require.NoError(t, err)
	eb, err := Encode(b)
	require.NoError(t, err)
	assert.Equal(t, ea, eb)
}

func TestEncodeDeterministic(t *testing.T) {
	g := sampleGraph()
	first, err := Encode(g)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := Encode(g)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestCanonicalizeReturnsCopy(t *testing.T) {
	b, err := Encode(sampleGraph())
	require.NoError(t, err)
	out, err := Canonicalize(b)
	require.NoError(t, err)
	require.Equal(t, b, out)
	out[0] ^= 0xff
	assert.NotEqual(t, b[0], out[0])
}

func TestEncodeRejects(t *testing.T) {
	deep := claims.New()
	for i := 0; i < MaxDepth+2; i++ {
		deep = claims.New().Set("n", claims.Nested(deep))
	}
	cases := []struct {
		name string
		g    *claims.Graph
		rule string
	}{
		{"nil", nil, "VCB-CANON-001"},
		{"empty key", claims.New().Set("", claims.Integer(1)), "VCB-CANON-002"},
		{"bad key utf8", claims.New().Set("\xff", claims.Integer(1)), "VCB-CANON-003"},
		{"bad string utf8", claims.New().Set("name", claims.String("\xc3\x28")), "VCB-CANON-004"},
		{"nan", claims.New().Set("x", claims.Float(math.NaN())), "VCB-CANON-005"},
		{"inf", claims.New().Set("x", claims.Float(math.Inf(-1))), "VCB-CANON-005"},
		{"zero value", claims.New().Set("x", claims.Value{}), "VCB-CANON-006"},
		{"too deep", deep, "VCB-CANON-007"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Encode(tc.g)
			require.Error(t, err)
			assert.True(t, vcberr.IsKind(err, vcberr.KindMalformedGraph))
			assert.Equal(t, tc.rule, vcberr.RuleID(err))
		})
	}
}

// entry builds one raw canonical entry.
func entry(w *wire.Writer, key string, kind claims.Kind, value []byte) {
	w.Prefixed([]byte(key))
	w.Byte(byte(kind))
	w.Raw(value)
}

func TestDecodeRejects(t *testing.T) {
	good, err := Encode(claims.New().Set("id", claims.Integer(42)).Set("name", claims.String("Alice")))
	require.NoError(t, err)

	var outOfOrder wire.Writer
	outOfOrder.Byte(1)
	outOfOrder.Uvarint(2)
	entry(&outOfOrder, "name", claims.KindString, append([]byte{5}, "Alice"...))
	entry(&outOfOrder, "id", claims.KindInteger, make([]byte, 8))

	var dup wire.Writer
	dup.Byte(1)
	dup.Uvarint(2)
	entry(&dup, "x", claims.KindBoolean, []byte{1})
	entry(&dup, "x", claims.KindBoolean, []byte{0})

	var badBool wire.Writer
	badBool.Byte(1)
	badBool.Uvarint(1)
	entry(&badBool, "x", claims.KindBoolean, []byte{2})

	var shortDate wire.Writer
	shortDate.Byte(1)
	shortDate.Uvarint(1)
	entry(&shortDate, "validFrom", claims.KindDate, []byte{0, 0, 1})

	var nonMinimal wire.Writer
	nonMinimal.Byte(1)
	nonMinimal.Raw([]byte{0x81, 0x00})
	entry(&nonMinimal, "x", claims.KindBoolean, []byte{1})

	var nan wire.Writer
	nan.Byte(1)
	nan.Uvarint(1)
	var f wire.Writer
	f.Uint64(math.Float64bits(math.NaN()))
	entry(&nan, "x", claims.KindFloat, f.Bytes())

	cases := []struct {
		name string
		in   []byte
		kind vcberr.Kind
		rule string
	}{
		{"empty", nil, vcberr.KindMalformedGraph, "VCB-CANON-010"},
		{"unknown dictionary", append([]byte{99}, good[1:]...), vcberr.KindUnsupportedAlgorithmTag, "VCB-CANON-011"},
		{"truncated", good[:len(good)-2], vcberr.KindMalformedGraph, "VCB-CANON-012"},
		{"trailing", append(append([]byte(nil), good...), 0), vcberr.KindMalformedGraph, "VCB-CANON-015"},
		{"out of order", outOfOrder.Bytes(), vcberr.KindMalformedGraph, "VCB-CANON-014"},
		{"duplicate", dup.Bytes(), vcberr.KindMalformedGraph, "VCB-CANON-014"},
		{"bool byte", badBool.Bytes(), vcberr.KindMalformedGraph, "VCB-CANON-013"},
		{"short date", shortDate.Bytes(), vcberr.KindMalformedGraph, "VCB-CANON-012"},
		{"non-minimal count", nonMinimal.Bytes(), vcberr.KindMalformedGraph, "VCB-CANON-017"},
		{"nan", nan.Bytes(), vcberr.KindMalformedGraph, "VCB-CANON-005"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.in)
			require.Error(t, err)
			assert.Equal(t, tc.kind, vcberr.KindOf(err))
			assert.Equal(t, tc.rule, vcberr.RuleID(err))
		})
	}
}

func TestEmptyGraph(t *testing.T) {
	b, err := Encode(claims.New())
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0}, b)
	g, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, 0, g.Len())
}
