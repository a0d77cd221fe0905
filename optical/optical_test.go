package optical

import (
	"crypto/sha256"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/vcb/claims"
	"xdao.co/vcb/vcberr"
)

var sampleMRZ = MRZ{
	"IAUTO0000007010SRC0000000701<<",
	"8804192M2601058NOT<<<<<<<<<<<5",
	"SMITH<<JOHN<<<<<<<<<<<<<<<<<<<",
}

func TestMRZDigest(t *testing.T) {
	got, err := sampleMRZ.Digest()
	require.NoError(t, err)
	want := sha256.Sum256([]byte(strings.Join(sampleMRZ[:], "\n") + "\n"))
	assert.Equal(t, want[:], got)

	bad := sampleMRZ
	bad[1] = "short"
	_, err = bad.Digest()
	assert.True(t, vcberr.IsKind(err, vcberr.KindMalformedGraph))
}

func TestBind(t *testing.T) {
	d, err := sampleMRZ.Digest()
	require.NoError(t, err)
	g := Bind(claims.New().Set("name", claims.String("John")), d)
	assert.True(t, Bound(g, d))
	assert.False(t, Bound(g, d[:31]))
	assert.False(t, Bound(claims.New(), d))
}

func TestProtectedComponentIndex(t *testing.T) {
	p, err := NewProtectedComponentIndex("DAC", "DCS", "DBB")
	require.NoError(t, err)
	assert.Equal(t, []string{"DAC", "DBB", "DCS"}, p.Elements())
	assert.True(t, p.Contains("DCS"))
	assert.False(t, p.Contains("DAQ"))

	enc, err := p.Encode()
	require.NoError(t, err)
	assert.Equal(t, byte('u'), enc[0])
	back, err := ParseProtectedComponentIndex(enc)
	require.NoError(t, err)
	assert.Equal(t, p, back)

	p.Remove("DBB")
	assert.Equal(t, []string{"DAC", "DCS"}, p.Elements())

	_, err = NewProtectedComponentIndex("XYZ")
	assert.Error(t, err)
	_, err = ParseProtectedComponentIndex("uAAAAAA")
	assert.Error(t, err)
	_, err = ParseProtectedComponentIndex("uAAAB")
	assert.Equal(t, "VCB-OPTICAL-013", vcberr.RuleID(err), "low two bits are unassigned")
}

// Vectors from https://w3c-ccg.github.io/vc-barcodes/#creating-opticaldatabytes.
const dlSubfileBytes = "DLDACJOHN\nDADNONE\nDAG123 MAIN ST\nDAIANYVILLE\nDAJUTO\nDAKF87P20000\nDAQF987654321\nDAU069 IN\nDAYBRO\nDBA04192030\nDBB04191988\nDBC1\nDBD01012024\nDCAC\nDCBNONE\nDCDNONE\nDCFUTODOCDISCRIM\nDCGUTO\nDCSSMITH\nDDEN\nDDFN\nDDGN\r"

func TestProtectedComponentIndexVectors(t *testing.T) {
	p, err := NewProtectedComponentIndex("DAC", "DCS", "DAQ")
	require.NoError(t, err)
	assert.Equal(t, ProtectedComponentIndex(0b100000100000000000100000), p)

	enc, err := p.Encode()
	require.NoError(t, err)
	assert.Equal(t, "uggAg", enc)

	back, err := ParseProtectedComponentIndex("uggAg")
	require.NoError(t, err)
	assert.Equal(t, []string{"DAC", "DAQ", "DCS"}, back.Elements())

	s, err := ParseSubfile([]byte(dlSubfileBytes))
	require.NoError(t, err)
	fields, err := DLFields(s)
	require.NoError(t, err)
	want := []byte{
		188, 38, 200, 146, 227, 213, 90, 250, 50, 18, 126, 254, 47, 177, 91, 23, 64, 129,
		104, 223, 136, 81, 116, 67, 136, 125, 137, 165, 117, 63, 152, 207,
	}
	assert.Equal(t, want, back.Digest(fields))
}

func TestAAMVADigestIgnoresUncoveredFields(t *testing.T) {
	p, err := NewProtectedComponentIndex("DAC", "DCS")
	require.NoError(t, err)
	fields := map[string]string{"DAC": "JOHN", "DCS": "SMITH", "DAQ": "123"}
	d := p.Digest(fields)

	fields["DAQ"] = "456"
	assert.Equal(t, d, p.Digest(fields))

	fields["DAC"] = "JANE"
	assert.NotEqual(t, d, p.Digest(fields))

	want := sha256.Sum256([]byte("DACJOHN\nDCSSMITH\n"))
	assert.Equal(t, want[:], p.Digest(map[string]string{"DAC": "JOHN", "DCS": "SMITH"}))
}
