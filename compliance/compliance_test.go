package compliance

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"xdao.co/vcb/barcode"
	"xdao.co/vcb/vcberr"
)

func TestAccept(t *testing.T) {
	verified := &barcode.Result{Outcome: barcode.Verified}
	unconfirmed := &barcode.Result{Outcome: barcode.Unconfirmed, StatusErr: errors.New("list unavailable")}
	reason := vcberr.New(vcberr.KindRevoked, "VCB-VERIFY-010", "revoked")
	rejected := &barcode.Result{Outcome: barcode.Rejected, Reason: reason}

	assert.NoError(t, Accept(Permissive, verified))
	assert.NoError(t, Accept(Strict, verified))

	assert.NoError(t, Accept(Permissive, unconfirmed))
	assert.ErrorIs(t, Accept(Strict, unconfirmed), ErrUnconfirmed)

	assert.ErrorIs(t, Accept(Permissive, rejected), reason)
	assert.ErrorIs(t, Accept(Strict, rejected), reason)

	assert.Error(t, Accept(Permissive, &barcode.Result{}))
	assert.Error(t, Accept(Permissive, nil))
}

func TestParseMode(t *testing.T) {
	for s, want := range map[string]ComplianceMode{"": Permissive, "permissive": Permissive, "strict": Strict} {
		got, err := ParseMode(s)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("lenient")
	assert.Error(t, err)
	assert.Equal(t, "strict", Strict.String())
}
