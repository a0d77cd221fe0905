package barcode

import (
	"xdao.co/vcb/claims"
	"xdao.co/vcb/compression"
	"xdao.co/vcb/proof"
	"xdao.co/vcb/statuslist"
	"xdao.co/vcb/vcberr"
)

// Outcome is the verifier's verdict. The zero value is Rejected.
type Outcome int

const (
	Rejected Outcome = iota
	// Unconfirmed means the signature is valid but the status could not be
	// established. Claims are returned so a policy layer can decide.
	Unconfirmed
	Verified
)

func (o Outcome) String() string {
	switch o {
	case Verified:
		return "verified"
	case Unconfirmed:
		return "unconfirmed"
	default:
		return "rejected"
	}
}

// Stage is the last verification stage a payload completed.
type Stage int

const (
	StageRawBytes Stage = iota
	StageDisassembled
	StageSignatureChecked
	StageStatusChecked
	StageClaimsReconstructed
)

func (s Stage) String() string {
	switch s {
	case StageDisassembled:
		return "disassembled"
	case StageSignatureChecked:
		return "signature-checked"
	case StageStatusChecked:
		return "status-checked"
	case StageClaimsReconstructed:
		return "claims-reconstructed"
	default:
		return "raw-bytes"
	}
}

type SignatureState int

const (
	SignatureUnchecked SignatureState = iota
	SignatureValid
	SignatureInvalid
)

func (s SignatureState) String() string {
	switch s {
	case SignatureValid:
		return "valid"
	case SignatureInvalid:
		return "invalid"
	default:
		return "unchecked"
	}
}

// Result reports what Verify established. Claims is nil unless the outcome
// is Verified or Unconfirmed.
type Result struct {
	Outcome   Outcome
	Stage     Stage
	Signature SignatureState
	Status    statuslist.Status

	// Reason is set when Outcome is Rejected.
	Reason error
	// StatusErr explains an Unknown status, when there is an explanation.
	StatusErr error

	Claims    *claims.Graph
	StatusRef *statuslist.Reference

	KeyID       string
	Algorithm   proof.Algorithm
	Digest      proof.Digest
	Compression compression.Algorithm
	PayloadCID  string
	Size        int
}

// Verified reports whether the outcome is Verified.
func (r *Result) Verified() bool { return r != nil && r.Outcome == Verified }

// Kind is the error kind of Reason, or "" when not rejected.
func (r *Result) Kind() vcberr.Kind {
	if r == nil || r.Reason == nil {
		return ""
	}
	if k := vcberr.KindOf(r.Reason); k != "" {
		return k
	}
	return vcberr.KindInternal
}

// RuleID is the rule id of Reason, or "".
func (r *Result) RuleID() string {
	if r == nil {
		return ""
	}
	return vcberr.RuleID(r.Reason)
}
