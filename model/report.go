package model

import (
	"errors"

	"xdao.co/vcb/barcode"
	"xdao.co/vcb/compliance"
	"xdao.co/vcb/vcberr"
)

// NewVerificationReport projects r into its JSON view and applies mode.
func NewVerificationReport(r *barcode.Result, mode compliance.ComplianceMode) VerificationReport {
	rep := VerificationReport{
		Outcome:    r.Outcome.String(),
		Compliance: mode.String(),
		Stage:      r.Stage.String(),
		Signature:  r.Signature.String(),
		Status:     r.Status.String(),
		PayloadCID: r.PayloadCID,
		Size:       r.Size,
		Claims:     MapFromGraph(r.Claims),
	}
	if r.Stage >= barcode.StageDisassembled {
		rep.KeyID = r.KeyID
		rep.Algorithm = r.Algorithm.String()
		rep.Digest = r.Digest.String()
		rep.Compression = r.Compression.String()
	}
	if r.StatusRef != nil {
		rep.StatusRef = &StatusRef{ListID: r.StatusRef.ListID, Index: r.StatusRef.Index}
	}
	if r.StatusErr != nil {
		rep.StatusError = r.StatusErr.Error()
	}
	err := compliance.Accept(mode, r)
	rep.Accepted = err == nil
	if err != nil {
		rep.Error = codedFrom(err)
		rep.Kind = string(r.Kind())
	}
	return rep
}

func codedFrom(err error) *CodedError {
	code := ErrRejected
	switch {
	case errors.Is(err, compliance.ErrUnconfirmed):
		code = ErrUnconfirmed
	case vcberr.IsKind(err, vcberr.KindKeyNotFound):
		code = ErrNotFound
	case vcberr.IsKind(err, vcberr.KindInternal):
		code = ErrInternal
	}
	return &CodedError{Code: code, Message: err.Error(), RuleID: vcberr.RuleID(err)}
}

// ErrorFrom maps a pipeline error to a CodedError.
func ErrorFrom(err error) *CodedError {
	if err == nil {
		return nil
	}
	code := ErrInvalidRequest
	switch vcberr.KindOf(err) {
	case vcberr.KindPayloadTooLarge:
		code = ErrTooLarge
	case vcberr.KindKeyNotFound:
		code = ErrNotFound
	case vcberr.KindInternal:
		code = ErrInternal
	case vcberr.KindInvalidSignature, vcberr.KindRevoked, vcberr.KindSignatureAlgorithmMismatch:
		code = ErrRejected
	}
	return &CodedError{Code: code, Message: err.Error(), RuleID: vcberr.RuleID(err)}
}
