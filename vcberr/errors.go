// Package vcberr defines the structured error taxonomy shared by every stage
// of the barcode encode and verify pipelines.
package vcberr

import (
	"errors"
	"fmt"
)

// Kind is a stable category for programmatic error handling.
//
// These categories are intended to remain stable across versions.
// Callers should branch on Kind/RuleID rather than matching error strings.
type Kind string

const (
	// KindMalformedGraph: bad input to encode (caller bug).
	KindMalformedGraph Kind = "MalformedGraph"
	// KindPayloadTooLarge: capacity exceeded; shrink the credential or pick a denser symbol.
	KindPayloadTooLarge Kind = "PayloadTooLarge"
	// KindMalformedPayload: corrupt scan or unknown format version.
	KindMalformedPayload Kind = "MalformedPayload"
	// KindTruncatedPayload: declared lengths run past the end of the buffer.
	KindTruncatedPayload Kind = "TruncatedPayload"
	// KindUnsupportedAlgorithmTag: unknown compression, proof or digest tag.
	KindUnsupportedAlgorithmTag Kind = "UnsupportedAlgorithmTag"
	// KindSignatureAlgorithmMismatch: envelope algorithm disagrees with the key.
	KindSignatureAlgorithmMismatch Kind = "SignatureAlgorithmMismatch"
	// KindInvalidSignature is deliberately generic.
	KindInvalidSignature Kind = "InvalidSignature"
	// KindKeyNotFound: the trust resolver has no key for the signer id.
	KindKeyNotFound Kind = "KeyNotFound"
	// KindRevoked: the status list marks the credential revoked or suspended.
	KindRevoked  Kind = "Revoked"
	KindInternal Kind = "Internal"
)

// Error is the library's structured error type.
//
// RuleID is a stable identifier (e.g., VCB-CANON-004, VCB-PAYLOAD-010)
// that names the violated invariant.
//
// Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	RuleID  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// New returns a structured error without a cause.
func New(kind Kind, ruleID, msg string) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: msg}
}

// Newf is New with a formatted message.
func Newf(kind Kind, ruleID, format string, args ...any) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns a structured error carrying cause.
func Wrap(kind Kind, ruleID, msg string, cause error) error {
	if cause == nil {
		return New(kind, ruleID, msg)
	}
	return &Error{Kind: kind, RuleID: ruleID, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf returns the Kind of a structured error, or "" if err is not one.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}

// RuleID returns the stable RuleID for a structured error, or "" if unknown.
func RuleID(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.RuleID
}

// CapacityError is returned when an assembled payload exceeds the configured
// symbol capacity. It unwraps to a KindPayloadTooLarge *Error.
type CapacityError struct {
	Size  int
	Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("payload is %d bytes, limit %d (over by %d)", e.Size, e.Limit, e.Overage())
}

// Overage is the number of bytes that must be removed to fit the limit.
func (e *CapacityError) Overage() int {
	return e.Size - e.Limit
}

func (e *CapacityError) Unwrap() error {
	return &Error{Kind: KindPayloadTooLarge, RuleID: "VCB-PAYLOAD-001", Message: "payload exceeds capacity"}
}

// Overage extracts the overage from a PayloadTooLarge error, or 0.
func Overage(err error) int {
	var ce *CapacityError
	if errors.As(err, &ce) {
		return ce.Overage()
	}
	return 0
}
