// Package compliance decides whether a verification result is acceptable to
// a relying party.
package compliance

import (
	"errors"
	"fmt"

	"xdao.co/vcb/barcode"
)

// ComplianceMode selects how a verifier treats a credential whose status
// could not be confirmed.
//
// Strict accepts only Verified results. Permissive also accepts Unconfirmed
// results, for offline scanning where status lists may be stale or absent.
// Rejected results are never accepted.
type ComplianceMode int

const (
	Permissive ComplianceMode = iota
	Strict
)

func (m ComplianceMode) String() string {
	if m == Strict {
		return "strict"
	}
	return "permissive"
}

func ParseMode(s string) (ComplianceMode, error) {
	switch s {
	case "", "permissive":
		return Permissive, nil
	case "strict":
		return Strict, nil
	default:
		return 0, fmt.Errorf("unknown compliance mode %q", s)
	}
}

// ErrUnconfirmed is returned by Accept in Strict mode when status is unknown.
var ErrUnconfirmed = errors.New("compliance: credential status could not be confirmed")

// Accept returns nil when r is acceptable under m. A rejected result yields
// its Reason.
func Accept(m ComplianceMode, r *barcode.Result) error {
	if r == nil {
		return errors.New("compliance: no verification result")
	}
	switch r.Outcome {
	case barcode.Verified:
		return nil
	case barcode.Unconfirmed:
		if m == Strict {
			if r.StatusErr != nil {
				return fmt.Errorf("%w: %v", ErrUnconfirmed, r.StatusErr)
			}
			return ErrUnconfirmed
		}
		return nil
	default:
		if r.Reason != nil {
			return r.Reason
		}
		return errors.New("compliance: credential rejected")
	}
}
