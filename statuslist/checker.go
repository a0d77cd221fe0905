package statuslist

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Status is the outcome of a status check. The zero value is Unknown, so an
// unset status never reads as valid.
type Status int

const (
	Unknown Status = iota
	Valid
	Revoked
	Suspended
)

func (s Status) String() string {
	switch s {
	case Valid:
		return "valid"
	case Revoked:
		return "revoked"
	case Suspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Reference locates one entry: the status list credential id and the index
// inside that list.
type Reference struct {
	ListID string
	Index  int
}

func (r Reference) String() string { return fmt.Sprintf("%s#%d", r.ListID, r.Index) }

// Checker evaluates status entries against signed status list credentials.
// It is safe for concurrent use.
type Checker struct {
	keys   KeyResolver
	logger *slog.Logger
	now    func() time.Time
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

func WithLogger(l *slog.Logger) CheckerOption {
	return func(c *Checker) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides time.Now for expiry checks.
func WithClock(now func() time.Time) CheckerOption {
	return func(c *Checker) { c.now = now }
}

func NewChecker(keys KeyResolver, opts ...CheckerOption) *Checker {
	c := &Checker{
		keys:   keys,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Check returns the status of entry index in the credential. Any failure to
// verify or read the credential yields Unknown; it never returns Valid for a
// list it could not verify.
func (c *Checker) Check(ctx context.Context, credential []byte, index int) Status {
	s, err := c.Evaluate(ctx, "", credential, index)
	if err != nil {
		c.logger.DebugContext(ctx, "status unknown", "index", index, "err", err)
	}
	return s
}

// CheckReference is Check plus a binding check: the credential's id must be
// ref.ListID, so a valid list for a different credential cannot be
// substituted.
func (c *Checker) CheckReference(ctx context.Context, ref Reference, credential []byte) Status {
	s, err := c.Evaluate(ctx, ref.ListID, credential, ref.Index)
	if err != nil {
		c.logger.DebugContext(ctx, "status unknown", "ref", ref.String(), "err", err)
	}
	return s
}

// Evaluate is Check with the reason for an Unknown result. listID may be
// empty to skip the id binding.
func (c *Checker) Evaluate(ctx context.Context, listID string, credential []byte, index int) (Status, error) {
	cred, err := Open(ctx, credential, c.keys)
	if err != nil {
		return Unknown, err
	}
	if listID != "" && cred.ID != listID {
		return Unknown, fmt.Errorf("statuslist: credential %q does not match list %q", cred.ID, listID)
	}
	if !cred.ValidUntil.IsZero() && c.now().After(cred.ValidUntil) {
		return Unknown, fmt.Errorf("statuslist: credential expired at %s", cred.ValidUntil.Format(time.RFC3339))
	}
	set, err := cred.List.Get(index)
	if err != nil {
		return Unknown, err
	}
	switch {
	case !set:
		return Valid, nil
	case cred.Purpose == Suspension:
		return Suspended, nil
	default:
		return Revoked, nil
	}
}
