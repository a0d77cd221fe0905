package barcode

import (
	"context"
	"errors"
	"time"

	"xdao.co/vcb/canon"
	"xdao.co/vcb/cidutil"
	"xdao.co/vcb/claims"
	"xdao.co/vcb/compression"
	"xdao.co/vcb/optical"
	"xdao.co/vcb/payload"
	"xdao.co/vcb/proof"
	"xdao.co/vcb/statuslist"
	"xdao.co/vcb/trust"
	"xdao.co/vcb/vcberr"
)

// VerifyRequest carries what the verifier cannot learn from the payload.
type VerifyRequest struct {
	// Status names the status list entry to check. When nil and
	// StatusPurpose is set, the terse entry inside the claims is used.
	Status *statuslist.Reference

	StatusPurpose    statuslist.Purpose
	StatusListLength int

	// OpticalDigest, when set, must equal the opticalDataHash claim.
	OpticalDigest []byte
}

// Verifier checks barcode payloads against a trust.Resolver. It is safe for
// concurrent use.
type Verifier struct {
	cfg      config
	resolver trust.Resolver
	codec    *compression.Codec
	checker  *statuslist.Checker
}

func NewVerifier(r trust.Resolver, opts ...Option) *Verifier {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &Verifier{
		cfg:      cfg,
		resolver: r,
		codec:    compression.NewCodec(compression.WithMaxExpandedSize(cfg.maxExpanded)),
		checker:  statuslist.NewChecker(r, statuslist.WithLogger(cfg.logger), statuslist.WithClock(cfg.now)),
	}
}

// Verify runs the payload through every stage in order and stops at the
// first failure. It never returns nil, and a Rejected result never carries
// claims.
func (v *Verifier) Verify(ctx context.Context, b []byte, req VerifyRequest) *Result {
	start := time.Now()
	r := v.verify(ctx, b, req)
	v.cfg.metrics.ObserveVerification(r.Outcome.String(), string(r.Kind()), start)
	if r.Outcome == Rejected {
		v.cfg.logger.InfoContext(ctx, "payload rejected", "stage", r.Stage.String(), "kind", r.Kind(), "rule", r.RuleID(), "key_id", r.KeyID, "cid", r.PayloadCID)
	} else {
		v.cfg.logger.InfoContext(ctx, "payload accepted", "outcome", r.Outcome.String(), "status", r.Status.String(), "key_id", r.KeyID, "cid", r.PayloadCID)
	}
	return r
}

func (v *Verifier) verify(ctx context.Context, b []byte, req VerifyRequest) *Result {
	r := &Result{Stage: StageRawBytes, Size: len(b), PayloadCID: cidutil.String(b)}
	if err := ctx.Err(); err != nil {
		return reject(r, vcberr.Wrap(vcberr.KindInternal, "VCB-VERIFY-001", "verify cancelled", err))
	}

	p, err := payload.Disassemble(b)
	if err != nil {
		return reject(r, err)
	}
	r.Stage = StageDisassembled
	r.KeyID = p.Envelope.KeyID
	r.Algorithm = p.Envelope.Algorithm
	r.Digest = p.Envelope.Digest
	r.Compression = p.Compressed.Algorithm
	v.cfg.logger.DebugContext(ctx, "disassembled", "key_id", r.KeyID, "algorithm", r.Algorithm.String(), "compression", r.Compression.String())

	if v.resolver == nil {
		return reject(r, vcberr.New(vcberr.KindKeyNotFound, "VCB-VERIFY-002", "no trust resolver configured"))
	}
	pub, err := v.resolver.ResolveKey(ctx, r.KeyID)
	if err != nil {
		if errors.Is(err, trust.ErrNotFound) {
			return reject(r, vcberr.Wrap(vcberr.KindKeyNotFound, "VCB-VERIFY-003", "issuer key not found", err))
		}
		return reject(r, vcberr.Wrap(vcberr.KindKeyNotFound, "VCB-VERIFY-004", "issuer key could not be resolved", err))
	}
	if err := proof.Verify(p.Compressed.SigningInput(), p.Envelope, pub); err != nil {
		r.Signature = SignatureInvalid
		return reject(r, err)
	}
	r.Signature = SignatureValid
	r.Stage = StageSignatureChecked
	v.cfg.logger.DebugContext(ctx, "signature checked", "key_id", r.KeyID)

	// The compressed bytes are authenticated from here on.
	var g *claims.Graph
	ref := req.Status
	if ref == nil && req.StatusPurpose != "" {
		if g, err = v.reconstruct(p.Compressed); err != nil {
			return reject(r, err)
		}
		ref, r.StatusErr = discover(g, req)
	}

	r.Status = statuslist.Unknown
	if ref != nil {
		rc := *ref
		r.StatusRef = &rc
		r.Status, r.StatusErr = v.status(ctx, rc)
	} else if r.StatusErr == nil {
		r.StatusErr = errNoStatus
	}
	v.cfg.metrics.IncrementStatusCheck(r.Status.String())
	switch r.Status {
	case statuslist.Revoked:
		return reject(r, vcberr.Newf(vcberr.KindRevoked, "VCB-VERIFY-010", "credential revoked at %s", r.StatusRef))
	case statuslist.Suspended:
		return reject(r, vcberr.Newf(vcberr.KindRevoked, "VCB-VERIFY-011", "credential suspended at %s", r.StatusRef))
	}
	r.Stage = StageStatusChecked
	v.cfg.logger.DebugContext(ctx, "status checked", "status", r.Status.String(), "reason", r.StatusErr)

	if g == nil {
		if g, err = v.reconstruct(p.Compressed); err != nil {
			return reject(r, err)
		}
	}
	if req.OpticalDigest != nil && !optical.Bound(g, req.OpticalDigest) {
		return reject(r, vcberr.New(vcberr.KindInvalidSignature, "VCB-VERIFY-020", "optical data does not match credential"))
	}
	r.Stage = StageClaimsReconstructed
	r.Claims = g
	if r.Status == statuslist.Valid {
		r.Outcome = Verified
	} else {
		r.Outcome = Unconfirmed
	}
	return r
}

var errNoStatus = errors.New("barcode: no status reference")

func (v *Verifier) reconstruct(c compression.Compressed) (*claims.Graph, error) {
	canonical, err := v.codec.Decompress(c)
	if err != nil {
		return nil, err
	}
	return canon.Decode(canonical)
}

func (v *Verifier) status(ctx context.Context, ref statuslist.Reference) (statuslist.Status, error) {
	cred, err := v.resolver.FetchStatusList(ctx, ref.ListID)
	if err != nil {
		return statuslist.Unknown, err
	}
	return v.checker.Evaluate(ctx, ref.ListID, cred, ref.Index)
}

func discover(g *claims.Graph, req VerifyRequest) (*statuslist.Reference, error) {
	entry, ok := statuslist.TerseFromGraph(g)
	if !ok {
		return nil, errNoStatus
	}
	n := req.StatusListLength
	if n == 0 {
		n = statuslist.DefaultListLength
	}
	ref, err := entry.Reference(req.StatusPurpose, n)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func reject(r *Result, err error) *Result {
	r.Outcome = Rejected
	r.Reason = err
	r.Claims = nil
	return r
}

// Verify is NewVerifier(r, opts...).Verify.
func Verify(ctx context.Context, b []byte, r trust.Resolver, req VerifyRequest, opts ...Option) *Result {
	return NewVerifier(r, opts...).Verify(ctx, b, req)
}
