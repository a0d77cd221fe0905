// Package barcode ties the pipeline together: a claims graph goes in, a
// signed payload small enough for a 2D barcode comes out, and the verifier
// walks the same stages in reverse.
package barcode

import (
	"context"

	"xdao.co/vcb/canon"
	"xdao.co/vcb/claims"
	"xdao.co/vcb/compression"
	"xdao.co/vcb/dictionary"
	"xdao.co/vcb/payload"
	"xdao.co/vcb/proof"
	"xdao.co/vcb/vcberr"
)

// Encoder turns claims graphs into barcode payloads. It is immutable and safe
// for concurrent use.
type Encoder struct {
	cfg   config
	canon *canon.Encoder
	codec *compression.Codec
}

func NewEncoder(opts ...Option) *Encoder {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	d := cfg.dict
	if d == nil {
		d = dictionary.Current()
	}
	return &Encoder{
		cfg:   cfg,
		canon: canon.NewEncoder(d),
		codec: compression.NewCodec(compression.WithMaxExpandedSize(cfg.maxExpanded)),
	}
}

// Encode canonicalizes g, compresses it, signs the compressed bytes with key
// and lays out the payload. A payload over the capacity limit fails with
// PayloadTooLarge; it is never truncated.
func (e *Encoder) Encode(ctx context.Context, g *claims.Graph, key *proof.PrivateKey) ([]byte, error) {
	b, alg, err := e.encode(ctx, g, key)
	if err != nil {
		e.cfg.metrics.IncrementEncodeFailure(string(vcberr.KindOf(err)))
		e.cfg.logger.InfoContext(ctx, "encode failed", "kind", vcberr.KindOf(err), "rule", vcberr.RuleID(err), "err", err)
		return nil, err
	}
	e.cfg.metrics.ObserveEncoded(alg.String(), len(b))
	e.cfg.logger.InfoContext(ctx, "encoded payload", "bytes", len(b), "compression", alg.String(), "key_id", key.ID())
	return b, nil
}

func (e *Encoder) encode(ctx context.Context, g *claims.Graph, key *proof.PrivateKey) ([]byte, compression.Algorithm, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, vcberr.Wrap(vcberr.KindInternal, "VCB-BARCODE-001", "encode cancelled", err)
	}
	if key == nil {
		return nil, 0, vcberr.New(vcberr.KindInternal, "VCB-BARCODE-002", "missing signing key")
	}
	canonical, err := e.canon.Encode(g)
	if err != nil {
		return nil, 0, err
	}
	e.cfg.logger.DebugContext(ctx, "canonicalized", "bytes", len(canonical), "dictionary", e.canon.Dictionary().Version())

	var c compression.Compressed
	if e.cfg.compression != nil {
		c, err = e.codec.CompressAs(*e.cfg.compression, canonical)
	} else {
		c, err = e.codec.Compress(canonical)
	}
	if err != nil {
		return nil, 0, err
	}
	e.cfg.logger.DebugContext(ctx, "compressed", "algorithm", c.Algorithm.String(), "bytes", len(c.Data))

	var signOpts []proof.SignOption
	if e.cfg.digest != 0 {
		signOpts = append(signOpts, proof.WithDigest(e.cfg.digest))
	}
	env, err := proof.Sign(c.SigningInput(), key, signOpts...)
	if err != nil {
		return nil, 0, err
	}
	e.cfg.logger.DebugContext(ctx, "signed", "algorithm", env.Algorithm.String(), "digest", env.Digest.String())

	b, err := payload.Assemble(c, env, payload.WithMaxPayloadBytes(e.cfg.maxPayload))
	if err != nil {
		if over := vcberr.Overage(err); over > 0 {
			e.cfg.logger.DebugContext(ctx, "payload over capacity", "overage", over, "limit", e.cfg.maxPayload)
		}
		return nil, 0, err
	}
	return b, c.Algorithm, nil
}

// Encode is NewEncoder(opts...).Encode.
func Encode(ctx context.Context, g *claims.Graph, key *proof.PrivateKey, opts ...Option) ([]byte, error) {
	return NewEncoder(opts...).Encode(ctx, g, key)
}
