// Package payload defines the byte layout stored in a barcode symbol.
//
// Layout (version 1):
//
//	version(1)=0x01
//	flags(1)           bits 0-1 compression, bits 2-4 proof algorithm, bits 5-7 zero
//	compressedLen(uvarint) compressed
//	keyIDLen(uvarint)  keyID
//	algLen(uvarint)=2  proofAlgorithm(1) digestAlgorithm(1)
//	sigLen(uvarint)    signature
//
// Nothing may follow the signature.
package payload

import (
	"errors"
	"unicode/utf8"

	"xdao.co/vcb/compression"
	"xdao.co/vcb/internal/wire"
	"xdao.co/vcb/proof"
	"xdao.co/vcb/vcberr"
)

// Version is the only layout version this package reads or writes.
const Version byte = 0x01

// DefaultMaxPayloadBytes fits a QR code version 25 at ECC level L in byte
// mode, rounded down.
const DefaultMaxPayloadBytes = 800

const (
	compressionMask = 0x03
	algorithmShift  = 2
	algorithmMask   = 0x07 << algorithmShift
	reservedMask    = 0xe0
)

// Options configures Assemble.
type Options struct {
	// MaxPayloadBytes is the symbol capacity. Zero or less disables the check.
	MaxPayloadBytes int
}

// Option mutates Options.
type Option func(*Options)

func WithMaxPayloadBytes(n int) Option {
	return func(o *Options) { o.MaxPayloadBytes = n }
}

// Unlimited disables the capacity check, for payloads that never go into a
// symbol (status list credentials).
func Unlimited() Option {
	return func(o *Options) { o.MaxPayloadBytes = 0 }
}

// DefaultOptions returns the options Assemble starts from.
func DefaultOptions() Options {
	return Options{MaxPayloadBytes: DefaultMaxPayloadBytes}
}

// Parsed is a disassembled payload. It shares no memory with the input.
type Parsed struct {
	Compressed compression.Compressed
	Envelope   proof.Envelope
}

// Assemble lays out c and env. It fails with PayloadTooLarge (a
// *vcberr.CapacityError carrying the overage) rather than truncating.
func Assemble(c compression.Compressed, env proof.Envelope, opts ...Option) ([]byte, error) {
	o := DefaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	if !c.Algorithm.Valid() {
		return nil, vcberr.Newf(vcberr.KindUnsupportedAlgorithmTag, "VCB-PAYLOAD-012", "unsupported compression tag %d", uint8(c.Algorithm))
	}
	if !env.Algorithm.Supported() {
		return nil, vcberr.Newf(vcberr.KindUnsupportedAlgorithmTag, "VCB-PAYLOAD-013", "unsupported proof algorithm %d", uint8(env.Algorithm))
	}
	if !env.Digest.Supported() {
		return nil, vcberr.Newf(vcberr.KindUnsupportedAlgorithmTag, "VCB-PAYLOAD-017", "unsupported digest algorithm %d", uint8(env.Digest))
	}
	if env.KeyID == "" || !utf8.ValidString(env.KeyID) {
		return nil, vcberr.New(vcberr.KindMalformedPayload, "VCB-PAYLOAD-019", "key id must be non-empty UTF-8")
	}

	var w wire.Writer
	w.Byte(Version)
	w.Byte(byte(c.Algorithm) | byte(env.Algorithm)<<algorithmShift)
	w.Prefixed(c.Data)
	w.Prefixed([]byte(env.KeyID))
	w.Prefixed([]byte{byte(env.Algorithm), byte(env.Digest)})
	w.Prefixed(env.Signature)

	if o.MaxPayloadBytes > 0 && w.Len() > o.MaxPayloadBytes {
		return nil, &vcberr.CapacityError{Size: w.Len(), Limit: o.MaxPayloadBytes}
	}
	return w.Bytes(), nil
}

// Disassemble parses b. Declared lengths running past the buffer fail with
// TruncatedPayload; every other structural problem is MalformedPayload, and
// unknown algorithm tags are UnsupportedAlgorithmTag.
func Disassemble(b []byte) (Parsed, error) {
	r := wire.NewReader(b)
	version, err := r.Byte()
	if err != nil {
		return Parsed{}, truncated("version", err)
	}
	if version != Version {
		return Parsed{}, vcberr.Newf(vcberr.KindMalformedPayload, "VCB-PAYLOAD-010", "unknown payload version 0x%02x", version)
	}
	flags, err := r.Byte()
	if err != nil {
		return Parsed{}, truncated("flags", err)
	}
	if flags&reservedMask != 0 {
		return Parsed{}, vcberr.Newf(vcberr.KindMalformedPayload, "VCB-PAYLOAD-011", "reserved flag bits set: 0x%02x", flags)
	}
	compAlg := compression.Algorithm(flags & compressionMask)
	if !compAlg.Valid() {
		return Parsed{}, vcberr.Newf(vcberr.KindUnsupportedAlgorithmTag, "VCB-PAYLOAD-012", "unsupported compression tag %d", uint8(compAlg))
	}
	proofAlg := proof.Algorithm((flags & algorithmMask) >> algorithmShift)
	if !proofAlg.Supported() {
		return Parsed{}, vcberr.Newf(vcberr.KindUnsupportedAlgorithmTag, "VCB-PAYLOAD-013", "unsupported proof algorithm %d", uint8(proofAlg))
	}

	data, err := r.Prefixed()
	if err != nil {
		return Parsed{}, lengthErr("compressed bytes", err)
	}
	keyID, err := r.Prefixed()
	if err != nil {
		return Parsed{}, lengthErr("key id", err)
	}
	if len(keyID) == 0 || !utf8.Valid(keyID) {
		return Parsed{}, vcberr.New(vcberr.KindMalformedPayload, "VCB-PAYLOAD-019", "key id must be non-empty UTF-8")
	}
	algs, err := r.Prefixed()
	if err != nil {
		return Parsed{}, lengthErr("algorithm identifiers", err)
	}
	if len(algs) != 2 {
		return Parsed{}, vcberr.Newf(vcberr.KindMalformedPayload, "VCB-PAYLOAD-015", "algorithm field is %d bytes, want 2", len(algs))
	}
	if proof.Algorithm(algs[0]) != proofAlg {
		return Parsed{}, vcberr.New(vcberr.KindMalformedPayload, "VCB-PAYLOAD-016", "flags and envelope disagree on proof algorithm")
	}
	digest := proof.Digest(algs[1])
	if !digest.Supported() {
		return Parsed{}, vcberr.Newf(vcberr.KindUnsupportedAlgorithmTag, "VCB-PAYLOAD-017", "unsupported digest algorithm %d", uint8(digest))
	}
	sig, err := r.Prefixed()
	if err != nil {
		return Parsed{}, lengthErr("signature", err)
	}
	if r.Remaining() != 0 {
		return Parsed{}, vcberr.Newf(vcberr.KindMalformedPayload, "VCB-PAYLOAD-018", "%d trailing bytes", r.Remaining())
	}

	return Parsed{
		Compressed: compression.Compressed{Algorithm: compAlg, Data: append([]byte(nil), data...)},
		Envelope: proof.Envelope{
			Algorithm: proofAlg,
			Digest:    digest,
			KeyID:     string(keyID),
			Signature: append([]byte(nil), sig...),
		},
	}, nil
}

func truncated(field string, cause error) error {
	return vcberr.Wrap(vcberr.KindTruncatedPayload, "VCB-PAYLOAD-020", "payload truncated at "+field, cause)
}

func lengthErr(field string, cause error) error {
	if errors.Is(cause, wire.ErrShort) {
		return truncated(field, cause)
	}
	return vcberr.Wrap(vcberr.KindMalformedPayload, "VCB-PAYLOAD-014", "bad length prefix for "+field, cause)
}
