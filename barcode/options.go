package barcode

import (
	"io"
	"log/slog"
	"time"

	"xdao.co/vcb/compression"
	"xdao.co/vcb/dictionary"
	"xdao.co/vcb/metrics"
	"xdao.co/vcb/payload"
	"xdao.co/vcb/proof"
)

type config struct {
	logger      *slog.Logger
	metrics     *metrics.Metrics
	maxPayload  int
	dict        *dictionary.Dictionary
	compression *compression.Algorithm
	digest      proof.Digest
	maxExpanded int
	now         func() time.Time
}

func defaultConfig() config {
	return config{
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxPayload:  payload.DefaultMaxPayloadBytes,
		maxExpanded: compression.MaxExpandedSize,
		now:         time.Now,
	}
}

// Option configures an Encoder or a Verifier. Options that only make sense on
// one side are ignored by the other.
type Option func(*config)

func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithMaxPayloadBytes sets the encoder's capacity limit. Zero or less disables
// it.
func WithMaxPayloadBytes(n int) Option {
	return func(c *config) { c.maxPayload = n }
}

// WithDictionary selects the dictionary used for canonical encoding.
func WithDictionary(d *dictionary.Dictionary) Option {
	return func(c *config) { c.dict = d }
}

// WithCompression forces one compression form instead of the smallest.
func WithCompression(a compression.Algorithm) Option {
	return func(c *config) { c.compression = &a }
}

// WithDigest overrides the signing algorithm's default digest.
func WithDigest(d proof.Digest) Option {
	return func(c *config) { c.digest = d }
}

// WithMaxExpandedSize bounds decompressed output on the verifier.
func WithMaxExpandedSize(n int) Option {
	return func(c *config) { c.maxExpanded = n }
}

// WithClock overrides time.Now for status list expiry.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}
