package trust

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"xdao.co/vcb/proof"
)

// Retrying retries transient failures of a Resolver with exponential
// backoff. ErrNotFound and context errors are permanent.
type Retrying struct {
	next       Resolver
	maxRetries uint64
	initial    time.Duration
	logger     *slog.Logger
}

var _ Resolver = (*Retrying)(nil)

// RetryConfig tunes a Retrying resolver. Zero values take the defaults.
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	Logger          *slog.Logger
}

func NewRetrying(next Resolver, cfg RetryConfig) *Retrying {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Retrying{next: next, maxRetries: cfg.MaxRetries, initial: cfg.InitialInterval, logger: cfg.Logger}
}

func (r *Retrying) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initial
	return backoff.WithContext(backoff.WithMaxRetries(b, r.maxRetries), ctx)
}

func (r *Retrying) notify(op, id string) backoff.Notify {
	return func(err error, wait time.Duration) {
		r.logger.Warn("trust lookup failed, retrying", "op", op, "id", id, "wait", wait, "err", err)
	}
}

func (r *Retrying) ResolveKey(ctx context.Context, keyID string) (*proof.PublicKey, error) {
	return backoff.RetryNotifyWithData[*proof.PublicKey](func() (*proof.PublicKey, error) {
		k, err := r.next.ResolveKey(ctx, keyID)
		if err != nil && permanent(err) {
			return nil, backoff.Permanent(err)
		}
		return k, err
	}, r.policy(ctx), r.notify("resolve_key", keyID))
}

func (r *Retrying) FetchStatusList(ctx context.Context, listID string) ([]byte, error) {
	return backoff.RetryNotifyWithData[[]byte](func() ([]byte, error) {
		b, err := r.next.FetchStatusList(ctx, listID)
		if err != nil && permanent(err) {
			return nil, backoff.Permanent(err)
		}
		return b, err
	}, r.policy(ctx), r.notify("fetch_status_list", listID))
}

func permanent(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
