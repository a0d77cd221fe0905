package trust

import (
	"context"
	"time"

	"github.com/bluele/gcache"

	"xdao.co/vcb/proof"
)

// Caching memoizes a Resolver. Keys and status lists are held in separate LRU
// caches with their own expirations; status lists usually change far more
// often than keys. Failures are never cached.
type Caching struct {
	next  Resolver
	keys  gcache.Cache
	lists gcache.Cache

	keyTTL  time.Duration
	listTTL time.Duration
}

var _ Resolver = (*Caching)(nil)

// CacheConfig sizes a Caching resolver. Zero values take the defaults.
type CacheConfig struct {
	Size    int
	KeyTTL  time.Duration
	ListTTL time.Duration
}

func NewCaching(next Resolver, cfg CacheConfig) *Caching {
	if cfg.Size <= 0 {
		cfg.Size = 256
	}
	if cfg.KeyTTL <= 0 {
		cfg.KeyTTL = time.Hour
	}
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = 5 * time.Minute
	}
	return &Caching{
		next:    next,
		keys:    gcache.New(cfg.Size).LRU().Build(),
		lists:   gcache.New(cfg.Size).LRU().Build(),
		keyTTL:  cfg.KeyTTL,
		listTTL: cfg.ListTTL,
	}
}

func (c *Caching) ResolveKey(ctx context.Context, keyID string) (*proof.PublicKey, error) {
	if v, err := c.keys.Get(keyID); err == nil {
		return v.(*proof.PublicKey), nil
	}
	k, err := c.next.ResolveKey(ctx, keyID)
	if err != nil {
		return nil, err
	}
	_ = c.keys.SetWithExpire(keyID, k, c.keyTTL)
	return k, nil
}

func (c *Caching) FetchStatusList(ctx context.Context, listID string) ([]byte, error) {
	if v, err := c.lists.Get(listID); err == nil {
		return append([]byte(nil), v.([]byte)...), nil
	}
	b, err := c.next.FetchStatusList(ctx, listID)
	if err != nil {
		return nil, err
	}
	_ = c.lists.SetWithExpire(listID, append([]byte(nil), b...), c.listTTL)
	return b, nil
}

// Purge drops every cached entry.
func (c *Caching) Purge() {
	c.keys.Purge()
	c.lists.Purge()
}
