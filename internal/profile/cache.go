package profile

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"newscraper/internal/domain"
)

// Store is the persistent key-value backing of the cache. Keys are a
// store-safe transform of a canonical domain.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context) ([]string, error)
}

// Cache maps a site's canonical domain to its last-detected profile.
// Entries older than maxAge are treated as misses; zero maxAge disables
// age-based invalidation and entries are trusted until ForceRefresh.
type Cache struct {
	store  Store
	maxAge time.Duration
	logger *zap.Logger
}

func NewCache(store Store, maxAge time.Duration, logger *zap.Logger) *Cache {
	return &Cache{store: store, maxAge: maxAge, logger: logger}
}

// Get returns the cached profile for the URL's canonical domain, or
// (nil, false) on a miss, a stale or malformed entry, or a store error.
// It never returns an error: a broken cache degrades to re-detection.
func (c *Cache) Get(ctx context.Context, rawURL string) (*domain.Profile, bool) {
	dom := domain.CanonicalDomain(rawURL)
	if dom == "" {
		return nil, false
	}
	data, ok, err := c.store.Get(ctx, storeKey(dom))
	if err != nil {
		c.logger.Warn("profile cache read failed", zap.String("domain", dom), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var p domain.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		c.logger.Warn("discarding malformed cached profile", zap.String("domain", dom), zap.Error(err))
		return nil, false
	}
	if c.maxAge > 0 && !p.CachedAt.IsZero() && time.Since(p.CachedAt) > c.maxAge {
		c.logger.Info("cached profile is stale", zap.String("domain", dom), zap.Time("cached_at", p.CachedAt))
		return nil, false
	}
	return &p, true
}

// Save persists the profile under the URL's canonical domain, stamping
// the cache time. The write replaces any previous entry atomically at
// per-key granularity; concurrent saves to the same domain are
// last-write-wins.
func (c *Cache) Save(ctx context.Context, rawURL string, p *domain.Profile) error {
	dom := domain.CanonicalDomain(rawURL)
	if dom == "" {
		dom = p.Domain
	}
	stamped := *p
	stamped.CachedAt = time.Now().UTC()
	data, err := json.Marshal(&stamped)
	if err != nil {
		return err
	}
	return c.store.Put(ctx, storeKey(dom), data)
}

// Delete removes the entry for a domain, reporting whether one existed.
func (c *Cache) Delete(ctx context.Context, dom string) (bool, error) {
	return c.store.Delete(ctx, storeKey(domain.CanonicalDomain(dom)))
}

// CachedProfile is a listing entry for one cached domain.
type CachedProfile struct {
	Domain     string    `json:"domain"`
	BaseURL    string    `json:"base_url"`
	RequiresJS bool      `json:"requires_js"`
	CachedAt   time.Time `json:"cached_at"`
}

// List enumerates every cached profile. Malformed entries are skipped.
func (c *Cache) List(ctx context.Context) ([]CachedProfile, error) {
	keys, err := c.store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CachedProfile, 0, len(keys))
	for _, key := range keys {
		data, ok, err := c.store.Get(ctx, key)
		if err != nil || !ok {
			continue
		}
		var p domain.Profile
		if err := json.Unmarshal(data, &p); err != nil {
			continue
		}
		out = append(out, CachedProfile{
			Domain:     p.Domain,
			BaseURL:    p.BaseURL,
			RequiresJS: p.RequiresJS,
			CachedAt:   p.CachedAt,
		})
	}
	return out, nil
}

// storeKey converts a domain into a store-safe key.
func storeKey(dom string) string {
	return strings.ReplaceAll(dom, ".", "_")
}
