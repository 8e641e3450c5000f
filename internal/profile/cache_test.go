package profile

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"newscraper/internal/domain"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	delete(m.data, key)
	return ok, nil
}

func (m *memStore) Keys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func testProfile(baseURL string) *domain.Profile {
	return &domain.Profile{
		BaseURL:    baseURL,
		Domain:     domain.CanonicalDomain(baseURL),
		Strategy:   domain.SearchURLStrategy(baseURL + "/search?q={query}"),
		RequiresJS: false,
		Selectors: domain.Selectors{
			Containers: []string{"article"},
			Headlines:  []string{"h2"},
		},
		DeepScrape: true,
	}
}

func TestCacheRoundTrip(t *testing.T) {
	cache := NewCache(newMemStore(), 0, zap.NewNop())
	ctx := context.Background()

	saved := testProfile("https://example.com")
	require.NoError(t, cache.Save(ctx, "https://example.com/some/page", saved))

	got, ok := cache.Get(ctx, "https://example.com/other")
	require.True(t, ok)
	assert.Equal(t, saved.BaseURL, got.BaseURL)
	assert.Equal(t, saved.Strategy, got.Strategy)
	assert.Equal(t, saved.Selectors.Containers, got.Selectors.Containers)
	assert.False(t, got.CachedAt.IsZero(), "save should stamp the cache time")
}

func TestCacheCanonicalDomainSharesEntry(t *testing.T) {
	cache := NewCache(newMemStore(), 0, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, cache.Save(ctx, "https://Example.com/x", testProfile("https://example.com")))

	// Different scheme, case and path still hit the same entry.
	for _, u := range []string{"http://example.com/y", "https://www.example.com/", "https://EXAMPLE.COM"} {
		_, ok := cache.Get(ctx, u)
		assert.True(t, ok, "expected hit for %s", u)
	}
}

func TestCacheMissReturnsAbsent(t *testing.T) {
	cache := NewCache(newMemStore(), 0, zap.NewNop())
	got, ok := cache.Get(context.Background(), "https://nowhere.example")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestCacheMalformedEntryIsAMiss(t *testing.T) {
	store := newMemStore()
	cache := NewCache(store, 0, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "example_com", []byte("{not json")))
	_, ok := cache.Get(ctx, "https://example.com")
	assert.False(t, ok)
}

func TestCacheStaleEntryIsAMiss(t *testing.T) {
	store := newMemStore()
	cache := NewCache(store, time.Hour, zap.NewNop())
	ctx := context.Background()

	old := testProfile("https://example.com")
	require.NoError(t, cache.Save(ctx, "https://example.com", old))

	// Rewind the stamp past the max age.
	fresh, ok := cache.Get(ctx, "https://example.com")
	require.True(t, ok)
	fresh.CachedAt = time.Now().Add(-2 * time.Hour)
	data, err := json.Marshal(fresh)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "example_com", data))

	_, ok = cache.Get(ctx, "https://example.com")
	assert.False(t, ok, "entry older than max age should be treated as a miss")
}

func TestCacheDelete(t *testing.T) {
	cache := NewCache(newMemStore(), 0, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, cache.Save(ctx, "https://example.com", testProfile("https://example.com")))

	deleted, err := cache.Delete(ctx, "example.com")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = cache.Delete(ctx, "example.com")
	require.NoError(t, err)
	assert.False(t, deleted, "second delete should report absence")
}

func TestCacheList(t *testing.T) {
	cache := NewCache(newMemStore(), 0, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, cache.Save(ctx, "https://one.example.com", testProfile("https://one.example.com")))
	require.NoError(t, cache.Save(ctx, "https://two.example.com", testProfile("https://two.example.com")))

	entries, err := cache.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
