package cache

import (
	"context"
	"sync"
	"time"

	"poe2openai/internal/core"
)

// Snapshot is an immutable upstream model list from one successful fetch.
type Snapshot struct {
	models    []core.ModelInfo
	fetchedAt time.Time
}

func newSnapshot(models []core.ModelInfo) *Snapshot {
	owned := make([]core.ModelInfo, len(models))
	copy(owned, models)
	return &Snapshot{models: owned, fetchedAt: time.Now()}
}

// Models returns a copy of the snapshot contents.
func (s *Snapshot) Models() []core.ModelInfo {
	out := make([]core.ModelInfo, len(s.models))
	copy(out, s.models)
	return out
}

// Len returns the number of models.
func (s *Snapshot) Len() int {
	return len(s.models)
}

// FetchedAt returns when the snapshot was fetched.
func (s *Snapshot) FetchedAt() time.Time {
	return s.fetchedAt
}

// CatalogCache holds the last successfully fetched upstream catalog.
// At most one miss-triggered fetch runs at a time; callers queued behind it
// receive its result, success or error.
type CatalogCache struct {
	fetcher core.CatalogFetcher
	timeout time.Duration
	logger  core.Logger
	metrics core.MetricsCollector

	mu       sync.RWMutex
	snapshot *Snapshot
	attempts uint64
	lastErr  error
	// generation advances on Invalidate; refreshes started earlier are not installed
	generation uint64
}

// NewCatalogCache creates an empty cache. timeout bounds every upstream fetch.
func NewCatalogCache(fetcher core.CatalogFetcher, timeout time.Duration, logger core.Logger, metrics core.MetricsCollector) *CatalogCache {
	if timeout <= 0 {
		timeout = core.CatalogFetchTimeout
	}
	if logger == nil {
		logger = &core.NopLogger{}
	}
	if metrics == nil {
		metrics = &core.NopMetrics{}
	}
	return &CatalogCache{
		fetcher: fetcher,
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
	}
}

// GetOrPopulate returns the cached snapshot, fetching it once on a miss.
func (c *CatalogCache) GetOrPopulate(ctx context.Context, cfg *core.ModelsConfig) (*Snapshot, error) {
	c.mu.RLock()
	if snap := c.snapshot; snap != nil {
		c.mu.RUnlock()
		c.metrics.RecordCacheHit()
		return snap, nil
	}
	seen := c.attempts
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-check: another caller may have populated the slot while we waited.
	if c.snapshot != nil {
		c.logger.Debug("Catalog cache populated by a concurrent request")
		c.metrics.RecordCacheShared()
		return c.snapshot, nil
	}
	if c.attempts != seen && c.lastErr != nil {
		c.metrics.RecordCacheShared()
		return nil, c.lastErr
	}

	c.logger.Info("Catalog cache miss, fetching from upstream")
	c.metrics.RecordCacheMiss()

	models, err := c.fetch(ctx, cfg)
	c.attempts++
	if err != nil {
		c.lastErr = err
		return nil, err
	}

	c.lastErr = nil
	c.snapshot = newSnapshot(models)
	c.logger.Info("Catalog cache populated with %d models", c.snapshot.Len())
	return c.snapshot, nil
}

// ForceRefresh always fetches and, on success, replaces the cached snapshot.
// A failed refresh leaves the current snapshot in place. A refresh that overlaps
// an Invalidate returns its result without installing it.
func (c *CatalogCache) ForceRefresh(ctx context.Context, cfg *core.ModelsConfig) (*Snapshot, error) {
	c.mu.RLock()
	generation := c.generation
	c.mu.RUnlock()

	models, err := c.fetch(ctx, cfg)
	if err != nil {
		return nil, err
	}

	snap := newSnapshot(models)
	c.mu.Lock()
	stale := c.generation != generation
	if !stale {
		c.snapshot = snap
		c.lastErr = nil
	}
	c.mu.Unlock()

	if stale {
		c.logger.Info("Catalog cache invalidated during refresh, discarding %d fetched models", snap.Len())
		return snap, nil
	}
	c.logger.Info("Catalog cache refreshed with %d models", snap.Len())
	return snap, nil
}

// Peek returns the current snapshot without fetching.
func (c *CatalogCache) Peek() (*Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot, c.snapshot != nil
}

// Invalidate empties the slot so the next GetOrPopulate fetches again.
func (c *CatalogCache) Invalidate() {
	c.mu.Lock()
	c.snapshot = nil
	c.lastErr = nil
	c.generation++
	c.mu.Unlock()
}

// fetch runs one upstream call. The call serves every queued waiter, so it is
// detached from the caller's cancellation and bounded by the cache timeout.
func (c *CatalogCache) fetch(ctx context.Context, cfg *core.ModelsConfig) ([]core.ModelInfo, error) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	return c.fetcher.Fetch(fetchCtx, cfg)
}
