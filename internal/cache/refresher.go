package cache

import (
	"context"
	"fmt"

	"poe2openai/internal/core"

	"github.com/robfig/cron/v3"
)

// Refresher force-refreshes the catalog cache on a cron schedule.
type Refresher struct {
	cron   *cron.Cron
	cache  *CatalogCache
	config func() *core.ModelsConfig
	logger core.Logger
}

// NewRefresher parses schedule (standard five fields or descriptors such as "@every 10m").
func NewRefresher(schedule string, cache *CatalogCache, config func() *core.ModelsConfig, logger core.Logger) (*Refresher, error) {
	r := &Refresher{
		cron:   cron.New(),
		cache:  cache,
		config: config,
		logger: logger,
	}
	if _, err := r.cron.AddFunc(schedule, r.refresh); err != nil {
		return nil, fmt.Errorf("invalid CATALOG_REFRESH_CRON %q: %w", schedule, err)
	}
	return r, nil
}

// Start begins the schedule in the background.
func (r *Refresher) Start() {
	r.cron.Start()
}

// Stop halts the schedule and returns a context done when a running refresh finishes.
func (r *Refresher) Stop() context.Context {
	return r.cron.Stop()
}

func (r *Refresher) refresh() {
	cfg := r.config()
	if !cfg.MergeEnabled() {
		r.logger.Debug("Scheduled catalog refresh skipped: merging disabled")
		return
	}
	if _, err := r.cache.ForceRefresh(context.Background(), cfg); err != nil {
		r.logger.Warn("Scheduled catalog refresh failed: %v", err)
	}
}
