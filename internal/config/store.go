package config

import (
	"sync"

	"poe2openai/internal/core"
)

// Store holds the current models.yaml snapshot. Readers get a shared pointer that
// must be treated as read-only; Reload swaps in a fresh one.
type Store struct {
	path   string
	logger core.Logger

	mu      sync.RWMutex
	current *core.ModelsConfig
}

// NewStore loads path once. A missing file yields an empty config; a malformed one is an error.
func NewStore(path string, logger core.Logger) (*Store, error) {
	s := &Store{path: path, logger: logger, current: &core.ModelsConfig{}}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStaticStore wraps a fixed config, used by tests and embedders without a file.
func NewStaticStore(cfg *core.ModelsConfig) *Store {
	if cfg == nil {
		cfg = &core.ModelsConfig{}
	}
	return &Store{logger: &core.NopLogger{}, current: cfg}
}

// Get returns the current snapshot.
func (s *Store) Get() *core.ModelsConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Path returns the watched file path.
func (s *Store) Path() string {
	return s.path
}

// Reload re-reads the file. On parse errors the previous snapshot stays active.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}

	cfg, err := LoadModelsConfig(s.path)
	if err != nil {
		if !IsNotExist(err) {
			return err
		}
		s.logger.Warn("%s not found, catalog merging disabled", s.path)
		cfg = &core.ModelsConfig{}
	}

	s.mu.Lock()
	s.current = cfg
	s.mu.Unlock()

	s.logger.Info("Loaded models config: enable=%v, rules=%d, custom=%d, use_v1_api=%v",
		cfg.MergeEnabled(), len(cfg.Models), len(cfg.CustomModels), cfg.TokenListingRequested())
	return nil
}
