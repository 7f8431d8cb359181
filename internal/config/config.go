package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"poe2openai/internal/core"
	"poe2openai/internal/util"

	"gopkg.in/yaml.v3"
)

// ServerConfig server configuration
type ServerConfig struct {
	Host                string
	Port                string
	GinMode             string
	ModelsConfigPath    string
	RateLimit           time.Duration
	MaxRequestSize      int64
	CatalogFetchTimeout time.Duration
	CatalogRefreshCron  string
	PoeBaseURL          string
	LegacyModelsURL     string
	CORSAllowOrigin     string
	HTTPClientSettings  HTTPClientSettings
	Storage             core.StorageInterface
	Logger              core.Logger
}

// HTTPClientSettings HTTP client configuration
type HTTPClientSettings struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	TLSHandshakeTimeout time.Duration
	RequestTimeout      time.Duration
}

// DefaultHTTPClientSettings default HTTP client settings
func DefaultHTTPClientSettings() HTTPClientSettings {
	return HTTPClientSettings{
		MaxIdleConns:        core.HTTPMaxIdleConns,
		MaxIdleConnsPerHost: core.HTTPMaxIdleConnsPerHost,
		MaxConnsPerHost:     core.HTTPMaxConnsPerHost,
		IdleConnTimeout:     core.HTTPIdleConnTimeout,
		TLSHandshakeTimeout: core.HTTPTLSHandshakeTimeout,
		RequestTimeout:      core.HTTPRequestTimeout,
	}
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// LoadModelsConfig loads models.yaml. Keys under models are lowercased.
func LoadModelsConfig(path string) (*core.ModelsConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path from config, not user input
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cfg core.ModelsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	normalizeModelsConfig(&cfg)
	return &cfg, nil
}

func normalizeModelsConfig(cfg *core.ModelsConfig) {
	models := make(map[string]core.ModelOverride, len(cfg.Models))
	for id, override := range cfg.Models {
		models[strings.ToLower(strings.TrimSpace(id))] = override
	}
	cfg.Models = models
	cfg.APIToken = strings.TrimSpace(cfg.APIToken)

	customs := cfg.CustomModels[:0]
	for _, custom := range cfg.CustomModels {
		custom.ID = strings.TrimSpace(custom.ID)
		if custom.ID == "" {
			continue
		}
		customs = append(customs, custom)
	}
	cfg.CustomModels = customs
}

// IsNotExist reports whether a LoadModelsConfig error means the file is absent.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// LoadServerConfigFromEnv loads server config from environment variables
func LoadServerConfigFromEnv(logger core.Logger) (ServerConfig, error) {
	configDir := util.GetEnvWithDefault("CONFIG_DIR", core.DefaultConfigDir)
	modelsPath := filepath.Join(configDir, core.DefaultModelsConfigFile)
	logger.Info("Models config path: %s", modelsPath)

	rateLimitMS, ok := util.GetEnvInt64("RATE_LIMIT_MS", core.DefaultRateLimitMS)
	if !ok {
		logger.Warn("Invalid RATE_LIMIT_MS value '%s', using default %d", os.Getenv("RATE_LIMIT_MS"), core.DefaultRateLimitMS)
	}

	maxRequestSize, ok := util.GetEnvInt64("MAX_REQUEST_SIZE", core.DefaultMaxRequestSize)
	if !ok || maxRequestSize == 0 {
		logger.Warn("Invalid MAX_REQUEST_SIZE value '%s', using default %d", os.Getenv("MAX_REQUEST_SIZE"), core.DefaultMaxRequestSize)
		maxRequestSize = core.DefaultMaxRequestSize
	}

	fetchTimeout, ok := util.GetEnvDuration("CATALOG_FETCH_TIMEOUT", core.CatalogFetchTimeout)
	if !ok {
		logger.Warn("Invalid CATALOG_FETCH_TIMEOUT value '%s', using default %s", os.Getenv("CATALOG_FETCH_TIMEOUT"), core.CatalogFetchTimeout)
	}

	cfg := ServerConfig{
		Host:                util.GetEnvWithDefault("HOST", core.DefaultHost),
		Port:                util.GetEnvWithDefault("PORT", core.DefaultPort),
		GinMode:             util.GetEnvWithDefault("GIN_MODE", core.DefaultGinMode),
		ModelsConfigPath:    modelsPath,
		RateLimit:           time.Duration(rateLimitMS) * time.Millisecond,
		MaxRequestSize:      maxRequestSize,
		CatalogFetchTimeout: fetchTimeout,
		CatalogRefreshCron:  strings.TrimSpace(os.Getenv("CATALOG_REFRESH_CRON")),
		PoeBaseURL:          strings.TrimRight(util.GetEnvWithDefault("POE_API_BASE_URL", core.PoeAPIBaseURL), "/"),
		LegacyModelsURL:     util.GetEnvWithDefault("POE_LEGACY_MODELS_URL", core.PoeLegacyModelsURL),
		CORSAllowOrigin:     util.GetEnvWithDefault("CORS_ALLOW_ORIGIN", "*"),
		HTTPClientSettings:  DefaultHTTPClientSettings(),
	}

	if cfg.RateLimit == 0 {
		logger.Info("Global rate limit: disabled (RATE_LIMIT_MS=0)")
	} else {
		logger.Info("Global rate limit: enabled (one request every %dms)", rateLimitMS)
	}

	return cfg, nil
}
