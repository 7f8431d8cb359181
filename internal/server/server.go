package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"poe2openai/internal/admission"
	"poe2openai/internal/cache"
	"poe2openai/internal/config"
	"poe2openai/internal/core"
	"poe2openai/internal/metrics"
	"poe2openai/internal/upstream"
	"poe2openai/internal/util"

	"github.com/gin-gonic/gin"
)

// Server application server
type Server struct {
	config config.ServerConfig
	logger core.Logger

	httpClient *http.Client
	router     *gin.Engine

	store     *config.Store
	source    *upstream.Source
	catalog   *cache.CatalogCache
	refresher *cache.Refresher
	gate      *admission.Gate

	metricsService *metrics.MetricsService
	collector      *metrics.Collector

	modeMu   sync.Mutex
	modeKey  string
	watching bool

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

// NewServer creates a new server instance
func NewServer(cfg config.ServerConfig) (*Server, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required in ServerConfig")
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("storage is required in ServerConfig")
	}
	if cfg.CatalogFetchTimeout <= 0 {
		cfg.CatalogFetchTimeout = core.CatalogFetchTimeout
	}
	if cfg.MaxRequestSize <= 0 {
		cfg.MaxRequestSize = core.DefaultMaxRequestSize
	}

	store, err := config.NewStore(cfg.ModelsConfigPath, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load models config: %w", err)
	}

	httpClient := createOptimizedHTTPClient(cfg.HTTPClientSettings)
	collector := metrics.NewCollector()

	metricsService := metrics.NewMetricsService(metrics.MetricsConfig{
		SaveInterval: core.MinSaveInterval,
		HistorySize:  core.HistoryBufferSize,
		Storage:      cfg.Storage,
		Logger:       cfg.Logger,
	})

	if err := metricsService.LoadStats(); err != nil {
		cfg.Logger.Warn("Failed to load historical stats: %v", err)
	}

	source := upstream.NewSource(httpClient, cfg.PoeBaseURL, cfg.LegacyModelsURL, cfg.Logger, collector)
	catalogCache := cache.NewCatalogCache(source, cfg.CatalogFetchTimeout, cfg.Logger, collector)

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	server := &Server{
		config:         cfg,
		logger:         cfg.Logger,
		httpClient:     httpClient,
		store:          store,
		source:         source,
		catalog:        catalogCache,
		gate:           admission.New(),
		metricsService: metricsService,
		collector:      collector,
		modeKey:        catalogModeKey(store.Get()),
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}

	if cfg.CatalogRefreshCron != "" {
		refresher, err := cache.NewRefresher(cfg.CatalogRefreshCron, catalogCache, store.Get, cfg.Logger)
		if err != nil {
			_ = metricsService.Close()
			shutdownCancel()
			return nil, err
		}
		server.refresher = refresher
		refresher.Start()
		cfg.Logger.Info("Scheduled catalog refresh: %s", cfg.CatalogRefreshCron)
	}

	server.startConfigWatcher()
	server.setupRoutes()

	return server, nil
}

func createOptimizedHTTPClient(settings config.HTTPClientSettings) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          settings.MaxIdleConns,
		MaxIdleConnsPerHost:   settings.MaxIdleConnsPerHost,
		MaxConnsPerHost:       settings.MaxConnsPerHost,
		IdleConnTimeout:       settings.IdleConnTimeout,
		TLSHandshakeTimeout:   settings.TLSHandshakeTimeout,
		ExpectContinueTimeout: core.HTTPExpectContinueTimeout,
		DisableKeepAlives:     false,
		ForceAttemptHTTP2:     true,
		ResponseHeaderTimeout: core.HTTPResponseHeaderTimeout,
		DisableCompression:    false,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   settings.RequestTimeout,
	}
}

// startConfigWatcher hot-reloads models.yaml. A retrieval mode change empties the catalog cache.
func (s *Server) startConfigWatcher() {
	if s.store.Path() == "" {
		return
	}

	watcher, err := config.NewWatcher(s.store, s.logger, s.onConfigReload)
	if err != nil {
		s.logger.Warn("Config hot reload disabled: %v", err)
		return
	}
	s.watching = true
	go watcher.Run(s.shutdownCtx)
}

func (s *Server) onConfigReload(cfg *core.ModelsConfig) {
	key := catalogModeKey(cfg)

	s.modeMu.Lock()
	changed := key != s.modeKey
	s.modeKey = key
	s.modeMu.Unlock()

	if changed {
		s.logger.Info("Catalog retrieval mode changed, clearing cached catalog")
		s.catalog.Invalidate()
	}
}

func catalogModeKey(cfg *core.ModelsConfig) string {
	mode, err := upstream.ResolveMode(cfg)
	if err != nil {
		return "invalid"
	}
	if token, ok := mode.(upstream.TokenListing); ok {
		return mode.Name() + ":" + token.Token
	}
	return mode.Name()
}

// Run runs the server
func (s *Server) Run() error {
	s.setupGracefulShutdown()

	srv := &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      core.HTTPRequestTimeout, // streamed completions can run long
	}

	go func() {
		<-s.shutdownCtx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("Server shutdown error: %v", err)
		}
	}()

	s.logger.Info("Server starting on %s", s.config.Addr())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *Server) setupGracefulShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-quit:
			s.logger.Info("Shutdown signal received, shutting down gracefully...")
			s.shutdownCancel()
		case <-s.shutdownCtx.Done():
		}
		signal.Stop(quit)
	}()
}

func (s *Server) healthCheck(c *gin.Context) {
	snap, cached := s.catalog.Peek()
	models := 0
	if cached {
		models = snap.Len()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"catalog_cached": cached,
		"catalog_models": models,
	})
}

func (s *Server) getStatsData(c *gin.Context) {
	stats := s.metricsService.GetRequestStats()
	periodStats := metrics.GetPeriodStats(stats.RequestHistory, 24, 24*7, 24*30)
	currentQPS := s.metricsService.GetQPS()
	cfg := s.store.Get()

	catalogInfo := gin.H{"cached": false}
	if snap, ok := s.catalog.Peek(); ok {
		catalogInfo = gin.H{
			"cached":    true,
			"models":    snap.Len(),
			"fetchedAt": snap.FetchedAt().Format(core.TimeFormatDateTime),
		}
	}

	mode := "invalid"
	if m, err := upstream.ResolveMode(cfg); err == nil {
		mode = m.Name()
	}

	c.JSON(http.StatusOK, gin.H{
		"currentTime":   time.Now().Format(core.TimeFormatDateTime),
		"currentQPS":    fmt.Sprintf("%.3f", currentQPS),
		"totalRecords":  len(stats.RequestHistory),
		"stats24h":      periodStats[24],
		"stats7d":       periodStats[24*7],
		"stats30d":      periodStats[24*30],
		"routes24h":     metrics.GetRouteStats(stats.RequestHistory, 24),
		"catalog":       catalogInfo,
		"catalogMode":   mode,
		"mergeEnabled":  cfg.MergeEnabled(),
		"apiToken":      util.MaskToken(cfg.APIToken),
		"rateLimitMs":   s.config.RateLimit.Milliseconds(),
		"configWatched": s.watching,
	})
}

// Close closes the server
func (s *Server) Close() error {
	if s.shutdownCancel != nil {
		s.shutdownCancel()
	}

	var closeErr error

	if s.refresher != nil {
		<-s.refresher.Stop().Done()
	}

	if s.metricsService != nil {
		if err := s.metricsService.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close metrics service: %w", err))
		}
	}

	if s.httpClient != nil {
		s.httpClient.CloseIdleConnections()
	}

	return closeErr
}
