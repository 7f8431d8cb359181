package metrics

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"poe2openai/internal/core"
)

const qpsWindow = time.Minute

// MetricsConfig configuration for MetricsService
type MetricsConfig struct {
	SaveInterval time.Duration
	HistorySize  int
	Storage      core.StorageInterface
	Logger       core.Logger
}

// MetricsService keeps gateway request counters and a bounded request history,
// persisted through storage at most once per SaveInterval.
type MetricsService struct {
	total        atomic.Int64
	succeeded    atomic.Int64
	failed       atomic.Int64
	responseTime atomic.Int64

	mu           sync.RWMutex
	history      []core.RequestRecord
	historyLimit int
	lastRequest  time.Time
	lastSave     time.Time

	// records land here first and are moved into history in batches
	pendingMu sync.Mutex
	pending   []core.RequestRecord

	windowMu sync.Mutex
	window   []time.Time

	storage      core.StorageInterface
	logger       core.Logger
	saveInterval time.Duration

	flushTicker *time.Ticker
	done        chan struct{}
	closeOnce   sync.Once
}

// NewMetricsService creates a new MetricsService
func NewMetricsService(config MetricsConfig) *MetricsService {
	if config.HistorySize <= 0 {
		config.HistorySize = core.HistoryBufferSize
	}
	if config.Logger == nil {
		config.Logger = &core.NopLogger{}
	}

	ms := &MetricsService{
		historyLimit: config.HistorySize,
		pending:      make([]core.RequestRecord, 0, core.HistoryBatchSize),
		storage:      config.Storage,
		logger:       config.Logger,
		saveInterval: config.SaveInterval,
		flushTicker:  time.NewTicker(core.HistoryFlushInterval),
		done:         make(chan struct{}),
	}
	go ms.flushLoop()

	return ms
}

func (ms *MetricsService) flushLoop() {
	for {
		select {
		case <-ms.flushTicker.C:
			ms.flushPending()
		case <-ms.done:
			return
		}
	}
}

func (ms *MetricsService) flushPending() {
	ms.pendingMu.Lock()
	if len(ms.pending) == 0 {
		ms.pendingMu.Unlock()
		return
	}
	batch := ms.pending
	ms.pending = make([]core.RequestRecord, 0, core.HistoryBatchSize)
	ms.pendingMu.Unlock()

	ms.mu.Lock()
	ms.history = trimHistory(append(ms.history, batch...), ms.historyLimit)
	ms.mu.Unlock()
}

func trimHistory(history []core.RequestRecord, limit int) []core.RequestRecord {
	if len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}

// RecordRequest records one gateway request under its route template.
func (ms *MetricsService) RecordRequest(success bool, responseTime int64, model string, route string) {
	now := time.Now()

	ms.total.Add(1)
	ms.responseTime.Add(responseTime)
	if success {
		ms.succeeded.Add(1)
	} else {
		ms.failed.Add(1)
	}

	ms.mu.Lock()
	ms.lastRequest = now
	ms.mu.Unlock()

	ms.windowMu.Lock()
	ms.window = append(ms.window, now)
	ms.trimWindowLocked(now)
	ms.windowMu.Unlock()

	ms.pendingMu.Lock()
	ms.pending = append(ms.pending, core.RequestRecord{
		Timestamp:    now,
		Success:      success,
		ResponseTime: responseTime,
		Model:        model,
		Route:        route,
	})
	full := len(ms.pending) >= core.HistoryBatchSize
	ms.pendingMu.Unlock()

	if full {
		ms.flushPending()
	}

	ms.SaveStatsDebounced()
}

// RecordSuccessWithMetrics records a successful request that started at startTime.
func RecordSuccessWithMetrics(metrics *MetricsService, startTime time.Time, model, route string) {
	metrics.RecordRequest(true, time.Since(startTime).Milliseconds(), model, route)
}

// RecordFailureWithMetrics records a failed request that started at startTime.
func RecordFailureWithMetrics(metrics *MetricsService, startTime time.Time, model, route string) {
	metrics.RecordRequest(false, time.Since(startTime).Milliseconds(), model, route)
}

func (ms *MetricsService) trimWindowLocked(now time.Time) {
	cutoff := now.Add(-qpsWindow)
	i := sort.Search(len(ms.window), func(i int) bool { return !ms.window[i].Before(cutoff) })
	if i > 0 {
		ms.window = append([]time.Time(nil), ms.window[i:]...)
	}
}

// GetQPS returns the request rate over the last minute
func (ms *MetricsService) GetQPS() float64 {
	ms.windowMu.Lock()
	defer ms.windowMu.Unlock()

	ms.trimWindowLocked(time.Now())
	if len(ms.window) == 0 {
		return 0
	}
	return math.Round(float64(len(ms.window))/qpsWindow.Seconds()*1000) / 1000
}

// GetRequestStats returns current stats snapshot
func (ms *MetricsService) GetRequestStats() core.RequestStats {
	ms.flushPending()

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	return core.RequestStats{
		TotalRequests:      ms.total.Load(),
		SuccessfulRequests: ms.succeeded.Load(),
		FailedRequests:     ms.failed.Load(),
		TotalResponseTime:  ms.responseTime.Load(),
		LastRequestTime:    ms.lastRequest,
		RequestHistory:     append([]core.RequestRecord(nil), ms.history...),
	}
}

// periodAccumulator sums the records that fall inside one window.
type periodAccumulator struct {
	requests     int64
	successful   int64
	responseTime int64
}

func (a *periodAccumulator) add(record core.RequestRecord) {
	a.requests++
	a.responseTime += record.ResponseTime
	if record.Success {
		a.successful++
	}
}

func (a periodAccumulator) stats(window time.Duration) core.PeriodStats {
	stats := core.PeriodStats{
		Requests: a.requests,
		QPS:      float64(a.requests) / window.Seconds(),
	}
	if a.requests > 0 {
		stats.SuccessRate = float64(a.successful) / float64(a.requests) * 100
		stats.AvgResponseTime = a.responseTime / a.requests
	}
	return stats
}

// GetPeriodStats computes period statistics for multiple hour windows in a single pass.
func GetPeriodStats(history []core.RequestRecord, hourPeriods ...int) map[int]core.PeriodStats {
	if len(hourPeriods) == 0 {
		return nil
	}

	now := time.Now()
	cutoffs := make([]time.Time, len(hourPeriods))
	acc := make([]periodAccumulator, len(hourPeriods))
	for i, hours := range hourPeriods {
		cutoffs[i] = now.Add(-time.Duration(hours) * time.Hour)
	}

	for _, record := range history {
		for i, cutoff := range cutoffs {
			if record.Timestamp.After(cutoff) {
				acc[i].add(record)
			}
		}
	}

	result := make(map[int]core.PeriodStats, len(hourPeriods))
	for i, hours := range hourPeriods {
		result[hours] = acc[i].stats(time.Duration(hours) * time.Hour)
	}
	return result
}

// GetRouteStats breaks the last hours of history down by route template.
func GetRouteStats(history []core.RequestRecord, hours int) map[string]core.PeriodStats {
	window := time.Duration(hours) * time.Hour
	cutoff := time.Now().Add(-window)

	acc := make(map[string]*periodAccumulator)
	for _, record := range history {
		if !record.Timestamp.After(cutoff) {
			continue
		}
		a, ok := acc[record.Route]
		if !ok {
			a = &periodAccumulator{}
			acc[record.Route] = a
		}
		a.add(record)
	}

	result := make(map[string]core.PeriodStats, len(acc))
	for route, a := range acc {
		result[route] = a.stats(window)
	}
	return result
}

// LoadStats restores counters and history saved by a previous run.
func (ms *MetricsService) LoadStats() error {
	if ms.storage == nil {
		return nil
	}
	stats, err := ms.storage.LoadStats()
	if err != nil {
		return err
	}

	ms.total.Store(stats.TotalRequests)
	ms.succeeded.Store(stats.SuccessfulRequests)
	ms.failed.Store(stats.FailedRequests)
	ms.responseTime.Store(stats.TotalResponseTime)

	ms.mu.Lock()
	ms.lastRequest = stats.LastRequestTime
	ms.history = trimHistory(stats.RequestHistory, ms.historyLimit)
	ms.mu.Unlock()

	return nil
}

// SaveStatsDebounced persists a snapshot unless one was saved within SaveInterval.
func (ms *MetricsService) SaveStatsDebounced() {
	now := time.Now()
	ms.mu.Lock()
	if now.Sub(ms.lastSave) < ms.saveInterval {
		ms.mu.Unlock()
		return
	}
	ms.lastSave = now
	ms.mu.Unlock()

	if ms.storage == nil {
		return
	}

	stats := ms.GetRequestStats()
	if err := ms.storage.SaveStats(&stats); err != nil {
		ms.logger.Warn("Failed to save stats: %v", err)
	}
}

// Close saves final stats and stops. Later calls are no-ops.
func (ms *MetricsService) Close() error {
	var err error
	ms.closeOnce.Do(func() {
		close(ms.done)
		ms.flushTicker.Stop()
		ms.flushPending()

		if ms.storage != nil {
			stats := ms.GetRequestStats()
			err = ms.storage.SaveStats(&stats)
		}
	})
	return err
}
