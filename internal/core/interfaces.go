package core

import (
	"context"
	"time"
)

// Logger interface
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	Fatal(format string, args ...any)
}

// StorageInterface storage interface
type StorageInterface interface {
	SaveStats(stats *RequestStats) error
	LoadStats() (*RequestStats, error)
	Close() error
}

// CatalogFetcher retrieves the upstream model list.
type CatalogFetcher interface {
	Fetch(ctx context.Context, cfg *ModelsConfig) ([]ModelInfo, error)
}

// MetricsCollector interface
type MetricsCollector interface {
	RecordHTTPRequest(route string, status int, duration time.Duration)
	RecordCatalogFetch(mode string, err error, duration time.Duration)
	RecordCacheHit()
	RecordCacheMiss()
	RecordCacheShared()
	RecordAdmissionWait(duration time.Duration)
}

// NopLogger empty logger implementation
type NopLogger struct{}

func (*NopLogger) Debug(format string, args ...any) {}
func (*NopLogger) Info(format string, args ...any)  {}
func (*NopLogger) Warn(format string, args ...any)  {}
func (*NopLogger) Error(format string, args ...any) {}
func (*NopLogger) Fatal(format string, args ...any) {}

// NopMetrics empty metrics collector implementation
type NopMetrics struct{}

func (*NopMetrics) RecordHTTPRequest(route string, status int, duration time.Duration) {}
func (*NopMetrics) RecordCatalogFetch(mode string, err error, duration time.Duration)  {}
func (*NopMetrics) RecordCacheHit()                                                    {}
func (*NopMetrics) RecordCacheMiss()                                                   {}
func (*NopMetrics) RecordCacheShared()                                                 {}
func (*NopMetrics) RecordAdmissionWait(duration time.Duration)                         {}
