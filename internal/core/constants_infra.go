package core

import "time"

// HTTP client config constants
const (
	HTTPMaxIdleConns          = 100
	HTTPMaxIdleConnsPerHost   = 20
	HTTPMaxConnsPerHost       = 50
	HTTPIdleConnTimeout       = 90 * time.Second
	HTTPTLSHandshakeTimeout   = 10 * time.Second
	HTTPResponseHeaderTimeout = 60 * time.Second
	HTTPExpectContinueTimeout = 1 * time.Second
	HTTPRequestTimeout        = 10 * time.Minute
)

// Catalog cache constants
const (
	CatalogFetchTimeout  = 30 * time.Second
	ConfigReloadDebounce = 200 * time.Millisecond
	CatalogLegacyLocale  = "zh-Hant"
)

// Admission gate constants
const (
	DefaultRateLimitMS    = 100
	AdmissionSafetyMargin = 60 * time.Second
)

// Stats and monitoring constants
const (
	StatsFilePath        = "stats.json"
	StatsRedisKey        = "poe2openai:stats"
	MinSaveInterval      = 5 * time.Second
	HistoryBufferSize    = 1000
	HistoryBatchSize     = 100
	HistoryFlushInterval = 100 * time.Millisecond
)

// Request body limits
const (
	DefaultMaxRequestSize = 1 << 30
	MaxResponseBodySize   = 10 * 1024 * 1024
	MaxErrorBodyLogLength = 512
)

// Logging config constants
const (
	MaxLogFilePathLength = 260
	LogFileMaxSizeMB     = 50
	LogFileMaxBackups    = 5
	LogFileMaxAgeDays    = 14
)

// File permission constants
const (
	FilePermissionReadWrite = 0644
)

// Time format constants
const (
	TimeFormatDateTime = "2006-01-02 15:04:05"
)
