package config

import "time"

// Query timeouts
const (
	DefaultQueryTimeout = 10 * time.Second
	BatchWriteTimeout   = 30 * time.Second
	TransactionTimeout  = 45 * time.Second
)

// Import pipeline
const (
	DefaultBatchSize      = 50
	MaxBatchSize          = 200
	LargeImportThreshold  = 150
	InterBatchDelay       = 200 * time.Millisecond
	RateLimitInitialDelay = 2 * time.Second
	RateLimitMaxDelay     = 60 * time.Second
	MaxBatchRetries       = 3
)

// Cache behavior
const (
	MaxCachedAlbums     = 64
	StickerCacheTTL     = 2 * time.Minute
	RefreshMinInterval  = 30 * time.Second
	CacheRetryDelay     = 5 * time.Second
	EventDebounceWindow = time.Second
)

// Connectivity monitor
const (
	ConnectivityInterval = 15 * time.Second
	ConnectivityTimeout  = 5 * time.Second
)

// Local mirror
const (
	StoreWriteTimeout = 3 * time.Second
)
