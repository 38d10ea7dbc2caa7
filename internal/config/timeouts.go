package config

import "time"

// Per-call timeouts for the chat pipeline's collaborators. Each outbound call
// runs under its own deadline; an expired deadline is handled like any other
// collaborator failure.
const (
	// StorageLookup bounds a single dining or announcement query.
	StorageLookup = 10 * time.Second

	// TeamsFetch bounds token acquisition plus one channel messages request.
	TeamsFetch = 10 * time.Second

	// Generation bounds one LLM completion, retries included.
	Generation = 30 * time.Second
)

// HTTP server timeouts
const (
	HTTPRead  = 10 * time.Second
	HTTPWrite = 65 * time.Second
	HTTPIdle  = 120 * time.Second

	// LineReplyProcessing bounds answering one LINE event after the webhook
	// has already been acknowledged.
	LineReplyProcessing = 60 * time.Second
)

// Scraper timeouts
const (
	// ScraperRequest is the timeout for a single HTTP request to university sites.
	ScraperRequest = 30 * time.Second

	// ScraperRetryInitial is the first backoff delay; later delays double.
	ScraperRetryInitial = 2 * time.Second

	// ScraperRetryMax caps a single backoff delay.
	ScraperRetryMax = 30 * time.Second
)

// Database timeouts
const (
	// DatabaseBusyTimeout is the SQLite busy_timeout pragma value.
	DatabaseBusyTimeout = 30 * time.Second

	// DatabaseConnMaxLifetime recycles pooled connections.
	DatabaseConnMaxLifetime = time.Hour

	// MongoConnect bounds the initial MongoDB connection and ping.
	MongoConnect = 10 * time.Second
)

// Background jobs
const (
	// DefaultSyncInterval is the crawl cadence when SYNC_INTERVAL is unset.
	DefaultSyncInterval = 30 * time.Minute

	// SyncRunTimeout bounds a full ingestion pass.
	SyncRunTimeout = 10 * time.Minute

	// ArchiveTimeout bounds an archive upload or restore.
	ArchiveTimeout = 2 * time.Minute

	// ReadinessCheckTimeout bounds the /readyz storage ping.
	ReadinessCheckTimeout = 3 * time.Second

	// RateLimiterCleanupInterval is how often idle rate-limit buckets are evicted.
	RateLimiterCleanupInterval = 5 * time.Minute

	// GracefulShutdown is the default shutdown budget.
	GracefulShutdown = 30 * time.Second
)
