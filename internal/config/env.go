package config

// DefaultPort is the HTTP port when PORT is unset.
const DefaultPort = "8000"

// Environment variable keys. Names follow the deployment's existing .env files.
//
//nolint:gosec // keys, not credentials
const (
	// Server
	EnvPort               = "PORT"
	EnvLogLevel           = "LOG_LEVEL"
	EnvShutdownTimeout    = "SHUTDOWN_TIMEOUT"
	EnvSharedSecret       = "SHARED_SECRET"
	EnvCORSAllowedOrigins = "CORS_ALLOWED_ORIGINS"
	EnvRateLimitRPS       = "RATE_LIMIT_RPS"
	EnvRateLimitBurst     = "RATE_LIMIT_BURST"
	EnvRateLimitDaily     = "RATE_LIMIT_DAILY"

	// Chat pipeline
	EnvClassifierPolicy    = "CLASSIFIER_POLICY"
	EnvTimezoneOffsetHours = "TIMEZONE_OFFSET_HOURS"
	EnvCourseMapPath       = "COURSE_MAP_PATH"
	EnvStorageTimeout      = "STORAGE_TIMEOUT"
	EnvTeamsTimeout        = "TEAMS_TIMEOUT"
	EnvGenerationTimeout   = "GENERATION_TIMEOUT"

	// Storage
	EnvStorageDriver = "STORAGE_DRIVER"
	EnvDataDir       = "DATA_DIR"
	EnvMongoURI      = "MONGO_CONNECTION_STRING"
	EnvMongoDBName   = "MONGO_DB_NAME"

	// LLM
	EnvLLMProviders           = "LLM_PROVIDERS"
	EnvGeminiAPIKey           = "GEMINI_API_KEY"
	EnvGeminiModel            = "GEMINI_MODEL"
	EnvGroqAPIKey             = "GROQ_API_KEY"
	EnvGroqModel              = "GROQ_MODEL"
	EnvSummarizeAnnouncements = "SUMMARIZE_ANNOUNCEMENTS"

	// Microsoft Teams (Graph API, client credentials)
	EnvAzureTenantID     = "AZURE_TENANT_ID"
	EnvAzureClientID     = "AZURE_CLIENT_ID"
	EnvAzureClientSecret = "AZURE_CLIENT_SECRET"
	EnvTeamsCacheTTL     = "TEAMS_CACHE_TTL"

	// Ingestion
	EnvScraperTimeout      = "SCRAPER_TIMEOUT"
	EnvScraperMaxRetries   = "SCRAPER_MAX_RETRIES"
	EnvCSEAnnouncementsURL = "CSE_ANNOUNCEMENTS_URL"
	EnvDiningMenuURL       = "DINING_MENU_URL"
	EnvSyncEnabled         = "SYNC_ENABLED"
	EnvSyncInterval        = "SYNC_INTERVAL"

	// LINE delivery
	EnvLineChannelSecret = "LINE_CHANNEL_SECRET"
	EnvLineChannelToken  = "LINE_CHANNEL_ACCESS_TOKEN"

	// Archive (Cloudflare R2 or any S3-compatible bucket)
	EnvR2Endpoint        = "R2_ENDPOINT"
	EnvR2AccessKeyID     = "R2_ACCESS_KEY_ID"
	EnvR2SecretAccessKey = "R2_SECRET_ACCESS_KEY"
	EnvR2BucketName      = "R2_BUCKET_NAME"
	EnvR2ArchiveKey      = "R2_ARCHIVE_KEY"
	EnvR2StateKey        = "R2_STATE_KEY"
	EnvR2LockKey         = "R2_LOCK_KEY"

	// Observability
	EnvMetricsUsername     = "METRICS_USERNAME"
	EnvMetricsPassword     = "METRICS_PASSWORD"
	EnvSentryToken         = "SENTRY_TOKEN"
	EnvSentryHost          = "SENTRY_HOST"
	EnvSentryEnvironment   = "SENTRY_ENVIRONMENT"
	EnvSentrySampleRate    = "SENTRY_SAMPLE_RATE"
	EnvBetterStackToken    = "BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "BETTERSTACK_ENDPOINT"
)
