// Package config provides application configuration management.
// It loads settings from environment variables (optionally via a .env file),
// applies defaults, and validates them for the server or ingest binaries.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ValidationMode selects which settings are mandatory.
type ValidationMode int

const (
	// ServerMode validates everything the HTTP service needs.
	ServerMode ValidationMode = iota
	// IngestMode validates only what a one-shot ingestion pass needs.
	IngestMode
)

// Classifier policies
const (
	PolicyRegex = "regex"
	PolicyFuzzy = "fuzzy"
)

// Storage drivers
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port               string
	LogLevel           string
	ShutdownTimeout    time.Duration
	SharedSecret       string   // x-auth value every caller must present
	CORSAllowedOrigins []string // empty = allow all origins
	RateLimitRPS       float64  // per caller (user ID or IP)
	RateLimitBurst     int
	RateLimitDaily     int // per caller per rolling 24h; 0 disables

	// Chat pipeline
	ClassifierPolicy    string // "regex" or "fuzzy"
	TimezoneOffsetHours int    // fixed offset used for "today" and "tomorrow"
	CourseMapPath       string
	StorageTimeout      time.Duration
	TeamsTimeout        time.Duration
	GenerationTimeout   time.Duration

	// Storage
	StorageDriver string // "sqlite" or "mongo"
	DataDir       string
	MongoURI      string
	MongoDBName   string

	// LLM
	LLMProviders           []string // provider order, e.g. ["gemini", "groq"]
	GeminiAPIKey           string
	GeminiModel            string
	GroqAPIKey             string
	GroqModel              string
	SummarizeAnnouncements bool

	// Microsoft Teams
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string
	TeamsCacheTTL     time.Duration

	// Ingestion
	ScraperTimeout      time.Duration
	ScraperMaxRetries   int
	CSEAnnouncementsURL string
	DiningMenuURL       string
	SyncEnabled         bool
	SyncInterval        time.Duration

	// LINE delivery (optional)
	LineChannelSecret string
	LineChannelToken  string

	// Archive (optional)
	R2Endpoint        string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2ArchiveKey      string
	R2StateKey        string // sync state shared by replicas
	R2LockKey         string // ingestion lock shared by replicas

	// Observability
	MetricsUsername     string
	MetricsPassword     string
	SentryToken         string
	SentryHost          string
	SentryEnvironment   string
	SentrySampleRate    float64
	BetterStackToken    string
	BetterStackEndpoint string
}

// Load reads the server configuration.
func Load() (*Config, error) {
	return LoadForMode(ServerMode)
}

// LoadForMode reads configuration from the environment, loading .env first
// when present, and validates it for mode.
func LoadForMode(mode ValidationMode) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv(EnvPort, DefaultPort),
		LogLevel:           getEnv(EnvLogLevel, "info"),
		ShutdownTimeout:    getDurationEnv(EnvShutdownTimeout, GracefulShutdown),
		SharedSecret:       getEnv(EnvSharedSecret, ""),
		CORSAllowedOrigins: getListEnv(EnvCORSAllowedOrigins),
		RateLimitRPS:       getFloatEnv(EnvRateLimitRPS, 1.0),
		RateLimitBurst:     getIntEnv(EnvRateLimitBurst, 10),
		RateLimitDaily:     getIntEnv(EnvRateLimitDaily, 0),

		ClassifierPolicy:    strings.ToLower(getEnv(EnvClassifierPolicy, PolicyRegex)),
		TimezoneOffsetHours: getIntEnv(EnvTimezoneOffsetHours, 3),
		CourseMapPath:       getEnv(EnvCourseMapPath, filepath.Join("config", "courses.json")),
		StorageTimeout:      getDurationEnv(EnvStorageTimeout, StorageLookup),
		TeamsTimeout:        getDurationEnv(EnvTeamsTimeout, TeamsFetch),
		GenerationTimeout:   getDurationEnv(EnvGenerationTimeout, Generation),

		StorageDriver: strings.ToLower(getEnv(EnvStorageDriver, DriverSQLite)),
		DataDir:       getEnv(EnvDataDir, "./data"),
		MongoURI:      getEnv(EnvMongoURI, "mongodb://localhost:27017"),
		MongoDBName:   getEnv(EnvMongoDBName, "akdeniz_cse_db"),

		LLMProviders:           getListEnv(EnvLLMProviders),
		GeminiAPIKey:           getEnv(EnvGeminiAPIKey, ""),
		GeminiModel:            getEnv(EnvGeminiModel, ""),
		GroqAPIKey:             getEnv(EnvGroqAPIKey, ""),
		GroqModel:              getEnv(EnvGroqModel, ""),
		SummarizeAnnouncements: getBoolEnv(EnvSummarizeAnnouncements, false),

		AzureTenantID:     getEnv(EnvAzureTenantID, ""),
		AzureClientID:     getEnv(EnvAzureClientID, ""),
		AzureClientSecret: getEnv(EnvAzureClientSecret, ""),
		TeamsCacheTTL:     getDurationEnv(EnvTeamsCacheTTL, time.Minute),

		ScraperTimeout:      getDurationEnv(EnvScraperTimeout, ScraperRequest),
		ScraperMaxRetries:   getIntEnv(EnvScraperMaxRetries, 3),
		CSEAnnouncementsURL: getEnv(EnvCSEAnnouncementsURL, "https://cse.akdeniz.edu.tr/tr/duyurular"),
		DiningMenuURL:       getEnv(EnvDiningMenuURL, "https://sks.akdeniz.edu.tr/tr/haftalik_yemek_listesi-6391"),
		SyncEnabled:         getBoolEnv(EnvSyncEnabled, true),
		SyncInterval:        getDurationEnv(EnvSyncInterval, DefaultSyncInterval),

		LineChannelSecret: getEnv(EnvLineChannelSecret, ""),
		LineChannelToken:  getEnv(EnvLineChannelToken, ""),

		R2Endpoint:        getEnv(EnvR2Endpoint, ""),
		R2AccessKeyID:     getEnv(EnvR2AccessKeyID, ""),
		R2SecretAccessKey: getEnv(EnvR2SecretAccessKey, ""),
		R2BucketName:      getEnv(EnvR2BucketName, ""),
		R2ArchiveKey:      getEnv(EnvR2ArchiveKey, "archive/latest.json.zst"),
		R2StateKey:        getEnv(EnvR2StateKey, "state/sync.json"),
		R2LockKey:         getEnv(EnvR2LockKey, "locks/ingest.json"),

		MetricsUsername:     getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword:     getEnv(EnvMetricsPassword, ""),
		SentryToken:         getEnv(EnvSentryToken, ""),
		SentryHost:          getEnv(EnvSentryHost, ""),
		SentryEnvironment:   getEnv(EnvSentryEnvironment, "production"),
		SentrySampleRate:    getFloatEnv(EnvSentrySampleRate, 1.0),
		BetterStackToken:    getEnv(EnvBetterStackToken, ""),
		BetterStackEndpoint: getEnv(EnvBetterStackEndpoint, ""),
	}

	if err := cfg.ValidateForMode(mode); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the server configuration.
func (c *Config) Validate() error {
	return c.ValidateForMode(ServerMode)
}

// ValidateForMode checks the settings mode depends on and joins every problem
// into one error.
func (c *Config) ValidateForMode(mode ValidationMode) error {
	var errs []error

	if mode == ServerMode {
		if c.SharedSecret == "" {
			errs = append(errs, fmt.Errorf("%s is required", EnvSharedSecret))
		}
		if c.Port == "" {
			errs = append(errs, fmt.Errorf("%s is required", EnvPort))
		}
		if c.RateLimitRPS <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvRateLimitRPS, c.RateLimitRPS))
		}
		if c.RateLimitDaily < 0 {
			errs = append(errs, fmt.Errorf("%s cannot be negative, got %d", EnvRateLimitDaily, c.RateLimitDaily))
		}
		if (c.LineChannelSecret == "") != (c.LineChannelToken == "") {
			errs = append(errs, fmt.Errorf("%s and %s must be set together", EnvLineChannelSecret, EnvLineChannelToken))
		}
	}

	switch c.ClassifierPolicy {
	case PolicyRegex, PolicyFuzzy:
	default:
		errs = append(errs, fmt.Errorf("%s must be %q or %q, got %q", EnvClassifierPolicy, PolicyRegex, PolicyFuzzy, c.ClassifierPolicy))
	}

	switch c.StorageDriver {
	case DriverSQLite:
		if c.DataDir == "" {
			errs = append(errs, fmt.Errorf("%s is required for the sqlite driver", EnvDataDir))
		}
	case DriverMongo:
		if c.MongoURI == "" || c.MongoDBName == "" {
			errs = append(errs, fmt.Errorf("%s and %s are required for the mongo driver", EnvMongoURI, EnvMongoDBName))
		}
	default:
		errs = append(errs, fmt.Errorf("%s must be %q or %q, got %q", EnvStorageDriver, DriverSQLite, DriverMongo, c.StorageDriver))
	}

	if c.TimezoneOffsetHours < -12 || c.TimezoneOffsetHours > 14 {
		errs = append(errs, fmt.Errorf("%s out of range: %d", EnvTimezoneOffsetHours, c.TimezoneOffsetHours))
	}

	for name, d := range map[string]time.Duration{
		EnvStorageTimeout:    c.StorageTimeout,
		EnvTeamsTimeout:      c.TeamsTimeout,
		EnvGenerationTimeout: c.GenerationTimeout,
		EnvScraperTimeout:    c.ScraperTimeout,
		EnvSyncInterval:      c.SyncInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", name, d))
		}
	}
	if c.ScraperMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %d", EnvScraperMaxRetries, c.ScraperMaxRetries))
	}

	return errors.Join(errs...)
}

// Location returns the fixed zone used for date-relative questions.
func (c *Config) Location() *time.Location {
	return FixedLocation(c.TimezoneOffsetHours)
}

// FixedLocation returns a zone named like "UTC+3" with the given hour offset.
func FixedLocation(offsetHours int) *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", offsetHours), offsetHours*60*60)
}

// SQLitePath returns the full path to the SQLite database file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "chatbot.db")
}

// HasLLMProvider reports whether at least one generation provider has a key.
func (c *Config) HasLLMProvider() bool {
	return c.GeminiAPIKey != "" || c.GroqAPIKey != ""
}

// HasTeams reports whether Graph client credentials are complete.
func (c *Config) HasTeams() bool {
	return c.AzureTenantID != "" && c.AzureClientID != "" && c.AzureClientSecret != ""
}

// HasLINE reports whether the LINE webhook should be mounted.
func (c *Config) HasLINE() bool {
	return c.LineChannelSecret != "" && c.LineChannelToken != ""
}

// HasArchive reports whether the R2 archive is configured.
func (c *Config) HasArchive() bool {
	return c.R2Endpoint != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" && c.R2BucketName != ""
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv accepts Go durations ("30m") or plain seconds ("1800").
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getListEnv splits a comma-separated value, dropping blanks.
func getListEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}
