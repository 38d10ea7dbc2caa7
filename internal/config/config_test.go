package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvSharedSecret, "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, PolicyRegex, cfg.ClassifierPolicy)
	assert.Equal(t, 3, cfg.TimezoneOffsetHours)
	assert.Equal(t, DriverSQLite, cfg.StorageDriver)
	assert.Equal(t, "akdeniz_cse_db", cfg.MongoDBName)
	assert.Equal(t, 30*time.Minute, cfg.SyncInterval)
	assert.Equal(t, StorageLookup, cfg.StorageTimeout)
	assert.Equal(t, Generation, cfg.GenerationTimeout)
	assert.False(t, cfg.HasLLMProvider())
	assert.False(t, cfg.HasTeams())
	assert.False(t, cfg.HasLINE())
	assert.False(t, cfg.HasArchive())
	assert.Zero(t, cfg.RateLimitDaily)
	assert.Equal(t, "state/sync.json", cfg.R2StateKey)
	assert.Equal(t, "locks/ingest.json", cfg.R2LockKey)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv(EnvSharedSecret, "s3cret")
	t.Setenv(EnvClassifierPolicy, "FUZZY")
	t.Setenv(EnvSyncInterval, "1800")
	t.Setenv(EnvGenerationTimeout, "15s")
	t.Setenv(EnvLLMProviders, "Groq, gemini,,")
	t.Setenv(EnvCORSAllowedOrigins, "https://chat.example.edu")
	t.Setenv(EnvGeminiAPIKey, "key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, PolicyFuzzy, cfg.ClassifierPolicy)
	assert.Equal(t, 30*time.Minute, cfg.SyncInterval)
	assert.Equal(t, 15*time.Second, cfg.GenerationTimeout)
	assert.Equal(t, []string{"groq", "gemini"}, cfg.LLMProviders)
	assert.Equal(t, []string{"https://chat.example.edu"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.HasLLMProvider())
}

func TestLoadForMode(t *testing.T) {
	tests := []struct {
		name        string
		mode        ValidationMode
		env         map[string]string
		wantErr     bool
		errContains string
	}{
		{
			name:        "server mode requires shared secret",
			mode:        ServerMode,
			wantErr:     true,
			errContains: EnvSharedSecret,
		},
		{
			name: "ingest mode does not require shared secret",
			mode: IngestMode,
		},
		{
			name:        "unknown classifier policy",
			mode:        IngestMode,
			env:         map[string]string{EnvClassifierPolicy: "llm"},
			wantErr:     true,
			errContains: EnvClassifierPolicy,
		},
		{
			name:        "unknown storage driver",
			mode:        IngestMode,
			env:         map[string]string{EnvStorageDriver: "postgres"},
			wantErr:     true,
			errContains: EnvStorageDriver,
		},
		{
			name:        "LINE credentials must be paired",
			mode:        ServerMode,
			env:         map[string]string{EnvSharedSecret: "x", EnvLineChannelSecret: "only-secret"},
			wantErr:     true,
			errContains: EnvLineChannelToken,
		},
		{
			name:        "negative daily limit",
			mode:        ServerMode,
			env:         map[string]string{EnvSharedSecret: "x", EnvRateLimitDaily: "-1"},
			wantErr:     true,
			errContains: EnvRateLimitDaily,
		},
		{
			name: "daily limit only checked for the server",
			mode: IngestMode,
			env:  map[string]string{EnvRateLimitDaily: "-1"},
		},
		{
			name:        "timezone out of range",
			mode:        IngestMode,
			env:         map[string]string{EnvTimezoneOffsetHours: "20"},
			wantErr:     true,
			errContains: EnvTimezoneOffsetHours,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadForMode(tt.mode)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestFixedLocation(t *testing.T) {
	t.Parallel()

	loc := FixedLocation(3)
	assert.Equal(t, "UTC+3", loc.String())

	noon := time.Date(2025, 10, 20, 22, 30, 0, 0, time.UTC).In(loc)
	assert.Equal(t, 21, noon.Day(), "22:30 UTC is already the next day at UTC+3")
}

func TestLoadCourseMap(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	t.Run("missing file yields empty map", func(t *testing.T) {
		t.Parallel()
		m, err := LoadCourseMap(filepath.Join(dir, "absent.json"))
		require.NoError(t, err)
		assert.Equal(t, 0, m.Len())
	})

	t.Run("valid file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(dir, "courses.json")
		body := `{"Algoritma": {"team_id": "t-1", "channel_id": "c-1"}, "Veri Yapıları": {"team_id": "t-2", "channel_id": "c-2"}}`
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

		m, err := LoadCourseMap(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"Algoritma", "Veri Yapıları"}, m.Courses())

		ch, ok := m.Lookup("Algoritma")
		require.True(t, ok)
		assert.Equal(t, CourseChannel{TeamID: "t-1", ChannelID: "c-1"}, ch)
	})

	t.Run("malformed json", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(dir, "broken.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"Algoritma":`), 0o600))
		_, err := LoadCourseMap(path)
		require.Error(t, err)
	})

	t.Run("incomplete entry", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(dir, "partial.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"Physics": {"team_id": "t"}}`), 0o600))
		_, err := LoadCourseMap(path)
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "Physics"))
	})
}

func TestCourseMap_ResolveKey(t *testing.T) {
	t.Parallel()

	m := NewCourseMap(map[string]CourseChannel{
		"Veri Yapıları": {TeamID: "t", ChannelID: "c"},
		"Matematik":     {TeamID: "t", ChannelID: "c"},
	})

	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{"matematik", "Matematik", true},
		{"  MATEMATIK ", "Matematik", true},
		{"veri yapıları", "Veri Yapıları", true},
		{"algo", "Algoritma", true},
		{"Algorithm", "Algorithm", true},
		{"physics", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, ok := m.ResolveKey(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, configured := m.Lookup("Algoritma")
	assert.False(t, configured, "alias target need not be configured")
}
