package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all agent configuration.
type Config struct {
	ListenAddr string
	GinMode    string
	LogLevel   string
	LogFormat  string
	// StorePath is the bbolt file holding sealed attempt snapshots.
	StorePath string
	// SnapshotSecret derives the key that seals snapshots at rest. A
	// candidate who edits the store file cannot extend their deadline.
	SnapshotSecret string
	// AttemptTokenSecret verifies the platform-issued attempt token.
	AttemptTokenSecret string
	// PlatformBaseURL is the scoring endpoint root, e.g.
	// https://exam.example.sch.id/api/v1.
	PlatformBaseURL  string
	SubmitTimeout    time.Duration
	AutosaveInterval time.Duration
	TickInterval     time.Duration
	// AllowedOrigins controls HTTP CORS and WebSocket origin validation
	// for the loopback UI. Empty slice means all origins are permitted
	// (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // Ignore error — .env is optional

	return &Config{
		ListenAddr:         getEnv("LISTEN_ADDR", "127.0.0.1:7125"),
		GinMode:            getEnv("GIN_MODE", "debug"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "pretty"),
		StorePath:          getEnv("STORE_PATH", "./exstem-agent.db"),
		SnapshotSecret:     getEnv("SNAPSHOT_SECRET", "change-this-to-a-secure-random-string"),
		AttemptTokenSecret: getEnv("ATTEMPT_TOKEN_SECRET", "change-this-to-the-platform-secret"),
		PlatformBaseURL:    getEnv("PLATFORM_BASE_URL", "http://localhost:8080/api/v1"),
		SubmitTimeout:      time.Duration(getEnvInt("SUBMIT_TIMEOUT_SECONDS", 30)) * time.Second,
		AutosaveInterval:   time.Duration(getEnvInt("AUTOSAVE_INTERVAL_SECONDS", 10)) * time.Second,
		TickInterval:       time.Duration(getEnvInt("TICK_INTERVAL_MS", 1000)) * time.Millisecond,
		AllowedOrigins:     parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
