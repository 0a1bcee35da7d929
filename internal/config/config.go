package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"formaflix-backend/internal/stream"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL   string
	MigrationsDir string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Streaming platform
	StreamAccountID          string
	StreamAPIToken           string
	StreamSigningKey         string
	StreamSigningKeyID       string
	StreamWebhookSecret      string
	StreamCustomerDomain     string
	StreamRequireSigned      bool
	StreamMaxDurationSeconds int
	StreamDirectUploadMaxMB  int
	StreamTusChunkMB         int

	// Playback token lifetime
	PlaybackTokenTTL time.Duration

	// Background refresh; zero disables the scheduler
	StreamRefreshInterval time.Duration

	// Workers
	WorkerCount int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:          getEnvOrDefault("PORT", "8080"),
		Env:           getEnvOrDefault("ENV", "development"),
		DatabaseURL:   mustGetEnv("DATABASE_URL"),
		MigrationsDir: getEnvOrDefault("MIGRATIONS_DIR", "./migrations"),
		RedisURL:      mustGetEnv("REDIS_URL"),
		JWTSecret:     mustGetEnv("JWT_SECRET"),

		StreamAccountID:          mustGetEnv("CF_STREAM_ACCOUNT_ID"),
		StreamAPIToken:           mustGetEnv("CF_STREAM_API_TOKEN"),
		StreamSigningKey:         getEnvOrDefault("CF_STREAM_SIGNING_KEY", ""),
		StreamSigningKeyID:       getEnvOrDefault("CF_STREAM_SIGNING_KID", ""),
		StreamWebhookSecret:      mustGetEnv("CF_STREAM_WEBHOOK_SECRET"),
		StreamCustomerDomain:     getEnvOrDefault("CF_STREAM_CUSTOMER_DOMAIN", ""),
		StreamRequireSigned:      getEnvAsBoolOrDefault("CF_STREAM_REQUIRE_SIGNED", true),
		StreamMaxDurationSeconds: getEnvAsIntOrDefault("CF_STREAM_MAX_DURATION_SECONDS", 14400),
		StreamDirectUploadMaxMB:  getEnvAsIntOrDefault("CF_STREAM_DIRECT_UPLOAD_MAX_MB", 180),
		StreamTusChunkMB:         getEnvAsIntOrDefault("CF_STREAM_TUS_CHUNK_MB", 50),

		PlaybackTokenTTL:      getEnvAsDurationOrDefault("PLAYBACK_TOKEN_TTL", time.Hour),
		StreamRefreshInterval: getEnvAsDurationOrDefault("STREAM_REFRESH_INTERVAL", 10*time.Minute),

		WorkerCount: getEnvAsIntOrDefault("WORKER_COUNT", 3),

		FrontendURL: getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

// StreamConfig assembles the settings the stream package consumes.
func (c *Config) StreamConfig() *stream.Config {
	return &stream.Config{
		AccountID:            c.StreamAccountID,
		APIToken:             c.StreamAPIToken,
		SigningKey:           c.StreamSigningKey,
		SigningKeyID:         c.StreamSigningKeyID,
		WebhookSecret:        c.StreamWebhookSecret,
		CustomerDomain:       c.StreamCustomerDomain,
		RequireSignedDefault: c.StreamRequireSigned,
		MaxDurationSeconds:   c.StreamMaxDurationSeconds,
		DirectUploadMaxBytes: int64(c.StreamDirectUploadMaxMB) * 1024 * 1024,
		ChunkSizeBytes:       int64(c.StreamTusChunkMB) * 1024 * 1024,
	}
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

// getEnvAsDurationOrDefault accepts Go duration strings ("10m", "1h30m").
// "0" disables interval-driven features.
func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if val == "0" {
		return 0
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
