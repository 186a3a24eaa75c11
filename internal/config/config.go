// Package config loads application configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dinomatic/media/internal/logging"
	"github.com/dinomatic/media/internal/namespace"
	"github.com/dinomatic/media/internal/storage"
)

// Config holds all runtime configuration for the service.
type Config struct {
	Port   string
	AppEnv string

	// Mutations and queries require either APIKey in X-API-Key or a Bearer
	// token signed with JWTSecret. Empty values disable that scheme.
	APIKey    string
	JWTSecret string

	LogLevel  string
	LogFormat string

	// Object storage (MinIO locally, any S3-compatible provider or AWS in production)
	StorageDriver     string
	StorageEndpoint   string
	StorageAccessKey  string
	StorageSecretKey  string
	StorageBucket     string
	StorageRegion     string
	StorageUseSSL     bool
	StoragePublicBase string // browser-accessible base URL, e.g. "http://localhost:9000/media"

	TreeCache        namespace.Policy
	TreeCacheTTL     time.Duration
	TreeBuildTimeout time.Duration
	MaxUploadBytes   int64
	CORSOrigins      []string
}

// Load reads configuration from a .env file (if present) and environment variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logging.Debug("no .env file found, reading from environment")
	}

	return &Config{
		Port:   getEnv("PORT", "8080"),
		AppEnv: getEnv("APP_ENV", "development"),

		APIKey:    getEnv("API_KEY", ""),
		JWTSecret: getEnv("JWT_SECRET", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		StorageDriver:     getEnv("STORAGE_DRIVER", "minio"),
		StorageEndpoint:   getEnv("STORAGE_ENDPOINT", "localhost:9000"),
		StorageAccessKey:  getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
		StorageSecretKey:  getEnv("STORAGE_SECRET_KEY", "minioadmin"),
		StorageBucket:     getEnv("STORAGE_BUCKET", "media"),
		StorageRegion:     getEnv("STORAGE_REGION", "us-east-1"),
		StorageUseSSL:     getEnv("STORAGE_USE_SSL", "false") == "true",
		StoragePublicBase: getEnv("STORAGE_PUBLIC_BASE", "http://localhost:9000/media"),

		TreeCache:        namespace.ParsePolicy(getEnv("TREE_CACHE", "request")),
		TreeCacheTTL:     getDuration("TREE_CACHE_TTL", 0),
		TreeBuildTimeout: getDuration("TREE_BUILD_TIMEOUT", 30*time.Second),
		MaxUploadBytes:   getInt64("MAX_UPLOAD_BYTES", 25<<20),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "*")),
	}
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Storage returns the object store settings.
func (c *Config) Storage() storage.Config {
	return storage.Config{
		Driver:     c.StorageDriver,
		Endpoint:   c.StorageEndpoint,
		AccessKey:  c.StorageAccessKey,
		SecretKey:  c.StorageSecretKey,
		Bucket:     c.StorageBucket,
		Region:     c.StorageRegion,
		UseSSL:     c.StorageUseSSL,
		PublicBase: c.StoragePublicBase,
	}
}

// Logging returns the logger settings.
func (c *Config) Logging() logging.Config {
	return logging.Config{Level: c.LogLevel, Format: c.LogFormat}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logging.Warn("invalid duration, using default", logging.String("key", key), logging.String("value", v))
		return fallback
	}
	return d
}

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		logging.Warn("invalid integer, using default", logging.String("key", key), logging.String("value", v))
		return fallback
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
