package config

import (
	"os"
	"strconv"
	"time"
)

// DatabaseConfig holds PostgreSQL connection settings for the relational
// ledger backend.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// GatewayConfig holds settings for the S3-compatible permaweb gateway the
// upload connections talk to. PublicBaseURL is the prefix public URLs are
// derived from (base + "/" + transaction id).
type GatewayConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
}

// UploadConfig bounds the validation and orchestration pipeline.
// Per-category size ceilings are each additionally capped by MaxSizeBytes;
// the effective limit is the minimum of the two.
type UploadConfig struct {
	MaxSizeBytes         int64
	MaxImageSizeBytes    int64
	MaxVideoSizeBytes    int64
	MaxAudioSizeBytes    int64
	MaxDocumentSizeBytes int64
	PoolMaxConnections   int
	Timeout              time.Duration
	TempDir              string
}

// RateLimitConfig holds the sliding-window admission parameters.
type RateLimitConfig struct {
	Ceiling int
	Window  time.Duration
	Store   string // memory | redis | ledger
}

// RedisConfig holds connection settings for the optional Redis-backed
// rate-limit window store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost        string
	Port           string
	LedgerBackend  string // postgres | jsonfile
	LedgerFile     string
	MetricsEnabled bool
	Database       DatabaseConfig
	Gateway        GatewayConfig
	Upload         UploadConfig
	RateLimit      RateLimitConfig
	Redis          RedisConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:        getEnv("APP_HOST", "localhost:8080"),
		Port:           getEnv("PORT", "8080"),
		LedgerBackend:  getEnv("LEDGER_BACKEND", "postgres"),
		LedgerFile:     getEnv("LEDGER_FILE_PATH", "data/ledger.json"),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		Gateway: GatewayConfig{
			Endpoint:      getEnv("GATEWAY_ENDPOINT", ""),
			AccessKey:     getEnv("GATEWAY_ACCESS_KEY", ""),
			SecretKey:     getEnv("GATEWAY_SECRET_KEY", ""),
			Bucket:        getEnv("GATEWAY_BUCKET", ""),
			UseSSL:        getEnvBool("GATEWAY_USE_SSL", false),
			PublicBaseURL: getEnv("GATEWAY_PUBLIC_BASE_URL", "https://arweave.net"),
		},
		Upload: UploadConfig{
			MaxSizeBytes:         getEnvInt64("MAX_UPLOAD_SIZE", 100<<20),
			MaxImageSizeBytes:    getEnvInt64("MAX_IMAGE_SIZE", 10<<20),
			MaxVideoSizeBytes:    getEnvInt64("MAX_VIDEO_SIZE", 100<<20),
			MaxAudioSizeBytes:    getEnvInt64("MAX_AUDIO_SIZE", 50<<20),
			MaxDocumentSizeBytes: getEnvInt64("MAX_DOCUMENT_SIZE", 25<<20),
			PoolMaxConnections:   getEnvInt("POOL_MAX_CONNECTIONS", 5),
			Timeout:              getEnvDurationMs("UPLOAD_TIMEOUT_MS", 60*time.Second),
			TempDir:              getEnv("TEMP_DIR", os.TempDir()),
		},
		RateLimit: RateLimitConfig{
			Ceiling: getEnvInt("RATE_LIMIT_CEILING", 60),
			Window:  getEnvDurationMs("RATE_LIMIT_WINDOW_MS", time.Minute),
			Store:   getEnv("RATE_STORE", "memory"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvDurationMs reads a duration expressed as integer milliseconds.
func getEnvDurationMs(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}
