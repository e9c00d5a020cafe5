package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	BlobBackendGCS   = "gcs"
	BlobBackendLocal = "local"
)

// Config holds all configuration for the application.
type Config struct {
	Env      string
	Port     string
	LogLevel string

	// Classifier backend
	ClassifierURL     string
	ClassifierTimeout time.Duration

	// WhatsApp device store
	WADBPath string

	// Media storage
	BlobBackend        string
	GCSBucket          string
	GCSCredentialsFile string
	GCSPublicACL       bool
	MediaDir           string
	PublicBaseURL      string

	// Product gallery
	ImageFetchTimeout     time.Duration
	ImageFetchConcurrency int

	DatabaseURL string
	RedisURL    string
	DedupTTL    time.Duration

	// Per-chat inbound flood protection, 0 disables it
	ChatRatePerMinute float64
	ChatRateBurst     int

	// REST auth, disabled while JWTSecret is empty
	JWTSecret         string
	AdminUsername     string
	AdminPasswordHash string
}

// Load reads configuration from environment variables.
// A .env file is loaded first if present.
func Load() *Config {
	_ = godotenv.Load()

	classifierURL := getEnv("CLASSIFIER_URL", os.Getenv("OPENAI_API_URL"))

	return &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnv("PORT", "3000"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ClassifierURL:     strings.TrimRight(classifierURL, "/"),
		ClassifierTimeout: getDuration("CLASSIFIER_TIMEOUT", 60*time.Second),

		WADBPath: getEnv("WA_DB_PATH", "auth_info/whatsapp.db"),

		BlobBackend:        strings.ToLower(getEnv("BLOB_BACKEND", BlobBackendLocal)),
		GCSBucket:          os.Getenv("GCS_BUCKET"),
		GCSCredentialsFile: os.Getenv("GCS_CREDENTIALS_FILE"),
		GCSPublicACL:       getBool("GCS_PUBLIC_ACL", true),
		MediaDir:           getEnv("MEDIA_DIR", "media"),
		PublicBaseURL:      strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),

		ImageFetchTimeout:     getDuration("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		ImageFetchConcurrency: getInt("IMAGE_FETCH_CONCURRENCY", 4),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		DedupTTL:    getDuration("DEDUP_TTL", 10*time.Minute),

		ChatRatePerMinute: getFloat("CHAT_RATE_PER_MINUTE", 20),
		ChatRateBurst:     getInt("CHAT_RATE_BURST", 5),

		JWTSecret:         os.Getenv("JWT_SECRET"),
		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
	}
}

// Validate rejects combinations the process cannot start with
func (c *Config) Validate() error {
	var errs []error
	if c.ClassifierURL == "" {
		errs = append(errs, errors.New("CLASSIFIER_URL (or OPENAI_API_URL) is required"))
	}
	switch c.BlobBackend {
	case BlobBackendGCS:
		if c.GCSBucket == "" {
			errs = append(errs, errors.New("GCS_BUCKET is required when BLOB_BACKEND=gcs"))
		}
	case BlobBackendLocal:
		if c.MediaDir == "" {
			errs = append(errs, errors.New("MEDIA_DIR is required when BLOB_BACKEND=local"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown BLOB_BACKEND %q", c.BlobBackend))
	}
	if c.ImageFetchConcurrency < 1 {
		errs = append(errs, errors.New("IMAGE_FETCH_CONCURRENCY must be at least 1"))
	}
	if c.JWTSecret != "" && c.AdminPasswordHash == "" {
		errs = append(errs, errors.New("ADMIN_PASSWORD_HASH is required when JWT_SECRET is set"))
	}
	if c.Env == "production" && c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required in production"))
	}
	return errors.Join(errs...)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// MediaBaseURL is where locally stored media is reachable from outside
func (c *Config) MediaBaseURL() string {
	base := c.PublicBaseURL
	if base == "" {
		base = "http://localhost:" + c.Port
	}
	return base + "/media"
}

// NewLogger builds the process logger: console output in development, JSON otherwise.
func NewLogger(cfg *Config) zerolog.Logger {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg *Config, out io.Writer) zerolog.Logger {
	if cfg.IsDevelopment() {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

// getDuration accepts Go durations ("30s") or plain seconds
func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
