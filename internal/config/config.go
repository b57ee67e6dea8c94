package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const DefaultMaxUploadBytes int64 = 16 << 20

type Config struct {
	DBDriver      string
	DBDSN         string
	ServerPort    string
	SessionSecret string

	StorageBackend string
	UploadDir      string
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string

	MaxUploadBytes int64
	LoginRateLimit string
	LockConfirmed  bool

	// ReviewRequiresUpload refuses review of a submission with no file yet.
	ReviewRequiresUpload bool

	MasterEmail    string
	MasterPassword string

	LogLevel  string
	SentryDSN string
	AppEnv    string

	// MetricsAddr is the internal listener for /metrics; empty disables it.
	MetricsAddr string
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBDriver:      getEnv("DB_DRIVER", "postgres"),
		DBDSN:         os.Getenv("DB_DSN"),
		ServerPort:    getEnv("SERVER_PORT", "8080"),
		SessionSecret: os.Getenv("SESSION_SECRET"),

		StorageBackend: getEnv("STORAGE_BACKEND", "local"),
		UploadDir:      getEnv("UPLOAD_DIR", "./uploads"),
		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),

		MaxUploadBytes: parseInt64(os.Getenv("MAX_UPLOAD_BYTES"), DefaultMaxUploadBytes),
		LoginRateLimit: getEnv("LOGIN_RATE_LIMIT", "10-M"),
		LockConfirmed:  parseBool(os.Getenv("LOCK_CONFIRMED")),

		ReviewRequiresUpload: parseBool(os.Getenv("REVIEW_REQUIRES_UPLOAD")),

		MasterEmail:    strings.ToLower(strings.TrimSpace(os.Getenv("MASTER_EMAIL"))),
		MasterPassword: os.Getenv("MASTER_PASSWORD"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		SentryDSN: os.Getenv("SENTRY_DSN"),
		AppEnv:    getEnv("APP_ENV", "development"),

		MetricsAddr: lookupEnv("METRICS_ADDR", "127.0.0.1:9090"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DBDSN == "" {
		return errors.New("DB_DSN is not set")
	}
	if c.SessionSecret == "" {
		return errors.New("SESSION_SECRET is not set")
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return errors.New("DB_DRIVER must be postgres or sqlite")
	}
	switch c.StorageBackend {
	case "local":
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET is required for the s3 storage backend")
		}
	default:
		return errors.New("STORAGE_BACKEND must be local or s3")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// lookupEnv is like getEnv but keeps a value that is set and empty.
func lookupEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func parseInt64(s string, fallback int64) int64 {
	if s == "" {
		return fallback
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}
