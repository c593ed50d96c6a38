package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	CatalogSourceSheets   = "sheets"
	CatalogSourceS3       = "s3"
	CatalogSourceFallback = "fallback"

	SessionStoreMemory   = "memory"
	SessionStorePostgres = "postgres"
	SessionStoreRedis    = "redis"
)

type Config struct {
	Port           string
	AppEnv         string
	AllowedOrigins []string

	CatalogSource         string
	SpreadsheetID         string
	GoogleCredentialsFile string
	GoogleAPIKey          string
	CatalogTTL            time.Duration
	CatalogRefreshTimeout time.Duration

	AwsAccessKey     string
	AwsSecretKey     string
	AwsRegion        string
	BucketName       string
	CatalogObjectKey string

	SessionStore string
	DatabaseURL  string
	RedisAddr    string
	SessionTTL   time.Duration

	MainRecommendations       int
	AdditionalRecommendations int

	TelegramBotToken string
	TelegramWorkers  int
	JWTSecret        string
}

// LoadConfig loads the environment variables and returns the config.
// Values that fail to parse are reported together.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	p := &parser{}
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		AppEnv:         getEnv("APP_ENV", "development"),
		AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),

		CatalogSource:         strings.ToLower(getEnv("CATALOG_SOURCE", CatalogSourceSheets)),
		SpreadsheetID:         getEnv("SHEETS_SPREADSHEET_ID", ""),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		GoogleAPIKey:          getEnv("GOOGLE_API_KEY", ""),
		CatalogTTL:            p.getDuration("CATALOG_TTL", 5*time.Minute),
		CatalogRefreshTimeout: p.getDuration("CATALOG_REFRESH_TIMEOUT", 5*time.Second),

		AwsAccessKey:     getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:     getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:        getEnv("AWS_REGION", "us-east-2"),
		BucketName:       getEnv("BUCKET_NAME", ""),
		CatalogObjectKey: getEnv("CATALOG_OBJECT_KEY", "catalog/snapshot.json"),

		SessionStore: strings.ToLower(getEnv("SESSION_STORE", SessionStoreMemory)),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		RedisAddr:    getEnv("REDIS_ADDR", ""),
		SessionTTL:   p.getDuration("SESSION_TTL", 30*time.Minute),

		MainRecommendations:       p.getInt("MAIN_RECOMMENDATIONS", 3),
		AdditionalRecommendations: p.getInt("ADDITIONAL_RECOMMENDATIONS", 2),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramWorkers:  p.getInt("TELEGRAM_WORKERS", 2),
		JWTSecret:        getEnv("JWT_SECRET", ""),
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every selected backend has the settings it needs.
func (c *Config) Validate() error {
	var errs []error

	switch c.CatalogSource {
	case CatalogSourceSheets:
		if c.SpreadsheetID == "" {
			errs = append(errs, errors.New("SHEETS_SPREADSHEET_ID not set"))
		}
		if c.GoogleCredentialsFile == "" && c.GoogleAPIKey == "" {
			errs = append(errs, errors.New("GOOGLE_CREDENTIALS_FILE or GOOGLE_API_KEY must be set"))
		}
	case CatalogSourceS3:
		if c.BucketName == "" {
			errs = append(errs, errors.New("BUCKET_NAME not set"))
		}
	case CatalogSourceFallback:
	default:
		errs = append(errs, fmt.Errorf("unknown CATALOG_SOURCE %q", c.CatalogSource))
	}

	switch c.SessionStore {
	case SessionStoreMemory:
	case SessionStorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL not set"))
		}
	case SessionStoreRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SESSION_STORE %q", c.SessionStore))
	}

	if c.MainRecommendations < 0 || c.AdditionalRecommendations < 0 {
		errs = append(errs, errors.New("recommendation counts must not be negative"))
	}
	if c.CatalogRefreshTimeout <= 0 {
		errs = append(errs, errors.New("CATALOG_REFRESH_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// S3Enabled reports whether AWS settings are complete enough to build an S3 client.
func (c *Config) S3Enabled() bool {
	return c.BucketName != "" && c.AwsAccessKey != "" && c.AwsSecretKey != ""
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

type parser struct {
	errs []error
}

func (p *parser) getInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s=%q is not an int", key, v))
		return def
	}
	return n
}

func (p *parser) getDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s=%q is not a duration", key, v))
		return def
	}
	return d
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
