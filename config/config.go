package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string

	DatabaseURL string

	RedisURL string
	NatsURL  string

	JWTSecret    string
	JWTExpiresIn time.Duration

	UploadDir      string
	CacheDir       string
	MaxUploadBytes int64
	ImageWorkers   int
	PublicBaseURL  string
	VariantMaxAge  time.Duration

	RateLimitRequests int
	RateLimitWindow   time.Duration

	ArticleCooldown time.Duration

	OTelServiceName string
	OTelEndpoint    string
}

func Load() (*Config, error) {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379"),
		NatsURL:         getEnv("NATS_URL", ""),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		UploadDir:       getEnv("UPLOAD_DIR", "./uploads"),
		CacheDir:        getEnv("CACHE_DIR", "./uploads/cache"),
		PublicBaseURL:   getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		OTelServiceName: getEnv("OTEL_SERVICE_NAME", "living-api"),
		OTelEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
	}

	var err error
	if cfg.JWTExpiresIn, err = getDuration("JWT_EXPIRES_IN", "168h"); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = getDuration("RATE_LIMIT_WINDOW", "15m"); err != nil {
		return nil, err
	}
	if cfg.ArticleCooldown, err = getDuration("ARTICLE_COOLDOWN", "60s"); err != nil {
		return nil, err
	}
	if cfg.VariantMaxAge, err = getDuration("VARIANT_MAX_AGE", "720h"); err != nil {
		return nil, err
	}
	if cfg.RateLimitRequests, err = getInt("RATE_LIMIT_REQUESTS", 1000); err != nil {
		return nil, err
	}
	if cfg.ImageWorkers, err = getInt("IMAGE_WORKERS", runtime.NumCPU()); err != nil {
		return nil, err
	}
	maxUpload, err := getInt("MAX_UPLOAD_BYTES", 10<<20)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadBytes = int64(maxUpload)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.RateLimitRequests < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive")
	}
	if c.ImageWorkers < 1 {
		return fmt.Errorf("IMAGE_WORKERS must be positive")
	}
	if c.MaxUploadBytes < 1 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// RedisAddr strips the redis:// scheme asynq and go-redis options expect to be absent.
func (c *Config) RedisAddr() string {
	if len(c.RedisURL) > 8 && c.RedisURL[:8] == "redis://" {
		return c.RedisURL[8:]
	}
	return c.RedisURL
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getDuration(key, fallback string) (time.Duration, error) {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
