// Package config loads process configuration from the environment,
// following the env-var-with-defaults convention used throughout this
// codebase's services.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	Development = "development"
	Production  = "production"
)

// Config holds every environment-tunable knob recognized by the service
// (spec §6).
type Config struct {
	ServerAddress string
	Environment   string
	LogLevel      string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PostgresURL    string
	SupabaseURL    string
	SupabaseAPIKey string

	APIKeyPrefix string

	NGramWidth         int
	StopWordSet        string
	SynonymConfigPath  string
	StalenessThreshold time.Duration
	CheckInterval      time.Duration
	SchedulerWorkers   int
	FeedTimeout        time.Duration
	FeedSizeCapBytes   int64
	SuggestWidthCap    int
	ResultPageCap      int

	EventBusName string
	AWSRegion    string

	EnableTracing bool
	EnableMetrics bool
	EnableCORS    bool
	OTLPEndpoint  string
	// TraceSampleRate overrides the environment-based default in
	// observability.TracingConfig (0 leaves the default in place).
	TraceSampleRate float64
}

// Load reads Config from the environment, applying the defaults spec §6
// names explicitly.
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", Development),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		PostgresURL:    getEnv("POSTGRES_URL", ""),
		SupabaseURL:    getEnv("SUPABASE_URL", ""),
		SupabaseAPIKey: getEnv("SUPABASE_API_KEY", ""),

		APIKeyPrefix: getEnv("API_KEY_PREFIX", "psk_"),

		NGramWidth:         getEnvInt("NGRAM_WIDTH", 3),
		StopWordSet:        getEnv("STOPWORD_SET", "ru"),
		SynonymConfigPath:  getEnv("SYNONYM_CONFIG_PATH", ""),
		StalenessThreshold: getEnvDuration("STALENESS_THRESHOLD", 4*time.Hour),
		CheckInterval:      getEnvDuration("CHECK_INTERVAL", 15*time.Minute),
		SchedulerWorkers:   getEnvInt("SCHEDULER_CONCURRENCY", 5),
		FeedTimeout:        getEnvDuration("FEED_TIMEOUT", 300*time.Second),
		FeedSizeCapBytes:   getEnvInt64("FEED_SIZE_CAP_BYTES", 500*1024*1024),
		SuggestWidthCap:    getEnvInt("SUGGEST_WIDTH_CAP", 3),
		ResultPageCap:      getEnvInt("RESULT_PAGE_CAP", 100),

		EventBusName: getEnv("EVENT_BUS_NAME", "product-search-events"),
		AWSRegion:    getEnv("AWS_REGION", "us-west-2"),

		EnableTracing: getEnvBool("ENABLE_TRACING", false),
		EnableMetrics: getEnvBool("ENABLE_METRICS", true),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
		OTLPEndpoint:  getEnv("OTLP_ENDPOINT", ""),

		TraceSampleRate: getEnvFloat("TRACE_SAMPLE_RATE", 0),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate refuses to boot in production without the secrets a live
// deployment needs.
func (c *Config) Validate() error {
	if c.Environment == Production {
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required in production")
		}
		if c.SupabaseURL == "" || c.SupabaseAPIKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_API_KEY are required in production")
		}
	}
	if c.NGramWidth < 1 {
		return fmt.Errorf("NGRAM_WIDTH must be >= 1")
	}
	if c.ResultPageCap < 1 {
		return fmt.Errorf("RESULT_PAGE_CAP must be >= 1")
	}
	if c.TraceSampleRate < 0 || c.TraceSampleRate > 1 {
		return fmt.Errorf("TRACE_SAMPLE_RATE must be between 0 and 1")
	}
	return nil
}

func (c *Config) IsDevelopment() bool { return c.Environment == Development }
func (c *Config) IsProduction() bool  { return c.Environment == Production }

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
