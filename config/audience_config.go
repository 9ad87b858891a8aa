package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// generateConsumerName creates a unique stream consumer name using hostname and PID
func generateConsumerName() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "audience"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Stores
	DatabaseURL string
	RedisURL    string
	MongoDBURL  string
	MongoDBName string

	// Auth
	JWTSecret string

	// OpenAI (segment suggestions)
	OpenAIAPIKey   string
	LLMModel       string
	LLMMaxTokens   int
	LLMTemperature float64
	LLMTimeout     time.Duration

	// Segmentation
	ApplyTimeout         time.Duration
	RefreshTimeout       time.Duration
	RefreshLockTTL       time.Duration
	EngagementBatchSize  int
	SummarySampleSize    int
	SummaryCacheTTL      time.Duration
	WorkerConsumerName   string
	RefreshRunsRetention int

	// RefreshScheduleInterval spaces scheduled rescoring runs. Zero disables them.
	RefreshScheduleInterval time.Duration
	SuggestionRateLimit     int

	// CORS
	AllowedOrigins []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_DATABASE", "audience"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 2048),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.4),
		LLMTimeout:     getEnvDuration("LLM_TIMEOUT_SEC", 60*time.Second),

		ApplyTimeout:         getEnvDuration("SEGMENT_APPLY_TIMEOUT_SEC", 2*time.Minute),
		RefreshTimeout:       getEnvDuration("REFRESH_TIMEOUT_SEC", 10*time.Minute),
		RefreshLockTTL:       getEnvDuration("REFRESH_LOCK_TTL_SEC", 15*time.Minute),
		EngagementBatchSize:  getEnvInt("ENGAGEMENT_BATCH_SIZE", 1000),
		SummarySampleSize:    getEnvInt("SUMMARY_SAMPLE_SIZE", 5),
		SummaryCacheTTL:      getEnvDuration("SUMMARY_CACHE_TTL_SEC", 5*time.Minute),
		WorkerConsumerName:   getEnv("WORKER_CONSUMER_NAME", generateConsumerName()),
		RefreshRunsRetention: getEnvInt("REFRESH_RUNS_RETENTION_DAYS", 30),

		RefreshScheduleInterval: getEnvDuration("REFRESH_SCHEDULE_INTERVAL_SEC", 0),
		SuggestionRateLimit:     getEnvInt("SUGGESTION_RATE_LIMIT_PER_MIN", 10),

		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RefreshLockTTL < cfg.RefreshTimeout {
		cfg.RefreshLockTTL = cfg.RefreshTimeout + time.Minute
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvDuration reads a whole number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AIEnabled reports whether segment suggestions can be served.
func (c *Config) AIEnabled() bool {
	return c.OpenAIAPIKey != ""
}
