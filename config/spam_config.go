package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// generateWorkerID creates a unique worker ID using hostname and PID
func generateWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "worker"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string

	// Storage
	DatabaseURL string
	RedisURL    string
	ModelDir    string

	// Scoring
	DefaultThreshold float64
	GrayZoneLow      float64
	GrayZoneHigh     float64

	// Embeddings
	EnableEmbeddings bool
	OpenAIAPIKey     string
	EmbeddingModel   string

	// Worker
	WorkerID        string
	WorkerMin       int
	WorkerMax       int
	WorkerQueueSize int
	RescoreTimeout  time.Duration
	RetrainTimeout  time.Duration

	// Consumer (Redis Stream)
	ConsumerGroup   string
	ConsumerBlockMS int
	ConsumerBatch   int
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
		ModelDir:    getEnv("MODEL_DIR", "/app/models"),

		DefaultThreshold: getEnvFloat("DEFAULT_THRESHOLD", 0.5),
		GrayZoneLow:      getEnvFloat("GRAY_ZONE_LOW", 0.35),
		GrayZoneHigh:     getEnvFloat("GRAY_ZONE_HIGH", 0.75),

		EnableEmbeddings: getEnvBool("ENABLE_EMBEDDINGS", false),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		EmbeddingModel:   getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),

		WorkerID:        getEnv("WORKER_ID", generateWorkerID()),
		WorkerMin:       getEnvInt("WORKER_MIN", 2),
		WorkerMax:       getEnvInt("WORKER_MAX", 8),
		WorkerQueueSize: getEnvInt("WORKER_QUEUE_SIZE", 500),
		RescoreTimeout:  time.Duration(getEnvInt("RESCORE_TIMEOUT_SEC", 60)) * time.Second,
		RetrainTimeout:  time.Duration(getEnvInt("RETRAIN_TIMEOUT_SEC", 900)) * time.Second,

		ConsumerGroup:   getEnv("CONSUMER_GROUP", "spamguard"),
		ConsumerBlockMS: getEnvInt("CONSUMER_BLOCK_MS", 5000),
		ConsumerBatch:   getEnvInt("CONSUMER_BATCH_SIZE", 10),
	}

	if cfg.GrayZoneLow > cfg.GrayZoneHigh {
		return nil, fmt.Errorf("invalid gray zone: low %.2f > high %.2f", cfg.GrayZoneLow, cfg.GrayZoneHigh)
	}
	if cfg.DefaultThreshold < 0 || cfg.DefaultThreshold > 1 {
		return nil, fmt.Errorf("invalid default threshold: %.2f", cfg.DefaultThreshold)
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
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
