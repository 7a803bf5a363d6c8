package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Port        string `yaml:"port"`
	MongoURI    string `yaml:"mongo_uri"`
	RedisURL    string `yaml:"redis_url"`
	Environment string `yaml:"environment"`

	// Classification collaborator
	ClassifierURL  string  `yaml:"classifier_url"`
	ClassifierRate float64 `yaml:"classifier_rate"` // calls per second

	// Pattern aggregation
	SampleSize int `yaml:"sample_size"`

	// Cache expiration
	AbsoluteTTL time.Duration `yaml:"absolute_ttl"`
	SlidingTTL  time.Duration `yaml:"sliding_ttl"`

	// Pre-warm scheduling; empty disables the job
	PrewarmCron string `yaml:"prewarm_cron"`
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "3001"),
		MongoURI:    getEnv("MONGODB_URI", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		Environment: getEnv("ENVIRONMENT", "development"),

		ClassifierURL:  getEnv("CLASSIFIER_URL", ""),
		ClassifierRate: getFloatEnv("CLASSIFIER_RATE", 2.0),

		SampleSize: getIntEnv("PATTERN_SAMPLE_SIZE", 50),

		AbsoluteTTL: getDurationEnv("CACHE_ABSOLUTE_TTL", 24*time.Hour),
		SlidingTTL:  getDurationEnv("CACHE_SLIDING_TTL", 6*time.Hour),

		PrewarmCron: getEnv("PREWARM_CRON", ""),
	}
}

// ApplyFile overlays settings from a YAML file onto the config. Zero values
// in the file leave the corresponding env-derived setting untouched.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if overlay.Port != "" {
		c.Port = overlay.Port
	}
	if overlay.MongoURI != "" {
		c.MongoURI = overlay.MongoURI
	}
	if overlay.RedisURL != "" {
		c.RedisURL = overlay.RedisURL
	}
	if overlay.Environment != "" {
		c.Environment = overlay.Environment
	}
	if overlay.ClassifierURL != "" {
		c.ClassifierURL = overlay.ClassifierURL
	}
	if overlay.ClassifierRate > 0 {
		c.ClassifierRate = overlay.ClassifierRate
	}
	if overlay.SampleSize > 0 {
		c.SampleSize = overlay.SampleSize
	}
	if overlay.AbsoluteTTL > 0 {
		c.AbsoluteTTL = overlay.AbsoluteTTL
	}
	if overlay.SlidingTTL > 0 {
		c.SlidingTTL = overlay.SlidingTTL
	}
	if overlay.PrewarmCron != "" {
		c.PrewarmCron = overlay.PrewarmCron
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
