package middleware

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimitConfig holds per-IP rate limiting settings
type RateLimitConfig struct {
	// Global limits for all API endpoints
	GlobalAPIMax        int
	GlobalAPIExpiration time.Duration

	// Classification limits. Each miss fans out to the collaborator, so
	// this endpoint gets a much tighter budget than plain reads.
	ClassifyMax        int
	ClassifyExpiration time.Duration
}

// DefaultRateLimitConfig returns production-safe defaults
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		// Global: 200/min = ~3.3 req/sec - generous for normal use
		GlobalAPIMax:        200,
		GlobalAPIExpiration: 1 * time.Minute,

		// Classification: 20/min (expensive collaborator fan-out)
		ClassifyMax:        20,
		ClassifyExpiration: 1 * time.Minute,
	}
}

// LoadRateLimitConfig loads config from environment variables with defaults
func LoadRateLimitConfig() *RateLimitConfig {
	config := DefaultRateLimitConfig()

	if v := os.Getenv("RATE_LIMIT_GLOBAL_API"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.GlobalAPIMax = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_CLASSIFY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.ClassifyMax = n
		}
	}

	log.Printf("📊 [RATELIMIT] Global: %d/min, Classify: %d/min",
		config.GlobalAPIMax, config.ClassifyMax)
	return config
}

// GlobalAPILimiter applies the per-IP limit to all API endpoints
func GlobalAPILimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.GlobalAPIMax,
		Expiration: config.GlobalAPIExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("⚠️ [RATELIMIT] Global limit reached for IP %s on %s", c.IP(), c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many requests, please slow down",
				"retry_after": int(config.GlobalAPIExpiration.Seconds()),
			})
		},
	})
}

// ClassifyLimiter applies the tighter per-IP limit to classification
// requests
func ClassifyLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.ClassifyMax,
		Expiration: config.ClassifyExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "classify:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("⚠️ [RATELIMIT] Classification limit reached for IP %s", c.IP())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Classification rate limit reached, please retry later",
				"retry_after": int(config.ClassifyExpiration.Seconds()),
			})
		},
	})
}
