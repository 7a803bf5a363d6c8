package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"bimsense/internal/config"
	"bimsense/internal/database"
	"bimsense/internal/handlers"
	"bimsense/internal/jobs"
	"bimsense/internal/logging"
	"bimsense/internal/middleware"
	"bimsense/internal/services"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting BIMSense Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Load configuration, with an optional YAML overlay
	cfg := config.Load()
	configFile := os.Getenv("BIMSENSE_CONFIG")
	if configFile != "" {
		if err := cfg.ApplyFile(configFile); err != nil {
			log.Fatalf("❌ Failed to apply config file %s: %v", configFile, err)
		}
		log.Printf("✅ Config file %s applied", configFile)
	}
	log.Printf("📋 Configuration loaded (Port: %s)", cfg.Port)

	// MongoDB holds the element corpus and the durable suggestion record;
	// the service cannot run without it.
	if cfg.MongoURI == "" {
		log.Fatal("❌ MONGODB_URI environment variable is required")
	}
	mongoDB, err := database.NewMongoDB(cfg.MongoURI)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}
	defer mongoDB.Close(context.Background())

	if err := mongoDB.Initialize(context.Background()); err != nil {
		log.Fatalf("❌ Failed to initialize MongoDB: %v", err)
	}

	// Cache store selection happens once, here: the rich Redis store when
	// a URL is configured, the in-process basic store otherwise.
	var store services.PatternStore
	var publisher services.EventPublisher
	var redisStore *services.RedisPatternStore

	if cfg.RedisURL != "" {
		redisStore, err = services.NewRedisPatternStore(cfg.RedisURL, "bimsense:classify:")
		if err != nil {
			log.Fatalf("❌ Failed to connect to Redis: %v", err)
		}
		defer redisStore.Close()
		store = redisStore
		publisher = services.NewRedisEventPublisher(redisStore.Client())
	} else {
		log.Println("⚠️  REDIS_URL not set — using in-process cache store (no cross-instance sharing)")
		store = services.NewMemoryPatternStore()
		publisher = &services.LogEventPublisher{}
	}

	cache := services.NewClassificationCache(store, services.CacheOptions{
		AbsoluteTTL: cfg.AbsoluteTTL,
		SlidingTTL:  cfg.SlidingTTL,
	})

	metrics := services.InitMetrics(cache)
	cache.SetMetrics(metrics)

	// Core services
	elementSource := services.NewMongoElementSource(mongoDB)
	patternService := services.NewPatternService(elementSource)
	suggestionStore := services.NewMongoSuggestionStore(mongoDB)

	if cfg.ClassifierURL == "" {
		log.Fatal("❌ CLASSIFIER_URL environment variable is required")
	}
	classifier := services.NewHTTPClassifier(cfg.ClassifierURL)
	limiter := rate.NewLimiter(rate.Limit(cfg.ClassifierRate), 1)

	classificationService := services.NewClassificationService(
		patternService, cache, classifier, suggestionStore, publisher, limiter)
	classificationService.SetMetrics(metrics)

	reviewService := services.NewReviewService(suggestionStore, cache, publisher)

	log.Println("✅ Services initialized")

	// Hot-reload the config overlay (classifier rate) on file changes
	if configFile != "" {
		go watchConfigFile(configFile, limiter)
	}

	// Scheduled pattern pre-warm
	var scheduler gocron.Scheduler
	if cfg.PrewarmCron != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(cfg.PrewarmCron); err != nil {
			log.Fatalf("❌ Invalid PREWARM_CRON expression %q: %v", cfg.PrewarmCron, err)
		}

		scheduler, err = gocron.NewScheduler(gocron.WithLocation(time.UTC))
		if err != nil {
			log.Fatalf("❌ Failed to create scheduler: %v", err)
		}

		prewarmJob := jobs.NewPatternPrewarmJob(patternService, classificationService)
		if _, err := scheduler.NewJob(
			gocron.CronJob(cfg.PrewarmCron, false),
			gocron.NewTask(func() {
				if err := prewarmJob.Run(context.Background()); err != nil {
					log.Printf("❌ Pattern pre-warm failed: %v", err)
				}
			}),
			gocron.WithName("pattern_prewarm"),
		); err != nil {
			log.Fatalf("❌ Failed to schedule pre-warm job: %v", err)
		}

		scheduler.Start()
		log.Printf("🕐 Pattern pre-warm scheduled (cron: %s)", cfg.PrewarmCron)
	}

	// HTTP surface
	app := fiber.New(fiber.Config{
		AppName:      "BIMSense v1.0",
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 120 * time.Second,
		BodyLimit:    10 * 1024 * 1024, // classification requests can carry tens of thousands of element ids
	})

	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("bimsense")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	app.Use(cors.New(cors.Config{
		AllowOrigins: getAllowedOrigins(),
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	classificationHandler := handlers.NewClassificationHandler(classificationService, patternService, cache, cfg.SampleSize)
	suggestionHandler := handlers.NewSuggestionHandler(reviewService, suggestionStore)

	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
		defer cancel()

		status := fiber.Map{"status": "ok"}
		if err := mongoDB.Ping(ctx); err != nil {
			status["status"] = "degraded"
			status["mongodb"] = err.Error()
		}
		if redisStore != nil {
			if err := redisStore.Ping(ctx); err != nil {
				status["status"] = "degraded"
				status["redis"] = err.Error()
			}
		}
		return c.JSON(status)
	})

	rateLimitConfig := middleware.LoadRateLimitConfig()

	api := app.Group("/api")
	api.Use(middleware.GlobalAPILimiter(rateLimitConfig))
	api.Post("/classifications", middleware.ClassifyLimiter(rateLimitConfig), classificationHandler.Classify)
	api.Get("/patterns", classificationHandler.ListPatterns)
	api.Get("/patterns/count", classificationHandler.CountPatterns)
	api.Get("/cache/stats", classificationHandler.CacheStats)
	api.Delete("/cache/:hash", classificationHandler.InvalidateEntry)
	api.Get("/suggestions", suggestionHandler.List)
	api.Get("/suggestions/:id", suggestionHandler.Get)
	api.Post("/suggestions/:id/approve", suggestionHandler.Approve)
	api.Post("/suggestions/:id/reject", suggestionHandler.Reject)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		if scheduler != nil {
			if err := scheduler.Shutdown(); err != nil {
				log.Printf("⚠️ Error stopping scheduler: %v", err)
			}
		}

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

func getAllowedOrigins() string {
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		return origins
	}
	return "http://localhost:5173,http://localhost:3000"
}

// watchConfigFile hot-reloads the overlay file and re-applies the classifier
// rate limit, the one knob safe to change on a live limiter.
func watchConfigFile(filePath string, limiter *rate.Limiter) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️  Failed to create file watcher: %v", err)
		return
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		log.Printf("⚠️  Failed to get absolute path for %s: %v", filePath, err)
		watcher.Close()
		return
	}

	// Watch the directory containing the file (more reliable than watching
	// the file directly)
	dir := filepath.Dir(absPath)
	filename := filepath.Base(absPath)

	if err := watcher.Add(dir); err != nil {
		log.Printf("⚠️  Failed to watch directory %s: %v", dir, err)
		watcher.Close()
		return
	}

	log.Printf("👁️  Watching %s for changes (hot-reload enabled)", filePath)

	// Debounce to avoid multiple reloads for rapid file changes
	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, func() {
					fresh := config.Load()
					if err := fresh.ApplyFile(filePath); err != nil {
						log.Printf("❌ Failed to reload config file: %v", err)
						return
					}
					limiter.SetLimit(rate.Limit(fresh.ClassifierRate))
					log.Printf("🔄 Config reloaded: classifier rate now %.2f/s", fresh.ClassifierRate)
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  File watcher error: %v", err)
		}
	}
}
