package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"memgate/internal/config"
	"memgate/internal/database"
	"memgate/internal/handlers"
	"memgate/internal/logging"
	"memgate/internal/middleware"
	"memgate/internal/services"
)

func main() {
	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("📄 No .env file found, using environment variables")
	}

	logging.Init()
	cfg := config.Load()

	log.Println("🚀 Starting memgate server...")

	// Database (audit log + profiles). The server degrades without it: audit
	// writes become no-ops and history/profiles report unavailable.
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Printf("⚠️ Database unavailable: %v", err)
		db = nil
	} else {
		if err := db.Initialize(); err != nil {
			log.Fatalf("❌ Failed to initialize database schema: %v", err)
		}
		defer db.Close()
	}

	// Redis (ephemeral tier + promotion locks)
	redisService, err := services.NewRedisService(cfg.RedisURL)
	if err != nil {
		log.Printf("⚠️ Redis unavailable, short-term tier disabled: %v", err)
		redisService = nil
	} else {
		defer redisService.Close()
	}

	var shortTerm services.ShortTermStore
	var locker services.PromotionLocker
	if redisService != nil {
		shortTerm = services.NewShortTermService(redisService, cfg.ShortTermTTL)
		locker = redisService
	}

	// Long-term memory engine; optional
	var engine services.MemoryEngine
	if cfg.EngineURL != "" {
		engine = services.NewEngineService(cfg.EngineURL)
		log.Printf("🔌 Memory engine configured at %s", cfg.EngineURL)
	} else {
		log.Println("⚠️ ENGINE_URL not set, long-term tier disabled")
	}

	services.InitMetrics()

	auditService := services.NewAuditService(db)
	profileService := services.NewProfileService(db)
	promotionService := services.NewPromotionService(shortTerm, engine, locker, auditService, cfg.PromotionThreshold)
	memoryService := services.NewMemoryService(shortTerm, engine, auditService, promotionService, cfg.ShortTermTTL)
	healthService := services.NewHealthService(db, shortTerm, engine, cfg.GraphEnabled)

	schedulerService, err := services.NewSchedulerService(memoryService, cfg.PromotionInterval)
	if err != nil {
		log.Fatalf("❌ Failed to create scheduler: %v", err)
	}
	if err := schedulerService.Start(); err != nil {
		log.Fatalf("❌ Failed to start scheduler: %v", err)
	}

	memoryHandler := handlers.NewMemoryHandler(memoryService)
	profileHandler := handlers.NewProfileHandler(profileService)
	historyHandler := handlers.NewHistoryHandler(auditService)
	healthHandler := handlers.NewHealthHandler(healthService)

	app := fiber.New(fiber.Config{
		AppName:      "memgate v1.0",
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    5 * 1024 * 1024, // 5MB, enough for large message batches
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	prometheus := fiberprometheus.New("memgate")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/min, Writes=%d/min",
		rateLimitConfig.GlobalAPIMax, rateLimitConfig.WriteMax)

	allowedOrigins := cfg.AllowedOrigins
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: allowedOrigins != "*",
	}))

	// Health stays ahead of the limiter so probes are never throttled
	app.Get("/health", healthHandler.Check)

	api := app.Group("", middleware.GlobalAPIRateLimiter(rateLimitConfig))
	writeLimiter := middleware.WriteRateLimiter(rateLimitConfig)

	memories := api.Group("/memories")
	memories.Post("/add", writeLimiter, memoryHandler.AddMemory)
	memories.Post("/search", memoryHandler.SearchMemories)
	memories.Post("/promote", writeLimiter, memoryHandler.PromoteMemories)
	memories.Get("/user/:id", memoryHandler.GetUserMemories)
	memories.Get("/agent/:id", memoryHandler.GetAgentMemories)
	memories.Delete("/:id", writeLimiter, memoryHandler.DeleteMemory)

	api.Get("/stats", memoryHandler.GetStats)
	api.Get("/history", historyHandler.GetHistory)

	profiles := api.Group("/profiles")
	profiles.Get("/user/:id", profileHandler.GetUserProfile)
	profiles.Put("/user/:id", profileHandler.UpsertUserProfile)
	profiles.Get("/agent/:id", profileHandler.GetAgentProfile)
	profiles.Put("/agent/:id", profileHandler.UpsertAgentProfile)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		if err := schedulerService.Stop(); err != nil {
			log.Printf("⚠️ Error stopping scheduler: %v", err)
		}

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
