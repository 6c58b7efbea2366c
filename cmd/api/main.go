package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/truthlens/backend/internal/api/handlers"
	"github.com/truthlens/backend/internal/audit"
	"github.com/truthlens/backend/internal/cache/redis"
	"github.com/truthlens/backend/internal/governance"
	"github.com/truthlens/backend/internal/llm"
	"github.com/truthlens/backend/internal/metrics"
	"github.com/truthlens/backend/internal/middleware/ratelimit"
	"github.com/truthlens/backend/internal/middleware/security"
	"github.com/truthlens/backend/internal/middleware/validation"
	"github.com/truthlens/backend/pkg/config"
	appLogger "github.com/truthlens/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting TruthLens audit API")

	metrics.Init()

	if cfg.LLM.APIKey == "" {
		appLogger.Warn("No LLM API key configured; hallucination and explainability checks will degrade")
	}

	llmClient := llm.NewClient(llm.Options{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     time.Duration(cfg.LLM.TimeoutSec) * time.Second,
	})

	var checker audit.HallucinationChecker = llm.NewHallucinationChecker(llmClient, cfg.Audit.ContextChars)
	var explainer audit.Explainer = llm.NewExplainer(llmClient)
	readiness := map[string]handlers.Pinger{}

	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisClient, err := redis.NewClient(ctx,
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLSec)*time.Second,
		)
		cancel()
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()

		checker = audit.NewCachedHallucinationChecker(checker, redisClient, cfg.LLM.Model)
		explainer = audit.NewCachedExplainer(explainer, redisClient, cfg.LLM.Model)
		readiness["redis"] = redisClient
	}

	auditor := audit.NewAuditor(checker, explainer, audit.Options{
		Policy:      policyFrom(cfg.Audit),
		ContextRows: cfg.Audit.ContextRows,
	})

	app := fiber.New(fiber.Config{
		ReadTimeout:           time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:             cfg.Server.BodyLimit,
		DisableStartupMessage: !cfg.Server.Development,
	})

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.AllowedOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Client-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IsDevelopment:  cfg.Server.Development,
	}))

	auditHandler := handlers.NewAuditHandler(auditor)
	wsHandler := handlers.NewWebSocketHandler(auditor, handlers.WebSocketLimits{
		MaxRows:       cfg.Validation.MaxRows,
		MaxTextLength: cfg.Validation.MaxTextLength,
	})
	healthHandler := handlers.NewHealthHandler(readiness)

	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1")

	api.Get("/health", healthHandler.Health)
	api.Get("/ready", healthHandler.Ready)

	api.Post("/audits",
		limiter.Middleware(),
		validation.Middleware(validation.Config{
			MaxRows:       cfg.Validation.MaxRows,
			MaxTextLength: cfg.Validation.MaxTextLength,
			Logger:        appLogger.GetLogger(),
		}),
		auditHandler.CreateAudit,
	)

	api.Use("/ws", wsHandler.Upgrade)
	api.Get("/ws", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}

func policyFrom(cfg config.AuditConfig) governance.Policy {
	return governance.Policy{
		Weights: governance.Weights{
			Quality:        cfg.Weights.Quality,
			Drift:          cfg.Weights.Drift,
			Hallucination:  cfg.Weights.Hallucination,
			Explainability: cfg.Weights.Explainability,
		},
		MinRows:           cfg.Thresholds.MinRows,
		HallucinationVeto: cfg.Thresholds.HallucinationVeto,
		HallucinationCap:  cfg.Thresholds.HallucinationCap,
		DriftVeto:         cfg.Thresholds.DriftVeto,
		DriftCap:          cfg.Thresholds.DriftCap,
		SafeScore:         cfg.Thresholds.SafeScore,
		ReviewScore:       cfg.Thresholds.ReviewScore,
	}
}
