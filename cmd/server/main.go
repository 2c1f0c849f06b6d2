package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/orgpulse/maturity-meter/internal/adapters"
	"github.com/orgpulse/maturity-meter/internal/cache"
	"github.com/orgpulse/maturity-meter/internal/collector"
	"github.com/orgpulse/maturity-meter/internal/database"
	"github.com/orgpulse/maturity-meter/internal/errors"
	"github.com/orgpulse/maturity-meter/internal/maturity"
	"github.com/orgpulse/maturity-meter/internal/monitoring"
	"github.com/orgpulse/maturity-meter/internal/orchestrator"
	"github.com/orgpulse/maturity-meter/internal/ratelimit"
	"github.com/orgpulse/maturity-meter/internal/resilience"
	"github.com/orgpulse/maturity-meter/internal/scoring"
	"github.com/orgpulse/maturity-meter/internal/types"
)

func main() {
	// Structured logging setup
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from environment with defaults
	port := getEnvOrDefault("PORT", "8080")
	dataDir := getEnvOrDefault("DATA_DIR", "./data")
	overallTimeout := getDurationOrDefault("OVERALL_TIMEOUT", 4*time.Minute)
	toolTimeout := getDurationOrDefault("TOOL_TIMEOUT", 1*time.Minute)
	poolSize := getIntOrDefault("WORKER_POOL_SIZE", 4)
	defaultWeights := os.Getenv("WEIGHT_OVERRIDES")
	redisAddr := os.Getenv("REDIS_URL")
	redisPassword := os.Getenv("REDIS_PASSWORD")
	corsOrigins := getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")

	// Initialize database and repository
	db, err := database.NewDB(dataDir)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	// Initialize monitoring system
	appMetrics := monitoring.NewMetrics()
	appLogger := monitoring.NewLogger()

	// Create tool adapters for every configured source system
	calculators, toolAdapters := buildAdapters()
	registry := collector.NewRegistry(calculators...)
	slog.Info("Tool adapters registered", "tools", registry.Names())

	// Evaluation pipeline: collector, worker pool, orchestrator, service
	coll := collector.NewCollector(registry, toolTimeout, appLogger, appMetrics)
	pool := orchestrator.NewPool(poolSize)
	defer pool.Close()

	orch := orchestrator.New(pool, coll, repo, overallTimeout, appLogger, appMetrics)
	service := maturity.NewService(repo, repo, repo, orch, scoring.NewScorer(), appLogger, appMetrics)

	// Rate limiting with Redis and in-memory fallback
	redisClient, err := ratelimit.NewRedisClient(redisAddr, redisPassword, 0)
	if err != nil {
		slog.Warn("Redis initialization failed, continuing with fallback", "error", err)
	}
	defer redisClient.Close()

	rateLimiter := ratelimit.NewRateLimiter(redisClient, ratelimit.DefaultConfig(), appMetrics)

	r := gin.New()

	// CORS setup
	corsConfig := cors.DefaultConfig()
	if corsOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(corsOrigins, ",")
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	r.Use(cors.New(corsConfig))

	// Add monitoring middleware first (to capture all requests)
	r.Use(monitoring.MonitoringMiddleware(appMetrics, appLogger))

	// Add error handling middleware
	r.Use(errors.ErrorHandler())
	r.Use(errors.RecoveryHandler())

	// Add rate limiting middleware
	r.Use(rateLimiter.IPRateLimitMiddleware())

	// Initialize cache (5 minutes TTL, evaluation batches are minutes-scale)
	appCache := cache.NewCache(5 * time.Minute)
	r.Use(appCache.Middleware(appMetrics))

	r.GET("/health", func(c *gin.Context) {
		breakers := make(map[string]interface{}, len(toolAdapters))
		for name, breaker := range toolAdapters {
			breakers[name] = gin.H{
				"state":    breaker.State().String(),
				"failures": breaker.Failures(),
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":           "ok",
			"timestamp":        time.Now().Format(time.RFC3339),
			"version":          "1.0.0",
			"metrics":          appMetrics.GetStats(),
			"circuit_breakers": breakers,
			"rate_limiter":     rateLimiter.GetStats(),
			"cache":            appCache.Stats(),
		})
	})

	api := r.Group("/api/v1")

	// Evaluate godoc
	// @Summary Run a maturity and efficiency evaluation
	// @Accept json
	// @Produce json
	// @Param request body types.EvaluateRequest true "Evaluation scope"
	// @Success 200 {object} types.EvaluateResponse
	// @Router /api/v1/evaluate [post]
	api.POST("/evaluate", func(c *gin.Context) {
		var req types.EvaluateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			appErr := errors.NewValidationError("invalid request body: " + err.Error())
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		// Server-wide weight defaults apply when the request brings none
		if req.WeightOverrides == "" {
			req.WeightOverrides = defaultWeights
		}

		response, err := service.Evaluate(c.Request.Context(), req)
		if err != nil {
			appErr := errors.ToAppError(err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusOK, response)
	})

	api.GET("/evaluations", func(c *gin.Context) {
		limit := 20
		if limitStr := c.Query("limit"); limitStr != "" {
			if l, err := strconv.Atoi(limitStr); err == nil {
				limit = l
			}
		}

		summaries, err := repo.RecentEvaluations(c.Request.Context(), limit)
		if err != nil {
			appErr := errors.ToAppError(err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"evaluations": summaries,
			"count":       len(summaries),
		})
	})

	api.GET("/categories", func(c *gin.Context) {
		categories, err := repo.ListCategories(c.Request.Context())
		if err != nil {
			appErr := errors.ToAppError(err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"categories":      categories,
			"default_weights": scoring.DefaultWeights(),
		})
	})

	// Swagger documentation routes
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Metrics endpoint
	r.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, appMetrics.GetStats())
	})

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		slog.Info("Starting server", "port", port,
			"overall_timeout", overallTimeout.String(), "tool_timeout", toolTimeout.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited")
}

// buildAdapters creates a calculator for every source tool that has a
// base URL configured. Unconfigured tools are left out of the registry,
// so their KPI groups degrade with an ERROR outcome instead of hanging.
func buildAdapters() ([]collector.Calculator, map[string]*resilience.CircuitBreaker) {
	calculators := []collector.Calculator{}
	breakers := map[string]*resilience.CircuitBreaker{}

	if base := os.Getenv("JIRA_BASE_URL"); base != "" {
		a := adapters.NewJiraAdapter(base, os.Getenv("JIRA_TOKEN"))
		calculators = append(calculators, a)
		breakers[a.Name()] = a.Breaker()
	}
	if base := os.Getenv("SONAR_BASE_URL"); base != "" {
		a := adapters.NewSonarAdapter(base, os.Getenv("SONAR_TOKEN"))
		calculators = append(calculators, a)
		breakers[a.Name()] = a.Breaker()
	}
	if base := os.Getenv("JENKINS_BASE_URL"); base != "" {
		a := adapters.NewJenkinsAdapter(base, os.Getenv("JENKINS_TOKEN"))
		calculators = append(calculators, a)
		breakers[a.Name()] = a.Breaker()
	}
	if base := os.Getenv("ZEPHYR_BASE_URL"); base != "" {
		a := adapters.NewZephyrAdapter(base, os.Getenv("ZEPHYR_TOKEN"))
		calculators = append(calculators, a)
		breakers[a.Name()] = a.Breaker()
	}
	if base := os.Getenv("BITBUCKET_BASE_URL"); base != "" {
		a := adapters.NewBitbucketAdapter(base, os.Getenv("BITBUCKET_TOKEN"))
		calculators = append(calculators, a)
		breakers[a.Name()] = a.Breaker()
	}

	return calculators, breakers
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}
