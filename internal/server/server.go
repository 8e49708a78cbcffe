// Package server contains the HTTP handlers that expose the request lifecycle and reports.
package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"booking/internal/classifier"
	"booking/internal/config"
	"booking/internal/featureflags"
	"booking/internal/middleware"
	"booking/internal/models"
	"booking/internal/notifications"
	"booking/internal/repository"
	"booking/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// decideRateWindow is the window DECIDE_RATE_LIMIT is counted over.
const decideRateWindow = time.Minute

var (
	httpMetricsOnce sync.Once
	httpMetrics     *fiberprometheus.FiberPrometheus
)

// sharedHTTPMetrics returns the process-wide HTTP collector; its series register once.
func sharedHTTPMetrics() *fiberprometheus.FiberPrometheus {
	httpMetricsOnce.Do(func() {
		httpMetrics = middleware.InitMetrics("booking-api")
	})
	return httpMetrics
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	notifier       *notifications.Notifier
	featureFlags   *featureflags.Manager
	lifecycle      *service.LifecycleService
	reports        *service.ReportService
	sweeper        *service.BreachSweeper
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// The bootstrap layer owns DB/Redis setup; redisClient may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	requestRepo := repository.NewRequestRepository(db)
	approvalRepo := repository.NewApprovalLogRepository(db)
	usageRepo := repository.NewUsageLogRepository(db)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: sharedHTTPMetrics(),
		notifier:       notifications.NewNotifier(redisClient),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}

	server.lifecycle = service.NewLifecycleService(service.LifecycleDeps{
		Requests:         requestRepo,
		Resources:        repository.NewResourceRepository(db),
		Users:            repository.NewUserRepository(db),
		Classifier:       classifier.New(cfg.ClassifierURL, cfg.ClassifierTimeout),
		Events:           server.notifier,
		Flags:            server.featureFlags,
		TooFastThreshold: cfg.TooFastThreshold,
	})
	server.reports = service.NewReportService(requestRepo, approvalRepo, usageRepo)

	if cfg.SweepEnabled {
		server.sweeper = service.NewBreachSweeper(server.lifecycle.SweepBreaches, redisClient, cfg.SweepInterval)
	}

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and trace ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api", middleware.AuthRequired, middleware.ContextMiddleware())

	requests := api.Group("/requests")
	requests.Post("/", middleware.RequireRole(models.RoleFaculty), s.SubmitRequest)
	requests.Get("/my", s.ListMyRequests)
	requests.Put("/:id/status",
		middleware.RequireRole(models.RoleSupervisor, models.RoleTrustee),
		middleware.RateLimit(s.redis, s.config.DecideRateLimit, decideRateWindow, "decide"),
		s.DecideRequest)
	requests.Put("/:id/resubmit", s.ResubmitRequest)
	requests.Delete("/:id", s.DeleteRequest)
	requests.Get("/:id/logs", s.GetRequestLogs)

	reports := api.Group("/reports", middleware.RequireRole(models.RoleTrustee))
	reports.Get("/sla-breached", s.GetBreachedReport)
	reports.Get("/suspicious", s.GetSuspiciousReport)
	reports.Get("/counts", s.GetStatusCounts)
	reports.Get("/monthly", s.GetMonthlyCounts)
	reports.Get("/expired", s.GetExpiredReport)
	reports.Get("/usage/:resourceId", s.GetResourceUsage)
	reports.Get("/feature-flags", s.GetFeatureFlags)
}

// LivenessCheck reports that the process is serving.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck pings the database and Redis.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// The sweep lock and the event bus live in Redis.
	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// App builds the Fiber app with middleware and routes.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "Booking API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return models.RespondWithError(c, fe.Code, fe)
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled request error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the breach sweeper and the HTTP listener.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.App()

	if s.sweeper != nil {
		s.sweeper.Start(s.shutdownCtx)
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	// Sweeper goroutine exits before connections close.
	if s.sweeper != nil {
		s.sweeper.Stop()
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
