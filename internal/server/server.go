// Package server exposes the archive over the JSON AJAX routes consumed by
// the web frontend.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"unscored/internal/config"
	"unscored/internal/middleware"
	"unscored/internal/models"
	"unscored/internal/observability"
	"unscored/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	archive        *service.ArchiveService
	auth           *middleware.AdminAuth
	blocks         *middleware.Blocklist
	limiter        middleware.Limiter
}

// NewServer builds a Server over already-initialized dependencies. Rate limit
// counters live in Redis when a client is given and in process otherwise.
func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, archive *service.ArchiveService, blocks *middleware.Blocklist) *Server {
	var limiter middleware.Limiter
	if cfg.RateLimit > 0 {
		if redisClient != nil {
			limiter = middleware.NewRedisLimiter(redisClient, cfg.RateLimit, middleware.RateLimitWindow)
		} else {
			limiter = middleware.NewMemoryLimiter(cfg.RateLimit, middleware.RateLimitWindow)
		}
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("unscored"),
		archive:        archive,
		auth:           middleware.NewAdminAuth(cfg),
		blocks:         blocks,
		limiter:        limiter,
	}

	s.app = fiber.New(fiber.Config{
		AppName:      "unscored",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(s.app)
	s.SetupRoutes(s.app)
	return s
}

// App returns the configured fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	observability.Logger.ErrorContext(c.UserContext(), "unhandled request error", slog.String("error", err.Error()))
	return models.RespondWithError(c, models.NewInternalError(err))
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())
	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}
	app.Use(middleware.StructuredLogger())
	app.Use(compress.New())
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	ajax := app.Group("/ajax")
	ajax.Get("/parseurl.json", s.ParseURL)

	limited := ajax.Group("", middleware.RateLimit(s.limiter, s.blocks, middleware.FailOpen))
	limited.Get("/thread.json", s.GetThread)
	limited.Get("/post.json", s.GetPost)
	limited.Get("/comment.json", s.GetComment)
	limited.Get("/profile.json", s.GetProfile)
	limited.Get("/feed.json", s.GetFeed)
	limited.Get("/communities.json", s.GetCommunities)
	limited.Get("/logs.json", s.GetModlogs)
	limited.Post("/removal-request", s.CreateRemovalRequest)
	limited.Post("/admin-login", s.AdminLogin)

	admin := ajax.Group("/admin", s.auth.AdminRequired())
	admin.Get("/removal-requests", s.GetRemovalRequests)
	admin.Post("/legal-remove-item", s.LegalRemoveItem)
	admin.Post("/legal-approve-item", s.LegalApproveItem)
	admin.Get("/ip-blocks", s.GetIPBlocks)
	admin.Post("/block-ip", s.BlockIP)
	admin.Post("/unblock-ip", s.UnblockIP)
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	observability.Logger.Info("Starting web server", slog.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
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
