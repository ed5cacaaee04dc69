// Package server contains the HTTP handlers for the directchat API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"directchat/internal/cache"
	"directchat/internal/config"
	"directchat/internal/database"
	"directchat/internal/featureflags"
	"directchat/internal/middleware"
	"directchat/internal/models"
	"directchat/internal/notifications"
	"directchat/internal/repository"
	"directchat/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
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
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	userRepo       repository.UserRepository
	chatRepo       repository.ChatRepository
	messageRepo    repository.MessageRepository
	notifier       *notifications.Notifier
	profileCache   *cache.Store
	featureFlags   *featureflags.Manager
	chatService    *service.ChatService
	accountService *service.AccountService
}

// NewServer connects to the database and Redis and creates a server.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// A nil client runs the API without cache, rate limiting or activity events.
	redisClient := cache.NewClient(ctx, cfg.RedisURL)

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("directchat-api"),
		userRepo:       repository.NewUserRepository(db),
		chatRepo:       repository.NewChatRepository(db),
		messageRepo:    repository.NewMessageRepository(db),
		notifier:       notifications.NewNotifier(redisClient),
		profileCache:   cache.NewStore(redisClient),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}
	server.buildServices()
	return server, nil
}

// buildServices creates the chat and account services over the server's
// repositories. It runs once, before the server handles requests.
func (s *Server) buildServices() {
	var ttl time.Duration
	if s.config != nil {
		ttl = s.config.ProfileCacheTTL
	}
	s.chatService = service.NewChatService(s.chatRepo, s.userRepo, s.messageRepo,
		s.notifier, s.featureFlags, s.storeTimeout())
	s.accountService = service.NewAccountService(s.userRepo, s.profileCache, s.featureFlags,
		ttl, s.storeTimeout())
}

func (s *Server) storeTimeout() time.Duration {
	if s.config == nil {
		return 0
	}
	return s.config.StoreTimeout
}

// limiterStore returns the Redis client as a rate limit store, or a true nil
// interface when Redis is unavailable.
func (s *Server) limiterStore() redis.Cmdable {
	if s.redis == nil {
		return nil
	}
	return s.redis
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, traceparent, tracestate",
		AllowCredentials: origins != "*",
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
			return c.Status(fiber.StatusTooManyRequests).JSON(models.Result{
				Kind:      models.ResultClientError,
				Message:   "Too many requests, please try again later.",
				Code:      "RATE_LIMITED",
				Retryable: true,
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "directchat metrics",
	}))

	// Public account routes
	api.Get("/users/check-username", middleware.RateLimit(
		s.limiterStore(), 30, time.Minute, "check_username"), s.CheckUsername)

	protected := api.Group("", middleware.AuthRequired(s.config))

	account := protected.Group("/account")
	account.Post("/", middleware.RateLimit(
		s.limiterStore(), 5, 10*time.Minute, "create_account"), s.CreateAccount)
	account.Put("/username", s.UpdateUsername)
	account.Post("/setup", s.FinalizeAccountSetup)

	users := protected.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Get("/search", middleware.RateLimit(
		s.limiterStore(), 30, time.Minute, "user_search"), s.SearchUsers)

	protected.Get("/feature-flags", s.GetFeatureFlags)

	chats := protected.Group("/chats")
	chats.Get("/", s.ListChats)
	chats.Post("/private", s.ResolvePrivateChat)
	chats.Get("/:id/messages", s.ListMessages)
	chats.Post("/:id/messages", middleware.RateLimit(
		s.limiterStore(), 30, time.Minute, "send_message"), s.AppendMessage)
	chats.Post("/:id/read", s.MarkChatRead)
}

// NewApp builds the Fiber app with middleware and routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "directchat",
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// errorHandler renders errors that escape a handler, including Fiber's own
// routing errors, as tagged results.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := models.CodeValidation
		switch {
		case fe.Code == fiber.StatusNotFound || fe.Code == fiber.StatusMethodNotAllowed:
			code = models.CodeNotFound
		case fe.Code == fiber.StatusUnauthorized:
			code = models.CodeUnauthorized
		case fe.Code == fiber.StatusForbidden:
			code = models.CodeForbidden
		case fe.Code == fiber.StatusServiceUnavailable:
			code = models.CodeTransient
		case fe.Code >= fiber.StatusInternalServerError:
			code = models.CodeInternal
		}
		return models.RespondWithError(c, &models.AppError{Code: code, Message: fe.Message})
	}

	slog.ErrorContext(c.UserContext(), "unhandled error", slog.String("path", c.Path()), slog.String("error", err.Error()))
	return models.RespondWithError(c, err)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now().UTC(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional; only
// the database decides readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if s.db == nil {
		dbStatus = "unavailable"
	} else if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "degraded"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now().UTC(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	if s.redis != nil {
		go func() {
			err := s.notifier.SubscribeActivity(s.shutdownCtx, func(userID string, event notifications.ChatActivity) {
				slog.Debug("chat activity",
					slog.String("recipient_id", userID),
					slog.String("type", event.Type),
					slog.String("chat_id", event.ChatID),
				)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("chat activity subscription stopped", slog.String("error", err.Error()))
			}
		}()
	}

	slog.Info("server starting", slog.String("port", s.config.Port), slog.String("env", s.config.Env))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop the activity subscription
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			slog.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			if cerr := sqlDB.Close(); cerr != nil {
				slog.Error("error closing sql DB", slog.String("error", cerr.Error()))
			}
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			slog.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	slog.Info("server shutdown complete")
	return nil
}
