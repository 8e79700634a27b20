// Package server contains HTTP and WebSocket handlers for the chat API.
package server

import (
	"context"
	"errors"
	"time"

	"bsuchat/internal/config"
	"bsuchat/internal/database"
	"bsuchat/internal/featureflags"
	"bsuchat/internal/middleware"
	"bsuchat/internal/moderation"
	"bsuchat/internal/notifications"
	"bsuchat/internal/repository"
	"bsuchat/internal/rooms"
	"bsuchat/internal/security"
	"bsuchat/internal/service"
	"bsuchat/internal/settings"

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

// Deps are the already-initialized collaborators of a Server.
type Deps struct {
	DB         *gorm.DB
	Redis      *redis.Client
	Users      repository.UserRepository
	Settings   settings.Store
	Moderation moderation.Store
	Rooms      *rooms.Registry
	Hub        *notifications.Hub
	Router     *service.MessageRouter
	Tokens     *security.TokenService
	Flags      *featureflags.Manager
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	users          repository.UserRepository
	settings       settings.Store
	moderation     *service.ModerationService
	rooms          *rooms.Registry
	hub            *notifications.Hub
	router         *service.MessageRouter
	tokens         *security.TokenService
	sendLimiter    *middleware.SendLimiter
	featureFlags   *featureflags.Manager
}

// NewServer creates a server from initialized dependencies.
func NewServer(cfg *config.Config, deps Deps) *Server {
	tokens := deps.Tokens
	if tokens == nil {
		tokens = security.NewTokenService(cfg.JWTSecret, 7*24*time.Hour)
	}
	flags := deps.Flags
	if flags == nil {
		flags = featureflags.NewManager(cfg.FeatureFlags)
	}

	return &Server{
		config:         cfg,
		db:             deps.DB,
		redis:          deps.Redis,
		promMiddleware: middleware.InitMetrics("bsuchat-api"),
		users:          deps.Users,
		settings:       deps.Settings,
		moderation:     service.NewModerationService(deps.Moderation, deps.Users),
		rooms:          deps.Rooms,
		hub:            deps.Hub,
		router:         deps.Router,
		tokens:         tokens,
		sendLimiter:    middleware.NewSendLimiter(deps.Redis, cfg.SendRateLimit, time.Minute),
		featureFlags:   flags,
	}
}

// App builds the fiber application on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:      "BSU Chat API",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}
	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	app.Use(cors.New(cors.Config{
		AllowOrigins: s.config.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		MaxAge:       86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || c.Path() == "/ws"
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

	app.Get("/ws", s.WebSocketUpgrade, s.WebSocketHandler())

	api := app.Group("/api")
	api.Get("/faculties", s.GetFaculties)
	api.Get("/rules", s.GetRules)
	api.Get("/daily-topic", s.GetDailyTopic)

	protected := api.Group("", middleware.AuthRequired(s.tokens))
	protected.Post("/ws/ticket", middleware.RateLimit(s.redis, 30, time.Minute, "ws_ticket"), s.IssueWSTicket)

	admin := protected.Group("/admin", middleware.AdminRequired)
	admin.Get("/reported-users", s.GetReportedUsers)
	admin.Get("/users", s.ListUsers)
	admin.Get("/users/:id/moderation", s.GetUserModeration)
	admin.Put("/users/:id/status", s.UpdateUserStatus)
	admin.Put("/daily-topic", s.UpdateDailyTopic)
	admin.Put("/rules", s.UpdateRules)
	admin.Get("/filter-words", s.GetFilterWords)
	admin.Put("/filter-words", s.UpdateFilterWords)
	admin.Get("/message-expiry", s.GetMessageExpiry)
	admin.Put("/message-expiry", s.UpdateMessageExpiry)
	admin.Get("/rooms", s.GetRooms)
	admin.Get("/feature-flags", s.GetFeatureFlags)
}

// LivenessCheck reports that the process is up
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database and redis health. Redis is optional: an
// unconfigured client reports "disabled" and does not fail the check.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if s.db == nil {
		dbStatus = "unavailable"
	} else if err := database.Ping(ctx, s.db); err != nil {
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
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	connections := 0
	if s.hub != nil {
		connections = s.hub.ConnectionCount()
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"connections": connections,
		"time":        time.Now(),
	})
}

// Start listens on the configured port until the app is shut down.
func (s *Server) Start() error {
	return s.App().Listen(":" + s.config.Port)
}

// Shutdown notifies websocket clients and stops the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.hub != nil {
		errs = append(errs, s.hub.Shutdown(ctx))
	}
	if s.app != nil {
		errs = append(errs, s.app.ShutdownWithContext(ctx))
	}
	return errors.Join(errs...)
}
