// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	_ "bookswap/docs" // swagger docs
	"bookswap/internal/bootstrap"
	"bookswap/internal/config"
	"bookswap/internal/featureflags"
	"bookswap/internal/mail"
	"bookswap/internal/middleware"
	"bookswap/internal/models"
	"bookswap/internal/notifications"
	"bookswap/internal/repository"
	"bookswap/internal/service"
	"bookswap/internal/worker"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
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

	userRepo     repository.UserRepository
	notifier     *notifications.Notifier
	hub          *notifications.Hub
	featureFlags *featureflags.Manager
	reminders    *worker.ReminderWorker

	authService         *service.AuthService
	bookService         *service.BookService
	loanService         *service.LoanService
	reminderService     *service.ReminderService
	ratingService       *service.RatingService
	disputeService      *service.DisputeService
	messageService      *service.MessageService
	notificationService *service.NotificationService
	adminService        *service.AdminService
}

// NewServer connects the database and Redis, prepares the schema and builds
// the server with a mailer from cfg.
func NewServer(cfg *config.Config, opts bootstrap.Options) (*Server, error) {
	db, redisClient, err := bootstrap.InitRuntime(cfg, opts)
	if err != nil {
		return nil, err
	}

	mailer, err := mail.New(cfg, middleware.Logger)
	if err != nil {
		return nil, fmt.Errorf("mailer setup failed: %w", err)
	}
	return NewServerWithDeps(cfg, db, redisClient, mailer)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// A nil redisClient disables pub/sub, the token blacklist and per-route limits.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, mailer mail.Mailer) (*Server, error) {
	users := repository.NewUserRepository(db)
	books := repository.NewBookRepository(db)
	loans := repository.NewLoanRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	ratings := repository.NewRatingRepository(db)
	disputes := repository.NewDisputeRepository(db)
	messages := repository.NewMessageRepository(db)

	flags := featureflags.NewManager(cfg.FeatureFlags)
	notifier := notifications.NewNotifier(redisClient)
	dispatcher := service.NewDispatcher(notificationRepo, notifier, mailer)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("bookswap-api"),
		userRepo:       users,
		notifier:       notifier,
		featureFlags:   flags,

		authService: service.NewAuthService(users, redisClient, cfg.JWTSecret),
		bookService: service.NewBookService(db, books, loans),
		loanService: service.NewLoanService(db, books, loans, users, dispatcher, flags, cfg.LoanPeriod()),
		reminderService: service.NewReminderService(db, loans, notificationRepo, notifier, mailer,
			cfg.ReminderWindowDays, cfg.ReminderCooldown()),
		ratingService:       service.NewRatingService(loans, ratings),
		disputeService:      service.NewDisputeService(db, loans, disputes, dispatcher),
		messageService:      service.NewMessageService(loans, messages, users, dispatcher),
		notificationService: service.NewNotificationService(notificationRepo),
		adminService:        service.NewAdminService(users, books, loans, disputes),
	}

	if redisClient != nil {
		s.hub = notifications.NewHub()
	}
	if cfg.ReminderWorkerEnabled {
		s.reminders = worker.NewReminderWorker(s.reminderService, cfg.ReminderInterval())
	}

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}
	app.Use(middleware.TracingMiddleware())

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
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
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api.Get("/swagger/*", swagger.HandlerDefault)

	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/logout", s.AuthRequired(), s.Logout)
	auth.Get("/me", s.AuthRequired(), s.Me)

	// /books/mine is registered before /books/:id.
	api.Get("/books", s.SearchBooks)
	api.Get("/books/mine", s.AuthRequired(), s.GetMyBooks)
	api.Get("/books/:id", s.GetBook)

	api.Get("/users/:id/ratings", s.GetUserRatings)

	protected := api.Group("", s.AuthRequired())

	books := protected.Group("/books")
	books.Post("/", middleware.RateLimit(s.redis, 20, time.Hour, "create_book"), s.CreateBook)
	books.Put("/:id", s.UpdateBook)
	books.Delete("/:id", s.DeleteBook)
	books.Post("/:id/toggle-status", s.ToggleBookStatus)

	requests := protected.Group("/requests")
	requests.Post("/", middleware.RateLimit(s.redis, 10, time.Minute, "create_request"), s.CreateRequest)
	requests.Get("/incoming", s.GetIncomingRequests)
	requests.Get("/outgoing", s.GetOutgoingRequests)
	requests.Post("/:id/approve", s.ApproveRequest)
	requests.Post("/:id/reject", s.RejectRequest)
	requests.Post("/:id/return", s.ReturnRequest)
	requests.Get("/:id/messages", s.GetRequestMessages)
	requests.Post("/:id/messages", middleware.RateLimit(s.redis, 15, time.Minute, "send_message"), s.SendRequestMessage)
	requests.Post("/:id/ratings", s.RateRequest)
	requests.Post("/:id/disputes", middleware.RateLimit(s.redis, 5, time.Hour, "open_dispute"), s.OpenDispute)
	requests.Get("/:id", s.GetRequest)

	protected.Get("/disputes/mine", s.GetMyDisputes)

	notifs := protected.Group("/notifications")
	notifs.Get("/", s.GetNotifications)
	notifs.Get("/unread-count", s.GetUnreadCount)
	notifs.Post("/read-all", s.MarkAllNotificationsRead)
	notifs.Post("/:id/read", s.MarkNotificationRead)
	notifs.Delete("/:id", s.DeleteNotification)

	ws := api.Group("/ws", s.AuthRequired())
	ws.Get("/", s.WebsocketHandler())

	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/dashboard", s.GetDashboard)
	admin.Get("/users", s.GetAdminUsers)
	admin.Delete("/users/:id", s.DeleteUser)
	admin.Post("/users/:id/toggle-role", s.ToggleUserRole)
	admin.Get("/books", s.GetAdminBooks)
	admin.Delete("/books/:id", s.AdminDeleteBook)
	admin.Get("/disputes", s.GetAdminDisputes)
	admin.Put("/disputes/:id", s.UpdateDispute)
	admin.Get("/feature-flags", s.GetFeatureFlags)
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

	// Redis is optional: without it notifications are stored but not pushed.
	redisStatus := "unavailable"
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

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals("userID").(uint)

		user, err := s.userRepo.GetByID(c.UserContext(), userID)
		if err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Account no longer exists"))
			}
			return models.RespondWithAppError(c, err)
		}
		if !user.IsAdmin() {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}

		return c.Next()
	}
}

// AuthRequired returns the authentication middleware. WebSocket upgrades may
// pass the token as ?token= since browsers cannot set headers on them.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := middleware.BearerToken(c)
		if tokenString == "" && strings.HasPrefix(c.Path(), "/api/ws") {
			tokenString = c.Query("token")
		}

		claims, err := s.authService.Authenticate(c.UserContext(), tokenString)
		if err != nil {
			msg := "Invalid or expired token"
			switch {
			case errors.Is(err, middleware.ErrMissingToken):
				msg = "Authorization required"
			case errors.Is(err, service.ErrTokenRevoked):
				msg = "Token has been revoked"
			}
			return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(msg))
		}

		c.Locals("userID", claims.UserID)
		c.Locals("claims", claims)
		ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, claims.UserID)
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// App builds the fiber app with middleware and routes, without listening.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "BookSwap API",
		BodyLimit: 1 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.App()

	if s.hub != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				log.Printf("failed to start %s wiring: %v", s.hub.Name(), err)
			}
		}()
	}
	if s.reminders != nil {
		s.reminders.Start(s.shutdownCtx)
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if s.reminders != nil {
		select {
		case <-s.reminders.Done():
		case <-ctx.Done():
			log.Printf("reminder worker did not stop before shutdown deadline")
		}
	}

	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			log.Printf("error shutting down %s: %v", s.hub.Name(), err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
