// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "peloton/docs" // swagger docs
	"peloton/internal/bootstrap"
	"peloton/internal/config"
	"peloton/internal/featureflags"
	"peloton/internal/middleware"
	"peloton/internal/models"
	"peloton/internal/notifications"
	"peloton/internal/observability"
	"peloton/internal/push"
	"peloton/internal/repository"
	"peloton/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// consumedTicketEntry caches a WebSocket ticket consumed from Redis so the
// multi-pass upgrade handshake can revalidate it in-process.
type consumedTicketEntry struct {
	userID    uint
	expiresAt time.Time
}

const consumedTicketGrace = 30 * time.Second

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo         repository.UserRepository
	friendRepo       repository.FriendRepository
	messageRepo      repository.MessageRepository
	groupRepo        repository.GroupRepository
	postRepo         repository.PostRepository
	notificationRepo repository.NotificationRepository
	pushRepo         repository.PushSubscriptionRepository

	notifier *notifications.Notifier
	hub      *notifications.Hub

	featureFlags *featureflags.Manager

	activity            *service.ActivityTracker
	userService         *service.UserService
	friendService       *service.FriendService
	messageService      *service.MessageService
	groupService        *service.GroupService
	postService         *service.PostService
	notificationService *service.NotificationService

	consumedTicketsMu sync.Mutex
	consumedTickets   map[string]consumedTicketEntry

	tracingShutdown func(context.Context) error
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, redisClient, err := bootstrap.InitRuntime(cfg, bootstrap.Options{SeedBuiltIns: true})
	if err != nil {
		return nil, err
	}

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and
// optionally performs explicit seeding.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	prom := fiberprometheus.New("peloton-api")

	server := &Server{
		config:           cfg,
		db:               db,
		redis:            redisClient,
		promMiddleware:   prom,
		userRepo:         repository.NewUserRepository(db),
		friendRepo:       repository.NewFriendRepository(db),
		messageRepo:      repository.NewMessageRepository(db),
		groupRepo:        repository.NewGroupRepository(db),
		postRepo:         repository.NewPostRepository(db),
		notificationRepo: repository.NewNotificationRepository(db),
		pushRepo:         repository.NewPushSubscriptionRepository(db),
		featureFlags:     featureflags.NewManager(cfg.FeatureFlags),
		consumedTickets:  make(map[string]consumedTicketEntry),
	}

	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
	}
	server.hub = notifications.NewHub(redisClient,
		time.Duration(cfg.PresenceTTLSeconds)*time.Second)
	server.hub.SetPresenceCallbacks(
		func(userID uint) { server.broadcastPresenceToFriends(userID, "online") },
		func(userID uint) { server.broadcastPresenceToFriends(userID, "offline") },
	)
	server.hub.EnablePresenceReaper(server.featureFlags.Enabled("presence_reaper", 0))

	var sender push.Sender
	if cfg.PushEnabled() && server.featureFlags.Enabled("web_push", 0) {
		sender = push.NewWebPushSender(cfg)
	}
	server.notificationService = service.NewNotificationService(
		server.notificationRepo, server.pushRepo, sender, server.hub, server.notifier)

	server.activity = service.NewActivityTracker(server.userRepo)
	server.userService = service.NewUserService(server.userRepo, server.activity)
	server.friendService = service.NewFriendService(
		server.friendRepo, server.userRepo, server.notificationService, server.activity)
	server.messageService = service.NewMessageService(
		server.messageRepo, server.friendRepo, server.groupRepo,
		server.notificationService, server.activity, server.hub, server.notifier)
	server.groupService = service.NewGroupService(server.groupRepo)
	server.postService = service.NewPostService(
		server.postRepo, server.groupRepo, server.friendRepo,
		server.notificationService, server.activity)

	return server, nil
}

// broadcastPresenceToFriends tells a user's friends their status changed.
func (s *Server) broadcastPresenceToFriends(userID uint, status string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	friends, err := s.friendRepo.GetFriends(ctx, userID)
	if err != nil {
		middleware.Logger.Warn("presence broadcast: list friends failed",
			slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
		return
	}

	event := notifications.Event{
		Type:    notifications.EventUserStatusChange,
		Payload: notifications.StatusChangePayload{UserID: userID, Status: status},
	}
	for _, friend := range friends {
		s.hub.BroadcastEvent(friend.ID, event)
		if s.notifier != nil {
			_ = s.notifier.PublishUserEvent(ctx, friend.ID, event)
		}
	}
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// OpenTelemetry spans per request
	app.Use(middleware.TracingMiddleware())

	// Prometheus metrics
	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	// Security headers
	app.Use(helmet.New())

	// Structured logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit
	// (e.g. limiter) so browser clients still receive CORS headers on error
	// responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
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
		Title: "Peloton Backend Metrics Dashboard",
	}))

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/refresh", s.AuthRequired(), s.Refresh)
	auth.Post("/logout", s.AuthRequired(), s.Logout)

	// Push bootstrap data is public: the service worker needs the VAPID key
	// before the user logs in.
	api.Get("/push/public-key", s.GetPushPublicKey)

	// Protected routes
	protected := api.Group("", s.AuthRequired())

	// User routes
	users := protected.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Put("/me", s.UpdateMyProfile)
	users.Put("/me/password", s.ChangeMyPassword)
	users.Delete("/me", s.DeleteMyAccount)
	users.Get("/search", middleware.RateLimit(
		s.redis, 10, time.Minute, "search"), s.SearchUsers)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	users.Get("/:id/posts", s.GetUserPosts)
	users.Get("/:id", s.GetUserProfile)

	// WebSocket ticket issuance
	api.Post("/ws/ticket", s.AuthRequired(), s.IssueWSTicket)

	// Friend routes
	friends := protected.Group("/friends")
	friends.Get("/", s.GetFriends)
	// Specific /requests routes before generic /:userId
	friends.Post("/requests/:userId", middleware.RateLimit(
		s.redis, 5, 5*time.Minute, "friend_request"), s.SendFriendRequest)
	friends.Get("/requests", s.GetPendingRequests)
	friends.Get("/requests/sent", s.GetSentRequests)
	friends.Post("/requests/:requestId/accept", s.AcceptFriendRequest)
	friends.Post("/requests/:requestId/reject", s.RejectFriendRequest)
	friends.Get("/status/:userId", s.GetFriendshipStatus)
	// Generic /:userId route must be last
	friends.Delete("/:userId", s.RemoveFriend)

	// Direct message routes
	messages := protected.Group("/messages")
	messages.Get("/", s.GetConversationPartners)
	messages.Get("/unread-count", s.GetUnreadMessageCount)
	messages.Post("/:userId", middleware.RateLimit(
		s.redis, 15, time.Minute, "send_message"), s.SendMessage)
	messages.Get("/:userId", s.GetConversation)
	messages.Post("/:userId/read", s.MarkConversationRead)

	// Group routes
	groups := protected.Group("/groups")
	groups.Post("/", middleware.RateLimit(
		s.redis, 2, 10*time.Minute, "create_group"), s.CreateGroup)
	groups.Get("/", s.GetGroups)
	groups.Get("/mine", s.GetMyGroups)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	groups.Post("/:id/join", s.JoinGroup)
	groups.Post("/:id/leave", s.LeaveGroup)
	groups.Get("/:id/members", s.GetGroupMembers)
	groups.Delete("/:id/members/:userId", s.KickGroupMember)
	groups.Put("/:id/members/:userId/role", s.SetGroupMemberRole)
	groups.Post("/:id/messages", middleware.RateLimit(
		s.redis, 15, time.Minute, "send_group_message"), s.SendGroupMessage)
	groups.Get("/:id/messages", s.GetGroupMessages)
	groups.Post("/:id/messages/:messageId/read", s.MarkGroupMessageRead)
	groups.Get("/:id/unread-count", s.GetGroupUnreadCount)
	groups.Put("/:id", s.UpdateGroup)
	groups.Delete("/:id", s.DeleteGroup)
	groups.Get("/:id", s.GetGroup)

	// Post routes
	posts := protected.Group("/posts")
	posts.Post("/", middleware.RateLimit(
		s.redis, 5, 5*time.Minute, "create_post"), s.CreatePost)
	posts.Get("/", s.GetFeed)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	posts.Post("/:id/replies", middleware.RateLimit(
		s.redis, 10, time.Minute, "create_reply"), s.CreateReply)
	posts.Get("/:id/replies", s.GetReplies)
	posts.Delete("/:id/replies/:replyId", s.DeleteReply)
	posts.Post("/:id/viewed", s.MarkPostViewed)
	posts.Put("/:id", s.UpdatePost)
	posts.Delete("/:id", s.DeletePost)
	posts.Get("/:id", s.GetPost)

	// Notification routes
	notificationsGroup := protected.Group("/notifications")
	notificationsGroup.Get("/", s.GetNotifications)
	notificationsGroup.Get("/unread-count", s.GetUnreadNotificationCount)
	notificationsGroup.Post("/read-all", s.MarkAllNotificationsRead)
	notificationsGroup.Post("/:id/read", s.MarkNotificationRead)
	notificationsGroup.Delete("/:id", s.DeleteNotification)

	// Push subscription routes
	pushGroup := protected.Group("/push")
	pushGroup.Post("/subscriptions", s.SubscribePush)
	pushGroup.Delete("/subscriptions", s.UnsubscribePush)

	// Websocket endpoint - protected by AuthRequired (ticket or JWT)
	ws := api.Group("/ws", s.AuthRequired())
	ws.Get("/", s.WebsocketHandler())

	// Admin routes
	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Get("/users", s.AdminListUsers)
	admin.Post("/users/:id/ban", s.BanUser)
	admin.Post("/users/:id/unban", s.UnbanUser)
	admin.Delete("/posts/:id", s.AdminDeletePost)
	admin.Delete("/groups/:id", s.AdminDeleteGroup)
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

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// Redis carries presence and realtime fan-out; readiness requires it.
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

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(uint)

		admin, err := s.isAdminByUserID(c.Context(), userID)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewUnauthorizedError("Admin access required"))
		}

		return c.Next()
	}
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		isWSPath := strings.HasPrefix(path, "/api/ws")

		// 1. Try WebSocket ticket first (short-lived, single-use)
		ticket := c.Query("ticket")
		if ticket != "" && s.redis != nil {
			if userID, ok := s.consumeTicket(c.Context(), ticket); ok {
				c.Locals("userID", userID)
				c.Locals("wsTicket", ticket)
				ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, userID)
				c.SetUserContext(ctx)
				return c.Next()
			}
			// If ticket was provided but invalid/expired, fail on WS paths
			if isWSPath {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
		}

		// 2. Fall back to JWT (Bearer token or query param)
		authHeader := c.Get("Authorization")
		tokenString := ""
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		// Reject token in query param for WS routes (must use ticket)
		if tokenString == "" && !isWSPath {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
			}
			return []byte(s.config.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid token claims"))
		}

		if issuer, issuerOk := claims["iss"].(string); !issuerOk || issuer != tokenIssuer {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid token issuer"))
		}
		if audience, audienceOk := claims["aud"].(string); !audienceOk || audience != tokenAudience {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid token audience"))
		}

		sub, ok := claims["sub"].(string)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid subject claim"))
		}

		userID, err := strconv.ParseUint(sub, 10, 32)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid user ID in token"))
		}

		// Check JTI for revocation
		if jti, exists := claims["jti"].(string); exists && jti != "" {
			if s.redis != nil {
				isBlacklisted, err := s.redis.Exists(c.Context(), "blacklist:"+jti).Result()
				if err == nil && isBlacklisted > 0 {
					return models.RespondWithError(c, fiber.StatusUnauthorized,
						models.NewUnauthorizedError("Token has been revoked"))
				}
			}
		}

		// Banned accounts keep a valid token until expiry; reject here.
		if banned, err := s.isBannedByUserID(c.Context(), uint(userID)); err == nil && banned {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewUnauthorizedError("Account suspended"))
		}

		c.Locals("userID", uint(userID))
		ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, uint(userID))
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// consumeTicket atomically claims a WebSocket ticket. The first pass consumes
// it from Redis via GETDEL and caches it in-process; subsequent passes of the
// same upgrade handshake validate against the cache.
func (s *Server) consumeTicket(ctx context.Context, ticket string) (uint, bool) {
	now := time.Now()

	s.consumedTicketsMu.Lock()
	for t, entry := range s.consumedTickets {
		if now.After(entry.expiresAt) {
			delete(s.consumedTickets, t)
		}
	}
	if entry, ok := s.consumedTickets[ticket]; ok {
		s.consumedTicketsMu.Unlock()
		return entry.userID, true
	}
	s.consumedTicketsMu.Unlock()

	key := fmt.Sprintf("ws_ticket:%s", ticket)
	userIDStr, err := s.redis.GetDel(ctx, key).Result()
	if err != nil {
		return 0, false
	}
	userID, err := strconv.ParseUint(userIDStr, 10, 32)
	if err != nil {
		return 0, false
	}

	s.consumedTicketsMu.Lock()
	s.consumedTickets[ticket] = consumedTicketEntry{
		userID:    uint(userID),
		expiresAt: now.Add(consumedTicketGrace),
	}
	s.consumedTicketsMu.Unlock()

	return uint(userID), true
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	tracingShutdown, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "peloton-api",
		ServiceVersion: "1.0.0",
		Environment:    s.config.Env,
		Enabled:        s.config.OTLPEndpoint != "",
		Exporter:       "otlp",
		OTLPEndpoint:   s.config.OTLPEndpoint,
		SamplerRatio:   0.2,
	})
	if err != nil {
		return fmt.Errorf("tracing init failed: %w", err)
	}
	s.tracingShutdown = tracingShutdown

	app := fiber.New(fiber.Config{
		AppName: "Peloton API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			middleware.Logger.Error("unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	s.notificationService.Start()

	if s.notifier != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("hub wiring failed", slog.String("error", err.Error()))
			}
		}()
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
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

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down hub", slog.String("error", err.Error()))
	}

	if err := s.notificationService.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error draining notification queue", slog.String("error", err.Error()))
	}

	if s.tracingShutdown != nil {
		if err := s.tracingShutdown(ctx); err != nil {
			middleware.Logger.Error("error flushing tracer", slog.String("error", err.Error()))
		}
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
