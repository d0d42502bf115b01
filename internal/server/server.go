package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"anoa.com/tutorhub/internal/config"
	"anoa.com/tutorhub/internal/middleware"

	dashboardHttp "anoa.com/tutorhub/internal/modules/dashboard/delivery/http"
	dashboardRepo "anoa.com/tutorhub/internal/modules/dashboard/repository"
	dashboardService "anoa.com/tutorhub/internal/modules/dashboard/service"

	dispatchHttp "anoa.com/tutorhub/internal/modules/dispatch/delivery/http"
	dispatchMQ "anoa.com/tutorhub/internal/modules/dispatch/delivery/mq"
	dispatchRepo "anoa.com/tutorhub/internal/modules/dispatch/repository"
	dispatchService "anoa.com/tutorhub/internal/modules/dispatch/service"

	inboxHttp "anoa.com/tutorhub/internal/modules/inbox/delivery/http"
	"anoa.com/tutorhub/internal/modules/inbox/roles"
	inboxService "anoa.com/tutorhub/internal/modules/inbox/service"

	notiHttp "anoa.com/tutorhub/internal/modules/notification/delivery/http"
	notifRepo "anoa.com/tutorhub/internal/modules/notification/repository"
	notifService "anoa.com/tutorhub/internal/modules/notification/service"

	searchService "anoa.com/tutorhub/internal/modules/search/service"

	userHttp "anoa.com/tutorhub/internal/modules/user/delivery/http"
	userRepo "anoa.com/tutorhub/internal/modules/user/repository"
	userService "anoa.com/tutorhub/internal/modules/user/service"

	"anoa.com/tutorhub/pkg/cache"
	"anoa.com/tutorhub/pkg/mailer"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/meilisearch/meilisearch-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dependencies are the process-wide clients. Redis, Meili and Publisher are
// optional; nil disables the features built on them.
type Dependencies struct {
	Config    *config.Config
	DB        *gorm.DB
	Redis     *redis.Client
	Meili     meilisearch.ServiceManager
	Mailer    mailer.Sender
	Publisher dispatchMQ.Publisher
	Logger    *zap.Logger
}

type Server struct {
	engine       *gin.Engine
	eventHandler *dispatchMQ.EventHandler
}

func NewServer(deps Dependencies) *Server {
	cfg := deps.Config
	log := deps.Logger

	userRepo := userRepo.NewUserRepository(deps.DB)
	authSvc := userService.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTTTL)
	authHandler := userHttp.NewAuthHandler(authSvc)

	// Notification store
	var notifOpts []notifService.Option
	if deps.Redis != nil {
		notifOpts = append(notifOpts, notifService.WithBroadcaster(notifService.NewRedisBroadcaster(deps.Redis)))
	}
	if deps.Meili != nil {
		notifOpts = append(notifOpts, notifService.WithIndexer(searchService.NewMeiliMessageSearch(deps.Meili, log)))
	}
	notificationRepository := notifRepo.NewNotificationRepository(deps.DB)
	notificationSvc := notifService.NewNotificationService(notificationRepository, log, notifOpts...)
	notificationHandler := notiHttp.NewNotificationHandler(notificationSvc, deps.Redis, log)

	// Delivery pipeline
	pipeline := dispatchService.NewPipeline(
		userRepo,
		dispatchRepo.NewRequestRepository(deps.DB),
		notificationSvc,
		deps.Mailer,
		cfg.AppURL,
		log,
	)
	dispatchHandler := dispatchHttp.NewDispatchHandler(pipeline)

	// Urgent counts
	var store cache.Store = cache.NewMemoryStore()
	if deps.Redis != nil {
		store = cache.NewRedisStore(deps.Redis)
	}
	dashboardSvc := dashboardService.NewDashboardService(dashboardRepo.NewCountSource(deps.DB), store, cfg.UrgentCountsTTL, log)
	dashboardHandler := dashboardHttp.NewDashboardHandler(dashboardSvc)

	// Role-scoped inboxes
	inboxSvc := inboxService.NewInboxService(notificationSvc, userRepo, pipeline, log,
		inboxService.WithRateLimit(deps.Redis, cfg.RateLimitMessage),
	)
	inboxHandler := inboxHttp.NewInboxHandler(inboxSvc)

	router := gin.New()

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log, "/healthz", "/metrics"))

	router.GET("/healthz", healthz(deps.DB))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.NewAuthMiddleware(userRepo, cfg.JWTSecret)

	api := router.Group("/api")

	// Public routes (no auth required)
	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
	}

	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth(), authMiddleware.LoadUser())
	{
		// Admin routes
		adminGroup := protected.Group("/admin")
		adminGroup.Use(authMiddleware.RequireAdmin())
		{
			adminGroup.GET("/dashboard/urgent-actions", dashboardHandler.GetUrgentActions)
			adminGroup.POST("/dispatch/events", dispatchHandler.Deliver)
			adminGroup.POST("/dispatch/preview", dispatchHandler.Preview)
		}

		// Inbox routes, one prefix per role
		for _, rc := range roles.All() {
			inboxHandler.Register(protected, rc, authMiddleware.RequireRole(rc.Role))
		}

		// Notification routes
		protected.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
		protected.GET("/notifications/ws", notificationHandler.HandleWebSocket)
	}

	return &Server{
		engine:       router,
		eventHandler: dispatchMQ.NewEventHandler(pipeline, deps.Publisher, dashboardSvc, log),
	}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// EventHandler consumes broker events into the delivery pipeline.
func (s *Server) EventHandler() *dispatchMQ.EventHandler {
	return s.eventHandler
}

func healthz(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func setupCORS(router *gin.Engine, allowedOrigins string) {
	var origins []string
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
