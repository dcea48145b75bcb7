package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/blog"
	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/domain/notification"
	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/platform/assistant"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/blobstore"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/middleware"
	"github.com/clinic/clinic/internal/platform/pubsub"
	"github.com/clinic/clinic/internal/platform/queue"
	"github.com/clinic/clinic/internal/platform/validate"
	"github.com/clinic/clinic/internal/platform/websocket"
)

const version = "0.1.0"

// app holds the wired services shared by the server and the worker.
type app struct {
	tokens        *auth.TokenManager
	hub           *websocket.Hub
	identity      *identity.Service
	scheduling    *scheduling.Service
	notifications *notification.Service
	blog          *blog.Service
	images        blobstore.ImageStore
	answerer      assistant.Answerer

	closers []io.Closer
}

func (a *app) Close() error {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
	return nil
}

func newApp(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*app, error) {
	a := &app{
		tokens: auth.NewTokenManager([]byte(cfg.JWTSecret), cfg.JWTTTL),
		hub:    websocket.NewHub(logger),
	}

	// Push events go straight to the local hub unless Redis is configured,
	// in which case every instance relays them to its own clients.
	var publisher websocket.EventPublisher = a.hub
	if cfg.RedisURL != "" {
		client, err := pubsub.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client)
		broker := pubsub.NewRedisBroker(client, a.hub, logger)
		if err := broker.Start(ctx); err != nil {
			return nil, err
		}
		publisher = broker
		logger.Info().Str("channel", pubsub.DefaultChannel).Msg("relaying push events through redis")
	}

	users := identity.NewUserRepo(pool)
	a.identity = identity.NewService(users, a.tokens)
	a.notifications = notification.NewService(notification.NewNotificationRepo(pool), a.identity,
		publisher, cfg.FanoutConcurrency, logger)
	a.scheduling = scheduling.NewService(scheduling.NewAppointmentRepo(pool), db.NewTxManager(pool),
		a.notifications, logger)

	images, err := newImageStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.images = images

	var announcer blog.Announcer = a.notifications
	if cfg.UsesQueue() {
		opt, err := queue.RedisOpt(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		qc := queue.NewClient(opt, logger)
		a.closers = append(a.closers, qc)
		announcer = qc
	}
	a.blog = blog.NewService(blog.NewArticleRepo(pool), images, announcer, logger)

	if cfg.GeminiAPIKey != "" {
		gc, err := assistant.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, gc)
		a.answerer = gc
	} else {
		logger.Warn().Msg("GEMINI_API_KEY not set, assistant disabled")
	}

	return a, nil
}

func newImageStore(ctx context.Context, cfg *config.Config) (blobstore.ImageStore, error) {
	switch cfg.ImageStore {
	case "cloudinary":
		return blobstore.NewCloudinaryStore(cfg.CloudinaryCloud, cfg.CloudinaryKey, cfg.CloudinarySecret)
	case "s3":
		return blobstore.NewS3Store(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3PublicURL)
	case "memory":
		return blobstore.NewInMemoryStore(fmt.Sprintf("http://localhost:%s%s", cfg.Port, blobstore.ServePrefix)), nil
	default:
		return nil, fmt.Errorf("unknown image store %q", cfg.ImageStore)
	}
}

func newRouter(cfg *config.Config, a *app, pool *pgxpool.Pool, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validate.New()
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit("1M", cfg.MaxUploadSize))
	e.Use(auth.JWTMiddleware(a.tokens, auth.AuthSkipper))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool, pool))

	if mem, ok := a.images.(*blobstore.InMemoryStore); ok {
		mem.RegisterRoutes(e)
	}

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api := e.Group("/api", middleware.RateLimit(rateLimitCfg))

	authBurst := int(cfg.AuthRateLimitRPS * 2)
	if authBurst < 1 {
		authBurst = 1
	}
	authGroup := api.Group("/auth", middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.AuthRateLimitRPS,
		BurstSize:         authBurst,
	}))

	identity.NewHandler(a.identity).RegisterRoutes(api, authGroup)
	scheduling.NewHandler(a.scheduling).RegisterRoutes(api)
	notification.NewHandler(a.notifications, a.scheduling).RegisterRoutes(api)
	blog.NewHandler(a.blog, cfg.MaxUploadSize).RegisterRoutes(api)
	assistant.NewHandler(a.answerer, logger).RegisterRoutes(api)
	websocket.NewHandler(a.hub, a.tokens, cfg.CORSOrigins, logger).RegisterRoutes(api)

	return e
}
