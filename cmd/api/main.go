package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saxon-wu/living/config"
	"github.com/saxon-wu/living/internal/auth"
	"github.com/saxon-wu/living/internal/cache"
	"github.com/saxon-wu/living/internal/database"
	"github.com/saxon-wu/living/internal/events"
	"github.com/saxon-wu/living/internal/handlers"
	"github.com/saxon-wu/living/internal/jobs"
	"github.com/saxon-wu/living/internal/logging"
	"github.com/saxon-wu/living/internal/media"
	"github.com/saxon-wu/living/internal/middleware"
	"github.com/saxon-wu/living/internal/response"
	"github.com/saxon-wu/living/internal/services"
	"github.com/saxon-wu/living/internal/telemetry"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging.Init(cfg.IsDevelopment())

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Options{
		ServiceName: cfg.OTelServiceName,
		Endpoint:    cfg.OTelEndpoint,
		Environment: cfg.Environment,
	})
	if err != nil {
		logging.Logger().Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logging.Logger().Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	if err := middleware.InitMetrics(); err != nil {
		logging.Logger().Fatal().Err(err).Msg("failed to initialize metrics")
	}

	db, err := database.Open(database.Options{
		URL:           cfg.DatabaseURL,
		IsDevelopment: cfg.IsDevelopment(),
		Tracing:       cfg.OTelEndpoint != "",
	})
	if err != nil {
		logging.Logger().Fatal().Err(err).Msg("failed to initialize database")
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		logging.Logger().Fatal().Err(err).Msg("failed to run database migrations")
	}

	// Redis backs the rate limiter, the tag tree cache and the job queue. Without
	// it the API still serves, with in-process limits and no background work.
	var (
		window    cache.WindowStore = cache.NewMemoryWindow(cfg.RateLimitRequests, cfg.RateLimitWindow)
		tagCache  services.TagTreeCache
		notifier  services.Notifier
		queue     services.VariantQueue
		redisAddr string
	)
	if redisClient, err := cache.NewRedis(ctx, cfg.RedisURL); err != nil {
		logging.Logger().Warn().Err(err).Msg("redis unavailable, using in-memory rate limiting")
	} else {
		defer redisClient.Close()
		window = cache.NewRedisWindow(redisClient, cfg.RateLimitRequests, cfg.RateLimitWindow)
		tagCache = cache.NewTagTree(redisClient, cache.TagTreeTTL)
		redisAddr = cfg.RedisAddr()

		jobClient, err := jobs.NewClient(redisAddr)
		if err != nil {
			logging.Logger().Fatal().Err(err).Msg("failed to create job client")
		}
		defer jobClient.Close()
		notifier, queue = jobClient, jobClient
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.NatsURL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NatsURL)
		if err != nil {
			logging.Logger().Warn().Err(err).Msg("nats unavailable, domain events disabled")
		} else {
			publisher = natsPublisher
		}
	}
	defer publisher.Close()

	processor := media.NewProcessor(cfg.ImageWorkers)
	store := media.NewStore(cfg.UploadDir, cfg.CacheDir, processor)
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTExpiresIn)

	fileService := services.NewFileService(db, services.FileOptions{
		BaseURL:   cfg.PublicBaseURL,
		MaxBytes:  cfg.MaxUploadBytes,
		Store:     store,
		Processor: processor,
		Queue:     queue,
	})
	userService := services.NewUserService(db, cfg.PublicBaseURL, fileService, tagCache)
	authService := services.NewAuthService(db, tokens, cfg.PublicBaseURL)
	articleService := services.NewArticleService(db, services.ArticleOptions{
		BaseURL:  cfg.PublicBaseURL,
		Cooldown: cfg.ArticleCooldown,
		Events:   publisher,
	})
	commentService := services.NewCommentService(db, services.CommentOptions{Notifier: notifier, Events: publisher})
	replyService := services.NewReplyService(db, services.ReplyOptions{Notifier: notifier, Events: publisher})
	tagService := services.NewTagService(db, tagCache)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.ErrorHandler
	e.Validator = middleware.NewValidator()

	skipHealth := func(c echo.Context) bool {
		return c.Path() == "/v1/health"
	}

	e.Use(response.StartTimer())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(otelecho.Middleware(cfg.OTelServiceName, otelecho.WithSkipper(skipHealth)))
	e.Use(middleware.Metrics())
	e.Use(middleware.RateLimit(window, skipHealth))
	e.Use(echomiddleware.BodyLimit(bodyLimit(cfg.MaxUploadBytes)))

	if cfg.IsDevelopment() {
		e.Use(echomiddleware.Logger())
	}

	handlers.Register(e.Group("/v1"), handlers.Handlers{
		Health:   handlers.NewHealthHandler(db, redisAddr),
		Auth:     handlers.NewAuthHandler(authService, userService),
		Users:    handlers.NewUserHandler(userService, articleService),
		Articles: handlers.NewArticleHandler(articleService),
		Comments: handlers.NewCommentHandler(commentService, replyService),
		Replies:  handlers.NewReplyHandler(replyService),
		Tags:     handlers.NewTagHandler(tagService),
		Files:    handlers.NewFileHandler(fileService),
	}, tokens, userService)

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		logging.Logger().Info().Str("port", cfg.Port).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logging.Logger().Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Logger().Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logging.Logger().Error().Err(err).Msg("failed to shutdown server")
	}
}

// bodyLimit leaves headroom over the upload limit for multipart framing.
func bodyLimit(maxUpload int64) string {
	if maxUpload <= 0 {
		maxUpload = services.DefaultMaxUploadBytes
	}
	return fmt.Sprintf("%dK", maxUpload/1024+64)
}
