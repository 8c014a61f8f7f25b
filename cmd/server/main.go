package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"subclipper/internal/caption"
	"subclipper/internal/config"
	"subclipper/internal/db"
	"subclipper/internal/events"
	"subclipper/internal/handlers"
	"subclipper/internal/logging"
	"subclipper/internal/middleware"
	"subclipper/internal/notify"
	"subclipper/internal/pipeline"
	"subclipper/internal/render"
	"subclipper/internal/storage"
	"subclipper/internal/transcode"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	cfg, err := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	db.InitDB(cfg.DatabaseURL)
	middleware.SetBotToken(cfg.TelegramToken)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s3Client, err := storage.NewS3Client(ctx, cfg.StorageConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("could not configure object storage")
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer asynqClient.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	deps := pipeline.Deps{
		Media:      db.Catalog{},
		Catalog:    db.Catalog{},
		Renderer:   render.NewClient(cfg.QRRenderURL, nil),
		Transcoder: transcode.NewClient(cfg.TranscodeConfig()),
		Captioner:  caption.NewGenerator(caption.NewLLMClient(cfg.LLMConfig(), nil)),
		Objects:    storage.NewS3Store(s3Client, cfg.S3Bucket, cfg.S3PublicBaseURL),
		Tasks:      asynqClient,
		Progress:   events.NewRedisProgress(redisClient, cfg.ProgressChannel),
	}
	if cfg.AMQPURL != "" {
		publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Warn().Err(err).Msg("rabbitmq unavailable, subclip.created events disabled")
		} else {
			defer publisher.Close()
			deps.Events = publisher
		}
	}

	poller := pipeline.DefaultPoller()
	poller.Interval = cfg.PollInterval
	poller.Attempts = cfg.PollAttempts

	p := pipeline.New(deps, pipeline.Config{
		SiteURL: cfg.PublicSiteURL,
		Poller:  poller,
		Namer:   pipeline.DefaultNamer(),
	})
	h := handlers.New(p, cfg.BaseURL, cfg.PublicSiteURL)
	limiter := middleware.NewRateLimiterMiddleware(rate.Limit(float64(cfg.RatePerMinute)/60), cfg.RateBurst)

	if cfg.TelegramToken != "" {
		bot, err := notify.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			log.Error().Err(err).Msg("telegram bot disabled")
		} else {
			go notify.StartBot(ctx, bot, cfg.PublicSiteURL)
		}
	}

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     newRouter(h, limiter, cfg.AllowedOrigins),
		ReadTimeout: 10 * time.Second,
		// A run holds the connection through the whole transform poll.
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("commit", CommitSHA).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received, draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
		os.Exit(1)
	}
	log.Info().Msg("server stopped cleanly")
}

func newRouter(h *handlers.Handlers, limiter *middleware.RateLimiterMiddleware, allowedOrigins string) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/rss/{slug}", h.GetRSSFeed).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware)
	api.Handle("/subclips", limiter.Middleware(http.HandlerFunc(h.PostSubClip))).Methods(http.MethodPost)
	api.HandleFunc("/subclips", h.GetSubClips).Methods(http.MethodGet)
	api.HandleFunc("/subclips/{id:[0-9]+}", h.GetSubClip).Methods(http.MethodGet)

	cors := gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(splitOrigins(allowedOrigins)),
		gorillahandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	return cors(r)
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
