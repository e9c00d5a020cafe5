package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gartenconnect/internal/config"
	"gartenconnect/internal/entities"
	"gartenconnect/internal/infrastructure"
	"gartenconnect/internal/interfaces"
	httpapi "gartenconnect/internal/interfaces/http"
	"gartenconnect/internal/repository"
	"gartenconnect/internal/usecases"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func main() {
	// `gartenconnect hash-password <password>` prints a value for ADMIN_PASSWORD_HASH
	if len(os.Args) == 3 && os.Args[1] == "hash-password" {
		hash, err := usecases.HashPassword(os.Args[2])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg := config.Load()
	logger := config.NewLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Media storage
	var blobs interfaces.BlobStore
	var mediaRoot string
	switch cfg.BlobBackend {
	case config.BlobBackendGCS:
		gcs, err := infrastructure.NewGCSBlobStore(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile, cfg.GCSPublicACL)
		if err != nil {
			logger.Fatal().Err(err).Msg("gcs connection failed")
		}
		defer gcs.Close()
		blobs = gcs
		logger.Info().Str("bucket", cfg.GCSBucket).Msg("media stored in Google Cloud Storage")
	default:
		local, err := infrastructure.NewLocalBlobStore(cfg.MediaDir, cfg.MediaBaseURL())
		if err != nil {
			logger.Fatal().Err(err).Msg("media directory unavailable")
		}
		blobs = local
		mediaRoot = local.Root()
		logger.Info().Str("dir", mediaRoot).Str("url", cfg.MediaBaseURL()).Msg("media stored locally")
	}

	// WhatsApp session
	session, err := infrastructure.NewWhatsAppSession(ctx, cfg.WADBPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("whatsapp store failed")
	}

	// Pipeline
	classifier := infrastructure.NewClassifierClient(cfg.ClassifierURL, cfg.ClassifierTimeout, logger)
	fetcher := infrastructure.NewHTTPImageFetcher(cfg.ImageFetchTimeout)
	renderer := usecases.NewGalleryRenderer(fetcher, cfg.ImageFetchConcurrency, logger)
	gate := usecases.NewMentionGate(session, logger)
	ingester := usecases.NewMediaIngester(session, blobs)
	dispatcher := usecases.NewDispatcher(session, classifier, ingester, renderer, gate, logger)

	if cfg.RedisURL != "" {
		dedup, err := infrastructure.NewRedisDeduplicator(ctx, cfg.RedisURL, cfg.DedupTTL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer dedup.Close()
		dispatcher.Dedup = dedup
		logger.Info().Msg("connected to Redis")
	} else {
		dedup, err := infrastructure.NewMemoryDeduplicator(cfg.DedupTTL)
		if err != nil {
			logger.Fatal().Err(err).Msg("dedup cache failed")
		}
		dispatcher.Dedup = dedup
	}

	limiter := infrastructure.NewMessageRateLimiter(cfg.ChatRatePerMinute, cfg.ChatRateBurst)
	defer limiter.Close()
	dispatcher.Limiter = limiter

	locks := infrastructure.NewChatLocks()
	dispatcher.Locks = locks

	var usage httpapi.UsageStore
	if cfg.DatabaseURL != "" {
		pgClient, err := infrastructure.NewPostgresClient(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		defer pgClient.Close()
		usageRepo := repository.NewUsageRepository(pgClient.Pool)
		dispatcher.Usage = usageRepo
		usage = usageRepo
		logger.Info().Msg("connected to PostgreSQL")
	}

	session.OnEvents = func(batch []entities.InboundEvent) {
		if !dispatcher.Enqueue(batch) {
			logger.Warn().Int("events", len(batch)).Msg("dispatcher stopped, events dropped")
		}
	}

	dispatchDone := make(chan struct{})
	go func() {
		dispatcher.Run(ctx)
		close(dispatchDone)
	}()

	if err := session.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("whatsapp connection failed")
	}

	// HTTP server
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	auth := usecases.NewAuthUsecase(cfg.AdminUsername, cfg.AdminPasswordHash, cfg.JWTSecret)
	handler := httpapi.NewHandler(session, session, usage, auth, logger)
	httpapi.SetupRoutes(r, handler, httpapi.NewMiddleware(cfg.JWTSecret), httpapi.RouteOptions{
		MediaRoot: mediaRoot,
		Stats: map[string]func() interface{}{
			"chat_rate":    func() interface{} { return limiter.GetStats() },
			"active_chats": func() interface{} { return locks.Active() },
		},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Bool("auth", auth.Enabled()).
			Msg("starting HTTP server")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down...")
	shutdown(srv, session, dispatchDone, logger)
	logger.Info().Msg("stopped")
}

// shutdown stops intake first, then lets in-flight events finish before the
// WhatsApp connection is closed.
func shutdown(srv *http.Server, session *infrastructure.WhatsAppSession, dispatchDone <-chan struct{}, logger zerolog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	select {
	case <-dispatchDone:
	case <-shutdownCtx.Done():
		logger.Warn().Msg("in-flight events did not finish in time")
	}

	session.Close()
}
