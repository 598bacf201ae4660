package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/umiteyigun/santral-ai/internal/api"
	"github.com/umiteyigun/santral-ai/internal/config"
	"github.com/umiteyigun/santral-ai/internal/handlers"
	"github.com/umiteyigun/santral-ai/internal/realtime"
	"github.com/umiteyigun/santral-ai/internal/rtc"
	"github.com/umiteyigun/santral-ai/internal/store"
	"github.com/umiteyigun/santral-ai/internal/voices"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Mailbox and data channel: Redis when configured, otherwise in process.
	var (
		mailbox     store.Mailbox
		broker      realtime.Broker
		redisClient *redis.Client
	)
	hub := realtime.NewHub(logger, 0)
	if cfg.RedisURL != "" {
		redisStore, err := store.NewRedisStore(ctx, cfg.RedisURL, cfg.MailboxTTL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Dur("mailbox_ttl", cfg.MailboxTTL).Msg("connected to Redis")

		redisClient = redisStore.Client()
		mailbox = redisStore

		relay := realtime.NewRedisHub(redisClient, hub, logger)
		go func() {
			if err := relay.Run(ctx, nil); err != nil {
				logger.Error().Err(err).Msg("data channel relay stopped")
			}
		}()
		broker = relay
	} else {
		logger.Warn().Msg("REDIS_URL not set, mailbox is held in memory")
		mailbox = store.NewMemoryStore()
		broker = hub
	}

	provisioner := rtc.NewProvisioner(rtc.Config{
		URL:       cfg.LiveKitURL,
		APIKey:    cfg.LiveKitAPIKey,
		APISecret: cfg.LiveKitAPISecret,
		AgentName: cfg.AgentName,
	})

	if cfg.SIPDispatch {
		watcher := rtc.NewSIPWatcher(rtc.SIPConfig{
			RoomPrefix: cfg.SIPRoomPrefix,
			AgentName:  cfg.AgentName,
			Interval:   cfg.SIPScanInterval,
		}, lksdk.NewRoomServiceClient(cfg.LiveKitURL, cfg.LiveKitAPIKey, cfg.LiveKitAPISecret), provisioner, logger)
		go watcher.Run(ctx)
	}

	h := handlers.NewHandler(handlers.Deps{
		Mailbox:        mailbox,
		Broker:         broker,
		Sessions:       provisioner,
		Voices:         voices.NewClient(cfg.TTSURL),
		Logger:         logger,
		PublicMediaURL: cfg.PublicLiveKitURL,
		OriginPatterns: cfg.OriginPatterns(),
	})

	// Create router
	router := api.NewRouter(logger, h, api.Options{
		MaxBodyBytes:       cfg.MaxBodyBytes,
		CORSOrigins:        cfg.CORSOrigins,
		RateLimitWhitelist: cfg.RateLimitWhitelist,
		RateLimitClient:    redisClient,
	})

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("livekit", cfg.LiveKitURL).
			Str("tts", cfg.TTSURL).
			Msg("starting santral relay")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")
	stop()

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
