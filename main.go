package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/riverbend/pubsub-broker/internals/auth"
	"github.com/riverbend/pubsub-broker/internals/broker"
	"github.com/riverbend/pubsub-broker/internals/config"
	"github.com/riverbend/pubsub-broker/internals/lifecycle"
	"github.com/riverbend/pubsub-broker/internals/metrics"
	subscriberHTTP "github.com/riverbend/pubsub-broker/subscriberService/http"
	topicManagerHTTP "github.com/riverbend/pubsub-broker/topicManagerService/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	logger.Info().Str("host", cfg.Host).Str("port", cfg.Port).Msg("starting in-memory pub/sub broker")

	m := metrics.New()
	b := broker.New(cfg, m)
	allowlist := auth.New(cfg.APIKeys())
	controller := lifecycle.New(b, cfg.ShutdownTimeout(), logger)
	shutdownFn := controller.Shutdown

	router := chi.NewRouter()

	topicManagerHTTP.NewHandler(b, allowlist, cfg, m, shutdownFn).RegisterRoutes(router)
	subscriberHTTP.NewHandler(b, allowlist, cfg, logger).RegisterRoutes(router)

	server := &http.Server{
		Addr:         cfg.Host + ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutdown signal received")
	shutdownFn()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("http server shutdown error")
	}

	logger.Info().Msg("server shutdown complete")
}
