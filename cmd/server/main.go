package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/demohai0/chatplt/internal/chat"
)

func main() {
	cfg := chat.NewConfigFromEnv()
	log := newLogger(cfg)

	hub := chat.NewHub(*cfg, log)
	go hub.Run()

	service := chat.NewService(hub, *cfg, log)
	httpServer := chat.CreateServer(cfg.Port, service.SetupRoutes())

	errCh := make(chan error, 1)
	go func() {
		errCh <- chat.StartServer(httpServer, log)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server error")
		}
	}

	if err := chat.ShutdownServer(httpServer, 10*time.Second, log); err != nil {
		log.Warn().Err(err).Msg("forced HTTP shutdown")
	}
	if err := hub.Shutdown(10 * time.Second); err != nil {
		log.Warn().Err(err).Msg("forced hub shutdown")
	}
}

func newLogger(cfg *chat.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.LogFormat == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stderr)
	}

	return logger.Level(level).With().Timestamp().Logger()
}
