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

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/RoomStatus/internal/adapters/http"
	"github.com/dkeye/RoomStatus/internal/adapters/webhook"
	"github.com/dkeye/RoomStatus/internal/app"
	"github.com/dkeye/RoomStatus/internal/config"
	"github.com/dkeye/RoomStatus/internal/core"
	"github.com/dkeye/RoomStatus/internal/view"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, keeping info")
	}

	renderer, err := view.NewRenderer(cfg.TemplatePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load status template")
	}

	notifier := webhook.New(cfg.WebhookURL, cfg.WebhookTimeout)
	a := &app.App{
		Status:  core.NewStatusService(cfg.AccessKey, cfg.Encoding()),
		Limiter: app.NewFailureLimiter(cfg.AuthFailLimit, cfg.AuthFailWindow),
	}
	if notifier != nil {
		a.Notifier = notifier
	}

	r := router.SetupRouter(ctx, cfg, a, renderer)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msgf("Server is running on http://localhost:%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Fatal().Err(err).Msg("server error")
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := notifier.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("pending webhook notifications abandoned")
	}
	log.Info().Msg("Server exited gracefully")
}
