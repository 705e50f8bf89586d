package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-agent/internal/clock"
	"github.com/stemsi/exstem-agent/internal/config"
	"github.com/stemsi/exstem-agent/internal/handler"
	"github.com/stemsi/exstem-agent/internal/logger"
	"github.com/stemsi/exstem-agent/internal/router"
	"github.com/stemsi/exstem-agent/internal/scoring"
	"github.com/stemsi/exstem-agent/internal/session"
	"github.com/stemsi/exstem-agent/internal/store"
	"github.com/stemsi/exstem-agent/internal/submit"
	"github.com/stemsi/exstem-agent/internal/validator"
	"github.com/stemsi/exstem-agent/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("addr", cfg.ListenAddr).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExStem Agent")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	// ─── Open Snapshot Store ───────────────────────────────────────────
	st, err := store.Open(cfg.StorePath, cfg.SnapshotSecret, log)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.StorePath).Msg("Failed to open snapshot store")
	}
	defer st.Close()

	// ─── Initialize Submission Pipeline ────────────────────────────────
	scoringClient := scoring.NewClient(cfg.PlatformBaseURL, cfg.SubmitTimeout, log)
	coordinator := submit.NewCoordinator(scoringClient, st, log)

	// ─── Initialize Session Controller ─────────────────────────────────
	ctrl := session.NewController(clock.System{}, st, coordinator, log)

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	autosaver := worker.NewAutosaver(ctrl, cfg.AutosaveInterval, log)

	go ctrl.RunTicker(workerCtx, cfg.TickInterval)
	go autosaver.Start(workerCtx)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Attempt: handler.NewAttemptHandler(ctrl, st),
		WS:      handler.NewWSHandler(ctrl, log, cfg.AllowedOrigins),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("Agent listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the ticker and autosaver. The autosaver flushes a final
	// snapshot on cancellation, so a mid-exam shutdown resumes cleanly.
	workerCancel()
	time.Sleep(1 * time.Second)

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
