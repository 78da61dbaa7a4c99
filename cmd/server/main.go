package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgallion1/pdfmd/internal/api"
	"github.com/dgallion1/pdfmd/internal/config"
	"github.com/dgallion1/pdfmd/internal/convert"
	"github.com/dgallion1/pdfmd/internal/extract"
	"github.com/dgallion1/pdfmd/internal/staging"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("load .env", "error", err)
		os.Exit(1)
	}

	cfg := config.Load()
	level, _ := cfg.SlogLevel()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	medium, _ := staging.ParseMedium(cfg.StagingMedium)
	stager, err := staging.NewStager(cfg.StagingDir, medium, log)
	if err != nil {
		log.Error("init staging", "error", err)
		os.Exit(1)
	}
	if n, err := stager.SweepStale(cfg.StagingDir, cfg.StagingStaleAfter); err != nil {
		log.Warn("sweep stale staging dirs", "error", err)
	} else if n > 0 {
		log.Info("removed stale staging dirs", "count", n)
	}

	engine, err := extract.ForName(cfg.Engine, cfg.PDFLimits)
	if err != nil {
		log.Error("init engine", "engine", cfg.Engine, "error", err)
		os.Exit(1)
	}

	pipe := convert.NewPipeline(stager, engine, convert.Config{
		ExtractTimeout: cfg.ExtractTimeout,
		MaxConcurrent:  cfg.MaxConcurrentConversions,
	}, convert.NewStats(time.Hour), log)

	srv := api.NewServer(pipe, stager, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.ExtractTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "error", err)
		}

		if err := stager.Close(); err != nil {
			log.Warn("close staging", "error", err)
		}
	}()

	log.Info("starting pdfmd", "port", cfg.Port, "engine", cfg.Engine, "staging", medium)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		stager.Close()
		os.Exit(1)
	}
	<-done
}
