package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	httpadapter "github.com/PabloGalante/farum-triage/internal/adapters/http"
	"github.com/PabloGalante/farum-triage/internal/bootstrap"
	"github.com/PabloGalante/farum-triage/internal/config"
	"github.com/PabloGalante/farum-triage/internal/observability"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log := observability.Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	observability.SetLevel(cfg.LogLevel)

	if err := run(cfg); err != nil {
		log.Error("farum api stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log := observability.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stack, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := stack.Close(); err != nil {
			log.Error("closing storage", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpadapter.NewServer(stack.Conversation, stack.Journal, cfg.AllowedOrigin),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("farum api listening", "port", cfg.Port, "mode", cfg.Mode, "storage", cfg.StorageBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
