package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/PabloGalante/farum-triage/internal/bootstrap"
	"github.com/PabloGalante/farum-triage/internal/cli"
	"github.com/PabloGalante/farum-triage/internal/config"
	"github.com/PabloGalante/farum-triage/internal/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Keep stdout for the conversation.
	observability.SetOutput(os.Stderr)
	observability.SetLevel(cfg.LogLevel)

	stack, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	app := &cli.App{
		Conversation: stack.Conversation,
		Journal:      stack.Journal,
		Classifier:   stack.Classifier,
	}
	return cli.NewRootCmd(app).ExecuteContext(ctx)
}
