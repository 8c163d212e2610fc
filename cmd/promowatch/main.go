package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/do/v2"
	slogmulti "github.com/samber/slog-multi"

	"promowatch/internal/di"
	"promowatch/internal/modules/monitor"
	"promowatch/internal/modules/session"
	"promowatch/internal/shared/config"
	transporthttp "promowatch/internal/transport/http"
)

func main() {
	// Setup structured logging with multiple handlers using slog-multi
	// Fanout sends logs to multiple handlers simultaneously
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	jsonHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	})

	multiHandler := slogmulti.Fanout(textHandler, jsonHandler)
	logger := slog.New(multiHandler)
	slog.SetDefault(logger)

	injector, err := di.SetupDI()
	if err != nil {
		slog.Error("Failed to setup dependency injection", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := di.ShutdownDI(injector); err != nil {
			slog.Error("Error during shutdown", "error", err)
		}
	}()

	cfg := do.MustInvoke[*config.Config](injector)
	manager := do.MustInvoke[*session.Manager](injector)
	mon := do.MustInvoke[*monitor.Monitor](injector)
	sender := do.MustInvoke[*monitor.Sender](injector)
	httpServer := do.MustInvoke[*transporthttp.Server](injector)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := manager.Acquire(ctx)
	if err != nil {
		slog.Error("Failed to acquire client", "error", err)
		os.Exit(1)
	}
	defer manager.Close(client)

	go func() {
		if err := httpServer.Start(); err != nil {
			slog.Error("Failed to start HTTP server", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Monitoring started",
		"channels", len(cfg.TargetChannels),
		"poll_interval", cfg.PollInterval,
		"port", cfg.HTTPPort)
	slog.Info("Press Ctrl+C to stop")

	runLoop(ctx, cfg, mon, sender, client)

	slog.Info("Shutting down...")
}

// runLoop alternates polling cycles with the configured pause until the
// context is cancelled. The client stays connected across cycles so the
// update stream keeps filling between polls.
func runLoop(ctx context.Context, cfg *config.Config, mon *monitor.Monitor, sender *monitor.Sender, client session.Client) {
	ticker := time.NewTicker(time.Duration(cfg.PollInterval) * time.Second)
	defer ticker.Stop()

	cycle(ctx, mon, sender, client)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cycle(ctx, mon, sender, client)
		}
	}
}

func cycle(ctx context.Context, mon *monitor.Monitor, sender *monitor.Sender, client session.Client) {
	results, err := mon.Run(ctx, client)
	if err != nil {
		slog.Error("Polling cycle aborted", "error", err)
		return
	}
	if sender != nil && len(results) > 0 {
		sender.Send(ctx, client, results)
	}
}
