// Package main is the entry point for vigild, the reminder reconciliation
// daemon.
//
// Startup:
//  1. Resolve the secret provider and load configuration.
//  2. Open the device store, the managed database pool and the calendar client.
//  3. Build the source adapters, the Notification Backend and the engine.
//  4. Start the engine (ledger recovery), then request an initial refresh.
//  5. Serve the control API, poll the Redis backend and consume the trigger
//     queue when configured.
//
// SIGHUP is treated as an app-foreground event and triggers a refresh.
// SIGINT/SIGTERM drain everything in reverse order.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"vigil/internal/config"
	"vigil/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	provider, err := secretProviderFromEnv(os.LookupEnv)
	if err != nil {
		return fmt.Errorf("creating secret provider: %w", err)
	}
	cfg, err := config.LoadConfig(provider)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel).With("service", cfg.Service)
	logger.Info("vigild starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"addr", cfg.Server.Addr,
		"backend", cfg.Backend.Kind,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.close()

	if err := app.engine.Start(ctx); err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}
	_ = app.engine.Trigger("", "startup")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.server.ListenAndServe(cfg.Server.Addr)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return app.server.Shutdown(shutdownCtx)
	})

	if app.poll != nil {
		g.Go(func() error {
			app.poll(gctx)
			return nil
		})
	}

	if app.listener != nil {
		g.Go(func() error {
			return app.listener.Run(gctx)
		})
	}

	g.Go(func() error {
		refreshLoop(gctx, app.engine, cfg.Engine.RefreshInterval, logger)
		return nil
	})

	err = g.Wait()
	app.engine.Stop()
	logger.Info("vigild stopped", "status", app.engine.Status().State)
	return err
}

// triggerer is the engine surface the refresh loop needs.
type triggerer interface {
	Trigger(userID, reason string) error
}

// refreshLoop re-reconciles on a timer, so reminders track source changes
// that arrive without a trigger message, and on SIGHUP.
func refreshLoop(ctx context.Context, e triggerer, interval time.Duration, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	var tick <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}

	for {
		var reason string
		select {
		case <-ctx.Done():
			return
		case <-tick:
			reason = "periodic"
		case <-hup:
			reason = "foreground"
		}
		if err := e.Trigger("", reason); err != nil {
			logger.Warn("refresh trigger rejected", "reason", reason, "error", err)
			return
		}
	}
}

// newLogger creates a JSON slog.Logger for the given level name.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// slogAdapter wraps *slog.Logger to implement types.Logger, whose With must
// return a types.Logger.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

// secretProviderFromEnv picks the provider before configuration exists:
// SECRET_PROVIDER=keyring reads the OS keychain (or an encrypted file store
// under KEYRING_DIR), anything else resolves from the environment.
func secretProviderFromEnv(lookup func(string) (string, bool)) (config.SecretProvider, error) {
	kind, _ := lookup("SECRET_PROVIDER")
	dir, _ := lookup("KEYRING_DIR")
	password, _ := lookup("KEYRING_PASSWORD")
	return config.NewSecretProvider(kind, dir, password)
}
