package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/example/go-narrator/internal/config"
	"github.com/example/go-narrator/internal/narrator"
	"github.com/example/go-narrator/internal/telemetry"
)

// openEngine builds an engine from cfg and waits up to wait for it to load.
func openEngine(ctx context.Context, cfg config.Config, wait time.Duration, opts ...narrator.Option) (*narrator.Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	eng, err := narrator.FromConfig(cfg, slog.Default(), opts...)
	if err != nil {
		return nil, err
	}

	if wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}

	if err := eng.WaitReady(ctx); err != nil {
		_ = eng.Close()
		return nil, err
	}

	return eng, nil
}

func setupTelemetry(ctx context.Context, cfg config.Config) (*telemetry.Provider, error) {
	return telemetry.Setup(ctx, telemetry.Options{
		Config:      cfg.Telemetry,
		Version:     buildVersion(),
		TraceWriter: os.Stderr,
		Logger:      slog.Default(),
	})
}

func shutdownTelemetry(p *telemetry.Provider) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.Shutdown(ctx); err != nil {
		slog.Warn("telemetry shutdown", slog.String("error", err.Error()))
	}
}
