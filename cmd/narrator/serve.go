package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/go-narrator/internal/narrator"
	"github.com/example/go-narrator/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the narrator HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			tel, err := setupTelemetry(ctx, cfg)
			if err != nil {
				return err
			}
			defer shutdownTelemetry(tel)

			// The server starts while the model loads; /health reports the state.
			eng, err := narrator.FromConfig(cfg, slog.Default(),
				narrator.WithMeterProvider(tel.MeterProvider),
				narrator.WithTracerProvider(tel.TracerProvider),
			)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			go logReadiness(ctx, eng)

			opts := []server.Option{server.WithLogger(slog.Default())}
			if h := tel.Handler(); h != nil {
				opts = append(opts, server.WithMetricsHandler(h))
			}

			return server.New(cfg, eng, opts...).Start(ctx)
		},
	}

	return cmd
}

func logReadiness(ctx context.Context, eng *narrator.Engine) {
	if err := eng.WaitReady(ctx); err != nil {
		if ctx.Err() == nil {
			slog.Error("narrator failed to load", slog.String("error", err.Error()))
		}
		return
	}
	slog.Info("narrator ready")
}
