package main

import (
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/go-narrator/internal/bus"
	"github.com/example/go-narrator/internal/narrator"
)

func newListenCmd() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Narrate requests received over NATS",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := slog.Default()

			embedded, err := bus.StartEmbedded(cfg.Bus, logger)
			if err != nil {
				return err
			}
			defer embedded.Shutdown()

			if embedded != nil {
				cfg.Bus.Servers = []string{embedded.ClientURL()}
			}

			client, err := bus.Connect(ctx, cfg.Bus, logger)
			if err != nil {
				return err
			}
			defer client.Close()

			tel, err := setupTelemetry(ctx, cfg)
			if err != nil {
				return err
			}
			defer shutdownTelemetry(tel)

			opts := []narrator.Option{
				narrator.WithMeterProvider(tel.MeterProvider),
				narrator.WithTracerProvider(tel.TracerProvider),
			}
			if cfg.Bus.EventsSubject != "" {
				opts = append(opts, narrator.WithObserver(bus.EventPublisher(client, cfg.Bus.EventsSubject)))
			}

			eng, err := openEngine(ctx, cfg, wait, opts...)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			svc := bus.NewService(cfg.Bus, client, eng, logger, bus.WithMaxTextBytes(cfg.Server.MaxTextBytes))
			if err := svc.Start(); err != nil {
				return err
			}
			defer svc.Close()

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", time.Minute, "Maximum time to wait for the engine to load")

	return cmd
}
