package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/go-narrator/internal/bench"
	"github.com/example/go-narrator/internal/config"
)

func newBenchCmd() *cobra.Command {
	var (
		text         string
		runs         int
		format       string
		rtfThreshold float64
		wait         time.Duration
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark synthesis latency and realtime factor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if format != "table" && format != "json" {
				return fmt.Errorf("--format must be 'table' or 'json'")
			}

			input, err := readSynthText(text, cmd.InOrStdin())
			if err != nil {
				return err
			}

			cfg.TTS.Sink = config.SinkNull

			eng, err := openEngine(cmd.Context(), cfg, wait)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			results, err := bench.Run(cmd.Context(), eng, input, runs)
			if err != nil {
				return err
			}

			stats := bench.ComputeStats(results)

			switch format {
			case "json":
				if err := bench.FormatJSON(results, stats, cmd.OutOrStdout()); err != nil {
					return err
				}
			default:
				bench.FormatTable(results, stats, cmd.OutOrStdout())
			}

			return bench.CheckRTFThreshold(stats.MeanRTF, rtfThreshold)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to synthesize for each run (if empty, read from stdin)")
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of synthesis runs")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")
	cmd.Flags().Float64Var(&rtfThreshold, "rtf-threshold", 0, "Exit non-zero if mean RTF exceeds this value (0 = disabled)")
	cmd.Flags().DurationVar(&wait, "wait", time.Minute, "Maximum time to wait for the engine to load")

	return cmd
}
