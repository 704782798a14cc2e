package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/go-narrator/internal/audio"
	"github.com/example/go-narrator/internal/config"
	"github.com/example/go-narrator/internal/text"
)

func newSynthCmd() *cobra.Command {
	var (
		textFlag      string
		out           string
		wait          time.Duration
		maxChunkBytes int
	)

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize text to WAV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			input, err := readSynthText(textFlag, cmd.InOrStdin())
			if err != nil {
				return err
			}

			// Rendering never plays audio.
			cfg.TTS.Sink = config.SinkNull

			eng, err := openEngine(cmd.Context(), cfg, wait)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			samples, err := renderChunks(cmd.Context(), eng, input, maxChunkBytes)
			if err != nil {
				return err
			}

			wav, err := audio.EncodeWAV(samples)
			if err != nil {
				return err
			}

			slog.Info("synthesis complete",
				slog.Int("text_len", len(input)),
				slog.Int("samples", len(samples)),
				slog.Duration("audio", audio.Duration(len(samples))),
			)

			return writeSynthOutput(out, wav, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&textFlag, "text", "", "Text to synthesize (if empty, read from stdin)")
	cmd.Flags().StringVar(&out, "out", "out.wav", "Output WAV path ('-' for stdout)")
	cmd.Flags().DurationVar(&wait, "wait", time.Minute, "Maximum time to wait for the engine to load")
	cmd.Flags().IntVar(&maxChunkBytes, "max-chunk-bytes", 0, "Render long input in sentence-aligned chunks of at most this many bytes (0 = single pass)")

	return cmd
}

type renderer interface {
	Render(ctx context.Context, text string) ([]float32, error)
}

// renderChunks renders input in sentence-aligned pieces and concatenates
// the samples. maxBytes <= 0 renders in a single pass.
func renderChunks(ctx context.Context, r renderer, input string, maxBytes int) ([]float32, error) {
	if maxBytes <= 0 {
		return r.Render(ctx, input)
	}

	var samples []float32
	for i, span := range text.Chunk(input, maxBytes) {
		part, err := r.Render(ctx, span.Of(input))
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i+1, err)
		}
		samples = append(samples, part...)
	}
	return samples, nil
}

func writeSynthOutput(outPath string, wavData []byte, stdout io.Writer) error {
	if outPath == "-" {
		if stdout == nil {
			return fmt.Errorf("stdout writer is nil")
		}
		_, err := stdout.Write(wavData)
		return err
	}
	return os.WriteFile(outPath, wavData, 0o644)
}

func readSynthText(flagText string, stdin io.Reader) (string, error) {
	raw := flagText
	if strings.TrimSpace(raw) == "" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		raw = string(b)
	}

	input, err := text.Normalize(raw)
	if errors.Is(err, text.ErrEmptyText) {
		return "", fmt.Errorf("either provide --text or pipe text on stdin")
	}
	return input, err
}
