package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/go-narrator/internal/narrator"
)

func newSpeakCmd() *cobra.Command {
	var text string
	var wait time.Duration
	var words bool

	cmd := &cobra.Command{
		Use:   "speak",
		Short: "Narrate text through the configured audio sink",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			input, err := readSynthText(text, cmd.InOrStdin())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			done := make(chan narrator.Event, 8)
			observe := func(ev narrator.Event) {
				switch ev.Kind {
				case narrator.EventWord:
					if words {
						printWord(cmd.OutOrStdout(), ev)
					}
				case narrator.EventFinished, narrator.EventInterrupted, narrator.EventFailed:
					select {
					case done <- ev:
					default:
					}
				}
			}

			eng, err := openEngine(ctx, cfg, wait, narrator.WithObserver(observe))
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			id, err := eng.Submit(input)
			if err != nil {
				return err
			}

			return awaitUtterance(ctx, eng, done, id)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to narrate (if empty, read from stdin)")
	cmd.Flags().DurationVar(&wait, "wait", time.Minute, "Maximum time to wait for the engine to load")
	cmd.Flags().BoolVar(&words, "words", false, "Print each word as it is spoken")

	return cmd
}

// awaitUtterance blocks until the utterance id reaches a terminal event or
// ctx is cancelled, in which case narration is stopped.
func awaitUtterance(ctx context.Context, eng interface{ Stop() }, done <-chan narrator.Event, id string) error {
	for {
		select {
		case ev := <-done:
			if ev.UtteranceID != id {
				continue
			}

			switch ev.Kind {
			case narrator.EventFinished:
				return nil
			default:
				if ev.Err != nil {
					return fmt.Errorf("narration %s: %w", ev.Kind, ev.Err)
				}
				return fmt.Errorf("narration %s", ev.Kind)
			}
		case <-ctx.Done():
			eng.Stop()
			return ctx.Err()
		}
	}
}

func printWord(w io.Writer, ev narrator.Event) {
	if ev.Start < 0 || ev.End > len(ev.Text) || ev.Start >= ev.End {
		return
	}
	_, _ = fmt.Fprintln(w, ev.Text[ev.Start:ev.End])
}
