// Package playback sends synthesized waveforms to an audio output.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/go-narrator/internal/config"
)

var (
	// ErrStopped is returned by Play when Stop cut the buffer short.
	ErrStopped = errors.New("playback stopped")
	ErrClosed  = errors.New("sink closed")
)

// Sink plays mono float32 PCM at audio.SampleRate. Play blocks until the
// buffer has been consumed, ctx is done or Stop is called.
type Sink interface {
	Play(ctx context.Context, samples []float32) error
	Stop() error
	Close() error
}

// New builds the sink named by kind (see config.NormalizeSink).
func New(kind string, logger *slog.Logger) (Sink, error) {
	name, err := config.NormalizeSink(kind)
	if err != nil {
		return nil, err
	}

	switch name {
	case config.SinkNull:
		return NewNullSink(true), nil
	case config.SinkMalgo:
		return NewMalgoSink(logger), nil
	default:
		return nil, fmt.Errorf("unsupported sink %q", name)
	}
}
