package narrator

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/go-narrator/internal/audio"
	"github.com/example/go-narrator/internal/tokenizer"
	"github.com/example/go-narrator/internal/voice"
)

// Synthesizer runs the acoustic model. *onnx.Model satisfies it.
type Synthesizer interface {
	Synthesize(ctx context.Context, tokens []int64, style []float32, speed float32) ([]float32, error)
	Close()
}

// StyleSource supplies the cached speaker embedding. *voice.Profile satisfies it.
type StyleSource interface {
	Style() (voice.Style, error)
}

// Loaders produce the engine's resources on the background load goroutine,
// in field order. Any error leaves the engine Failed.
type Loaders struct {
	Model     func(ctx context.Context) (Synthesizer, error)
	Tokenizer func(ctx context.Context) (tokenizer.Tokenizer, error)
	Style     func(ctx context.Context) (StyleSource, error)
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithSpeed(speed float32) Option {
	return func(e *Engine) {
		if speed > 0 {
			e.speed = speed
		}
	}
}

// WithInferenceTimeout bounds each model run. Zero disables the bound.
func WithInferenceTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.inferenceTimeout = d
		}
	}
}

// WithHooks sets the post-processing chain applied to every waveform.
func WithHooks(hooks ...audio.Hook) Option {
	return func(e *Engine) {
		e.hooks = append([]audio.Hook(nil), hooks...)
	}
}

func WithObserver(obs Observer) Option {
	return func(e *Engine) {
		e.observer = obs
	}
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) {
		e.meterProvider = mp
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		e.tracerProvider = tp
	}
}
