package narrator

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/example/go-narrator/internal/narrator"

type instruments struct {
	utterances metric.Int64Counter
	inference  metric.Float64Histogram
	load       metric.Float64Histogram
	audioSecs  metric.Float64Counter
}

func newInstruments(mp metric.MeterProvider, logger *slog.Logger) instruments {
	meter := mp.Meter(instrumentationName)

	var ins instruments

	var err error

	ins.utterances, err = meter.Int64Counter("narrator.utterances",
		metric.WithDescription("Synthesize requests by outcome"))
	if err != nil {
		logger.Warn("create utterance counter", slog.String("error", err.Error()))
	}

	ins.inference, err = meter.Float64Histogram("narrator.inference.duration",
		metric.WithDescription("Acoustic model run time"), metric.WithUnit("s"))
	if err != nil {
		logger.Warn("create inference histogram", slog.String("error", err.Error()))
	}

	ins.load, err = meter.Float64Histogram("narrator.load.duration",
		metric.WithDescription("Engine resource load time"), metric.WithUnit("s"))
	if err != nil {
		logger.Warn("create load histogram", slog.String("error", err.Error()))
	}

	ins.audioSecs, err = meter.Float64Counter("narrator.audio.synthesized",
		metric.WithDescription("Seconds of audio produced by the model"), metric.WithUnit("s"))
	if err != nil {
		logger.Warn("create audio counter", slog.String("error", err.Error()))
	}

	return ins
}

func (ins instruments) outcome(ctx context.Context, kind EventKind) {
	if ins.utterances == nil {
		return
	}

	ins.utterances.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", kind.String())))
}

func (ins instruments) inferenceTook(ctx context.Context, d time.Duration, mode string, err error) {
	if ins.inference == nil {
		return
	}

	ins.inference.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.Bool("error", err != nil),
	))
}

func (ins instruments) loadTook(ctx context.Context, d time.Duration, state State) {
	if ins.load == nil {
		return
	}

	ins.load.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("state", state.String())))
}

func (ins instruments) synthesized(ctx context.Context, d time.Duration) {
	if ins.audioSecs == nil {
		return
	}

	ins.audioSecs.Add(ctx, d.Seconds())
}
