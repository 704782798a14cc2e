// Package narrator turns passage text into narrated audio.
//
// An Engine loads its model, tokenizer and voice on a background goroutine
// and serves utterances on a single worker goroutine. Only the newest
// utterance may reach the sink: every Synthesize call cancels the previous
// one, and the sink is stopped before each buffer is played.
package narrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/go-narrator/internal/audio"
	"github.com/example/go-narrator/internal/playback"
	"github.com/example/go-narrator/internal/tokenizer"
)

type utterance struct {
	id     string
	text   string
	ctx    context.Context
	cancel context.CancelCauseFunc
}

// Engine narrates passages one at a time. It loads the model, tokenizer and
// voice in the background, then runs every accepted utterance on a single
// worker where the newest request always wins.
type Engine struct {
	logger           *slog.Logger
	sink             playback.Sink
	loaders          Loaders
	speed            float32
	inferenceTimeout time.Duration
	hooks            []audio.Hook
	observer         Observer
	meterProvider    metric.MeterProvider
	tracerProvider   trace.TracerProvider
	metrics          instruments
	tracer           trace.Tracer

	state   atomic.Int32
	ready   chan struct{}
	loadErr error

	// Written by the loader before state leaves Loading, read-only afterwards.
	model Synthesizer
	tok   tokenizer.Tokenizer
	style []float32

	inferMu sync.Mutex

	mu      sync.Mutex
	current *utterance
	pending *utterance
	closed  bool

	wake      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New starts loading in the background and returns immediately. The engine
// owns sink and everything the loaders return.
func New(sink playback.Sink, loaders Loaders, opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		logger:  slog.Default(),
		sink:    sink,
		loaders: loaders,
		speed:   1,
		ready:   make(chan struct{}),
		wake:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.sink == nil {
		e.sink = playback.NewNullSink(false)
	}

	if e.meterProvider == nil {
		e.meterProvider = otel.GetMeterProvider()
	}

	if e.tracerProvider == nil {
		e.tracerProvider = otel.GetTracerProvider()
	}

	e.logger = e.logger.With(slog.String("component", "narrator"))
	e.metrics = newInstruments(e.meterProvider, e.logger)
	e.tracer = e.tracerProvider.Tracer(instrumentationName)

	e.state.Store(int32(StateLoading))

	e.wg.Add(2)

	go e.load()
	go e.work()

	return e
}

// State reports the current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// IsReady reports whether the engine accepts utterances.
func (e *Engine) IsReady() bool {
	return e.State() == StateReady
}

// WaitReady blocks until loading has finished or ctx is done. It returns nil
// once the engine is Ready and an ErrEngineFailed error if loading failed.
func (e *Engine) WaitReady(ctx context.Context) error {
	select {
	case <-e.ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	if e.State() == StateFailed {
		return fmt.Errorf("%w: %w", ErrEngineFailed, e.loadErr)
	}

	return nil
}

// LoadErr returns the load failure, or nil while loading or once Ready.
func (e *Engine) LoadErr() error {
	if e.State() != StateFailed {
		return nil
	}

	return e.loadErr
}

// Synthesize narrates text asynchronously. Calls made before the engine is
// Ready are logged and dropped.
func (e *Engine) Synthesize(text string) {
	_, _ = e.Submit(text)
}

// Submit is Synthesize that reports the utterance ID or why it was rejected.
func (e *Engine) Submit(text string) (string, error) {
	if st := e.State(); st != StateReady {
		err := ErrNotReady
		if st == StateFailed {
			err = ErrEngineFailed
		}

		e.logger.Warn("synthesize rejected",
			slog.String("state", st.String()),
			slog.Int("text_bytes", len(text)),
		)
		e.emit(Event{Kind: EventRejected, Text: text, Err: err})
		e.metrics.outcome(context.Background(), EventRejected)

		return "", err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", ErrClosed
	}

	ctx, cancel := context.WithCancelCause(e.ctx)
	u := &utterance{id: uuid.NewString(), text: text, ctx: ctx, cancel: cancel}

	if e.current != nil {
		e.current.cancel(ErrSuperseded)
	}

	dropped := e.pending
	e.current, e.pending = u, u
	e.mu.Unlock()

	if dropped != nil {
		e.interrupted(dropped, ErrSuperseded)
	}

	select {
	case e.wake <- struct{}{}:
	default:
	}

	e.logger.Debug("utterance queued", slog.String("utterance_id", u.id), slog.Int("text_bytes", len(text)))

	return u.id, nil
}

// Render synthesizes text without playing it.
func (e *Engine) Render(ctx context.Context, text string) ([]float32, error) {
	switch e.State() {
	case StateReady:
	case StateFailed:
		return nil, fmt.Errorf("%w: %w", ErrEngineFailed, e.loadErr)
	default:
		return nil, ErrNotReady
	}

	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()

	if closed {
		return nil, ErrClosed
	}

	ctx, span := e.tracer.Start(ctx, "narrator.render",
		trace.WithAttributes(attribute.Int("text.bytes", len(text))))
	defer span.End()

	samples, err := e.render(ctx, text, "render")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return samples, err
}

// Stop cancels the current utterance and silences the sink.
func (e *Engine) Stop() {
	e.mu.Lock()
	cur, pend := e.current, e.pending
	e.pending = nil
	e.mu.Unlock()

	if cur != nil {
		cur.cancel(ErrStopped)
	}

	if pend != nil {
		e.interrupted(pend, ErrStopped)
	}

	if err := e.sink.Stop(); err != nil {
		e.logger.Warn("stop sink", slog.String("error", err.Error()))
	}
}

// Close stops narration, waits for the background goroutines and releases
// the model and sink.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		cur := e.current
		e.mu.Unlock()

		if cur != nil {
			cur.cancel(ErrClosed)
		}

		e.cancel()

		if err := e.sink.Stop(); err != nil {
			e.logger.Warn("stop sink", slog.String("error", err.Error()))
		}

		e.wg.Wait()

		if e.model != nil {
			e.model.Close()
		}

		e.closeErr = e.sink.Close()
	})

	return e.closeErr
}

func (e *Engine) load() {
	defer e.wg.Done()

	start := time.Now()

	err := e.loadResources(e.ctx)
	if err != nil {
		e.loadErr = err
		e.state.Store(int32(StateFailed))
		e.logger.Error("engine load failed", slog.String("error", err.Error()))
	} else {
		e.state.Store(int32(StateReady))
		e.logger.Info("engine ready", slog.Duration("load_time", time.Since(start)))
	}

	e.metrics.loadTook(context.Background(), time.Since(start), e.State())
	close(e.ready)
}

func (e *Engine) loadResources(ctx context.Context) error {
	l := e.loaders
	if l.Model == nil || l.Tokenizer == nil || l.Style == nil {
		return errors.New("model, tokenizer and style loaders are required")
	}

	model, err := l.Model(ctx)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}

	tok, err := l.Tokenizer(ctx)
	if err != nil {
		model.Close()
		return fmt.Errorf("load tokenizer: %w", err)
	}

	src, err := l.Style(ctx)
	if err != nil {
		model.Close()
		return fmt.Errorf("load voice: %w", err)
	}

	style, err := src.Style()
	if err != nil {
		model.Close()
		return fmt.Errorf("load voice: %w", err)
	}

	e.model, e.tok, e.style = model, tok, style.Floats()

	return nil
}

func (e *Engine) work() {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			if u := e.takePending(); u != nil {
				e.interrupted(u, ErrClosed)
			}

			return
		case <-e.wake:
		}

		for u := e.takePending(); u != nil; u = e.takePending() {
			e.process(u)
		}
	}
}

func (e *Engine) takePending() *utterance {
	e.mu.Lock()
	defer e.mu.Unlock()

	u := e.pending
	e.pending = nil

	return u
}

func (e *Engine) isCurrent(u *utterance) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.current == u
}

func (e *Engine) process(u *utterance) {
	defer u.cancel(nil)

	ctx, span := e.tracer.Start(u.ctx, "narrator.utterance", trace.WithAttributes(
		attribute.String("utterance.id", u.id),
		attribute.Int("text.bytes", len(u.text)),
	))
	defer span.End()

	log := e.logger.With(slog.String("utterance_id", u.id))

	samples, err := e.render(ctx, u.text, "utterance")
	if err != nil {
		if u.ctx.Err() != nil {
			e.interrupted(u, context.Cause(u.ctx))
			return
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("synthesis failed", slog.String("error", err.Error()))
		e.finish(u, EventFailed, err, 0)

		return
	}

	if u.ctx.Err() != nil || !e.isCurrent(u) {
		cause := context.Cause(u.ctx)
		if cause == nil {
			cause = ErrSuperseded
		}

		e.interrupted(u, cause)

		return
	}

	if err := e.sink.Stop(); err != nil {
		log.Warn("stop sink", slog.String("error", err.Error()))
	}

	e.emit(Event{Kind: EventStarted, UtteranceID: u.id, Text: u.text, Samples: len(samples)})

	hctx, hcancel := context.WithCancel(ctx)

	var hwg sync.WaitGroup
	if e.observer != nil {
		hwg.Add(1)

		go func() {
			defer hwg.Done()
			e.highlight(hctx, u, len(samples))
		}()
	}

	pctx, pspan := e.tracer.Start(ctx, "narrator.playback",
		trace.WithAttributes(attribute.Int("samples", len(samples))))
	err = e.sink.Play(pctx, samples)
	pspan.End()

	hcancel()
	hwg.Wait()

	switch {
	case err == nil:
		log.Debug("utterance finished", slog.Duration("audio", audio.Duration(len(samples))))
		e.finish(u, EventFinished, nil, len(samples))
	case u.ctx.Err() != nil:
		e.interrupted(u, context.Cause(u.ctx))
	case errors.Is(err, playback.ErrStopped):
		e.interrupted(u, ErrStopped)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("playback failed", slog.String("error", err.Error()))
		e.finish(u, EventFailed, err, len(samples))
	}
}

// render tokenizes and runs one serialized inference.
func (e *Engine) render(ctx context.Context, text, mode string) ([]float32, error) {
	tokens, err := e.tok.Encode(text)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}

	e.inferMu.Lock()
	defer e.inferMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ictx := ctx
	if e.inferenceTimeout > 0 {
		var cancel context.CancelFunc

		ictx, cancel = context.WithTimeout(ctx, e.inferenceTimeout)
		defer cancel()
	}

	ictx, span := e.tracer.Start(ictx, "narrator.inference",
		trace.WithAttributes(attribute.Int("tokens", len(tokens))))

	start := time.Now()
	samples, err := e.model.Synthesize(ictx, tokens, e.style, e.speed)
	if err == nil && ictx.Err() != nil {
		// The model returned after the deadline without noticing it.
		err = ictx.Err()
	}
	e.metrics.inferenceTook(ctx, time.Since(start), mode, err)
	span.End()

	if err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}

	samples = audio.ApplyHooks(samples, e.hooks...)
	e.metrics.synthesized(ctx, audio.Duration(len(samples)))

	return samples, nil
}

func (e *Engine) highlight(ctx context.Context, u *utterance, n int) {
	marks := Timeline(u.text, audio.Duration(n))
	start := time.Now()

	for _, m := range marks {
		if wait := m.At - time.Since(start); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return
		}

		e.emit(Event{Kind: EventWord, UtteranceID: u.id, Text: u.text, Start: m.Start, End: m.End})
	}
}

func (e *Engine) interrupted(u *utterance, cause error) {
	e.logger.Debug("utterance interrupted",
		slog.String("utterance_id", u.id),
		slog.String("cause", fmt.Sprint(cause)),
	)
	e.finish(u, EventInterrupted, cause, 0)
}

func (e *Engine) finish(u *utterance, kind EventKind, err error, samples int) {
	e.emit(Event{Kind: kind, UtteranceID: u.id, Text: u.text, Samples: samples, Err: err})
	e.metrics.outcome(context.Background(), kind)
}

func (e *Engine) emit(ev Event) {
	if e.observer == nil {
		return
	}

	ev.At = time.Now()
	e.observer(ev)
}
