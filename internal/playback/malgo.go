package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/example/go-narrator/internal/audio"
)

// drainDelay lets the device emit its last period after the callback has
// handed over the final sample.
const drainDelay = 60 * time.Millisecond

// MalgoSink plays through the system's default output device. A fresh device
// is opened for every buffer after the previous one is stopped and released.
type MalgoSink struct {
	logger *slog.Logger

	mu      sync.Mutex
	mctx    *malgo.AllocatedContext
	device  *malgo.Device
	current *player
	closed  bool
}

// NewMalgoSink returns a sink that opens the audio device lazily on Play.
func NewMalgoSink(logger *slog.Logger) *MalgoSink {
	if logger == nil {
		logger = slog.Default()
	}

	return &MalgoSink{logger: logger.With(slog.String("component", "playback"))}
}

// Play stops any current buffer, opens the default output device at
// SampleRate and blocks until samples have drained, ctx is done or Stop is
// called.
func (s *MalgoSink) Play(ctx context.Context, samples []float32) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}

	s.releaseLocked()

	if len(samples) == 0 {
		s.mu.Unlock()
		return nil
	}

	if s.mctx == nil {
		mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("init audio context: %w", err)
		}

		s.mctx = mctx
	}

	p := newPlayer(samples)

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = audio.Channels
	cfg.SampleRate = audio.SampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, _ uint32) {
			p.fill(pOutput)
		},
	}

	device, err := malgo.InitDevice(s.mctx.Context, cfg, callbacks)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("init playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		s.mu.Unlock()

		return fmt.Errorf("start playback device: %w", err)
	}

	s.device = device
	s.current = p
	s.mu.Unlock()

	s.logger.Debug("playback started",
		slog.Int("samples", len(samples)),
		slog.Duration("duration", audio.Duration(len(samples))),
	)

	var result error

	select {
	case <-p.done:
		timer := time.NewTimer(drainDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			result = ctx.Err()
		case <-p.stopped:
			result = ErrStopped
		}

		timer.Stop()
	case <-ctx.Done():
		result = ctx.Err()
	case <-p.stopped:
		result = ErrStopped
	}

	s.mu.Lock()
	if s.current == p {
		s.releaseLocked()
	}
	s.mu.Unlock()

	return result
}

// Stop halts and releases the active device, unblocking Play.
func (s *MalgoSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseLocked()

	return nil
}

// Close stops playback and frees the malgo context. Play fails afterwards.
func (s *MalgoSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	s.releaseLocked()

	if s.mctx != nil {
		_ = s.mctx.Uninit()
		s.mctx.Free()
		s.mctx = nil
	}

	return nil
}

func (s *MalgoSink) releaseLocked() {
	if s.device != nil {
		if err := s.device.Stop(); err != nil {
			s.logger.Warn("stop playback device", slog.String("error", err.Error()))
		}

		s.device.Uninit()
		s.device = nil
	}

	if s.current != nil {
		s.current.stop()
		s.current = nil
	}
}

// player feeds one buffer to the device callback.
type player struct {
	mu      sync.Mutex
	samples []float32
	pos     int

	done     chan struct{}
	doneOnce sync.Once
	stopped  chan struct{}
	stopOnce sync.Once
}

func newPlayer(samples []float32) *player {
	return &player{
		samples: samples,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// fill copies the next samples into out and zero-pads the remainder.
func (p *player) fill(out []byte) {
	p.mu.Lock()
	n := audio.PutFloat32LE(out, p.samples[p.pos:])
	p.pos += n
	finished := p.pos >= len(p.samples)
	p.mu.Unlock()

	clear(out[n*audio.BytesPerSample:])

	if finished {
		p.doneOnce.Do(func() { close(p.done) })
	}
}

func (p *player) stop() {
	p.stopOnce.Do(func() { close(p.stopped) })
}
