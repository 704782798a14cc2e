package playback

import (
	"context"
	"sync"
	"time"

	"github.com/example/go-narrator/internal/audio"
)

// NullSink discards audio. With realtime set, Play blocks for the buffer's
// duration so timing-dependent callers behave as with a device.
type NullSink struct {
	realtime bool

	mu      sync.Mutex
	stop    chan struct{}
	played  int
	samples int
	closed  bool
}

// NewNullSink returns a NullSink.
func NewNullSink(realtime bool) *NullSink {
	return &NullSink{realtime: realtime}
}

func (s *NullSink) Play(ctx context.Context, samples []float32) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}

	s.interruptLocked()

	stop := make(chan struct{})
	s.stop = stop
	s.mu.Unlock()

	if s.realtime && len(samples) > 0 {
		timer := time.NewTimer(audio.Duration(len(samples)))
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return ErrStopped
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.played++
	s.samples += len(samples)
	s.mu.Unlock()

	return nil
}

func (s *NullSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.interruptLocked()

	return nil
}

func (s *NullSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.interruptLocked()
	s.closed = true

	return nil
}

// Played returns how many buffers and samples were fully played.
func (s *NullSink) Played() (buffers, samples int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.played, s.samples
}

func (s *NullSink) interruptLocked() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}
