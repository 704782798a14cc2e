package testutil

import (
	"testing"
	"time"

	"github.com/example/go-narrator/internal/audio"
)

// AssertValidWAV decodes data as a 24 kHz mono 16-bit WAV with at least one
// sample and returns the samples.
func AssertValidWAV(tb testing.TB, data []byte) []float32 {
	tb.Helper()

	if len(data) < 44 {
		tb.Fatalf("WAV data too short: %d bytes", len(data))
	}

	samples, err := audio.DecodeWAV(data)
	if err != nil {
		tb.Fatalf("WAV: %v", err)
	}

	if len(samples) == 0 {
		tb.Fatal("WAV: data chunk contains zero samples")
	}

	return samples
}

// AssertWAVDurationApprox asserts the clip length lies within [lo, hi].
func AssertWAVDurationApprox(tb testing.TB, data []byte, lo, hi time.Duration) {
	tb.Helper()

	samples, err := audio.DecodeWAV(data)
	if err != nil {
		tb.Fatalf("WAV duration check: %v", err)
	}

	d := audio.Duration(len(samples))
	if d < lo || d > hi {
		tb.Fatalf("WAV duration %v out of expected range [%v, %v]", d, lo, hi)
	}
}
