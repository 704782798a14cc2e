package audio

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
	"github.com/cwbudde/algo-dsp/dsp/signal"
)

// Hook transforms a buffer in place and returns it.
type Hook func(samples []float32) []float32

// ApplyHooks runs hooks in order.
func ApplyHooks(samples []float32, hooks ...Hook) []float32 {
	out := samples
	for _, hook := range hooks {
		out = hook(out)
	}

	return out
}

// PeakNormalize scales samples so the peak amplitude reaches 1.0. Silence is
// returned unchanged.
func PeakNormalize(samples []float32) []float32 {
	if len(samples) == 0 {
		return samples
	}

	out, err := signal.Normalize(toFloat64(samples), 1)
	if err != nil {
		return samples
	}

	return fromFloat64(samples, out)
}

// dcCutoffHz is the corner of the DC-blocking high-pass.
const dcCutoffHz = 20.0

// DCBlock removes the mean and then high-passes at dcCutoffHz so slow drift
// is removed as well as a constant offset.
func DCBlock(samples []float32, sampleRate int) []float32 {
	if len(samples) == 0 || sampleRate < 1 {
		return samples
	}

	buf, err := signal.RemoveDC(toFloat64(samples))
	if err != nil {
		return samples
	}

	hp := biquad.NewSection(design.Highpass(dcCutoffHz, math.Sqrt2/2, float64(sampleRate)))
	hp.ProcessBlock(buf)

	return fromFloat64(samples, buf)
}

func toFloat64(samples []float32) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s)
	}

	return out
}

// fromFloat64 writes src back into dst and returns dst.
func fromFloat64(dst []float32, src []float64) []float32 {
	for i, v := range src {
		dst[i] = float32(v)
	}

	return dst
}

// FadeIn applies a linear ramp from silence over the first ms milliseconds.
func FadeIn(samples []float32, sampleRate int, ms float64) []float32 {
	n := fadeLength(len(samples), sampleRate, ms)
	for i := range n {
		samples[i] *= float32(i) / float32(n)
	}

	return samples
}

// FadeOut applies a linear ramp to silence over the last ms milliseconds.
func FadeOut(samples []float32, sampleRate int, ms float64) []float32 {
	n := fadeLength(len(samples), sampleRate, ms)
	last := len(samples) - 1

	for i := range n {
		samples[last-i] *= float32(i) / float32(n)
	}

	return samples
}

// Fade returns a hook applying FadeIn and FadeOut of ms at SampleRate.
func Fade(ms float64) Hook {
	return func(samples []float32) []float32 {
		if ms <= 0 {
			return samples
		}

		return FadeOut(FadeIn(samples, SampleRate, ms), SampleRate, ms)
	}
}

// Normalize returns a hook removing DC offset then peak-normalizing.
func Normalize() Hook {
	return func(samples []float32) []float32 {
		return PeakNormalize(DCBlock(samples, SampleRate))
	}
}

func fadeLength(total, sampleRate int, ms float64) int {
	if ms <= 0 || sampleRate < 1 {
		return 0
	}

	return min(int(ms/1000*float64(sampleRate)), total)
}
