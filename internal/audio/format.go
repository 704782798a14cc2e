// Package audio holds the waveform format constants, WAV encoding and the
// small DSP helpers applied to synthesized speech.
package audio

import "time"

// Model output and WAV export format.
const (
	SampleRate = 24000
	Channels   = 1
	BitDepth   = 16
)

// Duration returns the playback length of n mono samples at SampleRate.
func Duration(n int) time.Duration {
	if n <= 0 {
		return 0
	}

	return time.Duration(n) * time.Second / SampleRate
}
