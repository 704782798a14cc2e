package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/cwbudde/wav"
	goaudio "github.com/go-audio/audio"
)

// EncodeWAV encodes samples as a 24 kHz mono 16-bit PCM WAV.
func EncodeWAV(samples []float32) ([]byte, error) {
	sb := &seekBuffer{}

	enc := wav.NewEncoder(sb, SampleRate, BitDepth, Channels, 1) // 1 = PCM

	pcm := &goaudio.Float32Buffer{
		Data:           samples,
		Format:         &goaudio.Format{SampleRate: SampleRate, NumChannels: Channels},
		SourceBitDepth: BitDepth,
	}

	if err := enc.Write(pcm); err != nil {
		return nil, fmt.Errorf("writing PCM: %w", err)
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing encoder: %w", err)
	}

	return sb.buf.Bytes(), nil
}

// WriteWAV encodes samples and writes the whole file to w.
func WriteWAV(w io.Writer, samples []float32) error {
	data, err := EncodeWAV(samples)
	if err != nil {
		return err
	}

	_, err = w.Write(data)

	return err
}

// seekBuffer is an in-memory io.WriteSeeker; the encoder seeks back to patch
// the RIFF and data sizes on Close.
type seekBuffer struct {
	buf bytes.Buffer
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	if s.pos == s.buf.Len() {
		n, err := s.buf.Write(p)
		s.pos += n

		return n, err
	}

	data := s.buf.Bytes()

	n := copy(data[s.pos:], p)
	if n < len(p) {
		s.buf.Write(p[n:])
	}

	s.pos += len(p)

	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var pos int64

	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(s.pos) + offset
	case io.SeekEnd:
		pos = int64(s.buf.Len()) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}

	if pos < 0 {
		return 0, errors.New("seek before start")
	}

	if pos > int64(s.buf.Len()) {
		s.buf.Write(make([]byte, pos-int64(s.buf.Len())))
	}

	s.pos = int(pos)

	return pos, nil
}
