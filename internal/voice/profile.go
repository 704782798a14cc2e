// Package voice reads the speaker style embeddings that condition the
// acoustic model, and resolves voice IDs through a voices manifest.
package voice

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// StyleDim is the number of float32 values in one style embedding.
const StyleDim = 256

// ErrShortProfile is returned when a voice profile holds fewer than StyleDim floats.
var ErrShortProfile = errors.New("voice profile shorter than one style embedding")

// Style is one speaker embedding.
type Style [StyleDim]float32

// Floats returns a copy of the embedding as a slice.
func (s Style) Floats() []float32 {
	out := make([]float32, StyleDim)
	copy(out, s[:])

	return out
}

// ReadStyle decodes the first StyleDim little-endian float32 values from r.
// Profiles may hold several embeddings back to back; the rest is ignored.
func ReadStyle(r io.Reader) (Style, error) {
	var s Style

	err := binary.Read(r, binary.LittleEndian, &s)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return Style{}, ErrShortProfile
	}

	if err != nil {
		return Style{}, fmt.Errorf("read style embedding: %w", err)
	}

	return s, nil
}

// LoadStyle reads the first style embedding of the profile at path.
func LoadStyle(path string) (Style, error) {
	if path == "" {
		return Style{}, errors.New("voice profile path must not be empty")
	}

	f, err := os.Open(path)
	if err != nil {
		return Style{}, fmt.Errorf("open voice profile: %w", err)
	}
	defer func() { _ = f.Close() }()

	s, err := ReadStyle(f)
	if err != nil {
		return Style{}, fmt.Errorf("voice profile %q: %w", path, err)
	}

	return s, nil
}

// Profile loads a voice profile at most once and serves the cached
// embedding afterwards. It is safe for concurrent use.
type Profile struct {
	path string
	load func(string) (Style, error)

	once  sync.Once
	style Style
	err   error
}

// NewProfile returns a lazily loaded profile for path.
func NewProfile(path string) *Profile {
	return &Profile{path: path, load: LoadStyle}
}

// Style returns the cached embedding, reading the file on first use.
func (p *Profile) Style() (Style, error) {
	p.once.Do(func() {
		p.style, p.err = p.load(p.path)
	})

	return p.style, p.err
}

// Path returns the profile path.
func (p *Profile) Path() string {
	return p.path
}
