package voice

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Voice is one manifest entry.
type Voice struct {
	ID       string `json:"id"`
	Path     string `json:"path"`
	Language string `json:"language,omitempty"`
	License  string `json:"license,omitempty"`
}

type manifest struct {
	Voices []Voice `json:"voices"`
}

// Manager resolves voice IDs through a manifest file.
type Manager struct {
	baseDir string
	voices  []Voice
	byID    map[string]Voice
}

// NewManager reads the manifest at manifestPath. Relative voice paths are
// resolved against the manifest directory.
func NewManager(manifestPath string) (*Manager, error) {
	if manifestPath == "" {
		return nil, errors.New("manifest path is required")
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read voice manifest: %w", err)
	}

	var m manifest

	err = json.Unmarshal(data, &m)
	if err != nil {
		return nil, fmt.Errorf("decode voice manifest: %w", err)
	}

	mgr := &Manager{
		baseDir: filepath.Dir(manifestPath),
		voices:  append([]Voice(nil), m.Voices...),
		byID:    make(map[string]Voice, len(m.Voices)),
	}

	for _, v := range m.Voices {
		if v.ID == "" {
			return nil, errors.New("voice manifest contains empty id")
		}

		if v.Path == "" {
			return nil, fmt.Errorf("voice %q has empty path", v.ID)
		}

		if _, exists := mgr.byID[v.ID]; exists {
			return nil, fmt.Errorf("duplicate voice id %q", v.ID)
		}

		mgr.byID[v.ID] = v
	}

	return mgr, nil
}

func (m *Manager) ListVoices() []Voice {
	return append([]Voice(nil), m.voices...)
}

// ResolvePath returns the cleaned, existing profile path for id. Relative
// paths are resolved against the manifest directory.
func (m *Manager) ResolvePath(id string) (string, error) {
	v, ok := m.byID[id]
	if !ok {
		return "", fmt.Errorf("unknown voice id %q", id)
	}

	resolved := v.Path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(m.baseDir, resolved)
	}

	resolved = filepath.Clean(resolved)

	_, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("voice file for %q: %w", id, err)
	}

	return resolved, nil
}

// Resolve picks the profile path for a configured voice: a manifest ID when
// id is set, otherwise the fallback path as given.
func Resolve(manifestPath, id, fallback string) (string, error) {
	if id == "" {
		if fallback == "" {
			return "", errors.New("no voice id or voice profile path configured")
		}

		return fallback, nil
	}

	mgr, err := NewManager(manifestPath)
	if err != nil {
		return "", fmt.Errorf("resolve voice %q: %w", id, err)
	}

	return mgr.ResolvePath(id)
}
