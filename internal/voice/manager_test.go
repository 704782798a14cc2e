package voice

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()

	path := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	return path
}

func TestNewManager_Errors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
	}{
		{"invalid json", "{bad json"},
		{"empty id", `{"voices":[{"id":"","path":"v.bin"}]}`},
		{"empty path", `{"voices":[{"id":"v1","path":""}]}`},
		{"duplicate id", `{"voices":[{"id":"v1","path":"a.bin"},{"id":"v1","path":"b.bin"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeManifest(t, t.TempDir(), tt.manifest)
			if _, err := NewManager(path); err == nil {
				t.Errorf("NewManager(%s) = nil; want error", tt.name)
			}
		})
	}
}

func TestNewManager_EmptyAndMissingPath(t *testing.T) {
	if _, err := NewManager(""); err == nil {
		t.Error("NewManager(\"\") = nil; want error")
	}

	if _, err := NewManager("/nonexistent/manifest.json"); err == nil {
		t.Error("NewManager(missing) = nil; want error")
	}
}

func TestManager_ListAndResolve(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "am_michael.bin"), make([]byte, StyleDim*4), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	path := writeManifest(t, dir, `{"voices":[
		{"id":"am_michael","path":"am_michael.bin","language":"en-us","license":"apache-2.0"},
		{"id":"af_ghost","path":"af_ghost.bin"}
	]}`)

	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	voices := mgr.ListVoices()
	if len(voices) != 2 || voices[0].ID != "am_michael" || voices[0].Language != "en-us" {
		t.Fatalf("ListVoices() = %+v", voices)
	}

	voices[0].ID = "mutated"
	if mgr.ListVoices()[0].ID != "am_michael" {
		t.Error("ListVoices() returned an aliased slice")
	}

	resolved, err := mgr.ResolvePath("am_michael")
	if err != nil {
		t.Fatalf("ResolvePath: %v", err)
	}

	if resolved != filepath.Join(dir, "am_michael.bin") {
		t.Errorf("ResolvePath = %q", resolved)
	}

	if _, err := mgr.ResolvePath("af_ghost"); err == nil {
		t.Error("ResolvePath(af_ghost) = nil; want error for missing file")
	}

	if _, err := mgr.ResolvePath("nobody"); err == nil || !strings.Contains(err.Error(), "unknown voice") {
		t.Errorf("ResolvePath(nobody) = %v; want unknown voice error", err)
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "v.bin"), make([]byte, StyleDim*4), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	manifestPath := writeManifest(t, dir, `{"voices":[{"id":"v","path":"v.bin"}]}`)

	got, err := Resolve(manifestPath, "", "models/voice.bin")
	if err != nil || got != "models/voice.bin" {
		t.Errorf("Resolve(no id) = %q, %v; want fallback", got, err)
	}

	got, err = Resolve(manifestPath, "v", "models/voice.bin")
	if err != nil || got != filepath.Join(dir, "v.bin") {
		t.Errorf("Resolve(v) = %q, %v", got, err)
	}

	if _, err := Resolve(manifestPath, "", ""); err == nil {
		t.Error("Resolve with nothing configured = nil; want error")
	}

	if _, err := Resolve(filepath.Join(dir, "missing.json"), "v", ""); err == nil {
		t.Error("Resolve with missing manifest = nil; want error")
	}
}
