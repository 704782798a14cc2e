// Package testutil holds skip helpers and assertions shared by integration tests.
//
// Helpers call t.Skip with a readable reason when a prerequisite is missing,
// so the suite stays green on machines without ONNX Runtime or model assets.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-narrator/internal/voice"
)

// ModelAssets are the files an end-to-end narration test needs.
type ModelAssets struct {
	Model string
	Vocab string
	Voice string
}

var ortCandidates = []string{
	"/usr/lib/libonnxruntime.so",
	"/usr/local/lib/libonnxruntime.so",
	"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
}

// RequireONNXRuntime skips unless an ONNX Runtime shared library is present
// and returns its path. NARRATOR_ORT_LIB and ORT_LIBRARY_PATH are checked
// before the common system locations.
func RequireONNXRuntime(tb testing.TB) string {
	tb.Helper()

	for _, env := range []string{"NARRATOR_ORT_LIB", "ORT_LIBRARY_PATH"} {
		p := os.Getenv(env)
		if p == "" {
			continue
		}

		if _, err := os.Stat(p); err != nil {
			tb.Skipf("ONNX Runtime library not found at %s=%q", env, p)
			return ""
		}

		return p
	}

	for _, p := range ortCandidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	tb.Skip("ONNX Runtime shared library not found; set NARRATOR_ORT_LIB or ORT_LIBRARY_PATH")

	return ""
}

// RequireModelAssets skips unless the acoustic model, tokenizer.json and a
// voice profile exist under NARRATOR_MODEL_DIR (default "models").
func RequireModelAssets(tb testing.TB) ModelAssets {
	tb.Helper()

	dir := os.Getenv("NARRATOR_MODEL_DIR")
	if dir == "" {
		dir = "models"
	}

	assets := ModelAssets{
		Model: filepath.Join(dir, "model_q8f16.onnx"),
		Vocab: filepath.Join(dir, "tokenizer.json"),
		Voice: filepath.Join(dir, "am_michael.bin"),
	}

	for _, p := range []string{assets.Model, assets.Vocab, assets.Voice} {
		if _, err := os.Stat(p); err != nil {
			tb.Skipf("model asset %q not available: %v", p, err)
			return ModelAssets{}
		}
	}

	return assets
}

// RequireVoiceFile skips unless the voice id resolves through
// voices/manifest.json relative to the working directory.
func RequireVoiceFile(tb testing.TB, id string) string {
	tb.Helper()

	manifestPath := filepath.Join("voices", "manifest.json")

	mgr, err := voice.NewManager(manifestPath)
	if err != nil {
		tb.Skipf("voice manifest not available at %q: %v", manifestPath, err)
		return ""
	}

	path, err := mgr.ResolvePath(id)
	if err != nil {
		tb.Skipf("voice %q not available: %v", id, err)
		return ""
	}

	return path
}
