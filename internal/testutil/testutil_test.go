package testutil_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/go-narrator/internal/audio"
	"github.com/example/go-narrator/internal/testutil"
)

func TestRequireONNXRuntime_SkipsWhenAbsent(t *testing.T) {
	t.Setenv("NARRATOR_ORT_LIB", "/nonexistent/libonnxruntime.so")

	skipped := false
	fakeT := &skipTracker{TB: t, onSkip: func() { skipped = true }}

	testutil.RequireONNXRuntime(fakeT)

	if !skipped {
		t.Error("expected RequireONNXRuntime to skip when library is absent")
	}
}

func TestRequireONNXRuntime_ReturnsEnvPath(t *testing.T) {
	lib := filepath.Join(t.TempDir(), "libonnxruntime.so")
	if err := os.WriteFile(lib, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	t.Setenv("NARRATOR_ORT_LIB", lib)

	fakeT := &skipTracker{TB: t, onSkip: func() { t.Error("unexpected skip") }}
	if got := testutil.RequireONNXRuntime(fakeT); got != lib {
		t.Errorf("RequireONNXRuntime() = %q; want %q", got, lib)
	}
}

func TestRequireModelAssets(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NARRATOR_MODEL_DIR", dir)

	skipped := false
	fakeT := &skipTracker{TB: t, onSkip: func() { skipped = true }}
	testutil.RequireModelAssets(fakeT)

	if !skipped {
		t.Fatal("expected skip with empty model dir")
	}

	for _, name := range []string{"model_q8f16.onnx", "tokenizer.json", "am_michael.bin"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	skipped = false

	assets := testutil.RequireModelAssets(fakeT)
	if skipped {
		t.Fatal("unexpected skip with assets present")
	}

	if assets.Vocab != filepath.Join(dir, "tokenizer.json") {
		t.Errorf("Vocab = %q", assets.Vocab)
	}
}

func TestRequireVoiceFile_SkipsWhenManifestAbsent(t *testing.T) {
	t.Chdir(t.TempDir())

	skipped := false
	fakeT := &skipTracker{TB: t, onSkip: func() { skipped = true }}
	testutil.RequireVoiceFile(fakeT, "any-voice")

	if !skipped {
		t.Error("expected RequireVoiceFile to skip when manifest is absent")
	}
}

// skipTracker intercepts Skip calls without skipping the outer test.
type skipTracker struct {
	testing.TB
	onSkip func()
}

func (s *skipTracker) Helper() {}

func (s *skipTracker) Skip(_ ...any) {
	s.onSkip()
}

func (s *skipTracker) Skipf(_ string, _ ...any) {
	s.onSkip()
}

func TestAssertValidWAV(t *testing.T) {
	data, err := audio.EncodeWAV(make([]float32, audio.SampleRate/2))
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	samples := testutil.AssertValidWAV(t, data)
	if len(samples) != audio.SampleRate/2 {
		t.Fatalf("got %d samples", len(samples))
	}

	testutil.AssertWAVDurationApprox(t, data, 400*time.Millisecond, 600*time.Millisecond)
}
