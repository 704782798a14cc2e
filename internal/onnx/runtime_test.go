package onnx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-narrator/internal/config"
)

func writeFakeLib(t *testing.T, name string) string {
	t.Helper()

	lib := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(lib, []byte("fake"), 0o644); err != nil {
		t.Fatalf("write fake lib: %v", err)
	}

	return lib
}

func TestDetectRuntimePrefersConfig(t *testing.T) {
	lib := writeFakeLib(t, "libonnxruntime.so.1.22.1")
	t.Setenv("NARRATOR_ORT_LIB", writeFakeLib(t, "other.so"))

	info, err := DetectRuntime(config.RuntimeConfig{ORTLibraryPath: lib})
	if err != nil {
		t.Fatalf("DetectRuntime failed: %v", err)
	}

	if info.LibraryPath != lib {
		t.Fatalf("expected %q, got %q", lib, info.LibraryPath)
	}

	if info.Version != "1.22.1" {
		t.Fatalf("expected version inferred from file name, got %q", info.Version)
	}
}

func TestDetectRuntimePrefersNarratorEnv(t *testing.T) {
	lib := writeFakeLib(t, "libonnxruntime.so")

	t.Setenv("NARRATOR_ORT_LIB", lib)
	t.Setenv("ORT_LIBRARY_PATH", filepath.Join(t.TempDir(), "does-not-exist"))

	info, err := DetectRuntime(config.RuntimeConfig{})
	if err != nil {
		t.Fatalf("DetectRuntime failed: %v", err)
	}

	if info.LibraryPath != lib {
		t.Fatalf("expected %q, got %q", lib, info.LibraryPath)
	}
}

func TestDetectRuntimeVersionOverride(t *testing.T) {
	lib := writeFakeLib(t, "libonnxruntime.so.1.20.0")

	info, err := DetectRuntime(config.RuntimeConfig{ORTLibraryPath: lib, ORTVersion: "1.23.0"})
	if err != nil {
		t.Fatalf("DetectRuntime failed: %v", err)
	}

	if info.Version != "1.23.0" {
		t.Fatalf("expected configured version, got %q", info.Version)
	}
}

func TestDetectRuntimeMissingConfiguredPath(t *testing.T) {
	_, err := DetectRuntime(config.RuntimeConfig{ORTLibraryPath: filepath.Join(t.TempDir(), "nope.so")})
	if err == nil {
		t.Fatal("expected error for missing configured library")
	}
}

func TestInferVersionFromPath(t *testing.T) {
	tests := map[string]string{
		"/usr/lib/libonnxruntime.so.1.22.0":   "1.22.0",
		"/opt/onnxruntime-1.19.2/lib/x.dylib": "",
		"libonnxruntime.1.18.1.dylib":         "1.18.1",
		"C:/onnxruntime/lib/onnxruntime.dll":  "",
	}

	for path, want := range tests {
		if got := inferVersionFromPath(path); got != want {
			t.Errorf("inferVersionFromPath(%q) = %q; want %q", path, got, want)
		}
	}
}
