package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/go-narrator/internal/narrator"
	"github.com/example/go-narrator/internal/playback"
)

func TestVoicesCmd(t *testing.T) {
	manifest := filepath.Join(t.TempDir(), "manifest.json")
	body := `{"voices":[{"id":"am_michael","path":"am_michael.bin","language":"en-us","license":"apache-2.0"}]}`
	if err := os.WriteFile(manifest, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "", "voices", "--voices-manifest", manifest)
	if err != nil {
		t.Fatalf("voices: %v", err)
	}

	for _, want := range []string{"ID", "am_michael", "en-us", "apache-2.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestVoicesCmd_MissingManifest(t *testing.T) {
	if _, err := run(t, "", "voices", "--voices-manifest", filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing manifest")
	}
}

func TestDoctorCmd_ReportsFailures(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, "", "doctor",
		"--sink", "null",
		"--ort-lib", filepath.Join(dir, "libonnxruntime.so"),
		"--model", filepath.Join(dir, "model.onnx"),
		"--vocab", filepath.Join(dir, "tokenizer.json"),
		"--voice-path", filepath.Join(dir, "voice.bin"),
	)
	if err == nil || !strings.Contains(err.Error(), "check(s) failed") {
		t.Fatalf("error = %v", err)
	}

	for _, want := range []string{"onnx runtime", "model", "vocabulary", "voice profile"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if strings.Contains(out, "playback devices") {
		t.Error("null sink should skip the device check")
	}
}

func TestHealthCmd(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	out, err := run(t, "", "health", "--addr", ts.Listener.Addr().String())
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if strings.TrimSpace(out) != "ok" {
		t.Fatalf("output = %q", out)
	}
}

func TestHealthCmd_Unavailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	if _, err := run(t, "", "health", "--addr", ts.Listener.Addr().String()); err == nil {
		t.Fatal("expected error for 503")
	}
}

type stopCounter struct{ stops int }

func (s *stopCounter) Stop() { s.stops++ }

func TestAwaitUtterance(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name    string
		events  []narrator.Event
		wantErr error
	}{
		{
			name: "finished",
			events: []narrator.Event{
				{Kind: narrator.EventInterrupted, UtteranceID: "other"},
				{Kind: narrator.EventFinished, UtteranceID: "u1"},
			},
		},
		{
			name:    "failed",
			events:  []narrator.Event{{Kind: narrator.EventFailed, UtteranceID: "u1", Err: boom}},
			wantErr: boom,
		},
		{
			name:    "interrupted",
			events:  []narrator.Event{{Kind: narrator.EventInterrupted, UtteranceID: "u1", Err: narrator.ErrStopped}},
			wantErr: narrator.ErrStopped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done := make(chan narrator.Event, len(tt.events))
			for _, ev := range tt.events {
				done <- ev
			}

			err := awaitUtterance(context.Background(), &stopCounter{}, done, "u1")
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("awaitUtterance: %v", err)
				}
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v; want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAwaitUtterance_CancelStops(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	sc := &stopCounter{}
	err := awaitUtterance(ctx, sc, make(chan narrator.Event), "u1")

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v", err)
	}
	if sc.stops != 1 {
		t.Fatalf("Stop called %d times", sc.stops)
	}
}

func TestPrintWord(t *testing.T) {
	var buf bytes.Buffer

	printWord(&buf, narrator.Event{Text: "hello world", Start: 6, End: 11})
	printWord(&buf, narrator.Event{Text: "hi", Start: 1, End: 9})

	if buf.String() != "world\n" {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestPrintDevices(t *testing.T) {
	var buf bytes.Buffer

	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	err := printDevices(cmd, []playback.Device{{Name: "Speakers", IsDefault: true}, {Name: "HDMI"}})
	if err != nil {
		t.Fatal(err)
	}

	if buf.String() != "* Speakers\n  HDMI\n" {
		t.Fatalf("output = %q", buf.String())
	}
}
