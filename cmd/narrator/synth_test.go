package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadSynthText(t *testing.T) {
	got, err := readSynthText("from flag", strings.NewReader("ignored"))
	if err != nil || got != "from flag" {
		t.Fatalf("flag text = %q, %v", got, err)
	}

	got, err = readSynthText("  ", strings.NewReader("  from stdin \n"))
	if err != nil || got != "from stdin" {
		t.Fatalf("stdin text = %q, %v", got, err)
	}

	if _, err := readSynthText("", strings.NewReader("   ")); err == nil {
		t.Fatal("expected error for empty input")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestReadSynthText_ReadError(t *testing.T) {
	if _, err := readSynthText("", failingReader{}); err == nil || !strings.Contains(err.Error(), "read stdin") {
		t.Fatalf("error = %v", err)
	}
}

func TestWriteSynthOutput(t *testing.T) {
	var stdout bytes.Buffer
	if err := writeSynthOutput("-", []byte("RIFF"), &stdout); err != nil {
		t.Fatalf("stdout: %v", err)
	}
	if stdout.String() != "RIFF" {
		t.Fatalf("stdout = %q", stdout.String())
	}

	if err := writeSynthOutput("-", []byte("RIFF"), nil); err == nil {
		t.Fatal("expected error for nil stdout")
	}

	path := filepath.Join(t.TempDir(), "out.wav")
	if err := writeSynthOutput(path, []byte("RIFF"), nil); err != nil {
		t.Fatalf("file: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "RIFF" {
		t.Fatalf("file content = %q, %v", data, err)
	}
}

func TestSynthCmd_FailsWithoutRuntime(t *testing.T) {
	missing := filepath.Join(os.TempDir(), "narrator-missing", "libonnxruntime.so")

	_, err := run(t, "", "synth", "--text", "hello", "--out", "-", "--ort-lib", missing, "--wait", "5s")
	if err == nil {
		t.Fatal("expected error when the runtime library is missing")
	}
}

func TestSynthCmd_InvalidConfig(t *testing.T) {
	_, err := run(t, "", "synth", "--text", "hello", "--speed", "0")
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Fatalf("error = %v; want invalid configuration", err)
	}
}

func TestSpeakCmd_RequiresText(t *testing.T) {
	if _, err := run(t, "", "speak"); err == nil {
		t.Fatal("expected error without text")
	}
}

func TestReadSynthText_Normalizes(t *testing.T) {
	got, err := readSynthText("Hello,\tworld.\r\n  Again.", nil)
	if err != nil {
		t.Fatalf("readSynthText: %v", err)
	}
	if got != "Hello, world.\n Again." {
		t.Fatalf("got %q", got)
	}
}

type recordingRenderer struct {
	texts []string
	fail  int
}

func (r *recordingRenderer) Render(_ context.Context, text string) ([]float32, error) {
	r.texts = append(r.texts, text)
	if r.fail > 0 && len(r.texts) == r.fail {
		return nil, errors.New("boom")
	}
	return make([]float32, len(text)), nil
}

func TestRenderChunks(t *testing.T) {
	const input = "One. Two two. Three three three."

	single := &recordingRenderer{}
	samples, err := renderChunks(context.Background(), single, input, 0)
	if err != nil {
		t.Fatalf("single pass: %v", err)
	}
	if len(single.texts) != 1 || len(samples) != len(input) {
		t.Fatalf("single pass rendered %q (%d samples)", single.texts, len(samples))
	}

	chunked := &recordingRenderer{}
	samples, err = renderChunks(context.Background(), chunked, input, 14)
	if err != nil {
		t.Fatalf("chunked: %v", err)
	}
	if len(chunked.texts) < 2 {
		t.Fatalf("want several chunks, got %q", chunked.texts)
	}

	total := 0
	for _, s := range chunked.texts {
		total += len(s)
		if strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
			t.Errorf("chunk %q carries surrounding whitespace", s)
		}
	}
	if len(samples) != total {
		t.Errorf("samples = %d, want %d", len(samples), total)
	}
}

func TestRenderChunks_Error(t *testing.T) {
	r := &recordingRenderer{fail: 2}
	_, err := renderChunks(context.Background(), r, "One. Two. Three.", 5)
	if err == nil || !strings.Contains(err.Error(), "chunk 2") {
		t.Fatalf("error = %v; want chunk 2 failure", err)
	}
}

func TestBenchCmd_RejectsFormat(t *testing.T) {
	_, err := run(t, "", "bench", "--text", "hi", "--format", "xml")
	if err == nil || !strings.Contains(err.Error(), "--format") {
		t.Fatalf("error = %v", err)
	}
}
