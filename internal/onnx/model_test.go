package onnx

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

// fakeRunner mimics an ORT session: declared holds the graph's output order
// and Run returns only the requested outputs.
type fakeRunner struct {
	outputs   map[string]*Tensor
	declared  []string
	err       error
	delay     time.Duration
	calls     int
	closed    int
	inputs    map[string]*Tensor
	requested []string
}

// Run ignores ctx, as ORT sessions do.
func (f *fakeRunner) Run(_ context.Context, inputs map[string]*Tensor, outputs ...string) (map[string]*Tensor, error) {
	f.calls++
	f.inputs = inputs
	f.requested = outputs

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	if f.err != nil {
		return nil, f.err
	}

	if len(outputs) == 0 {
		return f.outputs, nil
	}

	got := make(map[string]*Tensor, len(outputs))
	for _, name := range outputs {
		if t, ok := f.outputs[name]; ok {
			got[name] = t
		}
	}

	return got, nil
}

func (f *fakeRunner) OutputNames() []string {
	if f.declared != nil {
		return f.declared
	}

	names := make([]string, 0, len(f.outputs))
	for name := range f.outputs {
		names = append(names, name)
	}

	return names
}

func (f *fakeRunner) Name() string { return "fake" }

func (f *fakeRunner) Close() { f.closed++ }

func floatTensor(t *testing.T, data ...float32) *Tensor {
	t.Helper()

	tt, err := NewTensor(data, []int64{1, int64(len(data))})
	if err != nil {
		t.Fatalf("NewTensor: %v", err)
	}

	return tt
}

func TestModelSynthesizeBuildsInputs(t *testing.T) {
	fr := &fakeRunner{outputs: map[string]*Tensor{"waveform": floatTensor(t, 0.1, 0.2)}}
	m := NewModel(fr, IONames{}, nil)

	style := make([]float32, 256)
	style[0] = 0.5

	got, err := m.Synthesize(context.Background(), []int64{0, 1, 2, 0}, style, 1)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if !reflect.DeepEqual(got, []float32{0.1, 0.2}) {
		t.Fatalf("samples = %v", got)
	}

	ids := fr.inputs["input_ids"]
	if ids == nil || ids.DType() != DTypeInt64 || !reflect.DeepEqual(ids.Shape(), []int64{1, 4}) {
		t.Fatalf("input_ids = %+v", ids)
	}

	s := fr.inputs["style"]
	if s == nil || !reflect.DeepEqual(s.Shape(), []int64{1, 256}) {
		t.Fatalf("style = %+v", s)
	}

	speed, err := ExtractFloat32(fr.inputs["speed"])
	if err != nil || !reflect.DeepEqual(speed, []float32{1}) {
		t.Fatalf("speed = %v, %v", speed, err)
	}
}

func TestModelCustomInputNames(t *testing.T) {
	fr := &fakeRunner{outputs: map[string]*Tensor{"audio": floatTensor(t, 1)}}
	m := NewModel(fr, IONames{InputIDs: "tokens", Style: "ref_s", Speed: "rate"}, nil)

	if _, err := m.Synthesize(context.Background(), []int64{0, 0}, make([]float32, 256), 1.2); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	for _, name := range []string{"tokens", "ref_s", "rate"} {
		if _, ok := fr.inputs[name]; !ok {
			t.Errorf("missing input %q in %v", name, fr.inputs)
		}
	}
}

func TestModelOutputSelection(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		declared []string
		outputs  map[string]*Tensor
		want     []float32
		wantErr  string
	}{
		{
			name:    "sole output",
			outputs: map[string]*Tensor{"x": floatTensor(t, 3)},
			want:    []float32{3},
		},
		{
			name:     "first declared output",
			declared: []string{"waveform", "duration"},
			outputs:  map[string]*Tensor{"waveform": floatTensor(t, 0.1, 0.2, 0.3, 0.4), "duration": floatTensor(t, 7, 9)},
			want:     []float32{0.1, 0.2, 0.3, 0.4},
		},
		{
			name:     "configured",
			output:   "duration",
			declared: []string{"waveform", "duration"},
			outputs:  map[string]*Tensor{"waveform": floatTensor(t, 2), "duration": floatTensor(t, 1)},
			want:     []float32{1},
		},
		{
			name:     "configured missing",
			output:   "pred",
			declared: []string{"audio"},
			outputs:  map[string]*Tensor{"audio": floatTensor(t, 1)},
			wantErr:  `"pred" not found`,
		},
		{
			name:     "declared but not returned",
			declared: []string{"audio"},
			outputs:  map[string]*Tensor{},
			wantErr:  "missing from run results",
		},
		{
			name:     "no outputs",
			declared: []string{},
			outputs:  map[string]*Tensor{},
			wantErr:  "declares no outputs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := &fakeRunner{outputs: tt.outputs, declared: tt.declared}
			m := NewModel(fr, IONames{Output: tt.output}, nil)

			got, err := m.Synthesize(context.Background(), []int64{0, 0}, make([]float32, 256), 1)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v; want containing %q", err, tt.wantErr)
				}

				return
			}

			if err != nil {
				t.Fatalf("Synthesize: %v", err)
			}

			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("samples = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestModelRequestsSelectedOutputOnly(t *testing.T) {
	fr := &fakeRunner{
		declared: []string{"waveform", "duration"},
		outputs:  map[string]*Tensor{"waveform": floatTensor(t, 1), "duration": floatTensor(t, 2)},
	}
	m := NewModel(fr, IONames{}, nil)

	if _, err := m.Synthesize(context.Background(), []int64{0, 0}, make([]float32, 256), 1); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if !reflect.DeepEqual(fr.requested, []string{"waveform"}) {
		t.Fatalf("requested outputs = %v; want [waveform]", fr.requested)
	}
}

func TestModelDiscardsResultPastDeadline(t *testing.T) {
	fr := &fakeRunner{outputs: map[string]*Tensor{"y": floatTensor(t, 1)}, delay: 50 * time.Millisecond}
	m := NewModel(fr, IONames{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	samples, err := m.Synthesize(ctx, []int64{0, 0}, make([]float32, 256), 1)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, samples = %v; want context.DeadlineExceeded", err, samples)
	}

	if fr.calls != 1 {
		t.Fatalf("runner called %d times; want 1", fr.calls)
	}
}

func TestModelRunError(t *testing.T) {
	boom := errors.New("boom")
	m := NewModel(&fakeRunner{err: boom, declared: []string{"y"}}, IONames{}, nil)

	_, err := m.Synthesize(context.Background(), []int64{0, 0}, make([]float32, 256), 1)
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v; want wrapped boom", err)
	}
}

func TestModelNonFloatOutput(t *testing.T) {
	ints, _ := NewTensor([]int64{1}, []int64{1})
	m := NewModel(&fakeRunner{outputs: map[string]*Tensor{"y": ints}}, IONames{}, nil)

	if _, err := m.Synthesize(context.Background(), []int64{0, 0}, make([]float32, 256), 1); err == nil {
		t.Fatal("expected error for int64 output")
	}
}

func TestModelCancelledContext(t *testing.T) {
	fr := &fakeRunner{outputs: map[string]*Tensor{"y": floatTensor(t, 1)}}
	m := NewModel(fr, IONames{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.Synthesize(ctx, []int64{0, 0}, make([]float32, 256), 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v; want context.Canceled", err)
	}

	if fr.calls != 0 {
		t.Fatalf("runner called %d times after cancel", fr.calls)
	}
}

func TestModelClose(t *testing.T) {
	fr := &fakeRunner{outputs: map[string]*Tensor{"y": floatTensor(t, 1)}}
	m := NewModel(fr, IONames{}, nil)

	m.Close()
	m.Close()

	if fr.closed != 1 {
		t.Fatalf("runner closed %d times; want 1", fr.closed)
	}

	if _, err := m.Synthesize(context.Background(), []int64{0, 0}, make([]float32, 256), 1); err == nil {
		t.Fatal("expected error after Close")
	}
}

func TestOpenModelRequiresPath(t *testing.T) {
	if _, err := OpenModel("", ModelOptions{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}
