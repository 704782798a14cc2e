package onnx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// GraphRunner executes one ONNX graph. *Runner is the production implementation.
type GraphRunner interface {
	// Run computes the named outputs, or every output when none are named.
	Run(ctx context.Context, inputs map[string]*Tensor, outputs ...string) (map[string]*Tensor, error)
	// OutputNames lists the graph outputs in declaration order.
	OutputNames() []string
	Name() string
	Close()
}

// IONames maps the acoustic model's tensors. Empty fields take the defaults.
type IONames struct {
	InputIDs string
	Style    string
	Speed    string
	// Output selects the waveform output. Empty means the graph's first
	// declared output.
	Output string
}

func (n IONames) withDefaults() IONames {
	if n.InputIDs == "" {
		n.InputIDs = "input_ids"
	}

	if n.Style == "" {
		n.Style = "style"
	}

	if n.Speed == "" {
		n.Speed = "speed"
	}

	return n
}

// ModelOptions configures OpenModel.
type ModelOptions struct {
	Runner RunnerConfig
	Names  IONames
	Logger *slog.Logger
}

// Model is the acoustic model: token IDs, style and speed in, waveform out.
// Calls are serialized internally; one graph session is never run concurrently.
type Model struct {
	runner GraphRunner
	names  IONames
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewModel wraps an already-open graph runner.
func NewModel(runner GraphRunner, names IONames, logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}

	return &Model{
		runner: runner,
		names:  names.withDefaults(),
		logger: logger.With(slog.String("component", "onnx"), slog.String("graph", runner.Name())),
	}
}

// OpenModel loads the ONNX graph at path into a new ORT session.
func OpenModel(path string, opts ModelOptions) (*Model, error) {
	if path == "" {
		return nil, errors.New("model path is required")
	}

	runner, err := NewRunner("acoustic", path, opts.Runner)
	if err != nil {
		return nil, fmt.Errorf("open model %s: %w", path, err)
	}

	return NewModel(runner, opts.Names, opts.Logger), nil
}

// Synthesize runs one inference and returns the flattened waveform.
func (m *Model) Synthesize(ctx context.Context, tokens []int64, style []float32, speed float32) ([]float32, error) {
	ids, err := TokenTensor(tokens)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", m.names.InputIDs, err)
	}

	styleTensor, err := StyleTensor(style)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", m.names.Style, err)
	}

	speedTensor, err := ScalarTensor(speed)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", m.names.Speed, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.New("model is closed")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name, err := m.outputName()
	if err != nil {
		return nil, err
	}

	outputs, err := m.runner.Run(ctx, map[string]*Tensor{
		m.names.InputIDs: ids,
		m.names.Style:    styleTensor,
		m.names.Speed:    speedTensor,
	}, name)
	if err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}

	// ORT sessions run to completion regardless of ctx; a result that
	// arrives after the deadline is discarded.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, ok := outputs[name]
	if !ok {
		return nil, fmt.Errorf("model output %q missing from run results", name)
	}

	samples, err := ExtractFloat32(out)
	if err != nil {
		return nil, fmt.Errorf("output %q: %w", name, err)
	}

	m.logger.Debug("inference complete",
		slog.Int("tokens", len(tokens)),
		slog.Int("samples", len(samples)),
		slog.String("output", name),
	)

	return samples, nil
}

// outputName returns the configured waveform output, or the graph's first
// declared output.
func (m *Model) outputName() (string, error) {
	declared := m.runner.OutputNames()
	if len(declared) == 0 {
		return "", errors.New("model declares no outputs")
	}

	if m.names.Output == "" {
		return declared[0], nil
	}

	if !slices.Contains(declared, m.names.Output) {
		return "", fmt.Errorf("model output %q not found (have %v)", m.names.Output, declared)
	}

	return m.names.Output, nil
}

// Close releases the session. Subsequent Synthesize calls fail.
func (m *Model) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.closed = true
	m.runner.Close()
}
