//go:build !windows

package onnx

import (
	"context"
	"errors"
	"fmt"
	"slices"

	ort "github.com/shota3506/onnxruntime-purego/onnxruntime"
)

// DefaultAPIVersion is the ORT C API version requested when none is configured.
const DefaultAPIVersion = 23

// RunnerConfig locates the ORT shared library and selects the C API version.
type RunnerConfig struct {
	LibraryPath string
	APIVersion  uint32 // 0 means DefaultAPIVersion
}

// Runner owns one ORT runtime, environment and session for a single graph,
// plus the graph's declared input and output names.
type Runner struct {
	name    string
	runtime *ort.Runtime
	env     *ort.Env
	session *ort.Session

	inputs  []string
	outputs []string
}

// NewRunner loads the graph at modelPath into a new session. name labels the
// graph in errors and logs.
func NewRunner(name, modelPath string, cfg RunnerConfig) (*Runner, error) {
	if cfg.LibraryPath == "" {
		return nil, errors.New("onnx runtime library path is required")
	}

	if cfg.APIVersion == 0 {
		cfg.APIVersion = DefaultAPIVersion
	}

	runtime, err := ort.NewRuntime(cfg.LibraryPath, cfg.APIVersion)
	if err != nil {
		return nil, fmt.Errorf("ort runtime for %q: %w", name, err)
	}

	env, err := runtime.NewEnv("narrator-"+name, ort.LoggingLevelWarning)
	if err != nil {
		_ = runtime.Close()
		return nil, fmt.Errorf("ort env for %q: %w", name, err)
	}

	session, err := runtime.NewSession(env, modelPath, nil)
	if err != nil {
		env.Close()
		_ = runtime.Close()

		return nil, fmt.Errorf("ort session for %q (%s): %w", name, modelPath, err)
	}

	return &Runner{
		name:    name,
		runtime: runtime,
		env:     env,
		session: session,
		inputs:  slices.Clone(session.InputNames()),
		outputs: slices.Clone(session.OutputNames()),
	}, nil
}

// InputNames lists the graph inputs in declaration order.
func (r *Runner) InputNames() []string {
	return r.inputs
}

// OutputNames lists the graph outputs in declaration order.
func (r *Runner) OutputNames() []string {
	return r.outputs
}

// Run executes the graph with the given named inputs. It computes only the
// named outputs, or every declared output when none are given. Unknown input
// or output names are rejected before the session runs.
func (r *Runner) Run(ctx context.Context, inputs map[string]*Tensor, outputs ...string) (map[string]*Tensor, error) {
	if r.session == nil {
		return nil, fmt.Errorf("run %q: runner is closed", r.name)
	}

	if err := checkNames("input", inputNames(inputs), r.inputs); err != nil {
		return nil, fmt.Errorf("run %q: %w", r.name, err)
	}

	var opts []ort.RunOption
	if len(outputs) > 0 {
		if err := checkNames("output", outputs, r.outputs); err != nil {
			return nil, fmt.Errorf("run %q: %w", r.name, err)
		}

		opts = append(opts, ort.WithOutputNames(outputs...))
	}

	ortInputs := make(map[string]*ort.Value, len(inputs))
	for name, t := range inputs {
		v, err := tensorToORT(r.runtime, t)
		if err != nil {
			closeORTValues(ortInputs)
			return nil, fmt.Errorf("input %q: %w", name, err)
		}

		ortInputs[name] = v
	}

	defer closeORTValues(ortInputs)

	ortOutputs, err := r.session.Run(ctx, ortInputs, opts...)
	if err != nil {
		return nil, fmt.Errorf("run %q: %w", r.name, err)
	}
	defer closeORTValues(ortOutputs)

	results := make(map[string]*Tensor, len(ortOutputs))
	for name, v := range ortOutputs {
		t, err := ortToTensor(v)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", name, err)
		}

		results[name] = t
	}

	return results, nil
}

// Close releases the session, environment and runtime. Safe to call twice.
func (r *Runner) Close() {
	if r.session != nil {
		r.session.Close()
		r.session = nil
	}

	if r.env != nil {
		r.env.Close()
		r.env = nil
	}

	if r.runtime != nil {
		_ = r.runtime.Close()
		r.runtime = nil
	}
}

// Name returns the label given to NewRunner.
func (r *Runner) Name() string {
	return r.name
}

func inputNames(inputs map[string]*Tensor) []string {
	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// checkNames reports the first of names that the graph does not declare.
func checkNames(kind string, names, declared []string) error {
	for _, name := range names {
		if !slices.Contains(declared, name) {
			return fmt.Errorf("unknown %s %q (graph declares %v)", kind, name, declared)
		}
	}

	return nil
}

func tensorToORT(runtime *ort.Runtime, t *Tensor) (*ort.Value, error) {
	if t == nil {
		return nil, errors.New("nil tensor")
	}

	switch data := t.Data().(type) {
	case []float32:
		return ort.NewTensorValue(runtime, data, t.Shape())
	case []int64:
		return ort.NewTensorValue(runtime, data, t.Shape())
	default:
		return nil, fmt.Errorf("unsupported tensor dtype %T", data)
	}
}

func ortToTensor(v *ort.Value) (*Tensor, error) {
	elemType, err := v.GetTensorElementType()
	if err != nil {
		return nil, fmt.Errorf("get element type: %w", err)
	}

	switch elemType {
	case ort.ONNXTensorElementDataTypeFloat:
		data, shape, err := ort.GetTensorData[float32](v)
		if err != nil {
			return nil, err
		}

		return NewTensor(data, shape)
	case ort.ONNXTensorElementDataTypeInt64:
		data, shape, err := ort.GetTensorData[int64](v)
		if err != nil {
			return nil, err
		}

		return NewTensor(data, shape)
	default:
		return nil, fmt.Errorf("unsupported ORT element type %d", elemType)
	}
}

func closeORTValues(vals map[string]*ort.Value) {
	for _, v := range vals {
		if v != nil {
			v.Close()
		}
	}
}
