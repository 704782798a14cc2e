//go:build windows

package onnx

import (
	"context"
	"fmt"
)

// DefaultAPIVersion is the ORT C API version requested when none is configured.
const DefaultAPIVersion = 23

// RunnerConfig locates the ORT shared library and selects the C API version.
type RunnerConfig struct {
	LibraryPath string
	APIVersion  uint32
}

// Runner is unavailable in windows builds; the purego loader targets dlopen.
type Runner struct {
	name string
}

// NewRunner always fails on windows.
func NewRunner(name, _ string, _ RunnerConfig) (*Runner, error) {
	return nil, fmt.Errorf("native onnx runner is unavailable on windows for graph %q", name)
}

func (r *Runner) Run(_ context.Context, _ map[string]*Tensor, _ ...string) (map[string]*Tensor, error) {
	return nil, fmt.Errorf("native onnx runner is unavailable on windows for graph %q", r.name)
}

func (r *Runner) InputNames() []string { return nil }

func (r *Runner) OutputNames() []string { return nil }

func (r *Runner) Close() {}

func (r *Runner) Name() string {
	return r.name
}
