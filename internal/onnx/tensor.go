package onnx

import (
	"errors"
	"fmt"
	"math"
)

type TensorDType string

const (
	DTypeFloat32 TensorDType = "float32"
	DTypeInt64   TensorDType = "int64"
)

// Tensor is a dense host-side tensor exchanged with a graph runner.
type Tensor struct {
	dtype TensorDType
	shape []int64
	data  any
}

// NewTensor copies data into a tensor of shape. The element count must match.
func NewTensor[T int64 | float32](data []T, shape []int64) (*Tensor, error) {
	count, err := elementCount(shape)
	if err != nil {
		return nil, err
	}

	if count != len(data) {
		return nil, fmt.Errorf("shape %v expects %d elements, got %d", shape, count, len(data))
	}

	t := &Tensor{shape: append([]int64(nil), shape...)}

	switch any(data).(type) {
	case []float32:
		out := make([]float32, len(data))
		for i, v := range data {
			out[i] = float32(v)
		}

		t.dtype, t.data = DTypeFloat32, out
	default:
		out := make([]int64, len(data))
		for i, v := range data {
			out[i] = int64(v)
		}

		t.dtype, t.data = DTypeInt64, out
	}

	return t, nil
}

// TokenTensor shapes ids as a [1, N] int64 batch.
func TokenTensor(ids []int64) (*Tensor, error) {
	return NewTensor(ids, []int64{1, int64(len(ids))})
}

// StyleTensor shapes a style embedding as a [1, D] float32 batch.
func StyleTensor(style []float32) (*Tensor, error) {
	return NewTensor(style, []int64{1, int64(len(style))})
}

// ScalarTensor shapes v as a [1] float32 tensor.
func ScalarTensor(v float32) (*Tensor, error) {
	return NewTensor([]float32{v}, []int64{1})
}

func (t *Tensor) DType() TensorDType {
	return t.dtype
}

func (t *Tensor) Shape() []int64 {
	return append([]int64(nil), t.shape...)
}

func (t *Tensor) Len() int {
	switch v := t.data.(type) {
	case []float32:
		return len(v)
	case []int64:
		return len(v)
	default:
		return 0
	}
}

func (t *Tensor) Data() any {
	switch v := t.data.(type) {
	case []float32:
		return append([]float32(nil), v...)
	case []int64:
		return append([]int64(nil), v...)
	default:
		return nil
	}
}

// ExtractFloat32 copies the flattened float32 payload out of a tensor or raw slice.
func ExtractFloat32(output any) ([]float32, error) {
	switch out := output.(type) {
	case nil:
		return nil, errors.New("output is nil")
	case []float32:
		return append([]float32(nil), out...), nil
	case *Tensor:
		if out == nil {
			return nil, errors.New("output is nil")
		}

		data, ok := out.data.([]float32)
		if !ok {
			return nil, fmt.Errorf("expected float32 tensor, got %s", out.dtype)
		}

		return append([]float32(nil), data...), nil
	default:
		return nil, fmt.Errorf("expected float32 output, got %T", output)
	}
}

// elementCount returns the product of shape. A zero dimension is allowed so
// an empty token sequence can still be shaped as [1, 0].
func elementCount(shape []int64) (int, error) {
	count := int64(1)

	for i, dim := range shape {
		if dim < 0 {
			return 0, fmt.Errorf("shape[%d]=%d is negative", i, dim)
		}

		if dim != 0 && count > math.MaxInt64/dim {
			return 0, fmt.Errorf("shape %v overflows element count", shape)
		}

		count *= dim
	}

	if count > int64(math.MaxInt) {
		return 0, fmt.Errorf("shape %v exceeds platform int capacity", shape)
	}

	return int(count), nil
}
