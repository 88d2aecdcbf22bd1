// Package tensor provides a minimal CPU tensor used by the forecasting loops.
// All tensors are float32 and row-major; the forecasting code works almost
// exclusively with 3-D [batch, time, channel] layouts.
package tensor

import (
	"fmt"
)

// Tensor is a dense row-major float32 tensor.
type Tensor struct {
	Shape    []int
	Strides  []int
	NumElems int
	Data     []float32

	grad         *Tensor
	requiresGrad bool
}

func validateShape(shape []int) error {
	if len(shape) == 0 {
		return fmt.Errorf("shape must have at least one dimension")
	}
	for i, dim := range shape {
		if dim <= 0 {
			return fmt.Errorf("shape dimension %d must be positive, got %d", i, dim)
		}
	}
	return nil
}

func calculateNumElements(shape []int) int {
	n := 1
	for _, dim := range shape {
		n *= dim
	}
	return n
}

func calculateStrides(shape []int) []int {
	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

// SetRequiresGrad marks the tensor as a trainable parameter.
func (t *Tensor) SetRequiresGrad(requires bool) {
	t.requiresGrad = requires
}

// RequiresGrad reports whether the tensor is a trainable parameter.
func (t *Tensor) RequiresGrad() bool {
	return t.requiresGrad
}

// Grad returns the accumulated gradient, or nil if none has been accumulated.
func (t *Tensor) Grad() *Tensor {
	return t.grad
}

// AccumulateGrad adds grad into the tensor's gradient slot, allocating it on
// first use. The gradient must match the tensor's shape.
func (t *Tensor) AccumulateGrad(grad *Tensor) error {
	if !shapesEqual(t.Shape, grad.Shape) {
		return fmt.Errorf("gradient shape %v does not match tensor shape %v", grad.Shape, t.Shape)
	}
	if t.grad == nil {
		g, err := Zeros(t.Shape)
		if err != nil {
			return err
		}
		t.grad = g
	}
	for i, v := range grad.Data {
		t.grad.Data[i] += v
	}
	return nil
}

// ZeroGrad resets the gradients of all given parameters.
func ZeroGrad(params []*Tensor) {
	for _, p := range params {
		if p.grad != nil {
			for i := range p.grad.Data {
				p.grad.Data[i] = 0
			}
		}
	}
}

// Item returns the single element of a scalar tensor.
func (t *Tensor) Item() (float32, error) {
	if t.NumElems != 1 {
		return 0, fmt.Errorf("Item requires a single-element tensor, got %d elements", t.NumElems)
	}
	return t.Data[0], nil
}

// Clone returns a deep copy of the tensor. Gradient state is not copied.
func (t *Tensor) Clone() *Tensor {
	data := make([]float32, t.NumElems)
	copy(data, t.Data)
	clone, _ := New(t.Shape, data)
	return clone
}

// Reshape returns a view-copy of the tensor with a new shape covering the same
// number of elements.
func (t *Tensor) Reshape(shape []int) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	if calculateNumElements(shape) != t.NumElems {
		return nil, fmt.Errorf("cannot reshape %v (%d elements) to %v", t.Shape, t.NumElems, shape)
	}
	return New(shape, t.Data)
}

// At3 reads element [b, t, c] of a 3-D tensor.
func (t *Tensor) At3(b, ti, c int) float32 {
	return t.Data[b*t.Strides[0]+ti*t.Strides[1]+c]
}

// Set3 writes element [b, t, c] of a 3-D tensor.
func (t *Tensor) Set3(b, ti, c int, v float32) {
	t.Data[b*t.Strides[0]+ti*t.Strides[1]+c] = v
}

func shapesEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		if v != b[i] {
			return false
		}
	}
	return true
}
