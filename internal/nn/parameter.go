package nn

import "github.com/graft-ml/graft/internal/tensor"

// Parameter is a named learnable tensor. A frozen parameter keeps its
// values fixed: it is excluded from the trainable set handed to the
// optimizer. The flag is set once when a model is assembled and never
// flipped mid-training.
type Parameter[B tensor.Backend] struct {
	Name   string
	Tensor *tensor.Tensor[float32, B]
	frozen bool
}

// NewParameter wraps a tensor as a trainable parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{Name: name, Tensor: t}
}

// Freeze marks the parameter as not trainable.
func (p *Parameter[B]) Freeze() { p.frozen = true }

// Trainable reports whether the parameter should receive optimizer
// updates.
func (p *Parameter[B]) Trainable() bool { return !p.frozen }

// Raw returns the parameter's underlying raw tensor.
func (p *Parameter[B]) Raw() *tensor.RawTensor { return p.Tensor.Raw() }
