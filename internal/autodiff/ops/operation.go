// Package ops defines the differentiable operations recorded on the
// gradient tape. Each operation knows how to turn the gradient of its
// output into gradients of its inputs.
package ops

import "github.com/graft-ml/graft/internal/tensor"

// Operation is a single recorded computation. Backward receives the
// gradient flowing into the operation's output and returns one gradient
// per input, in the same order as Inputs. A nil entry means the input
// does not need a gradient.
type Operation interface {
	// Backward computes input gradients from the output gradient.
	Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the tensors this operation consumed.
	Inputs() []*tensor.RawTensor

	// Output returns the tensor this operation produced.
	Output() *tensor.RawTensor
}
