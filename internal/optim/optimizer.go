// Package optim implements gradient descent optimizers. An optimizer
// owns the set of parameters it updates; tensors absent from that set
// are left untouched even when the tape produced gradients for them,
// which is how frozen parameters stay fixed.
package optim

import "github.com/graft-ml/graft/internal/tensor"

// Optimizer updates parameters from the gradients of a backward pass.
type Optimizer interface {
	// Step applies one update using the gradients keyed by parameter
	// tensor. Parameters without a gradient are skipped.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad resets any per-step state. Gradients themselves are
	// produced fresh by each backward pass; this keeps the familiar
	// loop shape.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32

	// StateDict returns the optimizer's internal buffers keyed by name.
	StateDict() map[string]*tensor.RawTensor
}
