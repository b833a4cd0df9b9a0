// Package nn provides neural network layers built on the tensor and
// autodiff packages. Layers are composed with Sequential and exchange
// weights through flat string-keyed state dicts.
package nn

import "github.com/graft-ml/graft/internal/tensor"

// Module is a neural network component. Forward panics on shape
// mismatches; weight loading reports problems as errors so callers can
// recover from malformed checkpoints.
type Module[B tensor.Backend] interface {
	// Forward computes the module's output for the given input.
	Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns the module's learnable parameters.
	Parameters() []*Parameter[B]

	// StateDict returns the module's weights and buffers keyed by name.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict replaces the module's weights and buffers.
	LoadStateDict(state map[string]*tensor.RawTensor) error
}

// ModeSetter is implemented by modules whose forward pass differs
// between training and evaluation, such as Dropout and BatchNorm2D.
// Sequential propagates the mode to every child that implements it.
type ModeSetter interface {
	SetTraining(training bool)
}

// SetTraining switches a module tree between training and evaluation
// mode. Modules that do not implement ModeSetter are unaffected.
func SetTraining[B tensor.Backend](m Module[B], training bool) {
	if ms, ok := any(m).(ModeSetter); ok {
		ms.SetTraining(training)
	}
}
