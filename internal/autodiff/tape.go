// Package autodiff provides reverse-mode automatic differentiation as a
// decorator around any tensor backend. Forward operations are executed
// by the wrapped backend and recorded on a gradient tape; a single
// backward pass over the tape yields gradients for every recorded
// input.
package autodiff

import (
	"github.com/graft-ml/graft/internal/autodiff/ops"
	"github.com/graft-ml/graft/internal/tensor"
)

// GradientTape records operations during the forward pass and replays
// them in reverse to compute gradients. It is not safe for concurrent
// use.
type GradientTape struct {
	operations []ops.Operation
	restores   []func()
	recording  bool
}

// NewTape returns an empty tape with recording disabled.
func NewTape() *GradientTape {
	return &GradientTape{}
}

// StartRecording enables recording of subsequent operations.
func (t *GradientTape) StartRecording() { t.recording = true }

// StopRecording disables recording. Already recorded operations are
// kept.
func (t *GradientTape) StopRecording() { t.recording = false }

// IsRecording reports whether operations are currently recorded.
func (t *GradientTape) IsRecording() bool { return t.recording }

// Record appends an operation to the tape if recording is enabled.
func (t *GradientTape) Record(op ops.Operation) {
	if t.recording {
		t.operations = append(t.operations, op)
	}
}

// guardTensor pins a tensor's buffer as shared for the lifetime of the
// tape, so backends cannot reuse it for in-place results while the
// backward pass still needs the original values.
func (t *GradientTape) guardTensor(raw *tensor.RawTensor) {
	t.restores = append(t.restores, raw.ForceNonUnique())
}

// NumOperations returns the number of recorded operations.
func (t *GradientTape) NumOperations() int { return len(t.operations) }

// Clear drops all recorded operations and releases the in-place guards.
// Recording state is unchanged.
func (t *GradientTape) Clear() {
	for _, restore := range t.restores {
		restore()
	}
	t.operations = t.operations[:0]
	t.restores = t.restores[:0]
}

// Backward walks the tape in reverse, starting from outputGrad as the
// gradient of the last recorded operation's output, and returns the
// accumulated gradient for every tensor that received one. Recording is
// suspended for the duration of the walk so that gradient computations
// are not themselves taped.
func (t *GradientTape) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) map[*tensor.RawTensor]*tensor.RawTensor {
	grads := make(map[*tensor.RawTensor]*tensor.RawTensor)
	if len(t.operations) == 0 {
		return grads
	}

	wasRecording := t.recording
	t.recording = false
	defer func() { t.recording = wasRecording }()

	grads[t.operations[len(t.operations)-1].Output()] = outputGrad

	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]
		grad, ok := grads[op.Output()]
		if !ok {
			// Output never contributed to the loss.
			continue
		}
		inputGrads := op.Backward(grad, backend)
		for j, input := range op.Inputs() {
			ig := inputGrads[j]
			if ig == nil {
				continue
			}
			if existing, ok := grads[input]; ok {
				grads[input] = backend.Add(existing, ig)
			} else {
				grads[input] = ig
			}
		}
	}
	return grads
}
