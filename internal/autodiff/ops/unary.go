package ops

import "github.com/graft-ml/graft/internal/tensor"

// ReLUOp records z = max(x, 0). The backward pass masks the gradient by
// the sign of the saved input.
type ReLUOp struct {
	X   *tensor.RawTensor
	Out *tensor.RawTensor
}

func (op *ReLUOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	dx := tensor.MustNewRaw(grad.Shape().Clone(), tensor.Float32, grad.Device())
	in := op.X.AsFloat32()
	g := grad.AsFloat32()
	out := dx.AsFloat32()
	for i := range out {
		if in[i] > 0 {
			out[i] = g[i]
		}
	}
	return []*tensor.RawTensor{dx}
}

func (op *ReLUOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.X} }
func (op *ReLUOp) Output() *tensor.RawTensor   { return op.Out }

// ExpOp records z = exp(x).
type ExpOp struct {
	X   *tensor.RawTensor
	Out *tensor.RawTensor
}

func (op *ExpOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Mul(grad, op.Out)}
}

func (op *ExpOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.X} }
func (op *ExpOp) Output() *tensor.RawTensor   { return op.Out }

// LogOp records z = ln(x).
type LogOp struct {
	X   *tensor.RawTensor
	Out *tensor.RawTensor
}

func (op *LogOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Div(grad, op.X)}
}

func (op *LogOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.X} }
func (op *LogOp) Output() *tensor.RawTensor   { return op.Out }

// SqrtOp records z = sqrt(x).
type SqrtOp struct {
	X   *tensor.RawTensor
	Out *tensor.RawTensor
}

func (op *SqrtOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	// dz/dx = 1 / (2 * sqrt(x)) = 0.5 / out
	half := backend.MulScalar(grad, 0.5)
	return []*tensor.RawTensor{backend.Div(half, op.Out)}
}

func (op *SqrtOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.X} }
func (op *SqrtOp) Output() *tensor.RawTensor   { return op.Out }

// SoftmaxOp records z = softmax(x, dim).
type SoftmaxOp struct {
	X   *tensor.RawTensor
	Dim int
	Out *tensor.RawTensor
}

func (op *SoftmaxOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	// dx = (g - sum(g * z, dim)) * z
	gz := backend.Mul(grad, op.Out)
	s := backend.SumDim(gz, op.Dim, true)
	dx := backend.Mul(backend.Sub(grad, s), op.Out)
	return []*tensor.RawTensor{dx}
}

func (op *SoftmaxOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.X} }
func (op *SoftmaxOp) Output() *tensor.RawTensor   { return op.Out }
