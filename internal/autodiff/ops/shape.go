package ops

import "github.com/graft-ml/graft/internal/tensor"

// ReshapeOp records z = reshape(x). The backward pass reshapes the
// gradient back to the input shape.
type ReshapeOp struct {
	X   *tensor.RawTensor
	Out *tensor.RawTensor
}

func (op *ReshapeOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(grad, op.X.Shape().Clone())}
}

func (op *ReshapeOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.X} }
func (op *ReshapeOp) Output() *tensor.RawTensor   { return op.Out }

// TransposeOp records z = transpose(x, axes). The backward pass applies
// the inverse permutation to the gradient.
type TransposeOp struct {
	X    *tensor.RawTensor
	Axes []int
	Out  *tensor.RawTensor
}

func (op *TransposeOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	axes := op.Axes
	if len(axes) == 0 {
		// Default transpose reverses all axes, which is its own inverse.
		return []*tensor.RawTensor{backend.Transpose(grad)}
	}
	inverse := make([]int, len(axes))
	for i, a := range axes {
		inverse[a] = i
	}
	return []*tensor.RawTensor{backend.Transpose(grad, inverse...)}
}

func (op *TransposeOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.X} }
func (op *TransposeOp) Output() *tensor.RawTensor   { return op.Out }

// CatOp records z = cat(xs, dim). The backward pass slices the gradient
// back into one chunk per input along the concatenation dimension.
type CatOp struct {
	Xs  []*tensor.RawTensor
	Dim int
	Out *tensor.RawTensor
}

func (op *CatOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	gradShape := grad.Shape()
	outerSize := 1
	for d := 0; d < op.Dim; d++ {
		outerSize *= gradShape[d]
	}
	innerSize := 1
	for d := op.Dim + 1; d < len(gradShape); d++ {
		innerSize *= gradShape[d]
	}

	g := grad.AsFloat32()
	grads := make([]*tensor.RawTensor, len(op.Xs))
	offset := 0
	for i, x := range op.Xs {
		dx := tensor.MustNewRaw(x.Shape().Clone(), tensor.Float32, grad.Device())
		dst := dx.AsFloat32()
		dimSize := x.Shape()[op.Dim]
		run := dimSize * innerSize
		for outer := 0; outer < outerSize; outer++ {
			src := outer*gradShape[op.Dim]*innerSize + offset*innerSize
			copy(dst[outer*run:(outer+1)*run], g[src:src+run])
		}
		offset += dimSize
		grads[i] = dx
	}
	return grads
}

func (op *CatOp) Inputs() []*tensor.RawTensor { return op.Xs }
func (op *CatOp) Output() *tensor.RawTensor   { return op.Out }
