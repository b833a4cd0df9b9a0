package ops

import "github.com/graft-ml/graft/internal/tensor"

// SumOp records z = sum(x) over all elements.
type SumOp struct {
	X   *tensor.RawTensor
	Out *tensor.RawTensor
}

func (op *SumOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	dx := tensor.MustNewRaw(op.X.Shape().Clone(), tensor.Float32, grad.Device())
	g := grad.AsFloat32()[0]
	out := dx.AsFloat32()
	for i := range out {
		out[i] = g
	}
	return []*tensor.RawTensor{dx}
}

func (op *SumOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.X} }
func (op *SumOp) Output() *tensor.RawTensor   { return op.Out }

// SumDimOp records z = sum(x, dim). The backward pass broadcasts the
// gradient back along the reduced dimension.
type SumDimOp struct {
	X       *tensor.RawTensor
	Dim     int
	KeepDim bool
	Out     *tensor.RawTensor
}

func (op *SumDimOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{expandDim(grad, op.X.Shape(), op.Dim)}
}

func (op *SumDimOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.X} }
func (op *SumDimOp) Output() *tensor.RawTensor   { return op.Out }

// MeanDimOp records z = mean(x, dim). The backward pass broadcasts the
// gradient divided by the reduced dimension size.
type MeanDimOp struct {
	X       *tensor.RawTensor
	Dim     int
	KeepDim bool
	Out     *tensor.RawTensor
}

func (op *MeanDimOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	scaled := backend.MulScalar(grad, 1/float32(op.X.Shape()[op.Dim]))
	return []*tensor.RawTensor{expandDim(scaled, op.X.Shape(), op.Dim)}
}

func (op *MeanDimOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.X} }
func (op *MeanDimOp) Output() *tensor.RawTensor   { return op.Out }

// expandDim repeats grad along dim so it matches the original shape.
// It handles both the keepDim (size 1) and squeezed gradient layouts,
// which are identical in memory.
func expandDim(grad *tensor.RawTensor, shape tensor.Shape, dim int) *tensor.RawTensor {
	dx := tensor.MustNewRaw(shape.Clone(), tensor.Float32, grad.Device())
	outerSize := 1
	for d := 0; d < dim; d++ {
		outerSize *= shape[d]
	}
	innerSize := 1
	for d := dim + 1; d < len(shape); d++ {
		innerSize *= shape[d]
	}

	g := grad.AsFloat32()
	out := dx.AsFloat32()
	dimSize := shape[dim]
	for outer := 0; outer < outerSize; outer++ {
		src := g[outer*innerSize : (outer+1)*innerSize]
		base := outer * dimSize * innerSize
		for i := 0; i < dimSize; i++ {
			copy(out[base+i*innerSize:base+(i+1)*innerSize], src)
		}
	}
	return dx
}
