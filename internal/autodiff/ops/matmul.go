package ops

import "github.com/graft-ml/graft/internal/tensor"

// MatMulOp records z = a @ b for 2D operands.
type MatMulOp struct {
	A, B *tensor.RawTensor
	Out  *tensor.RawTensor
}

func (op *MatMulOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	// da = g @ b^T, db = a^T @ g
	da := backend.MatMul(grad, backend.Transpose(op.B))
	db := backend.MatMul(backend.Transpose(op.A), grad)
	return []*tensor.RawTensor{da, db}
}

func (op *MatMulOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.A, op.B} }
func (op *MatMulOp) Output() *tensor.RawTensor   { return op.Out }
