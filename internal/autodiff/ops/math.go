package ops

import "github.com/graft-ml/graft/internal/tensor"

// AddOp records z = a + b with broadcasting.
type AddOp struct {
	A, B *tensor.RawTensor
	Out  *tensor.RawTensor
}

func (op *AddOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		unbroadcast(grad, op.A.Shape(), backend),
		unbroadcast(grad, op.B.Shape(), backend),
	}
}

func (op *AddOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.A, op.B} }
func (op *AddOp) Output() *tensor.RawTensor   { return op.Out }

// SubOp records z = a - b with broadcasting.
type SubOp struct {
	A, B *tensor.RawTensor
	Out  *tensor.RawTensor
}

func (op *SubOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		unbroadcast(grad, op.A.Shape(), backend),
		unbroadcast(backend.MulScalar(grad, -1), op.B.Shape(), backend),
	}
}

func (op *SubOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.A, op.B} }
func (op *SubOp) Output() *tensor.RawTensor   { return op.Out }

// MulOp records z = a * b elementwise with broadcasting.
type MulOp struct {
	A, B *tensor.RawTensor
	Out  *tensor.RawTensor
}

func (op *MulOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		unbroadcast(backend.Mul(grad, op.B), op.A.Shape(), backend),
		unbroadcast(backend.Mul(grad, op.A), op.B.Shape(), backend),
	}
}

func (op *MulOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.A, op.B} }
func (op *MulOp) Output() *tensor.RawTensor   { return op.Out }

// DivOp records z = a / b elementwise with broadcasting.
type DivOp struct {
	A, B *tensor.RawTensor
	Out  *tensor.RawTensor
}

func (op *DivOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	// da = g / b, db = -g * a / b^2 = -g * out / b
	da := unbroadcast(backend.Div(grad, op.B), op.A.Shape(), backend)
	db := backend.Div(backend.Mul(grad, op.Out), op.B)
	db = unbroadcast(backend.MulScalar(db, -1), op.B.Shape(), backend)
	return []*tensor.RawTensor{da, db}
}

func (op *DivOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.A, op.B} }
func (op *DivOp) Output() *tensor.RawTensor   { return op.Out }

// MulScalarOp records z = x * s.
type MulScalarOp struct {
	X      *tensor.RawTensor
	Scalar float32
	Out    *tensor.RawTensor
}

func (op *MulScalarOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MulScalar(grad, op.Scalar)}
}

func (op *MulScalarOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.X} }
func (op *MulScalarOp) Output() *tensor.RawTensor   { return op.Out }

// AddScalarOp records z = x + s.
type AddScalarOp struct {
	X      *tensor.RawTensor
	Scalar float32
	Out    *tensor.RawTensor
}

func (op *AddScalarOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{grad}
}

func (op *AddScalarOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.X} }
func (op *AddScalarOp) Output() *tensor.RawTensor   { return op.Out }
