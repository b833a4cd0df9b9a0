package ops

import "github.com/graft-ml/graft/internal/tensor"

// MaxPool2DOp records z = maxpool2d(x). The backward pass routes each
// output gradient to the input position that won the pooling window.
type MaxPool2DOp struct {
	X          *tensor.RawTensor
	KernelSize int
	Stride     int
	Padding    int
	Out        *tensor.RawTensor
}

func (op *MaxPool2DOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	dx := backend.MaxPool2DBackward(op.X, grad, op.KernelSize, op.Stride, op.Padding)
	return []*tensor.RawTensor{dx}
}

func (op *MaxPool2DOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.X} }
func (op *MaxPool2DOp) Output() *tensor.RawTensor   { return op.Out }

// AvgPool2DOp records z = avgpool2d(x). The backward pass spreads each
// output gradient evenly over its pooling window.
type AvgPool2DOp struct {
	X          *tensor.RawTensor
	KernelSize int
	Stride     int
	Padding    int
	Out        *tensor.RawTensor
}

func (op *AvgPool2DOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	dx := backend.AvgPool2DBackward(op.X, grad, op.KernelSize, op.Stride, op.Padding)
	return []*tensor.RawTensor{dx}
}

func (op *AvgPool2DOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.X} }
func (op *AvgPool2DOp) Output() *tensor.RawTensor   { return op.Out }
