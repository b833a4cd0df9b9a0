package ops

import "github.com/graft-ml/graft/internal/tensor"

// Conv2DOp records z = conv2d(input, kernel). The backward pass is
// delegated to the backend, which implements the transposed convolution
// for the input gradient and the correlation for the kernel gradient.
type Conv2DOp struct {
	Input  *tensor.RawTensor
	Kernel *tensor.RawTensor
	Stride int
	PadH   int
	PadW   int
	Out    *tensor.RawTensor
}

func (op *Conv2DOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	di := backend.Conv2DInputBackward(op.Input, op.Kernel, grad, op.Stride, op.PadH, op.PadW)
	dk := backend.Conv2DKernelBackward(op.Input, op.Kernel, grad, op.Stride, op.PadH, op.PadW)
	return []*tensor.RawTensor{di, dk}
}

func (op *Conv2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.Input, op.Kernel}
}

func (op *Conv2DOp) Output() *tensor.RawTensor { return op.Out }
