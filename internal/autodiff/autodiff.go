package autodiff

import (
	"github.com/graft-ml/graft/internal/autodiff/ops"
	"github.com/graft-ml/graft/internal/tensor"
)

// AutodiffBackend wraps a backend and records every differentiable
// operation on its gradient tape. It satisfies tensor.Backend, so it
// can be used wherever the wrapped backend can.
type AutodiffBackend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

// New wraps a backend with gradient recording. Recording starts
// disabled; call Tape().StartRecording() to enable it.
func New[B tensor.Backend](inner B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{inner: inner, tape: NewTape()}
}

// Inner returns the wrapped backend.
func (a *AutodiffBackend[B]) Inner() B { return a.inner }

// Tape returns the gradient tape.
func (a *AutodiffBackend[B]) Tape() *GradientTape { return a.tape }

func (a *AutodiffBackend[B]) Name() string          { return "Autodiff(" + a.inner.Name() + ")" }
func (a *AutodiffBackend[B]) Device() tensor.Device { return a.inner.Device() }

// guard pins input buffers while recording so the wrapped backend
// cannot overwrite values the backward pass still needs.
func (a *AutodiffBackend[B]) guard(tensors ...*tensor.RawTensor) {
	if !a.tape.IsRecording() {
		return
	}
	for _, t := range tensors {
		a.tape.guardTensor(t)
	}
}

func (a *AutodiffBackend[B]) Add(x, y *tensor.RawTensor) *tensor.RawTensor {
	a.guard(x, y)
	out := a.inner.Add(x, y)
	a.tape.Record(&ops.AddOp{A: x, B: y, Out: out})
	return out
}

func (a *AutodiffBackend[B]) Sub(x, y *tensor.RawTensor) *tensor.RawTensor {
	a.guard(x, y)
	out := a.inner.Sub(x, y)
	a.tape.Record(&ops.SubOp{A: x, B: y, Out: out})
	return out
}

func (a *AutodiffBackend[B]) Mul(x, y *tensor.RawTensor) *tensor.RawTensor {
	a.guard(x, y)
	out := a.inner.Mul(x, y)
	a.tape.Record(&ops.MulOp{A: x, B: y, Out: out})
	return out
}

func (a *AutodiffBackend[B]) Div(x, y *tensor.RawTensor) *tensor.RawTensor {
	a.guard(x, y)
	out := a.inner.Div(x, y)
	a.tape.Record(&ops.DivOp{A: x, B: y, Out: out})
	return out
}

func (a *AutodiffBackend[B]) MatMul(x, y *tensor.RawTensor) *tensor.RawTensor {
	a.guard(x, y)
	out := a.inner.MatMul(x, y)
	a.tape.Record(&ops.MatMulOp{A: x, B: y, Out: out})
	return out
}

func (a *AutodiffBackend[B]) Conv2D(input, kernel *tensor.RawTensor, stride, padH, padW int) *tensor.RawTensor {
	a.guard(input, kernel)
	out := a.inner.Conv2D(input, kernel, stride, padH, padW)
	a.tape.Record(&ops.Conv2DOp{Input: input, Kernel: kernel, Stride: stride, PadH: padH, PadW: padW, Out: out})
	return out
}

func (a *AutodiffBackend[B]) MaxPool2D(input *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	a.guard(input)
	out := a.inner.MaxPool2D(input, kernelSize, stride, padding)
	a.tape.Record(&ops.MaxPool2DOp{X: input, KernelSize: kernelSize, Stride: stride, Padding: padding, Out: out})
	return out
}

func (a *AutodiffBackend[B]) AvgPool2D(input *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	a.guard(input)
	out := a.inner.AvgPool2D(input, kernelSize, stride, padding)
	a.tape.Record(&ops.AvgPool2DOp{X: input, KernelSize: kernelSize, Stride: stride, Padding: padding, Out: out})
	return out
}

func (a *AutodiffBackend[B]) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	a.guard(t)
	out := a.inner.Reshape(t, newShape)
	a.tape.Record(&ops.ReshapeOp{X: t, Out: out})
	return out
}

func (a *AutodiffBackend[B]) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	a.guard(t)
	out := a.inner.Transpose(t, axes...)
	a.tape.Record(&ops.TransposeOp{X: t, Axes: axes, Out: out})
	return out
}

func (a *AutodiffBackend[B]) MulScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	a.guard(x)
	out := a.inner.MulScalar(x, scalar)
	a.tape.Record(&ops.MulScalarOp{X: x, Scalar: scalar, Out: out})
	return out
}

func (a *AutodiffBackend[B]) AddScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	a.guard(x)
	out := a.inner.AddScalar(x, scalar)
	a.tape.Record(&ops.AddScalarOp{X: x, Scalar: scalar, Out: out})
	return out
}

func (a *AutodiffBackend[B]) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	a.guard(x)
	out := a.inner.Exp(x)
	a.tape.Record(&ops.ExpOp{X: x, Out: out})
	return out
}

func (a *AutodiffBackend[B]) Log(x *tensor.RawTensor) *tensor.RawTensor {
	a.guard(x)
	out := a.inner.Log(x)
	a.tape.Record(&ops.LogOp{X: x, Out: out})
	return out
}

func (a *AutodiffBackend[B]) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	a.guard(x)
	out := a.inner.Sqrt(x)
	a.tape.Record(&ops.SqrtOp{X: x, Out: out})
	return out
}

func (a *AutodiffBackend[B]) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	a.guard(x)
	out := a.inner.ReLU(x)
	a.tape.Record(&ops.ReLUOp{X: x, Out: out})
	return out
}

func (a *AutodiffBackend[B]) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	a.guard(x)
	out := a.inner.Softmax(x, dim)
	a.tape.Record(&ops.SoftmaxOp{X: x, Dim: dim, Out: out})
	return out
}

func (a *AutodiffBackend[B]) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	a.guard(x)
	out := a.inner.Sum(x)
	a.tape.Record(&ops.SumOp{X: x, Out: out})
	return out
}

func (a *AutodiffBackend[B]) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	a.guard(x)
	out := a.inner.SumDim(x, dim, keepDim)
	a.tape.Record(&ops.SumDimOp{X: x, Dim: dim, KeepDim: keepDim, Out: out})
	return out
}

func (a *AutodiffBackend[B]) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	a.guard(x)
	out := a.inner.MeanDim(x, dim, keepDim)
	a.tape.Record(&ops.MeanDimOp{X: x, Dim: dim, KeepDim: keepDim, Out: out})
	return out
}

// Argmax produces integer indices and carries no gradient.
func (a *AutodiffBackend[B]) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	return a.inner.Argmax(x, dim)
}

func (a *AutodiffBackend[B]) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	a.guard(tensors...)
	out := a.inner.Cat(tensors, dim)
	a.tape.Record(&ops.CatOp{Xs: tensors, Dim: dim, Out: out})
	return out
}

// CrossEntropy computes the mean softmax cross-entropy loss of logits
// [batch, classes] against int32 targets [batch] and records the fused
// operation.
func (a *AutodiffBackend[B]) CrossEntropy(logits, targets *tensor.RawTensor) *tensor.RawTensor {
	a.guard(logits)
	loss, probs := ops.CrossEntropyForward(logits, targets)
	a.tape.Record(&ops.CrossEntropyOp{Logits: logits, Targets: targets, Probs: probs, Out: loss})
	return loss
}

func (a *AutodiffBackend[B]) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padH, padW int) *tensor.RawTensor {
	return a.inner.Conv2DInputBackward(input, kernel, grad, stride, padH, padW)
}

func (a *AutodiffBackend[B]) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padH, padW int) *tensor.RawTensor {
	return a.inner.Conv2DKernelBackward(input, kernel, grad, stride, padH, padW)
}

func (a *AutodiffBackend[B]) MaxPool2DBackward(input, grad *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	return a.inner.MaxPool2DBackward(input, grad, kernelSize, stride, padding)
}

func (a *AutodiffBackend[B]) AvgPool2DBackward(input, grad *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	return a.inner.AvgPool2DBackward(input, grad, kernelSize, stride, padding)
}
