package webgpu

import (
	"github.com/graft-ml/graft/internal/tensor"
)

// sameShapeFloat32 reports whether a pair of tensors can use the same-shape
// GPU kernels. Broadcasting pairs go through the CPU fallback.
func sameShapeFloat32(a, b *tensor.RawTensor) bool {
	return a.DType() == tensor.Float32 && b.DType() == tensor.Float32 && a.Shape().Equal(b.Shape())
}

// Add performs element-wise addition.
func (b *Backend) Add(a, other *tensor.RawTensor) *tensor.RawTensor {
	if !sameShapeFloat32(a, other) {
		return b.fallback.Add(a, other)
	}
	result, err := b.runBinaryOp(a, other, "add", addShader)
	if err != nil {
		panic("webgpu: Add: " + err.Error())
	}
	return result
}

// Sub performs element-wise subtraction.
func (b *Backend) Sub(a, other *tensor.RawTensor) *tensor.RawTensor {
	if !sameShapeFloat32(a, other) {
		return b.fallback.Sub(a, other)
	}
	result, err := b.runBinaryOp(a, other, "sub", subShader)
	if err != nil {
		panic("webgpu: Sub: " + err.Error())
	}
	return result
}

// Mul performs element-wise multiplication.
func (b *Backend) Mul(a, other *tensor.RawTensor) *tensor.RawTensor {
	if !sameShapeFloat32(a, other) {
		return b.fallback.Mul(a, other)
	}
	result, err := b.runBinaryOp(a, other, "mul", mulShader)
	if err != nil {
		panic("webgpu: Mul: " + err.Error())
	}
	return result
}

// Div performs element-wise division.
func (b *Backend) Div(a, other *tensor.RawTensor) *tensor.RawTensor {
	if !sameShapeFloat32(a, other) {
		return b.fallback.Div(a, other)
	}
	result, err := b.runBinaryOp(a, other, "div", divShader)
	if err != nil {
		panic("webgpu: Div: " + err.Error())
	}
	return result
}

// MatMul performs matrix multiplication on GPU.
func (b *Backend) MatMul(a, other *tensor.RawTensor) *tensor.RawTensor {
	result, err := b.runMatMul(a, other)
	if err != nil {
		panic("webgpu: MatMul: " + err.Error())
	}
	return result
}

// Conv2D runs on the CPU fallback. im2col on GPU needs a dedicated kernel.
func (b *Backend) Conv2D(input, kernel *tensor.RawTensor, stride, padH, padW int) *tensor.RawTensor {
	return b.fallback.Conv2D(input, kernel, stride, padH, padW)
}

// MaxPool2D runs on the CPU fallback.
func (b *Backend) MaxPool2D(input *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	return b.fallback.MaxPool2D(input, kernelSize, stride, padding)
}

// AvgPool2D runs on the CPU fallback.
func (b *Backend) AvgPool2D(input *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	return b.fallback.AvgPool2D(input, kernelSize, stride, padding)
}

// Reshape changes tensor shape without data movement.
func (b *Backend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	return b.fallback.Reshape(t, newShape)
}

// Transpose permutes tensor dimensions. The 2D case runs on GPU.
func (b *Backend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	if len(t.Shape()) == 2 && len(axes) == 0 && t.DType() == tensor.Float32 {
		result, err := b.runTranspose(t)
		if err != nil {
			panic("webgpu: Transpose: " + err.Error())
		}
		return result
	}
	return b.fallback.Transpose(t, axes...)
}

// MulScalar multiplies every element by a scalar.
func (b *Backend) MulScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	if x.DType() != tensor.Float32 {
		return b.fallback.MulScalar(x, scalar)
	}
	result, err := b.runScalarOp(x, scalar, "scalar_mul", scalarMulShader)
	if err != nil {
		panic("webgpu: MulScalar: " + err.Error())
	}
	return result
}

// AddScalar adds a scalar to every element.
func (b *Backend) AddScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	if x.DType() != tensor.Float32 {
		return b.fallback.AddScalar(x, scalar)
	}
	result, err := b.runScalarOp(x, scalar, "scalar_add", scalarAddShader)
	if err != nil {
		panic("webgpu: AddScalar: " + err.Error())
	}
	return result
}

// Exp computes e^x element-wise on GPU.
func (b *Backend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := b.runUnaryOp(x, "exp", expShader)
	if err != nil {
		panic("webgpu: Exp: " + err.Error())
	}
	return result
}

// Log computes natural logarithm element-wise on GPU.
func (b *Backend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := b.runUnaryOp(x, "log", logShader)
	if err != nil {
		panic("webgpu: Log: " + err.Error())
	}
	return result
}

// Sqrt computes square root element-wise on GPU.
func (b *Backend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := b.runUnaryOp(x, "sqrt", sqrtShader)
	if err != nil {
		panic("webgpu: Sqrt: " + err.Error())
	}
	return result
}

// ReLU applies max(0, x) element-wise on GPU.
func (b *Backend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := b.runUnaryOp(x, "relu", reluShader)
	if err != nil {
		panic("webgpu: ReLU: " + err.Error())
	}
	return result
}

// Softmax runs on the CPU fallback. The row-wise max subtraction does not
// map onto the flat element-wise kernels.
func (b *Backend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	return b.fallback.Softmax(x, dim)
}

// Sum runs on the CPU fallback.
func (b *Backend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	return b.fallback.Sum(x)
}

// SumDim runs on the CPU fallback.
func (b *Backend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return b.fallback.SumDim(x, dim, keepDim)
}

// MeanDim runs on the CPU fallback.
func (b *Backend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return b.fallback.MeanDim(x, dim, keepDim)
}

// Argmax runs on the CPU fallback.
func (b *Backend) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	return b.fallback.Argmax(x, dim)
}

// Cat runs on the CPU fallback.
func (b *Backend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	return b.fallback.Cat(tensors, dim)
}

// Conv2DInputBackward runs on the CPU fallback.
func (b *Backend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padH, padW int) *tensor.RawTensor {
	return b.fallback.Conv2DInputBackward(input, kernel, grad, stride, padH, padW)
}

// Conv2DKernelBackward runs on the CPU fallback.
func (b *Backend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padH, padW int) *tensor.RawTensor {
	return b.fallback.Conv2DKernelBackward(input, kernel, grad, stride, padH, padW)
}

// MaxPool2DBackward runs on the CPU fallback.
func (b *Backend) MaxPool2DBackward(input, grad *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	return b.fallback.MaxPool2DBackward(input, grad, kernelSize, stride, padding)
}

// AvgPool2DBackward runs on the CPU fallback.
func (b *Backend) AvgPool2DBackward(input, grad *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	return b.fallback.AvgPool2DBackward(input, grad, kernelSize, stride, padding)
}
