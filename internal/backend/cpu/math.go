package cpu

import (
	"fmt"
	"math"

	"github.com/graft-ml/graft/internal/tensor"
)

// MulScalar multiplies every element by a scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	return cpu.unary("mul_scalar", x, func(v float32) float32 { return v * scalar })
}

// AddScalar adds a scalar to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	return cpu.unary("add_scalar", x, func(v float32) float32 { return v + scalar })
}

// Exp computes the element-wise exponential.
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("exp", x, func(v float32) float32 { return float32(math.Exp(float64(v))) })
}

// Log computes the element-wise natural logarithm.
func (cpu *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("log", x, func(v float32) float32 { return float32(math.Log(float64(v))) })
}

// Sqrt computes the element-wise square root.
func (cpu *CPUBackend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("sqrt", x, func(v float32) float32 { return float32(math.Sqrt(float64(v))) })
}

// ReLU computes element-wise max(0, x).
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("relu", x, func(v float32) float32 {
		if v > 0 {
			return v
		}
		return 0
	})
}

// Softmax applies softmax along the given dimension using the
// log-sum-exp trick for numerical stability.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	dim = normalizeDim("softmax", dim, len(shape))

	result := newFloat32(cpu, shape)
	data := x.AsFloat32()
	out := result.AsFloat32()

	// Iterate all "lines" along dim.
	strides := shape.ComputeStrides()
	dimSize := shape[dim]
	dimStride := strides[dim]
	lines := shape.NumElements() / dimSize

	for line := 0; line < lines; line++ {
		base := lineOffset(line, dim, shape, strides)

		maxV := float32(math.Inf(-1))
		for i := 0; i < dimSize; i++ {
			if v := data[base+i*dimStride]; v > maxV {
				maxV = v
			}
		}
		var sum float32
		for i := 0; i < dimSize; i++ {
			e := float32(math.Exp(float64(data[base+i*dimStride] - maxV)))
			out[base+i*dimStride] = e
			sum += e
		}
		for i := 0; i < dimSize; i++ {
			out[base+i*dimStride] /= sum
		}
	}

	return result
}

// unary applies an element-wise unary operation over a float32 tensor.
func (cpu *CPUBackend) unary(name string, x *tensor.RawTensor, op func(v float32) float32) *tensor.RawTensor {
	if x.DType() != tensor.Float32 {
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}

	result := newFloat32(cpu, x.Shape())
	data := x.AsFloat32()
	out := result.AsFloat32()
	for i := range data {
		out[i] = op(data[i])
	}
	return result
}

// normalizeDim resolves negative dims and validates the range.
func normalizeDim(name string, dim, rank int) int {
	if dim < 0 {
		dim += rank
	}
	if dim < 0 || dim >= rank {
		panic(fmt.Sprintf("%s: dim %d out of range for rank %d", name, dim, rank))
	}
	return dim
}

// lineOffset returns the flat offset of the line-th 1D slice along dim.
func lineOffset(line, dim int, shape tensor.Shape, strides []int) int {
	offset := 0
	for d := len(shape) - 1; d >= 0; d-- {
		if d == dim {
			continue
		}
		offset += (line % shape[d]) * strides[d]
		line /= shape[d]
	}
	return offset
}
