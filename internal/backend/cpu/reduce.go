package cpu

import (
	"fmt"
	"math"

	"github.com/graft-ml/graft/internal/tensor"
)

// Sum reduces the whole tensor to a single-element sum.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result := newFloat32(cpu, tensor.Shape{1})
	data := x.AsFloat32()

	var sum float32
	for _, v := range data {
		sum += v
	}
	result.AsFloat32()[0] = sum
	return result
}

// SumDim sums along a dimension, optionally keeping it with size 1.
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceDim("sum_dim", x, dim, keepDim, false)
}

// MeanDim averages along a dimension, optionally keeping it with size 1.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceDim("mean_dim", x, dim, keepDim, true)
}

func (cpu *CPUBackend) reduceDim(name string, x *tensor.RawTensor, dim int, keepDim, mean bool) *tensor.RawTensor {
	shape := x.Shape()
	dim = normalizeDim(name, dim, len(shape))

	outShape := reducedShape(shape, dim, keepDim)
	result := newFloat32(cpu, outShape)

	data := x.AsFloat32()
	out := result.AsFloat32()

	strides := shape.ComputeStrides()
	dimSize := shape[dim]
	dimStride := strides[dim]
	lines := shape.NumElements() / dimSize

	for line := 0; line < lines; line++ {
		base := lineOffset(line, dim, shape, strides)
		var sum float32
		for i := 0; i < dimSize; i++ {
			sum += data[base+i*dimStride]
		}
		if mean {
			sum /= float32(dimSize)
		}
		out[line] = sum
	}

	return result
}

// Argmax returns int32 indices of maximum values along dim. The reduced
// dimension is removed from the output shape.
func (cpu *CPUBackend) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	dim = normalizeDim("argmax", dim, len(shape))

	outShape := reducedShape(shape, dim, false)
	result, err := tensor.NewRaw(outShape, tensor.Int32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("argmax: %v", err))
	}

	data := x.AsFloat32()
	out := result.AsInt32()

	strides := shape.ComputeStrides()
	dimSize := shape[dim]
	dimStride := strides[dim]
	lines := shape.NumElements() / dimSize

	for line := 0; line < lines; line++ {
		base := lineOffset(line, dim, shape, strides)
		best := float32(math.Inf(-1))
		bestIdx := int32(0)
		for i := 0; i < dimSize; i++ {
			if v := data[base+i*dimStride]; v > best {
				best = v
				bestIdx = int32(i)
			}
		}
		out[line] = bestIdx
	}

	return result
}

// reducedShape drops or keeps (size 1) the reduced dimension. Reducing the
// only dimension yields shape {1}.
func reducedShape(shape tensor.Shape, dim int, keepDim bool) tensor.Shape {
	if keepDim {
		out := shape.Clone()
		out[dim] = 1
		return out
	}
	out := make(tensor.Shape, 0, len(shape)-1)
	for d, size := range shape {
		if d != dim {
			out = append(out, size)
		}
	}
	if len(out) == 0 {
		out = tensor.Shape{1}
	}
	return out
}
