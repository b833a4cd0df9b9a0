package cpu

import (
	"fmt"

	"github.com/graft-ml/graft/internal/tensor"
)

// Reshape returns a view with the same data and a new shape.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	return t.Reshaped(newShape)
}

// Transpose permutes the tensor's axes. With no axes given, the axis order
// is reversed (ordinary matrix transpose for 2D tensors). The result is a
// contiguous copy.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	rank := len(shape)

	if len(axes) == 0 {
		axes = make([]int, rank)
		for i := range axes {
			axes[i] = rank - 1 - i
		}
	}
	if len(axes) != rank {
		panic(fmt.Sprintf("transpose: got %d axes for rank %d", len(axes), rank))
	}

	outShape := make(tensor.Shape, rank)
	for i, a := range axes {
		outShape[i] = shape[a]
	}

	result := newFloat32(cpu, outShape)
	data := t.AsFloat32()
	out := result.AsFloat32()

	inStrides := shape.ComputeStrides()
	idx := make([]int, rank)
	for i := range out {
		inOff := 0
		for d := 0; d < rank; d++ {
			inOff += idx[d] * inStrides[axes[d]]
		}
		out[i] = data[inOff]

		for d := rank - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < outShape[d] {
				break
			}
			idx[d] = 0
		}
	}

	return result
}

// Cat concatenates tensors along the given dimension. All other dimensions
// must match.
func (cpu *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: no tensors given")
	}

	first := tensors[0].Shape()
	dim = normalizeDim("cat", dim, len(first))

	outShape := first.Clone()
	for _, t := range tensors[1:] {
		s := t.Shape()
		if len(s) != len(first) {
			panic(fmt.Sprintf("cat: rank mismatch %v vs %v", first, s))
		}
		for d := range s {
			if d != dim && s[d] != first[d] {
				panic(fmt.Sprintf("cat: shape mismatch at dim %d: %v vs %v", d, first, s))
			}
		}
		outShape[dim] += s[dim]
	}

	result := newFloat32(cpu, outShape)
	out := result.AsFloat32()

	// Copy block-wise: each input contributes contiguous runs of
	// (dimSize * innerSize) elements per outer index.
	outerSize := 1
	for d := 0; d < dim; d++ {
		outerSize *= outShape[d]
	}
	innerSize := 1
	for d := dim + 1; d < len(outShape); d++ {
		innerSize *= outShape[d]
	}

	outRun := outShape[dim] * innerSize
	offset := 0
	for _, t := range tensors {
		data := t.AsFloat32()
		run := t.Shape()[dim] * innerSize
		for outer := 0; outer < outerSize; outer++ {
			copy(out[outer*outRun+offset:outer*outRun+offset+run], data[outer*run:(outer+1)*run])
		}
		offset += run
	}

	return result
}
