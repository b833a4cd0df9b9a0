// Package cpu implements the pure-Go CPU backend with goroutine-parallel kernels.
package cpu

import (
	"fmt"

	"github.com/graft-ml/graft/internal/parallel"
	"github.com/graft-ml/graft/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    parallel.DefaultConfig(),
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, func(x, y float32) float32 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b, func(x, y float32) float32 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, func(x, y float32) float32 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("div", a, b, func(x, y float32) float32 { return x / y })
}

// binary applies an element-wise binary operation with broadcasting.
//
// Fast path: identical shapes, optional in-place when the left operand's
// buffer is unique (copy-on-write). Slow path: stride-0 broadcast walk.
func (cpu *CPUBackend) binary(name string, a, b *tensor.RawTensor, op func(x, y float32) float32) *tensor.RawTensor {
	if a.DType() != tensor.Float32 || b.DType() != tensor.Float32 {
		panic(fmt.Sprintf("%s: unsupported dtypes %s, %s", name, a.DType(), b.DType()))
	}

	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	if !needsBroadcast {
		aData := a.AsFloat32()
		bData := b.AsFloat32()

		if a.IsUnique() {
			// Inplace into a
			for i := range aData {
				aData[i] = op(aData[i], bData[i])
			}
			return a
		}

		result := newFloat32(cpu, outShape)
		outData := result.AsFloat32()
		for i := range outData {
			outData[i] = op(aData[i], bData[i])
		}
		return result
	}

	result := newFloat32(cpu, outShape)
	binaryBroadcast(result, a, b, outShape, op)
	return result
}

// binaryBroadcast applies op over the broadcasted output shape, mapping
// each output index back to the (possibly size-1) input dimensions.
func binaryBroadcast(out, a, b *tensor.RawTensor, outShape tensor.Shape, op func(x, y float32) float32) {
	aStrides := broadcastStrides(a.Shape(), outShape)
	bStrides := broadcastStrides(b.Shape(), outShape)

	outData := out.AsFloat32()
	aData := a.AsFloat32()
	bData := b.AsFloat32()

	idx := make([]int, len(outShape))
	for i := range outData {
		aOff, bOff := 0, 0
		for d := range outShape {
			aOff += idx[d] * aStrides[d]
			bOff += idx[d] * bStrides[d]
		}
		outData[i] = op(aData[aOff], bData[bOff])

		// Increment multi-dimensional index (row-major).
		for d := len(outShape) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < outShape[d] {
				break
			}
			idx[d] = 0
		}
	}
}

// broadcastStrides computes the stride of each output dimension into the
// input tensor, with stride 0 for broadcasted (size-1 or missing) dims.
func broadcastStrides(in, out tensor.Shape) []int {
	inStrides := in.ComputeStrides()
	strides := make([]int, len(out))
	offset := len(out) - len(in)
	for d := range out {
		inD := d - offset
		if inD < 0 || in[inD] == 1 {
			strides[d] = 0
		} else {
			strides[d] = inStrides[inD]
		}
	}
	return strides
}

// newFloat32 allocates a float32 RawTensor or panics.
func newFloat32(cpu *CPUBackend, shape tensor.Shape) *tensor.RawTensor {
	raw, err := tensor.NewRaw(shape, tensor.Float32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("cpu: failed to allocate tensor: %v", err))
	}
	return raw
}
