package cpu

import (
	"fmt"
	"math"

	"github.com/graft-ml/graft/internal/parallel"
	"github.com/graft-ml/graft/internal/tensor"
)

// MaxPool2D performs 2D max pooling.
//
// Input shape:  [N, C, H, W]
// Output shape: [N, C, H_out, W_out] with
//
//	out = (in + 2*padding - kernel) / stride + 1
//
// Padded positions never win the max (they are treated as -inf).
func (cpu *CPUBackend) MaxPool2D(input *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	N, C, H, W, HOut, WOut := poolDims("maxpool2d", input, kernelSize, stride, padding)

	output := newFloat32(cpu, tensor.Shape{N, C, HOut, WOut})
	inputData := input.AsFloat32()
	outputData := output.AsFloat32()

	parallel.ForBatch(N, C, func(n, c int) {
		in := inputData[(n*C+c)*H*W:]
		out := outputData[(n*C+c)*HOut*WOut:]
		for ho := 0; ho < HOut; ho++ {
			for wo := 0; wo < WOut; wo++ {
				best := float32(math.Inf(-1))
				for kh := 0; kh < kernelSize; kh++ {
					h := ho*stride - padding + kh
					if h < 0 || h >= H {
						continue
					}
					for kw := 0; kw < kernelSize; kw++ {
						w := wo*stride - padding + kw
						if w < 0 || w >= W {
							continue
						}
						if v := in[h*W+w]; v > best {
							best = v
						}
					}
				}
				out[ho*WOut+wo] = best
			}
		}
	}, cpu.par)

	return output
}

// MaxPool2DBackward routes the output gradient to the argmax position of
// each pooling window. The argmax is recomputed from the saved input, which
// keeps the forward pass allocation-free and is deterministic (first
// maximum wins on ties).
func (cpu *CPUBackend) MaxPool2DBackward(input, grad *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	N, C, H, W, HOut, WOut := poolDims("maxpool2d backward", input, kernelSize, stride, padding)

	inputGrad := newFloat32(cpu, input.Shape())
	inputData := input.AsFloat32()
	gradData := grad.AsFloat32()
	inputGradData := inputGrad.AsFloat32()

	parallel.ForBatch(N, C, func(n, c int) {
		in := inputData[(n*C+c)*H*W:]
		g := gradData[(n*C+c)*HOut*WOut:]
		out := inputGradData[(n*C+c)*H*W:]
		for ho := 0; ho < HOut; ho++ {
			for wo := 0; wo < WOut; wo++ {
				best := float32(math.Inf(-1))
				bestIdx := -1
				for kh := 0; kh < kernelSize; kh++ {
					h := ho*stride - padding + kh
					if h < 0 || h >= H {
						continue
					}
					for kw := 0; kw < kernelSize; kw++ {
						w := wo*stride - padding + kw
						if w < 0 || w >= W {
							continue
						}
						if v := in[h*W+w]; v > best {
							best = v
							bestIdx = h*W + w
						}
					}
				}
				if bestIdx >= 0 {
					out[bestIdx] += g[ho*WOut+wo]
				}
			}
		}
	}, cpu.par)

	return inputGrad
}

// AvgPool2D performs 2D average pooling. The divisor is the full kernel
// area, including padded positions (count_include_pad semantics).
func (cpu *CPUBackend) AvgPool2D(input *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	N, C, H, W, HOut, WOut := poolDims("avgpool2d", input, kernelSize, stride, padding)

	output := newFloat32(cpu, tensor.Shape{N, C, HOut, WOut})
	inputData := input.AsFloat32()
	outputData := output.AsFloat32()
	area := float32(kernelSize * kernelSize)

	parallel.ForBatch(N, C, func(n, c int) {
		in := inputData[(n*C+c)*H*W:]
		out := outputData[(n*C+c)*HOut*WOut:]
		for ho := 0; ho < HOut; ho++ {
			for wo := 0; wo < WOut; wo++ {
				var sum float32
				for kh := 0; kh < kernelSize; kh++ {
					h := ho*stride - padding + kh
					if h < 0 || h >= H {
						continue
					}
					for kw := 0; kw < kernelSize; kw++ {
						w := wo*stride - padding + kw
						if w < 0 || w >= W {
							continue
						}
						sum += in[h*W+w]
					}
				}
				out[ho*WOut+wo] = sum / area
			}
		}
	}, cpu.par)

	return output
}

// AvgPool2DBackward distributes each output gradient evenly over its
// pooling window.
func (cpu *CPUBackend) AvgPool2DBackward(input, grad *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	N, C, H, W, HOut, WOut := poolDims("avgpool2d backward", input, kernelSize, stride, padding)

	inputGrad := newFloat32(cpu, input.Shape())
	gradData := grad.AsFloat32()
	inputGradData := inputGrad.AsFloat32()
	area := float32(kernelSize * kernelSize)

	parallel.ForBatch(N, C, func(n, c int) {
		g := gradData[(n*C+c)*HOut*WOut:]
		out := inputGradData[(n*C+c)*H*W:]
		for ho := 0; ho < HOut; ho++ {
			for wo := 0; wo < WOut; wo++ {
				share := g[ho*WOut+wo] / area
				for kh := 0; kh < kernelSize; kh++ {
					h := ho*stride - padding + kh
					if h < 0 || h >= H {
						continue
					}
					for kw := 0; kw < kernelSize; kw++ {
						w := wo*stride - padding + kw
						if w < 0 || w >= W {
							continue
						}
						out[h*W+w] += share
					}
				}
			}
		}
	}, cpu.par)

	return inputGrad
}

// poolDims validates pooling arguments and returns the input and output dims.
func poolDims(name string, input *tensor.RawTensor, kernelSize, stride, padding int) (n, c, h, w, hOut, wOut int) {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,C,H,W], got %dD", name, len(shape)))
	}
	if kernelSize <= 0 || stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("%s: invalid kernel=%d stride=%d padding=%d", name, kernelSize, stride, padding))
	}

	n, c, h, w = shape[0], shape[1], shape[2], shape[3]
	hOut = (h+2*padding-kernelSize)/stride + 1
	wOut = (w+2*padding-kernelSize)/stride + 1
	if hOut <= 0 || wOut <= 0 {
		panic(fmt.Sprintf("%s: invalid output dimensions out_h=%d, out_w=%d", name, hOut, wOut))
	}
	return n, c, h, w, hOut, wOut
}
