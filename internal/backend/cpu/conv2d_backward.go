package cpu

import (
	"fmt"

	"github.com/graft-ml/graft/internal/parallel"
	"github.com/graft-ml/graft/internal/tensor"
)

// Conv2DInputBackward computes the gradient w.r.t. the convolution input
// (a transposed convolution of the output gradient with the kernel).
//
// For each output position that consumed an input element, the input
// gradient accumulates grad[n, c_out, h_out, w_out] * kernel[c_out, c_in, kh, kw].
//
// Reference: "A guide to convolution arithmetic for deep learning"
// (Dumoulin & Visin, 2016).
func (cpu *CPUBackend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padH, padW int) *tensor.RawTensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()
	gradShape := grad.Shape()

	N, CIn, H, W := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	COut, KH, KW := kernelShape[0], kernelShape[2], kernelShape[3]
	HOut, WOut := gradShape[2], gradShape[3]

	inputGrad := newFloat32(cpu, tensor.Shape{N, CIn, H, W})

	kernelData := kernel.AsFloat32()
	gradData := grad.AsFloat32()
	inputGradData := inputGrad.AsFloat32()

	// Parallel over (n, c_in): each goroutine owns a disjoint slice of the
	// input gradient, so no accumulation races.
	parallel.ForBatch(N, CIn, func(n, ci int) {
		out := inputGradData[(n*CIn+ci)*H*W:]
		for co := 0; co < COut; co++ {
			g := gradData[(n*COut+co)*HOut*WOut:]
			k := kernelData[(co*CIn+ci)*KH*KW:]
			for ho := 0; ho < HOut; ho++ {
				for wo := 0; wo < WOut; wo++ {
					gv := g[ho*WOut+wo]
					if gv == 0 {
						continue
					}
					for kh := 0; kh < KH; kh++ {
						h := ho*stride - padH + kh
						if h < 0 || h >= H {
							continue
						}
						for kw := 0; kw < KW; kw++ {
							w := wo*stride - padW + kw
							if w < 0 || w >= W {
								continue
							}
							out[h*W+w] += gv * k[kh*KW+kw]
						}
					}
				}
			}
		}
	}, cpu.par)

	return inputGrad
}

// Conv2DKernelBackward computes the gradient w.r.t. the convolution kernel
// (a correlation of the input with the output gradient).
func (cpu *CPUBackend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padH, padW int) *tensor.RawTensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()
	gradShape := grad.Shape()

	N, CIn, H, W := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	COut, KH, KW := kernelShape[0], kernelShape[2], kernelShape[3]
	HOut, WOut := gradShape[2], gradShape[3]

	if gradShape[1] != COut {
		panic(fmt.Sprintf("conv2d kernel backward: grad channels %d != kernel out channels %d", gradShape[1], COut))
	}

	kernelGrad := newFloat32(cpu, tensor.Shape{COut, CIn, KH, KW})

	inputData := input.AsFloat32()
	gradData := grad.AsFloat32()
	kernelGradData := kernelGrad.AsFloat32()

	// Parallel over (c_out, c_in): disjoint kernel gradient slices.
	parallel.ForBatch(COut, CIn, func(co, ci int) {
		kg := kernelGradData[(co*CIn+ci)*KH*KW:]
		for n := 0; n < N; n++ {
			in := inputData[(n*CIn+ci)*H*W:]
			g := gradData[(n*COut+co)*HOut*WOut:]
			for ho := 0; ho < HOut; ho++ {
				for wo := 0; wo < WOut; wo++ {
					gv := g[ho*WOut+wo]
					if gv == 0 {
						continue
					}
					for kh := 0; kh < KH; kh++ {
						h := ho*stride - padH + kh
						if h < 0 || h >= H {
							continue
						}
						for kw := 0; kw < KW; kw++ {
							w := wo*stride - padW + kw
							if w < 0 || w >= W {
								continue
							}
							kg[kh*KW+kw] += gv * in[h*W+w]
						}
					}
				}
			}
		}
	}, cpu.par)

	return kernelGrad
}
