package cpu

import (
	"fmt"

	"github.com/graft-ml/graft/internal/parallel"
	"github.com/graft-ml/graft/internal/tensor"
)

// Conv2D performs 2D convolution using the im2col algorithm.
//
// Input shape:  [N, C_in, H, W]
// Kernel shape: [C_out, C_in, K_h, K_w]
// Output shape: [N, C_out, H_out, W_out]
//
// Where:
//
//	out_h = (H + 2*padH - K_h) / stride + 1
//	out_w = (W + 2*padW - K_w) / stride + 1
//
// Im2col converts the convolution into a matrix multiplication, which is both
// cache friendly and easy to parallelize row-wise.
//
// Reference: "High Performance Convolutional Neural Networks for Document
// Processing" (Chellapilla et al., 2006).
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padH, padW int) *tensor.RawTensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()

	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %dD", len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in,K_h,K_w], got %dD", len(kernelShape)))
	}

	N, CIn, H, W := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	COut, CInK, KH, KW := kernelShape[0], kernelShape[1], kernelShape[2], kernelShape[3]

	if CIn != CInK {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", CIn, CInK))
	}

	HOut := (H+2*padH-KH)/stride + 1
	WOut := (W+2*padW-KW)/stride + 1
	if HOut <= 0 || WOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions out_h=%d, out_w=%d (check stride/padding)", HOut, WOut))
	}

	output := newFloat32(cpu, tensor.Shape{N, COut, HOut, WOut})

	inputData := input.AsFloat32()
	kernelData := kernel.AsFloat32()
	outputData := output.AsFloat32()

	// Im2col: [N * H_out * W_out, C_in * K_h * K_w]
	colWidth := CIn * KH * KW
	colRows := N * HOut * WOut
	colBuf := make([]float32, colRows*colWidth)

	parallel.For(colRows, func(row int) {
		n := row / (HOut * WOut)
		rem := row % (HOut * WOut)
		ho := rem / WOut
		wo := rem % WOut

		col := colBuf[row*colWidth:]
		i := 0
		for ci := 0; ci < CIn; ci++ {
			base := (n*CIn + ci) * H * W
			for kh := 0; kh < KH; kh++ {
				h := ho*stride - padH + kh
				for kw := 0; kw < KW; kw++ {
					w := wo*stride - padW + kw
					if h >= 0 && h < H && w >= 0 && w < W {
						col[i] = inputData[base+h*W+w]
					}
					i++
				}
			}
		}
	}, cpu.par)

	// Matmul: out[row, co] = kernel[co] . col[row], written to NCHW layout.
	parallel.For(colRows, func(row int) {
		n := row / (HOut * WOut)
		rem := row % (HOut * WOut)

		col := colBuf[row*colWidth : (row+1)*colWidth]
		for co := 0; co < COut; co++ {
			kRow := kernelData[co*colWidth : (co+1)*colWidth]
			var sum float32
			for i := range kRow {
				sum += kRow[i] * col[i]
			}
			outputData[((n*COut+co)*HOut*WOut)+rem] = sum
		}
	}, cpu.par)

	return output
}
