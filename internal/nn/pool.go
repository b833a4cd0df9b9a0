package nn

import (
	"fmt"

	"github.com/graft-ml/graft/internal/tensor"
)

// MaxPool2D picks the maximum of each pooling window.
type MaxPool2D[B tensor.Backend] struct {
	kernelSize int
	stride     int
	padding    int
}

func NewMaxPool2D[B tensor.Backend](kernelSize, stride, padding int) *MaxPool2D[B] {
	return &MaxPool2D[B]{kernelSize: kernelSize, stride: stride, padding: padding}
}

func (p *MaxPool2D[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	b := x.Backend()
	return tensor.New[float32, B](b.MaxPool2D(x.Raw(), p.kernelSize, p.stride, p.padding), b)
}

func (p *MaxPool2D[B]) Parameters() []*Parameter[B]               { return nil }
func (p *MaxPool2D[B]) StateDict() map[string]*tensor.RawTensor   { return map[string]*tensor.RawTensor{} }
func (p *MaxPool2D[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }

// AvgPool2D averages each pooling window.
type AvgPool2D[B tensor.Backend] struct {
	kernelSize int
	stride     int
	padding    int
}

func NewAvgPool2D[B tensor.Backend](kernelSize, stride, padding int) *AvgPool2D[B] {
	return &AvgPool2D[B]{kernelSize: kernelSize, stride: stride, padding: padding}
}

func (p *AvgPool2D[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	b := x.Backend()
	return tensor.New[float32, B](b.AvgPool2D(x.Raw(), p.kernelSize, p.stride, p.padding), b)
}

func (p *AvgPool2D[B]) Parameters() []*Parameter[B]               { return nil }
func (p *AvgPool2D[B]) StateDict() map[string]*tensor.RawTensor   { return map[string]*tensor.RawTensor{} }
func (p *AvgPool2D[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }

// AdaptiveAvgPool2D averages down to a fixed output size regardless of
// the input resolution, as long as the input divides evenly into the
// output grid. All the supported architectures satisfy that at their
// native input resolutions.
type AdaptiveAvgPool2D[B tensor.Backend] struct {
	outH int
	outW int
}

func NewAdaptiveAvgPool2D[B tensor.Backend](outH, outW int) *AdaptiveAvgPool2D[B] {
	return &AdaptiveAvgPool2D[B]{outH: outH, outW: outW}
}

func (p *AdaptiveAvgPool2D[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("adaptive avg pool: input must be 4D, got %v", shape))
	}
	h, w := shape[2], shape[3]
	if h%p.outH != 0 || w%p.outW != 0 || h/p.outH != w/p.outW {
		panic(fmt.Sprintf("adaptive avg pool: input %dx%d not divisible into %dx%d", h, w, p.outH, p.outW))
	}
	if h == p.outH && w == p.outW {
		return x
	}
	kernel := h / p.outH
	b := x.Backend()
	return tensor.New[float32, B](b.AvgPool2D(x.Raw(), kernel, kernel, 0), b)
}

func (p *AdaptiveAvgPool2D[B]) Parameters() []*Parameter[B]             { return nil }
func (p *AdaptiveAvgPool2D[B]) StateDict() map[string]*tensor.RawTensor { return map[string]*tensor.RawTensor{} }
func (p *AdaptiveAvgPool2D[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }
