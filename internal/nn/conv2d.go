package nn

import (
	"math/rand"

	"github.com/graft-ml/graft/internal/tensor"
)

// Conv2D is a 2D convolution over NCHW inputs. Padding can differ
// between the height and width axes, which some architectures use to
// keep asymmetric kernels shape-preserving.
type Conv2D[B tensor.Backend] struct {
	Weight *Parameter[B] // [outChannels, inChannels, kh, kw]
	Bias   *Parameter[B] // [outChannels], nil when created without bias

	stride int
	padH   int
	padW   int
}

// Conv2DConfig selects the geometry of a convolution layer.
type Conv2DConfig struct {
	InChannels  int
	OutChannels int
	KernelH     int
	KernelW     int
	Stride      int
	PadH        int
	PadW        int
	Bias        bool
}

// NewConv2D creates a convolution layer with Kaiming-initialized
// weights.
func NewConv2D[B tensor.Backend](cfg Conv2DConfig, rng *rand.Rand, b B) *Conv2D[B] {
	fanIn := cfg.InChannels * cfg.KernelH * cfg.KernelW
	w := KaimingUniform[B](tensor.Shape{cfg.OutChannels, cfg.InChannels, cfg.KernelH, cfg.KernelW}, fanIn, rng, b)
	layer := &Conv2D[B]{
		Weight: NewParameter("weight", w),
		stride: cfg.Stride,
		padH:   cfg.PadH,
		padW:   cfg.PadW,
	}
	if cfg.Bias {
		layer.Bias = NewParameter("bias", tensor.Zeros[float32](tensor.Shape{cfg.OutChannels}, b))
	}
	return layer
}

// NewConv2DSquare creates a convolution with a square kernel and equal
// padding on both axes, the common case.
func NewConv2DSquare[B tensor.Backend](inChannels, outChannels, kernelSize, stride, padding int, bias bool, rng *rand.Rand, b B) *Conv2D[B] {
	return NewConv2D[B](Conv2DConfig{
		InChannels:  inChannels,
		OutChannels: outChannels,
		KernelH:     kernelSize,
		KernelW:     kernelSize,
		Stride:      stride,
		PadH:        padding,
		PadW:        padding,
		Bias:        bias,
	}, rng, b)
}

// OutChannels returns the number of output channels.
func (c *Conv2D[B]) OutChannels() int { return c.Weight.Tensor.Shape()[0] }

// InChannels returns the number of input channels.
func (c *Conv2D[B]) InChannels() int { return c.Weight.Tensor.Shape()[1] }

func (c *Conv2D[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	b := x.Backend()
	out := tensor.New[float32, B](b.Conv2D(x.Raw(), c.Weight.Raw(), c.stride, c.padH, c.padW), b)
	if c.Bias == nil {
		return out
	}
	bias := c.Bias.Tensor.Reshape(1, c.OutChannels(), 1, 1)
	return out.Add(bias)
}

func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	if c.Bias == nil {
		return []*Parameter[B]{c.Weight}
	}
	return []*Parameter[B]{c.Weight, c.Bias}
}

func (c *Conv2D[B]) StateDict() map[string]*tensor.RawTensor {
	state := map[string]*tensor.RawTensor{"weight": c.Weight.Raw()}
	if c.Bias != nil {
		state["bias"] = c.Bias.Raw()
	}
	return state
}

func (c *Conv2D[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if err := loadInto(c.Weight.Raw(), state["weight"], "weight"); err != nil {
		return err
	}
	if c.Bias == nil {
		return nil
	}
	return loadInto(c.Bias.Raw(), state["bias"], "bias")
}
