package vision

import (
	"math/rand"

	"github.com/graft-ml/graft/internal/nn"
	"github.com/graft-ml/graft/internal/tensor"
)

// squeezeNetHeadIndex is the classifier child holding the final 1x1
// convolution. SqueezeNet is the one family whose classifier is a
// convolution rather than a fully connected layer.
const squeezeNetHeadIndex = 1

// Fire is the SqueezeNet building block: a 1x1 squeeze convolution
// followed by parallel 1x1 and 3x3 expand convolutions whose outputs
// are concatenated along the channel axis.
type Fire[B tensor.Backend] struct {
	Squeeze   *nn.Conv2D[B]
	Expand1x1 *nn.Conv2D[B]
	Expand3x3 *nn.Conv2D[B]

	relu *nn.ReLU[B]
}

func NewFire[B tensor.Backend](inChannels, squeeze, expand1x1, expand3x3 int, rng *rand.Rand, b B) *Fire[B] {
	return &Fire[B]{
		Squeeze:   nn.NewConv2DSquare[B](inChannels, squeeze, 1, 1, 0, true, rng, b),
		Expand1x1: nn.NewConv2DSquare[B](squeeze, expand1x1, 1, 1, 0, true, rng, b),
		Expand3x3: nn.NewConv2DSquare[B](squeeze, expand3x3, 3, 1, 1, true, rng, b),
		relu:      nn.NewReLU[B](),
	}
}

func (f *Fire[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	b := x.Backend()
	squeezed := f.relu.Forward(f.Squeeze.Forward(x))
	e1 := f.relu.Forward(f.Expand1x1.Forward(squeezed))
	e3 := f.relu.Forward(f.Expand3x3.Forward(squeezed))
	cat := b.Cat([]*tensor.RawTensor{e1.Raw(), e3.Raw()}, 1)
	return tensor.New[float32, B](cat, b)
}

func (f *Fire[B]) Parameters() []*nn.Parameter[B] {
	params := append(f.Squeeze.Parameters(), f.Expand1x1.Parameters()...)
	return append(params, f.Expand3x3.Parameters()...)
}

func (f *Fire[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	addPrefixed(state, "squeeze", f.Squeeze.StateDict())
	addPrefixed(state, "expand1x1", f.Expand1x1.StateDict())
	addPrefixed(state, "expand3x3", f.Expand3x3.StateDict())
	return state
}

func (f *Fire[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if err := f.Squeeze.LoadStateDict(extractPrefix(state, "squeeze")); err != nil {
		return err
	}
	if err := f.Expand1x1.LoadStateDict(extractPrefix(state, "expand1x1")); err != nil {
		return err
	}
	return f.Expand3x3.LoadStateDict(extractPrefix(state, "expand3x3"))
}

// SqueezeNet (version 1.0). The classifier is a dropout, a 1x1
// convolution mapping 512 channels to the class count, a ReLU and a
// global average pool.
type SqueezeNet[B tensor.Backend] struct {
	Features   *nn.Sequential[B]
	Classifier *nn.Sequential[B]

	avgpool *nn.AdaptiveAvgPool2D[B]
	flatten *nn.Flatten[B]
}

func NewSqueezeNet[B tensor.Backend](numClasses int, rng *rand.Rand, b B) *SqueezeNet[B] {
	features := nn.NewSequential[B](
		nn.NewConv2DSquare[B](3, 96, 7, 2, 0, true, rng, b),
		nn.NewReLU[B](),
		nn.NewMaxPool2D[B](3, 2, 0),
		NewFire[B](96, 16, 64, 64, rng, b),
		NewFire[B](128, 16, 64, 64, rng, b),
		NewFire[B](128, 32, 128, 128, rng, b),
		nn.NewMaxPool2D[B](3, 2, 0),
		NewFire[B](256, 32, 128, 128, rng, b),
		NewFire[B](256, 48, 192, 192, rng, b),
		NewFire[B](384, 48, 192, 192, rng, b),
		NewFire[B](384, 64, 256, 256, rng, b),
		nn.NewMaxPool2D[B](3, 2, 0),
		NewFire[B](512, 64, 256, 256, rng, b),
	)
	classifier := nn.NewSequential[B](
		nn.NewDropout[B](0.5, rng),
		nn.NewConv2DSquare[B](512, numClasses, 1, 1, 0, true, rng, b),
		nn.NewReLU[B](),
	)
	return &SqueezeNet[B]{
		Features:   features,
		Classifier: classifier,
		avgpool:    nn.NewAdaptiveAvgPool2D[B](1, 1),
		flatten:    nn.NewFlatten[B](),
	}
}

func (m *SqueezeNet[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x = m.Features.Forward(x)
	x = m.Classifier.Forward(x)
	return m.flatten.Forward(m.avgpool.Forward(x))
}

func (m *SqueezeNet[B]) SetTraining(training bool) {
	m.Features.SetTraining(training)
	m.Classifier.SetTraining(training)
}

func (m *SqueezeNet[B]) Parameters() []*nn.Parameter[B] {
	return append(m.Features.Parameters(), m.Classifier.Parameters()...)
}

func (m *SqueezeNet[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	addPrefixed(state, "features", m.Features.StateDict())
	addPrefixed(state, "classifier", m.Classifier.StateDict())
	return state
}

func (m *SqueezeNet[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if err := m.Features.LoadStateDict(extractPrefix(state, "features")); err != nil {
		return err
	}
	return m.Classifier.LoadStateDict(extractPrefix(state, "classifier"))
}
