package vision

import (
	"math/rand"

	"github.com/graft-ml/graft/internal/nn"
	"github.com/graft-ml/graft/internal/tensor"
)

// vggHeadIndex is the classifier child holding the final fully
// connected layer.
const vggHeadIndex = 6

// VGG11 is the 11 layer VGG variant with batch normalization after
// every convolution.
type VGG11[B tensor.Backend] struct {
	Features   *nn.Sequential[B]
	Classifier *nn.Sequential[B]

	avgpool *nn.AdaptiveAvgPool2D[B]
	flatten *nn.Flatten[B]
}

func NewVGG11[B tensor.Backend](numClasses int, rng *rand.Rand, b B) *VGG11[B] {
	features := nn.NewSequential[B]()
	in := 3
	for _, v := range []int{64, -1, 128, -1, 256, 256, -1, 512, 512, -1, 512, 512, -1} {
		if v == -1 {
			features.Add(nn.NewMaxPool2D[B](2, 2, 0))
			continue
		}
		features.Add(nn.NewConv2DSquare[B](in, v, 3, 1, 1, true, rng, b))
		features.Add(nn.NewBatchNorm2D[B](v, b))
		features.Add(nn.NewReLU[B]())
		in = v
	}
	classifier := nn.NewSequential[B](
		nn.NewLinear[B](512*7*7, 4096, rng, b),
		nn.NewReLU[B](),
		nn.NewDropout[B](0.5, rng),
		nn.NewLinear[B](4096, 4096, rng, b),
		nn.NewReLU[B](),
		nn.NewDropout[B](0.5, rng),
		nn.NewLinear[B](4096, numClasses, rng, b),
	)
	return &VGG11[B]{
		Features:   features,
		Classifier: classifier,
		avgpool:    nn.NewAdaptiveAvgPool2D[B](7, 7),
		flatten:    nn.NewFlatten[B](),
	}
}

func (m *VGG11[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x = m.Features.Forward(x)
	x = m.flatten.Forward(m.avgpool.Forward(x))
	return m.Classifier.Forward(x)
}

func (m *VGG11[B]) SetTraining(training bool) {
	m.Features.SetTraining(training)
	m.Classifier.SetTraining(training)
}

func (m *VGG11[B]) Parameters() []*nn.Parameter[B] {
	return append(m.Features.Parameters(), m.Classifier.Parameters()...)
}

func (m *VGG11[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	addPrefixed(state, "features", m.Features.StateDict())
	addPrefixed(state, "classifier", m.Classifier.StateDict())
	return state
}

func (m *VGG11[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if err := m.Features.LoadStateDict(extractPrefix(state, "features")); err != nil {
		return err
	}
	return m.Classifier.LoadStateDict(extractPrefix(state, "classifier"))
}
