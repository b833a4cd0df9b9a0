package vision

import (
	"math/rand"

	"github.com/graft-ml/graft/internal/nn"
	"github.com/graft-ml/graft/internal/tensor"
)

// alexNetHeadIndex is the classifier child holding the final
// fully connected layer.
const alexNetHeadIndex = 6

// AlexNet with the classic five convolution feature extractor and a
// three layer fully connected classifier.
type AlexNet[B tensor.Backend] struct {
	Features   *nn.Sequential[B]
	Classifier *nn.Sequential[B]

	avgpool *nn.AdaptiveAvgPool2D[B]
	flatten *nn.Flatten[B]
}

func NewAlexNet[B tensor.Backend](numClasses int, rng *rand.Rand, b B) *AlexNet[B] {
	features := nn.NewSequential[B](
		nn.NewConv2DSquare[B](3, 64, 11, 4, 2, true, rng, b),
		nn.NewReLU[B](),
		nn.NewMaxPool2D[B](3, 2, 0),
		nn.NewConv2DSquare[B](64, 192, 5, 1, 2, true, rng, b),
		nn.NewReLU[B](),
		nn.NewMaxPool2D[B](3, 2, 0),
		nn.NewConv2DSquare[B](192, 384, 3, 1, 1, true, rng, b),
		nn.NewReLU[B](),
		nn.NewConv2DSquare[B](384, 256, 3, 1, 1, true, rng, b),
		nn.NewReLU[B](),
		nn.NewConv2DSquare[B](256, 256, 3, 1, 1, true, rng, b),
		nn.NewReLU[B](),
		nn.NewMaxPool2D[B](3, 2, 0),
	)
	classifier := nn.NewSequential[B](
		nn.NewDropout[B](0.5, rng),
		nn.NewLinear[B](256*6*6, 4096, rng, b),
		nn.NewReLU[B](),
		nn.NewDropout[B](0.5, rng),
		nn.NewLinear[B](4096, 4096, rng, b),
		nn.NewReLU[B](),
		nn.NewLinear[B](4096, numClasses, rng, b),
	)
	return &AlexNet[B]{
		Features:   features,
		Classifier: classifier,
		avgpool:    nn.NewAdaptiveAvgPool2D[B](6, 6),
		flatten:    nn.NewFlatten[B](),
	}
}

func (m *AlexNet[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x = m.Features.Forward(x)
	x = m.flatten.Forward(m.avgpool.Forward(x))
	return m.Classifier.Forward(x)
}

func (m *AlexNet[B]) SetTraining(training bool) {
	m.Features.SetTraining(training)
	m.Classifier.SetTraining(training)
}

func (m *AlexNet[B]) Parameters() []*nn.Parameter[B] {
	return append(m.Features.Parameters(), m.Classifier.Parameters()...)
}

func (m *AlexNet[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	addPrefixed(state, "features", m.Features.StateDict())
	addPrefixed(state, "classifier", m.Classifier.StateDict())
	return state
}

func (m *AlexNet[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if err := m.Features.LoadStateDict(extractPrefix(state, "features")); err != nil {
		return err
	}
	return m.Classifier.LoadStateDict(extractPrefix(state, "classifier"))
}
