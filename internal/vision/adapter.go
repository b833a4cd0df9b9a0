package vision

import (
	"fmt"
	"math/rand"

	"github.com/graft-ml/graft/internal/nn"
	"github.com/graft-ml/graft/internal/pretrained"
	"github.com/graft-ml/graft/internal/tensor"
)

// imageNetClasses is the head width of the stock architectures before
// adaptation.
const imageNetClasses = 1000

// ModelSpec describes how to adapt an architecture to a new task.
type ModelSpec struct {
	Family     Family
	NumClasses int

	// FreezeBackbone keeps every pretrained weight fixed; only the
	// fresh classifier head trains.
	FreezeBackbone bool

	// WeightsDir is the directory holding <family>.graft weight files.
	// Empty means random initialization.
	WeightsDir string
}

// auxForwarder is implemented by models with an auxiliary classifier.
type auxForwarder[B tensor.Backend] interface {
	ForwardWithAux(x *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B])
}

// AdaptedModel is an architecture whose classifier head has been
// replaced for a new class count. The head parameters are always
// trainable; the backbone may be frozen.
type AdaptedModel[B tensor.Backend] struct {
	Family     Family
	NumClasses int
	InputSize  int
	HasAuxHead bool

	model nn.Module[B]
}

// Module returns the underlying network.
func (m *AdaptedModel[B]) Module() nn.Module[B] { return m.model }

// Forward computes the main logits.
func (m *AdaptedModel[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return m.model.Forward(x)
}

// ForwardWithAux computes the main logits and, for families with an
// auxiliary head, the auxiliary logits. The second result is nil
// otherwise.
func (m *AdaptedModel[B]) ForwardWithAux(x *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	if aux, ok := m.model.(auxForwarder[B]); ok {
		return aux.ForwardWithAux(x)
	}
	return m.model.Forward(x), nil
}

// SetTraining switches the network between training and evaluation
// mode.
func (m *AdaptedModel[B]) SetTraining(training bool) {
	nn.SetTraining(m.model, training)
}

// Parameters returns every parameter, frozen or not.
func (m *AdaptedModel[B]) Parameters() []*nn.Parameter[B] {
	return m.model.Parameters()
}

// TrainableParameters returns the parameters the optimizer should
// update. With a frozen backbone this is just the new head.
func (m *AdaptedModel[B]) TrainableParameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for _, p := range m.model.Parameters() {
		if p.Trainable() {
			params = append(params, p)
		}
	}
	return params
}

func (m *AdaptedModel[B]) StateDict() map[string]*tensor.RawTensor {
	return m.model.StateDict()
}

func (m *AdaptedModel[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	return m.model.LoadStateDict(state)
}

// Adapt builds the requested architecture, optionally loads pretrained
// weights and freezes the backbone, then replaces the classifier head
// with a fresh layer sized for spec.NumClasses.
//
// The order matters: weights are loaded and freezing applied against
// the stock architecture, so the replacement head is always freshly
// initialized and trainable.
func Adapt[B tensor.Backend](spec ModelSpec, rng *rand.Rand, b B) (*AdaptedModel[B], error) {
	if spec.NumClasses < 1 {
		return nil, fmt.Errorf("adapt: need at least 1 class, got %d", spec.NumClasses)
	}

	var model nn.Module[B]
	var replaceHead func()

	switch spec.Family {
	case ResNet18Family:
		m := NewResNet18[B](imageNetClasses, rng, b)
		model = m
		replaceHead = func() {
			m.FC = nn.NewLinear[B](512, spec.NumClasses, rng, b)
		}
	case AlexNetFamily:
		m := NewAlexNet[B](imageNetClasses, rng, b)
		model = m
		replaceHead = func() {
			m.Classifier.Replace(alexNetHeadIndex, nn.NewLinear[B](4096, spec.NumClasses, rng, b))
		}
	case VGG11Family:
		m := NewVGG11[B](imageNetClasses, rng, b)
		model = m
		replaceHead = func() {
			m.Classifier.Replace(vggHeadIndex, nn.NewLinear[B](4096, spec.NumClasses, rng, b))
		}
	case SqueezeNetFamily:
		m := NewSqueezeNet[B](imageNetClasses, rng, b)
		model = m
		replaceHead = func() {
			m.Classifier.Replace(squeezeNetHeadIndex,
				nn.NewConv2DSquare[B](512, spec.NumClasses, 1, 1, 0, true, rng, b))
		}
	case DenseNet121Family:
		m := NewDenseNet121[B](imageNetClasses, rng, b)
		model = m
		replaceHead = func() {
			m.Classifier = nn.NewLinear[B](1024, spec.NumClasses, rng, b)
		}
	case InceptionV3Family:
		m := NewInceptionV3[B](imageNetClasses, rng, b)
		model = m
		replaceHead = func() {
			m.FC = nn.NewLinear[B](2048, spec.NumClasses, rng, b)
			m.AuxLogits.FC = nn.NewLinear[B](768, spec.NumClasses, rng, b)
		}
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFamily, spec.Family)
	}

	if spec.WeightsDir != "" {
		state, err := pretrained.Load(spec.WeightsDir, spec.Family.String(), b.Device())
		if err != nil {
			return nil, err
		}
		if err := model.LoadStateDict(state); err != nil {
			return nil, fmt.Errorf("apply %s weights: %w", spec.Family, err)
		}
	}

	if spec.FreezeBackbone {
		for _, p := range model.Parameters() {
			p.Freeze()
		}
	}

	replaceHead()

	return &AdaptedModel[B]{
		Family:     spec.Family,
		NumClasses: spec.NumClasses,
		InputSize:  spec.Family.InputSize(),
		HasAuxHead: spec.Family.HasAuxHead(),
		model:      model,
	}, nil
}
