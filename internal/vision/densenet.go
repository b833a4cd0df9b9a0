package vision

import (
	"math/rand"
	"strconv"

	"github.com/graft-ml/graft/internal/nn"
	"github.com/graft-ml/graft/internal/tensor"
)

const (
	denseGrowthRate = 32
	denseBNSize     = 4
)

// DenseLayer produces growthRate new feature maps and concatenates
// them onto its input, so every later layer in the block sees all
// earlier outputs.
type DenseLayer[B tensor.Backend] struct {
	Norm1 *nn.BatchNorm2D[B]
	Conv1 *nn.Conv2D[B] // 1x1 bottleneck
	Norm2 *nn.BatchNorm2D[B]
	Conv2 *nn.Conv2D[B] // 3x3

	relu *nn.ReLU[B]
}

func NewDenseLayer[B tensor.Backend](inChannels int, rng *rand.Rand, b B) *DenseLayer[B] {
	bottleneck := denseBNSize * denseGrowthRate
	return &DenseLayer[B]{
		Norm1: nn.NewBatchNorm2D[B](inChannels, b),
		Conv1: nn.NewConv2DSquare[B](inChannels, bottleneck, 1, 1, 0, false, rng, b),
		Norm2: nn.NewBatchNorm2D[B](bottleneck, b),
		Conv2: nn.NewConv2DSquare[B](bottleneck, denseGrowthRate, 3, 1, 1, false, rng, b),
		relu:  nn.NewReLU[B](),
	}
}

func (l *DenseLayer[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	b := x.Backend()
	out := l.Conv1.Forward(l.relu.Forward(l.Norm1.Forward(x)))
	out = l.Conv2.Forward(l.relu.Forward(l.Norm2.Forward(out)))
	cat := b.Cat([]*tensor.RawTensor{x.Raw(), out.Raw()}, 1)
	return tensor.New[float32, B](cat, b)
}

func (l *DenseLayer[B]) SetTraining(training bool) {
	l.Norm1.SetTraining(training)
	l.Norm2.SetTraining(training)
}

func (l *DenseLayer[B]) Parameters() []*nn.Parameter[B] {
	params := append(l.Norm1.Parameters(), l.Conv1.Parameters()...)
	params = append(params, l.Norm2.Parameters()...)
	return append(params, l.Conv2.Parameters()...)
}

func (l *DenseLayer[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	addPrefixed(state, "norm1", l.Norm1.StateDict())
	addPrefixed(state, "conv1", l.Conv1.StateDict())
	addPrefixed(state, "norm2", l.Norm2.StateDict())
	addPrefixed(state, "conv2", l.Conv2.StateDict())
	return state
}

func (l *DenseLayer[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if err := l.Norm1.LoadStateDict(extractPrefix(state, "norm1")); err != nil {
		return err
	}
	if err := l.Conv1.LoadStateDict(extractPrefix(state, "conv1")); err != nil {
		return err
	}
	if err := l.Norm2.LoadStateDict(extractPrefix(state, "norm2")); err != nil {
		return err
	}
	return l.Conv2.LoadStateDict(extractPrefix(state, "conv2"))
}

// Transition halves both the channel count and the spatial resolution
// between dense blocks.
type Transition[B tensor.Backend] struct {
	Norm *nn.BatchNorm2D[B]
	Conv *nn.Conv2D[B]

	relu *nn.ReLU[B]
	pool *nn.AvgPool2D[B]
}

func NewTransition[B tensor.Backend](inChannels, outChannels int, rng *rand.Rand, b B) *Transition[B] {
	return &Transition[B]{
		Norm: nn.NewBatchNorm2D[B](inChannels, b),
		Conv: nn.NewConv2DSquare[B](inChannels, outChannels, 1, 1, 0, false, rng, b),
		relu: nn.NewReLU[B](),
		pool: nn.NewAvgPool2D[B](2, 2, 0),
	}
}

func (t *Transition[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return t.pool.Forward(t.Conv.Forward(t.relu.Forward(t.Norm.Forward(x))))
}

func (t *Transition[B]) SetTraining(training bool) { t.Norm.SetTraining(training) }

func (t *Transition[B]) Parameters() []*nn.Parameter[B] {
	return append(t.Norm.Parameters(), t.Conv.Parameters()...)
}

func (t *Transition[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	addPrefixed(state, "norm", t.Norm.StateDict())
	addPrefixed(state, "conv", t.Conv.StateDict())
	return state
}

func (t *Transition[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if err := t.Norm.LoadStateDict(extractPrefix(state, "norm")); err != nil {
		return err
	}
	return t.Conv.LoadStateDict(extractPrefix(state, "conv"))
}

// DenseNet121 with block sizes 6, 12, 24 and 16. The classifier is a
// single fully connected layer over 1024 pooled features.
type DenseNet121[B tensor.Backend] struct {
	Conv0      *nn.Conv2D[B]
	Norm0      *nn.BatchNorm2D[B]
	Blocks     [4]*nn.Sequential[B]
	Trans      [3]*Transition[B]
	Norm5      *nn.BatchNorm2D[B]
	Classifier *nn.Linear[B]

	relu    *nn.ReLU[B]
	maxpool *nn.MaxPool2D[B]
	avgpool *nn.AdaptiveAvgPool2D[B]
	flatten *nn.Flatten[B]
}

func NewDenseNet121[B tensor.Backend](numClasses int, rng *rand.Rand, b B) *DenseNet121[B] {
	m := &DenseNet121[B]{
		Conv0:   nn.NewConv2DSquare[B](3, 64, 7, 2, 3, false, rng, b),
		Norm0:   nn.NewBatchNorm2D[B](64, b),
		relu:    nn.NewReLU[B](),
		maxpool: nn.NewMaxPool2D[B](3, 2, 1),
		avgpool: nn.NewAdaptiveAvgPool2D[B](1, 1),
		flatten: nn.NewFlatten[B](),
	}
	channels := 64
	for i, numLayers := range []int{6, 12, 24, 16} {
		block := nn.NewSequential[B]()
		for j := 0; j < numLayers; j++ {
			block.Add(NewDenseLayer[B](channels+j*denseGrowthRate, rng, b))
		}
		channels += numLayers * denseGrowthRate
		m.Blocks[i] = block
		if i < 3 {
			m.Trans[i] = NewTransition[B](channels, channels/2, rng, b)
			channels /= 2
		}
	}
	m.Norm5 = nn.NewBatchNorm2D[B](channels, b)
	m.Classifier = nn.NewLinear[B](channels, numClasses, rng, b)
	return m
}

func (m *DenseNet121[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x = m.maxpool.Forward(m.relu.Forward(m.Norm0.Forward(m.Conv0.Forward(x))))
	for i, block := range m.Blocks {
		x = block.Forward(x)
		if i < 3 {
			x = m.Trans[i].Forward(x)
		}
	}
	x = m.relu.Forward(m.Norm5.Forward(x))
	x = m.flatten.Forward(m.avgpool.Forward(x))
	return m.Classifier.Forward(x)
}

func (m *DenseNet121[B]) SetTraining(training bool) {
	m.Norm0.SetTraining(training)
	for _, block := range m.Blocks {
		block.SetTraining(training)
	}
	for _, t := range m.Trans {
		t.SetTraining(training)
	}
	m.Norm5.SetTraining(training)
}

func (m *DenseNet121[B]) Parameters() []*nn.Parameter[B] {
	params := append(m.Conv0.Parameters(), m.Norm0.Parameters()...)
	for i, block := range m.Blocks {
		params = append(params, block.Parameters()...)
		if i < 3 {
			params = append(params, m.Trans[i].Parameters()...)
		}
	}
	params = append(params, m.Norm5.Parameters()...)
	return append(params, m.Classifier.Parameters()...)
}

func (m *DenseNet121[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	addPrefixed(state, "conv0", m.Conv0.StateDict())
	addPrefixed(state, "norm0", m.Norm0.StateDict())
	for i, block := range m.Blocks {
		addPrefixed(state, blockPrefix(i), block.StateDict())
		if i < 3 {
			addPrefixed(state, transPrefix(i), m.Trans[i].StateDict())
		}
	}
	addPrefixed(state, "norm5", m.Norm5.StateDict())
	addPrefixed(state, "classifier", m.Classifier.StateDict())
	return state
}

func (m *DenseNet121[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if err := m.Conv0.LoadStateDict(extractPrefix(state, "conv0")); err != nil {
		return err
	}
	if err := m.Norm0.LoadStateDict(extractPrefix(state, "norm0")); err != nil {
		return err
	}
	for i, block := range m.Blocks {
		if err := block.LoadStateDict(extractPrefix(state, blockPrefix(i))); err != nil {
			return err
		}
		if i < 3 {
			if err := m.Trans[i].LoadStateDict(extractPrefix(state, transPrefix(i))); err != nil {
				return err
			}
		}
	}
	if err := m.Norm5.LoadStateDict(extractPrefix(state, "norm5")); err != nil {
		return err
	}
	return m.Classifier.LoadStateDict(extractPrefix(state, "classifier"))
}

func blockPrefix(i int) string { return "denseblock" + strconv.Itoa(i+1) }
func transPrefix(i int) string { return "transition" + strconv.Itoa(i+1) }
