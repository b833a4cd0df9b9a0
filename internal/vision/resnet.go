package vision

import (
	"math/rand"

	"github.com/graft-ml/graft/internal/nn"
	"github.com/graft-ml/graft/internal/tensor"
)

// BasicBlock is the two-convolution residual block used by the 18 and
// 34 layer residual networks.
type BasicBlock[B tensor.Backend] struct {
	Conv1      *nn.Conv2D[B]
	BN1        *nn.BatchNorm2D[B]
	Conv2      *nn.Conv2D[B]
	BN2        *nn.BatchNorm2D[B]
	Downsample *nn.Sequential[B] // nil when the identity shortcut fits

	relu *nn.ReLU[B]
}

func NewBasicBlock[B tensor.Backend](inChannels, outChannels, stride int, rng *rand.Rand, b B) *BasicBlock[B] {
	block := &BasicBlock[B]{
		Conv1: nn.NewConv2DSquare[B](inChannels, outChannels, 3, stride, 1, false, rng, b),
		BN1:   nn.NewBatchNorm2D[B](outChannels, b),
		Conv2: nn.NewConv2DSquare[B](outChannels, outChannels, 3, 1, 1, false, rng, b),
		BN2:   nn.NewBatchNorm2D[B](outChannels, b),
		relu:  nn.NewReLU[B](),
	}
	if stride != 1 || inChannels != outChannels {
		block.Downsample = nn.NewSequential[B](
			nn.NewConv2DSquare[B](inChannels, outChannels, 1, stride, 0, false, rng, b),
			nn.NewBatchNorm2D[B](outChannels, b),
		)
	}
	return block
}

func (blk *BasicBlock[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out := blk.relu.Forward(blk.BN1.Forward(blk.Conv1.Forward(x)))
	out = blk.BN2.Forward(blk.Conv2.Forward(out))

	identity := x
	if blk.Downsample != nil {
		identity = blk.Downsample.Forward(x)
	}
	return blk.relu.Forward(out.Add(identity))
}

func (blk *BasicBlock[B]) SetTraining(training bool) {
	blk.BN1.SetTraining(training)
	blk.BN2.SetTraining(training)
	if blk.Downsample != nil {
		blk.Downsample.SetTraining(training)
	}
}

func (blk *BasicBlock[B]) Parameters() []*nn.Parameter[B] {
	params := append(blk.Conv1.Parameters(), blk.BN1.Parameters()...)
	params = append(params, blk.Conv2.Parameters()...)
	params = append(params, blk.BN2.Parameters()...)
	if blk.Downsample != nil {
		params = append(params, blk.Downsample.Parameters()...)
	}
	return params
}

func (blk *BasicBlock[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	addPrefixed(state, "conv1", blk.Conv1.StateDict())
	addPrefixed(state, "bn1", blk.BN1.StateDict())
	addPrefixed(state, "conv2", blk.Conv2.StateDict())
	addPrefixed(state, "bn2", blk.BN2.StateDict())
	if blk.Downsample != nil {
		addPrefixed(state, "downsample", blk.Downsample.StateDict())
	}
	return state
}

func (blk *BasicBlock[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if err := blk.Conv1.LoadStateDict(extractPrefix(state, "conv1")); err != nil {
		return err
	}
	if err := blk.BN1.LoadStateDict(extractPrefix(state, "bn1")); err != nil {
		return err
	}
	if err := blk.Conv2.LoadStateDict(extractPrefix(state, "conv2")); err != nil {
		return err
	}
	if err := blk.BN2.LoadStateDict(extractPrefix(state, "bn2")); err != nil {
		return err
	}
	if blk.Downsample != nil {
		return blk.Downsample.LoadStateDict(extractPrefix(state, "downsample"))
	}
	return nil
}

// ResNet18 is the 18 layer residual network. The classifier is the
// single fully connected layer FC over 512 pooled features.
type ResNet18[B tensor.Backend] struct {
	Conv1  *nn.Conv2D[B]
	BN1    *nn.BatchNorm2D[B]
	Layer1 *nn.Sequential[B]
	Layer2 *nn.Sequential[B]
	Layer3 *nn.Sequential[B]
	Layer4 *nn.Sequential[B]
	FC     *nn.Linear[B]

	relu    *nn.ReLU[B]
	maxpool *nn.MaxPool2D[B]
	avgpool *nn.AdaptiveAvgPool2D[B]
	flatten *nn.Flatten[B]
}

func NewResNet18[B tensor.Backend](numClasses int, rng *rand.Rand, b B) *ResNet18[B] {
	layer := func(in, out, stride int) *nn.Sequential[B] {
		return nn.NewSequential[B](
			NewBasicBlock[B](in, out, stride, rng, b),
			NewBasicBlock[B](out, out, 1, rng, b),
		)
	}
	return &ResNet18[B]{
		Conv1:   nn.NewConv2DSquare[B](3, 64, 7, 2, 3, false, rng, b),
		BN1:     nn.NewBatchNorm2D[B](64, b),
		Layer1:  layer(64, 64, 1),
		Layer2:  layer(64, 128, 2),
		Layer3:  layer(128, 256, 2),
		Layer4:  layer(256, 512, 2),
		FC:      nn.NewLinear[B](512, numClasses, rng, b),
		relu:    nn.NewReLU[B](),
		maxpool: nn.NewMaxPool2D[B](3, 2, 1),
		avgpool: nn.NewAdaptiveAvgPool2D[B](1, 1),
		flatten: nn.NewFlatten[B](),
	}
}

func (m *ResNet18[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x = m.maxpool.Forward(m.relu.Forward(m.BN1.Forward(m.Conv1.Forward(x))))
	x = m.Layer1.Forward(x)
	x = m.Layer2.Forward(x)
	x = m.Layer3.Forward(x)
	x = m.Layer4.Forward(x)
	x = m.flatten.Forward(m.avgpool.Forward(x))
	return m.FC.Forward(x)
}

func (m *ResNet18[B]) SetTraining(training bool) {
	m.BN1.SetTraining(training)
	m.Layer1.SetTraining(training)
	m.Layer2.SetTraining(training)
	m.Layer3.SetTraining(training)
	m.Layer4.SetTraining(training)
}

func (m *ResNet18[B]) Parameters() []*nn.Parameter[B] {
	params := append(m.Conv1.Parameters(), m.BN1.Parameters()...)
	params = append(params, m.Layer1.Parameters()...)
	params = append(params, m.Layer2.Parameters()...)
	params = append(params, m.Layer3.Parameters()...)
	params = append(params, m.Layer4.Parameters()...)
	return append(params, m.FC.Parameters()...)
}

func (m *ResNet18[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	addPrefixed(state, "conv1", m.Conv1.StateDict())
	addPrefixed(state, "bn1", m.BN1.StateDict())
	addPrefixed(state, "layer1", m.Layer1.StateDict())
	addPrefixed(state, "layer2", m.Layer2.StateDict())
	addPrefixed(state, "layer3", m.Layer3.StateDict())
	addPrefixed(state, "layer4", m.Layer4.StateDict())
	addPrefixed(state, "fc", m.FC.StateDict())
	return state
}

func (m *ResNet18[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if err := m.Conv1.LoadStateDict(extractPrefix(state, "conv1")); err != nil {
		return err
	}
	if err := m.BN1.LoadStateDict(extractPrefix(state, "bn1")); err != nil {
		return err
	}
	for i, layer := range []*nn.Sequential[B]{m.Layer1, m.Layer2, m.Layer3, m.Layer4} {
		prefix := []string{"layer1", "layer2", "layer3", "layer4"}[i]
		if err := layer.LoadStateDict(extractPrefix(state, prefix)); err != nil {
			return err
		}
	}
	return m.FC.LoadStateDict(extractPrefix(state, "fc"))
}
