package vision

import (
	"math/rand"

	"github.com/graft-ml/graft/internal/nn"
	"github.com/graft-ml/graft/internal/tensor"
)

// BasicConv2D is the convolution + batch norm + ReLU unit every
// inception block is assembled from.
type BasicConv2D[B tensor.Backend] struct {
	Conv *nn.Conv2D[B]
	BN   *nn.BatchNorm2D[B]

	relu *nn.ReLU[B]
}

func NewBasicConv2D[B tensor.Backend](cfg nn.Conv2DConfig, rng *rand.Rand, b B) *BasicConv2D[B] {
	cfg.Bias = false
	return &BasicConv2D[B]{
		Conv: nn.NewConv2D[B](cfg, rng, b),
		BN:   nn.NewBatchNorm2D[B](cfg.OutChannels, b),
		relu: nn.NewReLU[B](),
	}
}

// convUnit builds a square-kernel BasicConv2D.
func convUnit[B tensor.Backend](in, out, kernel, stride, padding int, rng *rand.Rand, b B) *BasicConv2D[B] {
	return NewBasicConv2D[B](nn.Conv2DConfig{
		InChannels:  in,
		OutChannels: out,
		KernelH:     kernel,
		KernelW:     kernel,
		Stride:      stride,
		PadH:        padding,
		PadW:        padding,
	}, rng, b)
}

// convUnitRect builds an asymmetric-kernel BasicConv2D, used by the
// factorized 1x7 and 7x1 convolutions.
func convUnitRect[B tensor.Backend](in, out, kh, kw, padH, padW int, rng *rand.Rand, b B) *BasicConv2D[B] {
	return NewBasicConv2D[B](nn.Conv2DConfig{
		InChannels:  in,
		OutChannels: out,
		KernelH:     kh,
		KernelW:     kw,
		Stride:      1,
		PadH:        padH,
		PadW:        padW,
	}, rng, b)
}

func (c *BasicConv2D[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return c.relu.Forward(c.BN.Forward(c.Conv.Forward(x)))
}

func (c *BasicConv2D[B]) SetTraining(training bool) { c.BN.SetTraining(training) }

func (c *BasicConv2D[B]) children() []namedChild[B] {
	return []namedChild[B]{{"conv", c.Conv}, {"bn", c.BN}}
}

func (c *BasicConv2D[B]) Parameters() []*nn.Parameter[B] { return paramsOf(c.children()) }
func (c *BasicConv2D[B]) StateDict() map[string]*tensor.RawTensor {
	return stateOf(c.children())
}
func (c *BasicConv2D[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	return loadStateOf(c.children(), state)
}

// catForward runs each branch on x and concatenates the results along
// the channel axis.
func catForward[B tensor.Backend](x *tensor.Tensor[float32, B], branches ...nn.Module[B]) *tensor.Tensor[float32, B] {
	b := x.Backend()
	outs := make([]*tensor.RawTensor, len(branches))
	for i, branch := range branches {
		outs[i] = branch.Forward(x).Raw()
	}
	return tensor.New[float32, B](b.Cat(outs, 1), b)
}

// InceptionA is the 35x35 block: 1x1, 5x5, double 3x3 and pooled
// branches.
type InceptionA[B tensor.Backend] struct {
	Branch1x1    *BasicConv2D[B]
	Branch5x5    *nn.Sequential[B]
	Branch3x3Dbl *nn.Sequential[B]
	BranchPool   *nn.Sequential[B]
}

func NewInceptionA[B tensor.Backend](in, poolFeatures int, rng *rand.Rand, b B) *InceptionA[B] {
	return &InceptionA[B]{
		Branch1x1: convUnit[B](in, 64, 1, 1, 0, rng, b),
		Branch5x5: nn.NewSequential[B](
			convUnit[B](in, 48, 1, 1, 0, rng, b),
			convUnit[B](48, 64, 5, 1, 2, rng, b),
		),
		Branch3x3Dbl: nn.NewSequential[B](
			convUnit[B](in, 64, 1, 1, 0, rng, b),
			convUnit[B](64, 96, 3, 1, 1, rng, b),
			convUnit[B](96, 96, 3, 1, 1, rng, b),
		),
		BranchPool: nn.NewSequential[B](
			nn.NewAvgPool2D[B](3, 1, 1),
			convUnit[B](in, poolFeatures, 1, 1, 0, rng, b),
		),
	}
}

func (m *InceptionA[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return catForward[B](x, m.Branch1x1, m.Branch5x5, m.Branch3x3Dbl, m.BranchPool)
}

func (m *InceptionA[B]) children() []namedChild[B] {
	return []namedChild[B]{
		{"branch1x1", m.Branch1x1},
		{"branch5x5", m.Branch5x5},
		{"branch3x3dbl", m.Branch3x3Dbl},
		{"branch_pool", m.BranchPool},
	}
}

func (m *InceptionA[B]) SetTraining(training bool)       { setTrainingOf(m.children(), training) }
func (m *InceptionA[B]) Parameters() []*nn.Parameter[B]  { return paramsOf(m.children()) }
func (m *InceptionA[B]) StateDict() map[string]*tensor.RawTensor {
	return stateOf(m.children())
}
func (m *InceptionA[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	return loadStateOf(m.children(), state)
}

// InceptionB is the grid reduction block from 35x35 to 17x17.
type InceptionB[B tensor.Backend] struct {
	Branch3x3    *BasicConv2D[B]
	Branch3x3Dbl *nn.Sequential[B]

	pool *nn.MaxPool2D[B]
}

func NewInceptionB[B tensor.Backend](in int, rng *rand.Rand, b B) *InceptionB[B] {
	return &InceptionB[B]{
		Branch3x3: convUnit[B](in, 384, 3, 2, 0, rng, b),
		Branch3x3Dbl: nn.NewSequential[B](
			convUnit[B](in, 64, 1, 1, 0, rng, b),
			convUnit[B](64, 96, 3, 1, 1, rng, b),
			convUnit[B](96, 96, 3, 2, 0, rng, b),
		),
		pool: nn.NewMaxPool2D[B](3, 2, 0),
	}
}

func (m *InceptionB[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return catForward[B](x, m.Branch3x3, m.Branch3x3Dbl, m.pool)
}

func (m *InceptionB[B]) children() []namedChild[B] {
	return []namedChild[B]{
		{"branch3x3", m.Branch3x3},
		{"branch3x3dbl", m.Branch3x3Dbl},
	}
}

func (m *InceptionB[B]) SetTraining(training bool)      { setTrainingOf(m.children(), training) }
func (m *InceptionB[B]) Parameters() []*nn.Parameter[B] { return paramsOf(m.children()) }
func (m *InceptionB[B]) StateDict() map[string]*tensor.RawTensor {
	return stateOf(m.children())
}
func (m *InceptionB[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	return loadStateOf(m.children(), state)
}

// InceptionC is the 17x17 block with factorized 7x7 convolutions.
type InceptionC[B tensor.Backend] struct {
	Branch1x1    *BasicConv2D[B]
	Branch7x7    *nn.Sequential[B]
	Branch7x7Dbl *nn.Sequential[B]
	BranchPool   *nn.Sequential[B]
}

func NewInceptionC[B tensor.Backend](in, channels7 int, rng *rand.Rand, b B) *InceptionC[B] {
	c7 := channels7
	return &InceptionC[B]{
		Branch1x1: convUnit[B](in, 192, 1, 1, 0, rng, b),
		Branch7x7: nn.NewSequential[B](
			convUnit[B](in, c7, 1, 1, 0, rng, b),
			convUnitRect[B](c7, c7, 1, 7, 0, 3, rng, b),
			convUnitRect[B](c7, 192, 7, 1, 3, 0, rng, b),
		),
		Branch7x7Dbl: nn.NewSequential[B](
			convUnit[B](in, c7, 1, 1, 0, rng, b),
			convUnitRect[B](c7, c7, 7, 1, 3, 0, rng, b),
			convUnitRect[B](c7, c7, 1, 7, 0, 3, rng, b),
			convUnitRect[B](c7, c7, 7, 1, 3, 0, rng, b),
			convUnitRect[B](c7, 192, 1, 7, 0, 3, rng, b),
		),
		BranchPool: nn.NewSequential[B](
			nn.NewAvgPool2D[B](3, 1, 1),
			convUnit[B](in, 192, 1, 1, 0, rng, b),
		),
	}
}

func (m *InceptionC[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return catForward[B](x, m.Branch1x1, m.Branch7x7, m.Branch7x7Dbl, m.BranchPool)
}

func (m *InceptionC[B]) children() []namedChild[B] {
	return []namedChild[B]{
		{"branch1x1", m.Branch1x1},
		{"branch7x7", m.Branch7x7},
		{"branch7x7dbl", m.Branch7x7Dbl},
		{"branch_pool", m.BranchPool},
	}
}

func (m *InceptionC[B]) SetTraining(training bool)      { setTrainingOf(m.children(), training) }
func (m *InceptionC[B]) Parameters() []*nn.Parameter[B] { return paramsOf(m.children()) }
func (m *InceptionC[B]) StateDict() map[string]*tensor.RawTensor {
	return stateOf(m.children())
}
func (m *InceptionC[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	return loadStateOf(m.children(), state)
}

// InceptionD is the grid reduction block from 17x17 to 8x8.
type InceptionD[B tensor.Backend] struct {
	Branch3x3   *nn.Sequential[B]
	Branch7x7x3 *nn.Sequential[B]

	pool *nn.MaxPool2D[B]
}

func NewInceptionD[B tensor.Backend](in int, rng *rand.Rand, b B) *InceptionD[B] {
	return &InceptionD[B]{
		Branch3x3: nn.NewSequential[B](
			convUnit[B](in, 192, 1, 1, 0, rng, b),
			convUnit[B](192, 320, 3, 2, 0, rng, b),
		),
		Branch7x7x3: nn.NewSequential[B](
			convUnit[B](in, 192, 1, 1, 0, rng, b),
			convUnitRect[B](192, 192, 1, 7, 0, 3, rng, b),
			convUnitRect[B](192, 192, 7, 1, 3, 0, rng, b),
			convUnit[B](192, 192, 3, 2, 0, rng, b),
		),
		pool: nn.NewMaxPool2D[B](3, 2, 0),
	}
}

func (m *InceptionD[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return catForward[B](x, m.Branch3x3, m.Branch7x7x3, m.pool)
}

func (m *InceptionD[B]) children() []namedChild[B] {
	return []namedChild[B]{
		{"branch3x3", m.Branch3x3},
		{"branch7x7x3", m.Branch7x7x3},
	}
}

func (m *InceptionD[B]) SetTraining(training bool)      { setTrainingOf(m.children(), training) }
func (m *InceptionD[B]) Parameters() []*nn.Parameter[B] { return paramsOf(m.children()) }
func (m *InceptionD[B]) StateDict() map[string]*tensor.RawTensor {
	return stateOf(m.children())
}
func (m *InceptionD[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	return loadStateOf(m.children(), state)
}

// InceptionE is the 8x8 block whose 3x3 branches fan out into parallel
// 1x3 and 3x1 convolutions.
type InceptionE[B tensor.Backend] struct {
	Branch1x1 *BasicConv2D[B]

	Branch3x3Stem *BasicConv2D[B]
	Branch3x3A    *BasicConv2D[B] // 1x3
	Branch3x3B    *BasicConv2D[B] // 3x1

	Branch3x3DblStem *nn.Sequential[B]
	Branch3x3DblA    *BasicConv2D[B] // 1x3
	Branch3x3DblB    *BasicConv2D[B] // 3x1

	BranchPool *nn.Sequential[B]
}

func NewInceptionE[B tensor.Backend](in int, rng *rand.Rand, b B) *InceptionE[B] {
	return &InceptionE[B]{
		Branch1x1:     convUnit[B](in, 320, 1, 1, 0, rng, b),
		Branch3x3Stem: convUnit[B](in, 384, 1, 1, 0, rng, b),
		Branch3x3A:    convUnitRect[B](384, 384, 1, 3, 0, 1, rng, b),
		Branch3x3B:    convUnitRect[B](384, 384, 3, 1, 1, 0, rng, b),
		Branch3x3DblStem: nn.NewSequential[B](
			convUnit[B](in, 448, 1, 1, 0, rng, b),
			convUnit[B](448, 384, 3, 1, 1, rng, b),
		),
		Branch3x3DblA: convUnitRect[B](384, 384, 1, 3, 0, 1, rng, b),
		Branch3x3DblB: convUnitRect[B](384, 384, 3, 1, 1, 0, rng, b),
		BranchPool: nn.NewSequential[B](
			nn.NewAvgPool2D[B](3, 1, 1),
			convUnit[B](in, 192, 1, 1, 0, rng, b),
		),
	}
}

func (m *InceptionE[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	b := x.Backend()

	b1 := m.Branch1x1.Forward(x)

	stem := m.Branch3x3Stem.Forward(x)
	b3 := b.Cat([]*tensor.RawTensor{
		m.Branch3x3A.Forward(stem).Raw(),
		m.Branch3x3B.Forward(stem).Raw(),
	}, 1)

	dblStem := m.Branch3x3DblStem.Forward(x)
	b3dbl := b.Cat([]*tensor.RawTensor{
		m.Branch3x3DblA.Forward(dblStem).Raw(),
		m.Branch3x3DblB.Forward(dblStem).Raw(),
	}, 1)

	bp := m.BranchPool.Forward(x)

	out := b.Cat([]*tensor.RawTensor{b1.Raw(), b3, b3dbl, bp.Raw()}, 1)
	return tensor.New[float32, B](out, b)
}

func (m *InceptionE[B]) children() []namedChild[B] {
	return []namedChild[B]{
		{"branch1x1", m.Branch1x1},
		{"branch3x3", m.Branch3x3Stem},
		{"branch3x3a", m.Branch3x3A},
		{"branch3x3b", m.Branch3x3B},
		{"branch3x3dbl", m.Branch3x3DblStem},
		{"branch3x3dbla", m.Branch3x3DblA},
		{"branch3x3dblb", m.Branch3x3DblB},
		{"branch_pool", m.BranchPool},
	}
}

func (m *InceptionE[B]) SetTraining(training bool)      { setTrainingOf(m.children(), training) }
func (m *InceptionE[B]) Parameters() []*nn.Parameter[B] { return paramsOf(m.children()) }
func (m *InceptionE[B]) StateDict() map[string]*tensor.RawTensor {
	return stateOf(m.children())
}
func (m *InceptionE[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	return loadStateOf(m.children(), state)
}

// InceptionAux is the auxiliary classifier attached to the 17x17
// feature map. It contributes a weighted loss term during training and
// is ignored at inference.
type InceptionAux[B tensor.Backend] struct {
	Conv0 *BasicConv2D[B]
	Conv1 *BasicConv2D[B]
	FC    *nn.Linear[B]

	pool    *nn.AvgPool2D[B]
	flatten *nn.Flatten[B]
}

func NewInceptionAux[B tensor.Backend](in, numClasses int, rng *rand.Rand, b B) *InceptionAux[B] {
	return &InceptionAux[B]{
		Conv0:   convUnit[B](in, 128, 1, 1, 0, rng, b),
		Conv1:   convUnit[B](128, 768, 5, 1, 0, rng, b),
		FC:      nn.NewLinear[B](768, numClasses, rng, b),
		pool:    nn.NewAvgPool2D[B](5, 3, 0),
		flatten: nn.NewFlatten[B](),
	}
}

func (m *InceptionAux[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x = m.pool.Forward(x) // 17x17 -> 5x5
	x = m.Conv0.Forward(x)
	x = m.Conv1.Forward(x) // 5x5 -> 1x1
	return m.FC.Forward(m.flatten.Forward(x))
}

func (m *InceptionAux[B]) children() []namedChild[B] {
	return []namedChild[B]{
		{"conv0", m.Conv0},
		{"conv1", m.Conv1},
		{"fc", m.FC},
	}
}

func (m *InceptionAux[B]) SetTraining(training bool)      { setTrainingOf(m.children(), training) }
func (m *InceptionAux[B]) Parameters() []*nn.Parameter[B] { return paramsOf(m.children()) }
func (m *InceptionAux[B]) StateDict() map[string]*tensor.RawTensor {
	return stateOf(m.children())
}
func (m *InceptionAux[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	return loadStateOf(m.children(), state)
}

// InceptionV3 expects 299x299 inputs. During training the auxiliary
// classifier on the 17x17 grid produces a second set of logits.
type InceptionV3[B tensor.Backend] struct {
	Conv1a *BasicConv2D[B]
	Conv2a *BasicConv2D[B]
	Conv2b *BasicConv2D[B]
	Conv3b *BasicConv2D[B]
	Conv4a *BasicConv2D[B]

	Mixed5b *InceptionA[B]
	Mixed5c *InceptionA[B]
	Mixed5d *InceptionA[B]
	Mixed6a *InceptionB[B]
	Mixed6b *InceptionC[B]
	Mixed6c *InceptionC[B]
	Mixed6d *InceptionC[B]
	Mixed6e *InceptionC[B]
	Mixed7a *InceptionD[B]
	Mixed7b *InceptionE[B]
	Mixed7c *InceptionE[B]

	AuxLogits *InceptionAux[B]
	FC        *nn.Linear[B]

	maxpool *nn.MaxPool2D[B]
	avgpool *nn.AdaptiveAvgPool2D[B]
	dropout *nn.Dropout[B]
	flatten *nn.Flatten[B]
}

func NewInceptionV3[B tensor.Backend](numClasses int, rng *rand.Rand, b B) *InceptionV3[B] {
	return &InceptionV3[B]{
		Conv1a:    convUnit[B](3, 32, 3, 2, 0, rng, b),
		Conv2a:    convUnit[B](32, 32, 3, 1, 0, rng, b),
		Conv2b:    convUnit[B](32, 64, 3, 1, 1, rng, b),
		Conv3b:    convUnit[B](64, 80, 1, 1, 0, rng, b),
		Conv4a:    convUnit[B](80, 192, 3, 1, 0, rng, b),
		Mixed5b:   NewInceptionA[B](192, 32, rng, b),
		Mixed5c:   NewInceptionA[B](256, 64, rng, b),
		Mixed5d:   NewInceptionA[B](288, 64, rng, b),
		Mixed6a:   NewInceptionB[B](288, rng, b),
		Mixed6b:   NewInceptionC[B](768, 128, rng, b),
		Mixed6c:   NewInceptionC[B](768, 160, rng, b),
		Mixed6d:   NewInceptionC[B](768, 160, rng, b),
		Mixed6e:   NewInceptionC[B](768, 192, rng, b),
		Mixed7a:   NewInceptionD[B](768, rng, b),
		Mixed7b:   NewInceptionE[B](1280, rng, b),
		Mixed7c:   NewInceptionE[B](2048, rng, b),
		AuxLogits: NewInceptionAux[B](768, numClasses, rng, b),
		FC:        nn.NewLinear[B](2048, numClasses, rng, b),
		maxpool:   nn.NewMaxPool2D[B](3, 2, 0),
		avgpool:   nn.NewAdaptiveAvgPool2D[B](1, 1),
		dropout:   nn.NewDropout[B](0.5, rng),
		flatten:   nn.NewFlatten[B](),
	}
}

// features runs the network up to the 17x17 grid, where the auxiliary
// classifier attaches.
func (m *InceptionV3[B]) features(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x = m.Conv1a.Forward(x)
	x = m.Conv2a.Forward(x)
	x = m.Conv2b.Forward(x)
	x = m.maxpool.Forward(x)
	x = m.Conv3b.Forward(x)
	x = m.Conv4a.Forward(x)
	x = m.maxpool.Forward(x)
	x = m.Mixed5b.Forward(x)
	x = m.Mixed5c.Forward(x)
	x = m.Mixed5d.Forward(x)
	x = m.Mixed6a.Forward(x)
	x = m.Mixed6b.Forward(x)
	x = m.Mixed6c.Forward(x)
	x = m.Mixed6d.Forward(x)
	return m.Mixed6e.Forward(x)
}

// head runs from the 17x17 grid to the main logits.
func (m *InceptionV3[B]) head(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x = m.Mixed7a.Forward(x)
	x = m.Mixed7b.Forward(x)
	x = m.Mixed7c.Forward(x)
	x = m.flatten.Forward(m.avgpool.Forward(x))
	x = m.dropout.Forward(x)
	return m.FC.Forward(x)
}

func (m *InceptionV3[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return m.head(m.features(x))
}

// ForwardWithAux returns the main and auxiliary logits. The auxiliary
// output is only meaningful in training mode.
func (m *InceptionV3[B]) ForwardWithAux(x *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B]) {
	mid := m.features(x)
	aux := m.AuxLogits.Forward(mid)
	return m.head(mid), aux
}

func (m *InceptionV3[B]) SetTraining(training bool) {
	setTrainingOf(m.children(), training)
	m.dropout.SetTraining(training)
}

func (m *InceptionV3[B]) children() []namedChild[B] {
	return []namedChild[B]{
		{"conv2d_1a", m.Conv1a},
		{"conv2d_2a", m.Conv2a},
		{"conv2d_2b", m.Conv2b},
		{"conv2d_3b", m.Conv3b},
		{"conv2d_4a", m.Conv4a},
		{"mixed_5b", m.Mixed5b},
		{"mixed_5c", m.Mixed5c},
		{"mixed_5d", m.Mixed5d},
		{"mixed_6a", m.Mixed6a},
		{"mixed_6b", m.Mixed6b},
		{"mixed_6c", m.Mixed6c},
		{"mixed_6d", m.Mixed6d},
		{"mixed_6e", m.Mixed6e},
		{"mixed_7a", m.Mixed7a},
		{"mixed_7b", m.Mixed7b},
		{"mixed_7c", m.Mixed7c},
		{"aux_logits", m.AuxLogits},
		{"fc", m.FC},
	}
}

func (m *InceptionV3[B]) Parameters() []*nn.Parameter[B] { return paramsOf(m.children()) }
func (m *InceptionV3[B]) StateDict() map[string]*tensor.RawTensor {
	return stateOf(m.children())
}
func (m *InceptionV3[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	return loadStateOf(m.children(), state)
}
