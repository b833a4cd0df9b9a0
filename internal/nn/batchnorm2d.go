package nn

import (
	"github.com/graft-ml/graft/internal/tensor"
)

// BatchNorm2D normalizes each channel of an NCHW input. In training
// mode statistics come from the current batch and the running averages
// are updated; in evaluation mode the running averages are used.
type BatchNorm2D[B tensor.Backend] struct {
	Weight *Parameter[B] // scale, [channels]
	Bias   *Parameter[B] // shift, [channels]

	runningMean *tensor.RawTensor
	runningVar  *tensor.RawTensor

	numChans int
	eps      float32
	momentum float32
	training bool
}

// NewBatchNorm2D creates a batch norm layer with scale 1, shift 0,
// running mean 0 and running variance 1.
func NewBatchNorm2D[B tensor.Backend](channels int, b B) *BatchNorm2D[B] {
	rv := tensor.MustNewRaw(tensor.Shape{channels}, tensor.Float32, b.Device())
	for i := range rv.AsFloat32() {
		rv.AsFloat32()[i] = 1
	}
	return &BatchNorm2D[B]{
		Weight:      NewParameter("weight", tensor.Ones[float32](tensor.Shape{channels}, b)),
		Bias:        NewParameter("bias", tensor.Zeros[float32](tensor.Shape{channels}, b)),
		runningMean: tensor.MustNewRaw(tensor.Shape{channels}, tensor.Float32, b.Device()),
		runningVar:  rv,
		numChans:    channels,
		eps:         1e-5,
		momentum:    0.1,
		training:    true,
	}
}

func (bn *BatchNorm2D[B]) SetTraining(training bool) { bn.training = training }

func (bn *BatchNorm2D[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if bn.training {
		return bn.forwardTrain(x)
	}
	return bn.forwardEval(x)
}

// forwardTrain normalizes with batch statistics. The whole computation
// is expressed through backend operations so the gradient flows to the
// input, the scale and the shift.
func (bn *BatchNorm2D[B]) forwardTrain(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	mean := meanNHW(x)
	diff := x.Sub(mean)
	variance := meanNHW(diff.Mul(diff))

	bn.updateRunningStats(x, mean.Raw(), variance.Raw())

	invStd := rsqrt(variance.AddScalar(bn.eps))
	scale := bn.Weight.Tensor.Reshape(1, bn.numChans, 1, 1)
	shift := bn.Bias.Tensor.Reshape(1, bn.numChans, 1, 1)
	return diff.Mul(invStd).Mul(scale).Add(shift)
}

// forwardEval normalizes with the running statistics. No gradients are
// needed here, but using the same backend operations keeps the two
// paths symmetric.
func (bn *BatchNorm2D[B]) forwardEval(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	b := x.Backend()
	mean := tensor.New[float32, B](bn.runningMean, b).Reshape(1, bn.numChans, 1, 1)
	variance := tensor.New[float32, B](bn.runningVar, b).Reshape(1, bn.numChans, 1, 1)

	invStd := rsqrt(variance.AddScalar(bn.eps))
	scale := bn.Weight.Tensor.Reshape(1, bn.numChans, 1, 1)
	shift := bn.Bias.Tensor.Reshape(1, bn.numChans, 1, 1)
	return x.Sub(mean).Mul(invStd).Mul(scale).Add(shift)
}

// updateRunningStats folds the batch statistics into the running
// averages. This touches raw data directly and is never recorded.
func (bn *BatchNorm2D[B]) updateRunningStats(x *tensor.Tensor[float32, B], batchMean, batchVar *tensor.RawTensor) {
	shape := x.Shape()
	n := float32(shape[0] * shape[2] * shape[3])
	unbias := n / (n - 1)
	if n <= 1 {
		unbias = 1
	}

	rm := bn.runningMean.AsFloat32()
	rv := bn.runningVar.AsFloat32()
	bm := batchMean.AsFloat32()
	bv := batchVar.AsFloat32()
	for c := 0; c < bn.numChans; c++ {
		rm[c] = (1-bn.momentum)*rm[c] + bn.momentum*bm[c]
		rv[c] = (1-bn.momentum)*rv[c] + bn.momentum*bv[c]*unbias
	}
}

// meanNHW reduces [N, C, H, W] to [1, C, 1, 1] by averaging over the
// batch and spatial dimensions.
func meanNHW[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return x.MeanDim(0, true).MeanDim(2, true).MeanDim(3, true)
}

// rsqrt computes 1/sqrt(x) elementwise through backend operations.
func rsqrt[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	b := x.Backend()
	std := tensor.New[float32, B](b.Sqrt(x.Raw()), b)
	one := tensor.Ones[float32](tensor.Shape{1}, b)
	return one.Div(std)
}

func (bn *BatchNorm2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.Weight, bn.Bias}
}

func (bn *BatchNorm2D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight":       bn.Weight.Raw(),
		"bias":         bn.Bias.Raw(),
		"running_mean": bn.runningMean,
		"running_var":  bn.runningVar,
	}
}

func (bn *BatchNorm2D[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if err := loadInto(bn.Weight.Raw(), state["weight"], "weight"); err != nil {
		return err
	}
	if err := loadInto(bn.Bias.Raw(), state["bias"], "bias"); err != nil {
		return err
	}
	if err := loadInto(bn.runningMean, state["running_mean"], "running_mean"); err != nil {
		return err
	}
	return loadInto(bn.runningVar, state["running_var"], "running_var")
}
