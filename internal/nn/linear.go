package nn

import (
	"math/rand"

	"github.com/graft-ml/graft/internal/tensor"
)

// Linear is a fully connected layer computing y = x@W + b for inputs
// of shape [batch, inFeatures].
type Linear[B tensor.Backend] struct {
	Weight *Parameter[B] // [inFeatures, outFeatures]
	Bias   *Parameter[B] // [outFeatures]

	inFeatures  int
	outFeatures int
}

// NewLinear creates a linear layer with Xavier-initialized weights and
// zero bias.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, rng *rand.Rand, b B) *Linear[B] {
	w := XavierUniform[B](tensor.Shape{inFeatures, outFeatures}, inFeatures, outFeatures, rng, b)
	bias := tensor.Zeros[float32](tensor.Shape{outFeatures}, b)
	return &Linear[B]{
		Weight:      NewParameter("weight", w),
		Bias:        NewParameter("bias", bias),
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
	}
}

// InFeatures returns the expected input width.
func (l *Linear[B]) InFeatures() int { return l.inFeatures }

// OutFeatures returns the output width.
func (l *Linear[B]) OutFeatures() int { return l.outFeatures }

func (l *Linear[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return x.MatMul(l.Weight.Tensor).Add(l.Bias.Tensor)
}

func (l *Linear[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.Weight, l.Bias}
}

func (l *Linear[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight": l.Weight.Raw(),
		"bias":   l.Bias.Raw(),
	}
}

func (l *Linear[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if err := loadInto(l.Weight.Raw(), state["weight"], "weight"); err != nil {
		return err
	}
	return loadInto(l.Bias.Raw(), state["bias"], "bias")
}
