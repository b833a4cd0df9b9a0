package nn

import (
	"math/rand"

	"github.com/graft-ml/graft/internal/tensor"
)

// Dropout zeroes a random fraction of its input during training and
// scales the survivors by 1/(1-p). In evaluation mode it is the
// identity.
type Dropout[B tensor.Backend] struct {
	p        float32
	rng      *rand.Rand
	training bool
}

func NewDropout[B tensor.Backend](p float32, rng *rand.Rand) *Dropout[B] {
	return &Dropout[B]{p: p, rng: rng, training: true}
}

func (d *Dropout[B]) SetTraining(training bool) { d.training = training }

func (d *Dropout[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !d.training || d.p == 0 {
		return x
	}
	b := x.Backend()
	mask := tensor.MustNewRaw(x.Shape().Clone(), tensor.Float32, x.Device())
	keep := 1 / (1 - d.p)
	data := mask.AsFloat32()
	for i := range data {
		if d.rng.Float32() >= d.p {
			data[i] = keep
		}
	}
	// Multiplying by the mask tensor routes the gradient correctly: the
	// backward pass of the product is the mask itself.
	return x.Mul(tensor.New[float32, B](mask, b))
}

func (d *Dropout[B]) Parameters() []*Parameter[B]             { return nil }
func (d *Dropout[B]) StateDict() map[string]*tensor.RawTensor { return map[string]*tensor.RawTensor{} }
func (d *Dropout[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }
