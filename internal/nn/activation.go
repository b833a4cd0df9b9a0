package nn

import "github.com/graft-ml/graft/internal/tensor"

// ReLU applies max(x, 0) elementwise.
type ReLU[B tensor.Backend] struct{}

func NewReLU[B tensor.Backend]() *ReLU[B] { return &ReLU[B]{} }

func (r *ReLU[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	b := x.Backend()
	return tensor.New[float32, B](b.ReLU(x.Raw()), b)
}

func (r *ReLU[B]) Parameters() []*Parameter[B]                    { return nil }
func (r *ReLU[B]) StateDict() map[string]*tensor.RawTensor        { return map[string]*tensor.RawTensor{} }
func (r *ReLU[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }
