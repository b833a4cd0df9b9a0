package nn

import "github.com/graft-ml/graft/internal/tensor"

// Flatten reshapes [N, ...] into [N, rest].
type Flatten[B tensor.Backend] struct{}

func NewFlatten[B tensor.Backend]() *Flatten[B] { return &Flatten[B]{} }

func (f *Flatten[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	n := x.Shape()[0]
	return x.Reshape(n, x.NumElements()/n)
}

func (f *Flatten[B]) Parameters() []*Parameter[B]                    { return nil }
func (f *Flatten[B]) StateDict() map[string]*tensor.RawTensor        { return map[string]*tensor.RawTensor{} }
func (f *Flatten[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }
