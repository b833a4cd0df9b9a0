package optim

import (
	"fmt"

	"github.com/graft-ml/graft/internal/tensor"
)

// SGD is stochastic gradient descent with optional momentum:
//
//	v = momentum*v + g
//	p = p - lr*v
type SGD struct {
	params     []*tensor.RawTensor
	velocities []*tensor.RawTensor
	lr         float32
	momentum   float32
}

// NewSGD creates an SGD optimizer over the given parameters. A zero
// momentum gives plain gradient descent.
func NewSGD(params []*tensor.RawTensor, lr, momentum float32) *SGD {
	s := &SGD{
		params:   params,
		lr:       lr,
		momentum: momentum,
	}
	if momentum != 0 {
		s.velocities = make([]*tensor.RawTensor, len(params))
		for i, p := range params {
			s.velocities[i] = tensor.MustNewRaw(p.Shape().Clone(), tensor.Float32, p.Device())
		}
	}
	return s
}

func (s *SGD) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for i, p := range s.params {
		grad, ok := grads[p]
		if !ok {
			continue
		}
		data := p.AsFloat32()
		g := grad.AsFloat32()
		if s.momentum == 0 {
			for j := range data {
				data[j] -= s.lr * g[j]
			}
			continue
		}
		v := s.velocities[i].AsFloat32()
		for j := range data {
			v[j] = s.momentum*v[j] + g[j]
			data[j] -= s.lr * v[j]
		}
	}
}

func (s *SGD) ZeroGrad() {}

func (s *SGD) GetLR() float32 { return s.lr }

func (s *SGD) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor, len(s.velocities))
	for i, v := range s.velocities {
		state[fmt.Sprintf("velocity.%d", i)] = v
	}
	return state
}
