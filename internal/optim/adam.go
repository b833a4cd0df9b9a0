package optim

import (
	"fmt"
	"math"

	"github.com/graft-ml/graft/internal/tensor"
)

// Adam implements the Adam optimizer with bias-corrected first and
// second moment estimates.
type Adam struct {
	params []*tensor.RawTensor
	m      []*tensor.RawTensor
	v      []*tensor.RawTensor
	lr     float32
	beta1  float32
	beta2  float32
	eps    float32
	step   int
}

// NewAdam creates an Adam optimizer with the usual defaults
// (beta1 0.9, beta2 0.999, eps 1e-8).
func NewAdam(params []*tensor.RawTensor, lr float32) *Adam {
	a := &Adam{
		params: params,
		m:      make([]*tensor.RawTensor, len(params)),
		v:      make([]*tensor.RawTensor, len(params)),
		lr:     lr,
		beta1:  0.9,
		beta2:  0.999,
		eps:    1e-8,
	}
	for i, p := range params {
		a.m[i] = tensor.MustNewRaw(p.Shape().Clone(), tensor.Float32, p.Device())
		a.v[i] = tensor.MustNewRaw(p.Shape().Clone(), tensor.Float32, p.Device())
	}
	return a
}

func (a *Adam) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.step++
	c1 := 1 - float32(math.Pow(float64(a.beta1), float64(a.step)))
	c2 := 1 - float32(math.Pow(float64(a.beta2), float64(a.step)))

	for i, p := range a.params {
		grad, ok := grads[p]
		if !ok {
			continue
		}
		data := p.AsFloat32()
		g := grad.AsFloat32()
		m := a.m[i].AsFloat32()
		v := a.v[i].AsFloat32()
		for j := range data {
			m[j] = a.beta1*m[j] + (1-a.beta1)*g[j]
			v[j] = a.beta2*v[j] + (1-a.beta2)*g[j]*g[j]
			mHat := m[j] / c1
			vHat := v[j] / c2
			data[j] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
		}
	}
}

func (a *Adam) ZeroGrad() {}

func (a *Adam) GetLR() float32 { return a.lr }

func (a *Adam) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor, 2*len(a.params))
	for i := range a.params {
		state[fmt.Sprintf("m.%d", i)] = a.m[i]
		state[fmt.Sprintf("v.%d", i)] = a.v[i]
	}
	return state
}
