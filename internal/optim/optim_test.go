package optim_test

import (
	"math"
	"testing"

	"github.com/graft-ml/graft/internal/optim"
	"github.com/graft-ml/graft/internal/tensor"
)

func param(values ...float32) *tensor.RawTensor {
	raw := tensor.MustNewRaw(tensor.Shape{len(values)}, tensor.Float32, tensor.CPU)
	copy(raw.AsFloat32(), values)
	return raw
}

func TestSGDStep(t *testing.T) {
	p := param(1, 2)
	sgd := optim.NewSGD([]*tensor.RawTensor{p}, 0.1, 0)

	grads := map[*tensor.RawTensor]*tensor.RawTensor{p: param(10, -10)}
	sgd.Step(grads)

	data := p.AsFloat32()
	if data[0] != 0 || data[1] != 3 {
		t.Errorf("after step = %v, want [0 3]", data)
	}
}

func TestSGDMomentum(t *testing.T) {
	p := param(0)
	sgd := optim.NewSGD([]*tensor.RawTensor{p}, 1, 0.9)

	grads := map[*tensor.RawTensor]*tensor.RawTensor{p: param(1)}

	// Step 1: v = 1, p = -1.
	sgd.Step(grads)
	if got := p.AsFloat32()[0]; got != -1 {
		t.Errorf("after step 1 = %v, want -1", got)
	}
	// Step 2: v = 0.9 + 1 = 1.9, p = -2.9.
	sgd.Step(grads)
	if got := p.AsFloat32()[0]; math.Abs(float64(got+2.9)) > 1e-6 {
		t.Errorf("after step 2 = %v, want -2.9", got)
	}
}

func TestSGDSkipsMissingGrads(t *testing.T) {
	frozen := param(5)
	trainable := param(5)
	sgd := optim.NewSGD([]*tensor.RawTensor{frozen, trainable}, 1, 0)

	// Only the trainable tensor gets a gradient; the other stays fixed.
	sgd.Step(map[*tensor.RawTensor]*tensor.RawTensor{trainable: param(1)})

	if frozen.AsFloat32()[0] != 5 {
		t.Errorf("param without gradient moved to %v", frozen.AsFloat32()[0])
	}
	if trainable.AsFloat32()[0] != 4 {
		t.Errorf("param with gradient = %v, want 4", trainable.AsFloat32()[0])
	}
}

func TestSGDGetLR(t *testing.T) {
	sgd := optim.NewSGD(nil, 0.01, 0.9)
	if sgd.GetLR() != 0.01 {
		t.Errorf("GetLR() = %v, want 0.01", sgd.GetLR())
	}
}

func TestAdamFirstStep(t *testing.T) {
	p := param(1)
	adam := optim.NewAdam([]*tensor.RawTensor{p}, 0.001)

	adam.Step(map[*tensor.RawTensor]*tensor.RawTensor{p: param(4)})

	// With bias correction the first step moves by about lr regardless
	// of gradient magnitude.
	got := p.AsFloat32()[0]
	if math.Abs(float64(got-(1-0.001))) > 1e-5 {
		t.Errorf("after first step = %v, want ~0.999", got)
	}
}

func TestAdamDescendsQuadratic(t *testing.T) {
	// Minimize f(x) = x^2 from x = 1; gradient is 2x.
	p := param(1)
	adam := optim.NewAdam([]*tensor.RawTensor{p}, 0.1)

	for i := 0; i < 50; i++ {
		g := param(2 * p.AsFloat32()[0])
		adam.Step(map[*tensor.RawTensor]*tensor.RawTensor{p: g})
	}
	if got := math.Abs(float64(p.AsFloat32()[0])); got > 0.1 {
		t.Errorf("x after 50 steps = %v, want near 0", got)
	}
}

func TestStateDicts(t *testing.T) {
	p := param(1, 2)
	sgd := optim.NewSGD([]*tensor.RawTensor{p}, 0.1, 0.9)
	if _, ok := sgd.StateDict()["velocity.0"]; !ok {
		t.Error("SGD state dict missing velocity.0")
	}

	adam := optim.NewAdam([]*tensor.RawTensor{p}, 0.1)
	state := adam.StateDict()
	if _, ok := state["m.0"]; !ok {
		t.Error("Adam state dict missing m.0")
	}
	if _, ok := state["v.0"]; !ok {
		t.Error("Adam state dict missing v.0")
	}
}
