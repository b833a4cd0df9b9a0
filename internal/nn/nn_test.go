package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/graft-ml/graft/internal/backend/cpu"
	"github.com/graft-ml/graft/internal/tensor"
)

func setValues(t *testing.T, p *Parameter[*cpu.CPUBackend], values []float32) {
	t.Helper()
	data := p.Raw().AsFloat32()
	if len(data) != len(values) {
		t.Fatalf("parameter %s has %d elements, want %d", p.Name, len(data), len(values))
	}
	copy(data, values)
}

func input2D(t *testing.T, b *cpu.CPUBackend, shape tensor.Shape, values []float32) *tensor.Tensor[float32, *cpu.CPUBackend] {
	t.Helper()
	x, err := tensor.FromSlice(values, shape, b)
	if err != nil {
		t.Fatalf("FromSlice: %v", err)
	}
	return x
}

func TestLinearForward(t *testing.T) {
	b := cpu.New()
	rng := rand.New(rand.NewSource(1))
	layer := NewLinear(2, 3, rng, b)

	// Weight is [in, out].
	setValues(t, layer.Weight, []float32{1, 2, 3, 4, 5, 6})
	setValues(t, layer.Bias, []float32{10, 20, 30})

	x := input2D(t, b, tensor.Shape{1, 2}, []float32{1, 1})
	y := layer.Forward(x)

	if !y.Shape().Equal(tensor.Shape{1, 3}) {
		t.Fatalf("Forward shape = %v, want [1 3]", y.Shape())
	}
	want := []float32{15, 27, 39}
	for i, w := range want {
		if y.Data()[i] != w {
			t.Errorf("Forward[%d] = %v, want %v", i, y.Data()[i], w)
		}
	}
}

func TestLinearStateDict(t *testing.T) {
	b := cpu.New()
	rng := rand.New(rand.NewSource(1))
	layer := NewLinear(4, 2, rng, b)

	state := layer.StateDict()
	if _, ok := state["weight"]; !ok {
		t.Error("state dict missing weight")
	}
	if _, ok := state["bias"]; !ok {
		t.Error("state dict missing bias")
	}

	// Loading preserves pointer identity so optimizer references stay valid.
	before := layer.Weight.Raw()
	src := before.Copy()
	src.AsFloat32()[0] = 42
	if err := layer.LoadStateDict(map[string]*tensor.RawTensor{"weight": src, "bias": state["bias"].Copy()}); err != nil {
		t.Fatalf("LoadStateDict: %v", err)
	}
	if layer.Weight.Raw() != before {
		t.Error("LoadStateDict replaced the weight tensor instead of copying in place")
	}
	if layer.Weight.Raw().AsFloat32()[0] != 42 {
		t.Error("LoadStateDict did not copy values")
	}
}

func TestLoadIntoErrors(t *testing.T) {
	dst := tensor.MustNewRaw(tensor.Shape{2}, tensor.Float32, tensor.CPU)

	if err := loadInto(dst, nil, "w"); err == nil {
		t.Error("loadInto with nil source should fail")
	}
	wrong := tensor.MustNewRaw(tensor.Shape{3}, tensor.Float32, tensor.CPU)
	if err := loadInto(dst, wrong, "w"); err == nil {
		t.Error("loadInto with mismatched shape should fail")
	}
}

func TestParameterFreeze(t *testing.T) {
	b := cpu.New()
	p := NewParameter("weight", tensor.Ones[float32](tensor.Shape{2}, b))
	if !p.Trainable() {
		t.Error("fresh parameter should be trainable")
	}
	p.Freeze()
	if p.Trainable() {
		t.Error("frozen parameter should not be trainable")
	}
}

func TestConv2DBias(t *testing.T) {
	b := cpu.New()
	rng := rand.New(rand.NewSource(1))
	conv := NewConv2DSquare(1, 2, 1, 1, 0, true, rng, b)

	setValues(t, conv.Weight, []float32{1, 2})
	setValues(t, conv.Bias, []float32{10, 100})

	x := input2D(t, b, tensor.Shape{1, 1, 2, 2}, []float32{1, 2, 3, 4})
	y := conv.Forward(x)

	if !y.Shape().Equal(tensor.Shape{1, 2, 2, 2}) {
		t.Fatalf("Conv2D shape = %v, want [1 2 2 2]", y.Shape())
	}
	want := []float32{11, 12, 13, 14, 102, 104, 106, 108}
	for i, w := range want {
		if y.Data()[i] != w {
			t.Errorf("Conv2D[%d] = %v, want %v", i, y.Data()[i], w)
		}
	}
}

func TestBatchNorm2DTraining(t *testing.T) {
	b := cpu.New()
	bn := NewBatchNorm2D(1, b)

	x := input2D(t, b, tensor.Shape{2, 1, 1, 2}, []float32{1, 2, 3, 4})
	y := bn.Forward(x)

	// Batch mean 2.5, biased variance 1.25.
	want := []float32{-1.3416, -0.4472, 0.4472, 1.3416}
	for i, w := range want {
		if math.Abs(float64(y.Data()[i]-w)) > 1e-3 {
			t.Errorf("normalized[%d] = %v, want %v", i, y.Data()[i], w)
		}
	}

	// Running statistics use momentum 0.1 and unbiased variance.
	state := bn.StateDict()
	gotMean := state["running_mean"].AsFloat32()[0]
	if math.Abs(float64(gotMean-0.25)) > 1e-5 {
		t.Errorf("running_mean = %v, want 0.25", gotMean)
	}
	gotVar := state["running_var"].AsFloat32()[0]
	wantVar := float32(0.9*1 + 0.1*(1.25*4.0/3.0))
	if math.Abs(float64(gotVar-wantVar)) > 1e-4 {
		t.Errorf("running_var = %v, want %v", gotVar, wantVar)
	}
}

func TestBatchNorm2DEval(t *testing.T) {
	b := cpu.New()
	bn := NewBatchNorm2D(1, b)
	bn.SetTraining(false)

	// With running mean 0 and var 1 eval mode is near identity.
	x := input2D(t, b, tensor.Shape{1, 1, 1, 2}, []float32{3, -3})
	y := bn.Forward(x)
	for i, w := range []float32{3, -3} {
		if math.Abs(float64(y.Data()[i]-w)) > 1e-3 {
			t.Errorf("eval[%d] = %v, want %v", i, y.Data()[i], w)
		}
	}
}

func TestDropoutEvalIdentity(t *testing.T) {
	b := cpu.New()
	d := NewDropout[*cpu.CPUBackend](0.5, rand.New(rand.NewSource(1)))
	d.SetTraining(false)

	x := input2D(t, b, tensor.Shape{4}, []float32{1, 2, 3, 4})
	y := d.Forward(x)
	for i := range x.Data() {
		if y.Data()[i] != x.Data()[i] {
			t.Errorf("eval dropout changed value at %d", i)
		}
	}
}

func TestDropoutTrainScaling(t *testing.T) {
	b := cpu.New()
	d := NewDropout[*cpu.CPUBackend](0.5, rand.New(rand.NewSource(1)))

	x := input2D(t, b, tensor.Shape{1000}, make([]float32, 1000))
	for i := range x.Data() {
		x.Data()[i] = 1
	}
	y := d.Forward(x)

	zeros, doubled := 0, 0
	for _, v := range y.Data() {
		switch v {
		case 0:
			zeros++
		case 2:
			doubled++
		default:
			t.Fatalf("dropout output %v, want 0 or 2", v)
		}
	}
	if zeros < 350 || zeros > 650 {
		t.Errorf("dropped %d of 1000, want roughly half", zeros)
	}
	if zeros+doubled != 1000 {
		t.Errorf("zeros+doubled = %d, want 1000", zeros+doubled)
	}
}

func TestAdaptiveAvgPool2D(t *testing.T) {
	b := cpu.New()

	// Identity when input already matches.
	same := NewAdaptiveAvgPool2D[*cpu.CPUBackend](2, 2)
	x := input2D(t, b, tensor.Shape{1, 1, 2, 2}, []float32{1, 2, 3, 4})
	if got := same.Forward(x); !got.Shape().Equal(tensor.Shape{1, 1, 2, 2}) {
		t.Errorf("identity pool shape = %v", got.Shape())
	}

	// 4x4 -> 2x2 averages each quadrant.
	pool := NewAdaptiveAvgPool2D[*cpu.CPUBackend](2, 2)
	y := input2D(t, b, tensor.Shape{1, 1, 4, 4}, []float32{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	})
	out := pool.Forward(y)
	want := []float32{1, 2, 3, 4}
	for i, w := range want {
		if out.Data()[i] != w {
			t.Errorf("adaptive pool[%d] = %v, want %v", i, out.Data()[i], w)
		}
	}
}

func TestSequentialStateDict(t *testing.T) {
	b := cpu.New()
	rng := rand.New(rand.NewSource(1))
	seq := NewSequential[*cpu.CPUBackend](
		NewLinear(2, 2, rng, b),
		NewReLU[*cpu.CPUBackend](),
		NewLinear(2, 2, rng, b),
	)

	state := seq.StateDict()
	for _, key := range []string{"0.weight", "0.bias", "2.weight", "2.bias"} {
		if _, ok := state[key]; !ok {
			t.Errorf("state dict missing %q", key)
		}
	}
	if len(state) != 4 {
		t.Errorf("state dict has %d entries, want 4", len(state))
	}

	// Round trip.
	if err := seq.LoadStateDict(state); err != nil {
		t.Fatalf("LoadStateDict: %v", err)
	}

	// Bad index errors.
	bad := map[string]*tensor.RawTensor{"x.weight": state["0.weight"]}
	if err := seq.LoadStateDict(bad); err == nil {
		t.Error("LoadStateDict with bad key should fail")
	}
}

func TestSequentialReplace(t *testing.T) {
	b := cpu.New()
	rng := rand.New(rand.NewSource(1))
	seq := NewSequential[*cpu.CPUBackend](
		NewLinear(2, 4, rng, b),
		NewLinear(4, 3, rng, b),
	)

	seq.Replace(1, NewLinear(4, 7, rng, b))
	head, ok := seq.Get(1).(*Linear[*cpu.CPUBackend])
	if !ok {
		t.Fatal("Replace did not install a Linear")
	}
	if head.OutFeatures() != 7 {
		t.Errorf("replaced head out features = %d, want 7", head.OutFeatures())
	}
}

func TestCrossEntropyFallback(t *testing.T) {
	// The plain CPU backend has no fused loss, so the helper computes it
	// from primitive operations.
	b := cpu.New()
	logits, _ := tensor.FromSlice([]float32{0, 0, 0, 0}, tensor.Shape{1, 4}, b)
	targets, _ := tensor.FromSlice([]int32{1}, tensor.Shape{1}, b)

	loss := CrossEntropy(logits, targets)
	got := float64(loss.Item())
	if math.Abs(got-math.Log(4)) > 1e-5 {
		t.Errorf("loss = %v, want ln(4)", got)
	}
}

func TestAccuracy(t *testing.T) {
	b := cpu.New()
	logits, _ := tensor.FromSlice([]float32{
		5, 1, 0,
		0, 1, 5,
	}, tensor.Shape{2, 3}, b)
	targets, _ := tensor.FromSlice([]int32{0, 0}, tensor.Shape{2}, b)

	if got := Accuracy(logits, targets); got != 0.5 {
		t.Errorf("Accuracy = %v, want 0.5", got)
	}
}

func TestFlatten(t *testing.T) {
	b := cpu.New()
	f := NewFlatten[*cpu.CPUBackend]()
	x := input2D(t, b, tensor.Shape{2, 3, 2, 2}, make([]float32, 24))
	y := f.Forward(x)
	if !y.Shape().Equal(tensor.Shape{2, 12}) {
		t.Errorf("Flatten shape = %v, want [2 12]", y.Shape())
	}
}
