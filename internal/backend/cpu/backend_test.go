package cpu

import (
	"math"
	"testing"

	"github.com/graft-ml/graft/internal/tensor"
)

func fromValues(t *testing.T, shape tensor.Shape, values []float32) *tensor.RawTensor {
	t.Helper()
	raw := tensor.MustNewRaw(shape, tensor.Float32, tensor.CPU)
	copy(raw.AsFloat32(), values)
	return raw
}

func assertValues(t *testing.T, got *tensor.RawTensor, want []float32, name string) {
	t.Helper()
	data := got.AsFloat32()
	if len(data) != len(want) {
		t.Fatalf("%s: got %d elements, want %d", name, len(data), len(want))
	}
	for i := range want {
		if math.Abs(float64(data[i]-want[i])) > 1e-5 {
			t.Errorf("%s[%d] = %v, want %v", name, i, data[i], want[i])
		}
	}
}

func TestAddSameShape(t *testing.T) {
	b := New()
	a := fromValues(t, tensor.Shape{2, 2}, []float32{1, 2, 3, 4})
	c := fromValues(t, tensor.Shape{2, 2}, []float32{10, 20, 30, 40})
	assertValues(t, b.Add(a, c), []float32{11, 22, 33, 44}, "Add")
}

func TestAddBroadcastBias(t *testing.T) {
	b := New()
	x := fromValues(t, tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	bias := fromValues(t, tensor.Shape{3}, []float32{10, 20, 30})
	out := b.Add(x, bias)
	if !out.Shape().Equal(tensor.Shape{2, 3}) {
		t.Fatalf("broadcast shape = %v, want [2 3]", out.Shape())
	}
	assertValues(t, out, []float32{11, 22, 33, 14, 25, 36}, "Add broadcast")
}

func TestAddBroadcastChannel(t *testing.T) {
	b := New()
	// [1, 2, 1, 1] scale against [1, 2, 2, 2] feature map.
	x := fromValues(t, tensor.Shape{1, 2, 2, 2}, []float32{1, 1, 1, 1, 2, 2, 2, 2})
	scale := fromValues(t, tensor.Shape{1, 2, 1, 1}, []float32{10, 100})
	out := b.Mul(x, scale)
	assertValues(t, out, []float32{10, 10, 10, 10, 200, 200, 200, 200}, "Mul broadcast")
}

func TestSubDivMul(t *testing.T) {
	b := New()
	a := fromValues(t, tensor.Shape{3}, []float32{10, 20, 30})
	c := fromValues(t, tensor.Shape{3}, []float32{2, 4, 5})
	assertValues(t, b.Sub(a, c), []float32{8, 16, 25}, "Sub")
	assertValues(t, b.Mul(a, c), []float32{20, 80, 150}, "Mul")
	assertValues(t, b.Div(a, c), []float32{5, 5, 6}, "Div")
}

func TestMatMul(t *testing.T) {
	b := New()
	a := fromValues(t, tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	c := fromValues(t, tensor.Shape{3, 2}, []float32{7, 8, 9, 10, 11, 12})
	out := b.MatMul(a, c)
	if !out.Shape().Equal(tensor.Shape{2, 2}) {
		t.Fatalf("MatMul shape = %v, want [2 2]", out.Shape())
	}
	assertValues(t, out, []float32{58, 64, 139, 154}, "MatMul")
}

func TestConv2DIdentityKernel(t *testing.T) {
	b := New()
	// 1x1 kernel with weight 2 doubles the feature map.
	input := fromValues(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 2, 3, 4})
	kernel := fromValues(t, tensor.Shape{1, 1, 1, 1}, []float32{2})
	out := b.Conv2D(input, kernel, 1, 0, 0)
	if !out.Shape().Equal(tensor.Shape{1, 1, 2, 2}) {
		t.Fatalf("Conv2D shape = %v, want [1 1 2 2]", out.Shape())
	}
	assertValues(t, out, []float32{2, 4, 6, 8}, "Conv2D 1x1")
}

func TestConv2DSum(t *testing.T) {
	b := New()
	// 3x3 all-ones kernel over a 3x3 all-ones image with padding 1.
	input := fromValues(t, tensor.Shape{1, 1, 3, 3}, []float32{1, 1, 1, 1, 1, 1, 1, 1, 1})
	kernel := fromValues(t, tensor.Shape{1, 1, 3, 3}, []float32{1, 1, 1, 1, 1, 1, 1, 1, 1})
	out := b.Conv2D(input, kernel, 1, 1, 1)
	// Corner sees 4 ones, edge 6, center 9.
	assertValues(t, out, []float32{4, 6, 4, 6, 9, 6, 4, 6, 4}, "Conv2D padded")
}

func TestConv2DAsymmetricPadding(t *testing.T) {
	b := New()
	// 1x3 kernel with padW=1 keeps width; height unchanged with padH=0.
	input := fromValues(t, tensor.Shape{1, 1, 2, 3}, []float32{1, 2, 3, 4, 5, 6})
	kernel := fromValues(t, tensor.Shape{1, 1, 1, 3}, []float32{1, 1, 1})
	out := b.Conv2D(input, kernel, 1, 0, 1)
	if !out.Shape().Equal(tensor.Shape{1, 1, 2, 3}) {
		t.Fatalf("Conv2D asym shape = %v, want [1 1 2 3]", out.Shape())
	}
	assertValues(t, out, []float32{3, 6, 5, 9, 15, 11}, "Conv2D asym")
}

func TestConv2DStride(t *testing.T) {
	b := New()
	input := fromValues(t, tensor.Shape{1, 1, 4, 4}, []float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	})
	kernel := fromValues(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 0, 0, 1})
	out := b.Conv2D(input, kernel, 2, 0, 0)
	if !out.Shape().Equal(tensor.Shape{1, 1, 2, 2}) {
		t.Fatalf("Conv2D stride shape = %v, want [1 1 2 2]", out.Shape())
	}
	assertValues(t, out, []float32{7, 11, 23, 27}, "Conv2D stride")
}

func TestMaxPool2D(t *testing.T) {
	b := New()
	input := fromValues(t, tensor.Shape{1, 1, 4, 4}, []float32{
		1, 3, 2, 4,
		5, 7, 6, 8,
		9, 11, 10, 12,
		13, 15, 14, 16,
	})
	out := b.MaxPool2D(input, 2, 2, 0)
	assertValues(t, out, []float32{7, 8, 15, 16}, "MaxPool2D")
}

func TestAvgPool2D(t *testing.T) {
	b := New()
	input := fromValues(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 3, 5, 7})
	out := b.AvgPool2D(input, 2, 2, 0)
	assertValues(t, out, []float32{4}, "AvgPool2D")
}

func TestMaxPool2DBackward(t *testing.T) {
	b := New()
	input := fromValues(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 9, 3, 4})
	grad := fromValues(t, tensor.Shape{1, 1, 1, 1}, []float32{5})
	out := b.MaxPool2DBackward(input, grad, 2, 2, 0)
	// The whole gradient routes to the max position.
	assertValues(t, out, []float32{0, 5, 0, 0}, "MaxPool2DBackward")
}

func TestAvgPool2DBackward(t *testing.T) {
	b := New()
	input := fromValues(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 2, 3, 4})
	grad := fromValues(t, tensor.Shape{1, 1, 1, 1}, []float32{8})
	out := b.AvgPool2DBackward(input, grad, 2, 2, 0)
	assertValues(t, out, []float32{2, 2, 2, 2}, "AvgPool2DBackward")
}

func TestConv2DInputBackward(t *testing.T) {
	b := New()
	// With a 1x1 kernel of weight w, dL/dInput = w * grad.
	input := fromValues(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 2, 3, 4})
	kernel := fromValues(t, tensor.Shape{1, 1, 1, 1}, []float32{3})
	grad := fromValues(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 1, 2, 2})
	out := b.Conv2DInputBackward(input, kernel, grad, 1, 0, 0)
	assertValues(t, out, []float32{3, 3, 6, 6}, "Conv2DInputBackward")
}

func TestConv2DKernelBackward(t *testing.T) {
	b := New()
	// With a 1x1 kernel, dL/dW = sum(input * grad).
	input := fromValues(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 2, 3, 4})
	kernel := fromValues(t, tensor.Shape{1, 1, 1, 1}, []float32{3})
	grad := fromValues(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 1, 1, 2})
	out := b.Conv2DKernelBackward(input, kernel, grad, 1, 0, 0)
	assertValues(t, out, []float32{14}, "Conv2DKernelBackward")
}

func TestReshapeTranspose(t *testing.T) {
	b := New()
	x := fromValues(t, tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})

	flat := b.Reshape(x, tensor.Shape{6})
	if !flat.Shape().Equal(tensor.Shape{6}) {
		t.Errorf("Reshape shape = %v, want [6]", flat.Shape())
	}

	tr := b.Transpose(x)
	if !tr.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("Transpose shape = %v, want [3 2]", tr.Shape())
	}
	assertValues(t, tr, []float32{1, 4, 2, 5, 3, 6}, "Transpose")
}

func TestTransposeAxes(t *testing.T) {
	b := New()
	x := fromValues(t, tensor.Shape{2, 1, 3}, []float32{1, 2, 3, 4, 5, 6})
	out := b.Transpose(x, 2, 1, 0)
	if !out.Shape().Equal(tensor.Shape{3, 1, 2}) {
		t.Fatalf("Transpose axes shape = %v, want [3 1 2]", out.Shape())
	}
	assertValues(t, out, []float32{1, 4, 2, 5, 3, 6}, "Transpose axes")
}

func TestScalarOps(t *testing.T) {
	b := New()
	x := fromValues(t, tensor.Shape{3}, []float32{1, 2, 3})
	assertValues(t, b.MulScalar(x, 2), []float32{2, 4, 6}, "MulScalar")
	assertValues(t, b.AddScalar(x, -1), []float32{0, 1, 2}, "AddScalar")
}

func TestUnaryOps(t *testing.T) {
	b := New()
	x := fromValues(t, tensor.Shape{2}, []float32{0, 1})
	assertValues(t, b.Exp(x), []float32{1, float32(math.E)}, "Exp")

	y := fromValues(t, tensor.Shape{2}, []float32{1, float32(math.E)})
	assertValues(t, b.Log(y), []float32{0, 1}, "Log")

	z := fromValues(t, tensor.Shape{2}, []float32{4, 9})
	assertValues(t, b.Sqrt(z), []float32{2, 3}, "Sqrt")

	r := fromValues(t, tensor.Shape{4}, []float32{-2, -0.5, 0, 3})
	assertValues(t, b.ReLU(r), []float32{0, 0, 0, 3}, "ReLU")
}

func TestSoftmax(t *testing.T) {
	b := New()
	x := fromValues(t, tensor.Shape{2, 3}, []float32{1, 2, 3, 1, 1, 1})
	out := b.Softmax(x, 1)
	data := out.AsFloat32()

	for row := 0; row < 2; row++ {
		sum := float32(0)
		for col := 0; col < 3; col++ {
			sum += data[row*3+col]
		}
		if math.Abs(float64(sum-1)) > 1e-5 {
			t.Errorf("softmax row %d sums to %v, want 1", row, sum)
		}
	}
	// Uniform logits give uniform probabilities.
	if math.Abs(float64(data[3]-1.0/3.0)) > 1e-5 {
		t.Errorf("uniform softmax = %v, want 1/3", data[3])
	}
	// Larger logit gets larger probability.
	if data[0] >= data[1] || data[1] >= data[2] {
		t.Errorf("softmax not monotone: %v", data[:3])
	}
}

func TestReductions(t *testing.T) {
	b := New()
	x := fromValues(t, tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})

	total := b.Sum(x)
	if !total.Shape().Equal(tensor.Shape{1}) {
		t.Errorf("Sum shape = %v, want [1]", total.Shape())
	}
	assertValues(t, total, []float32{21}, "Sum")

	rows := b.SumDim(x, 0, false)
	if !rows.Shape().Equal(tensor.Shape{3}) {
		t.Errorf("SumDim(0) shape = %v, want [3]", rows.Shape())
	}
	assertValues(t, rows, []float32{5, 7, 9}, "SumDim(0)")

	cols := b.SumDim(x, 1, true)
	if !cols.Shape().Equal(tensor.Shape{2, 1}) {
		t.Errorf("SumDim(1, keep) shape = %v, want [2 1]", cols.Shape())
	}
	assertValues(t, cols, []float32{6, 15}, "SumDim(1)")

	mean := b.MeanDim(x, 1, false)
	assertValues(t, mean, []float32{2, 5}, "MeanDim(1)")
}

func TestArgmax(t *testing.T) {
	b := New()
	x := fromValues(t, tensor.Shape{2, 3}, []float32{1, 5, 3, 9, 2, 4})
	out := b.Argmax(x, 1)
	if out.DType() != tensor.Int32 {
		t.Fatalf("Argmax dtype = %v, want Int32", out.DType())
	}
	idx := out.AsInt32()
	if idx[0] != 1 || idx[1] != 0 {
		t.Errorf("Argmax = %v, want [1 0]", idx)
	}
}

func TestCat(t *testing.T) {
	b := New()
	a := fromValues(t, tensor.Shape{1, 2, 1, 1}, []float32{1, 2})
	c := fromValues(t, tensor.Shape{1, 3, 1, 1}, []float32{3, 4, 5})
	out := b.Cat([]*tensor.RawTensor{a, c}, 1)
	if !out.Shape().Equal(tensor.Shape{1, 5, 1, 1}) {
		t.Fatalf("Cat shape = %v, want [1 5 1 1]", out.Shape())
	}
	assertValues(t, out, []float32{1, 2, 3, 4, 5}, "Cat")
}

func TestCatBatchDim(t *testing.T) {
	b := New()
	a := fromValues(t, tensor.Shape{1, 2}, []float32{1, 2})
	c := fromValues(t, tensor.Shape{2, 2}, []float32{3, 4, 5, 6})
	out := b.Cat([]*tensor.RawTensor{a, c}, 0)
	if !out.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("Cat dim 0 shape = %v, want [3 2]", out.Shape())
	}
	assertValues(t, out, []float32{1, 2, 3, 4, 5, 6}, "Cat dim 0")
}
