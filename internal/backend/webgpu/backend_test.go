package webgpu

import (
	"testing"

	"github.com/graft-ml/graft/internal/tensor"
)

// newTestBackend skips the test when no GPU adapter is present,
// so the suite passes on CI machines without wgpu_native.
func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	if !IsAvailable() {
		t.Skip("webgpu not available on this system")
	}
	b, err := New()
	if err != nil {
		t.Skipf("webgpu init failed: %v", err)
	}
	t.Cleanup(b.Release)
	return b
}

func TestAdd(t *testing.T) {
	b := newTestBackend(t)

	a := tensor.MustNewRaw(tensor.Shape{4}, tensor.Float32, tensor.CPU)
	copy(a.AsFloat32(), []float32{1, 2, 3, 4})
	c := tensor.MustNewRaw(tensor.Shape{4}, tensor.Float32, tensor.CPU)
	copy(c.AsFloat32(), []float32{10, 20, 30, 40})

	got := b.Add(a, c).AsFloat32()
	want := []float32{11, 22, 33, 44}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Add[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMatMul(t *testing.T) {
	b := newTestBackend(t)

	a := tensor.MustNewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
	copy(a.AsFloat32(), []float32{1, 2, 3, 4, 5, 6})
	c := tensor.MustNewRaw(tensor.Shape{3, 2}, tensor.Float32, tensor.CPU)
	copy(c.AsFloat32(), []float32{7, 8, 9, 10, 11, 12})

	out := b.MatMul(a, c)
	if !out.Shape().Equal(tensor.Shape{2, 2}) {
		t.Fatalf("MatMul shape = %v, want [2 2]", out.Shape())
	}
	got := out.AsFloat32()
	want := []float32{58, 64, 139, 154}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("MatMul[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestReLU(t *testing.T) {
	b := newTestBackend(t)

	x := tensor.MustNewRaw(tensor.Shape{4}, tensor.Float32, tensor.CPU)
	copy(x.AsFloat32(), []float32{-1, 0, 2, -3})

	got := b.ReLU(x).AsFloat32()
	want := []float32{0, 0, 2, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ReLU[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBroadcastFallsBackToCPU(t *testing.T) {
	b := newTestBackend(t)

	a := tensor.MustNewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
	copy(a.AsFloat32(), []float32{1, 2, 3, 4, 5, 6})
	bias := tensor.MustNewRaw(tensor.Shape{3}, tensor.Float32, tensor.CPU)
	copy(bias.AsFloat32(), []float32{10, 20, 30})

	got := b.Add(a, bias).AsFloat32()
	want := []float32{11, 22, 33, 14, 25, 36}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("broadcast Add[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
