package ops

import (
	"fmt"
	"math"

	"github.com/graft-ml/graft/internal/tensor"
)

// CrossEntropyOp records the fused softmax + negative log likelihood
// loss. Fusing the two avoids materializing log probabilities and gives
// the numerically clean backward pass (softmax - onehot) / batch.
type CrossEntropyOp struct {
	Logits  *tensor.RawTensor
	Targets *tensor.RawTensor
	// Probs is the softmax of the logits, saved for the backward pass.
	Probs *tensor.RawTensor
	Out   *tensor.RawTensor
}

// CrossEntropyForward computes the mean cross-entropy loss of logits
// [batch, classes] against int32 class indices [batch]. It returns the
// scalar loss and the softmax probabilities needed for backward.
func CrossEntropyForward(logits, targets *tensor.RawTensor) (*tensor.RawTensor, *tensor.RawTensor) {
	shape := logits.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("cross entropy: logits must be 2D, got %v", shape))
	}
	if logits.DType() != tensor.Float32 {
		panic(fmt.Sprintf("cross entropy: logits must be Float32, got %v", logits.DType()))
	}
	if targets.DType() != tensor.Int32 {
		panic(fmt.Sprintf("cross entropy: targets must be Int32, got %v", targets.DType()))
	}
	batch, classes := shape[0], shape[1]
	if targets.NumElements() != batch {
		panic(fmt.Sprintf("cross entropy: %d targets for batch %d", targets.NumElements(), batch))
	}

	probs := tensor.MustNewRaw(shape.Clone(), tensor.Float32, logits.Device())
	loss := tensor.MustNewRaw(tensor.Shape{1}, tensor.Float32, logits.Device())

	in := logits.AsFloat32()
	p := probs.AsFloat32()
	t := targets.AsInt32()

	var total float64
	for b := 0; b < batch; b++ {
		row := in[b*classes : (b+1)*classes]
		prow := p[b*classes : (b+1)*classes]

		maxVal := row[0]
		for _, v := range row[1:] {
			if v > maxVal {
				maxVal = v
			}
		}
		var sum float64
		for j, v := range row {
			e := math.Exp(float64(v - maxVal))
			prow[j] = float32(e)
			sum += e
		}
		inv := float32(1 / sum)
		for j := range prow {
			prow[j] *= inv
		}

		cls := int(t[b])
		if cls < 0 || cls >= classes {
			panic(fmt.Sprintf("cross entropy: target %d out of range [0, %d)", cls, classes))
		}
		// log softmax of the target class, in a stable form.
		total -= float64(row[cls]-maxVal) - math.Log(sum)
	}
	loss.AsFloat32()[0] = float32(total / float64(batch))
	return loss, probs
}

func (op *CrossEntropyOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	shape := op.Logits.Shape()
	batch, classes := shape[0], shape[1]

	dx := tensor.MustNewRaw(shape.Clone(), tensor.Float32, grad.Device())
	out := dx.AsFloat32()
	p := op.Probs.AsFloat32()
	t := op.Targets.AsInt32()
	scale := grad.AsFloat32()[0] / float32(batch)

	copy(out, p)
	for b := 0; b < batch; b++ {
		out[b*classes+int(t[b])] -= 1
	}
	for i := range out {
		out[i] *= scale
	}
	// Targets carry no gradient.
	return []*tensor.RawTensor{dx, nil}
}

func (op *CrossEntropyOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.Logits, op.Targets}
}

func (op *CrossEntropyOp) Output() *tensor.RawTensor { return op.Out }
