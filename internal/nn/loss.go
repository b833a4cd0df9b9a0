package nn

import (
	"fmt"

	"github.com/graft-ml/graft/internal/autodiff/ops"
	"github.com/graft-ml/graft/internal/tensor"
)

// CrossEntropyBackend is implemented by backends that provide the fused
// softmax cross-entropy, which records a single operation with the
// numerically stable backward pass.
type CrossEntropyBackend interface {
	CrossEntropy(logits, targets *tensor.RawTensor) *tensor.RawTensor
}

// CrossEntropy computes the mean softmax cross-entropy of logits
// [batch, classes] against int32 class indices [batch]. Backends with
// the fused operation are used directly; otherwise the loss is computed
// without gradient support.
func CrossEntropy[B tensor.Backend](logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	b := logits.Backend()
	if ce, ok := any(b).(CrossEntropyBackend); ok {
		return tensor.New[float32, B](ce.CrossEntropy(logits.Raw(), targets.Raw()), b)
	}
	loss, _ := ops.CrossEntropyForward(logits.Raw(), targets.Raw())
	return tensor.New[float32, B](loss, b)
}

// Accuracy returns the fraction of rows whose argmax matches the
// target class.
func Accuracy[B tensor.Backend](logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) float32 {
	batch := logits.Shape()[0]
	if targets.NumElements() != batch {
		panic(fmt.Sprintf("accuracy: %d targets for batch %d", targets.NumElements(), batch))
	}
	pred := logits.Argmax(1).Data()
	want := targets.Data()
	correct := 0
	for i := range pred {
		if pred[i] == want[i] {
			correct++
		}
	}
	return float32(correct) / float32(batch)
}
