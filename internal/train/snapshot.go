package train

import "github.com/graft-ml/graft/internal/tensor"

// snapshot deep-copies a state dict. The copy is detached from the
// live model, so later training steps cannot mutate it.
func snapshot(state map[string]*tensor.RawTensor) map[string]*tensor.RawTensor {
	copied := make(map[string]*tensor.RawTensor, len(state))
	for key, t := range state {
		copied[key] = t.Copy()
	}
	return copied
}

// Result is the outcome of a training run: the per-epoch history and
// the weights of the epoch with the highest validation accuracy.
type Result struct {
	History      []EpochMetrics
	BestEpoch    int     // 0 means no epoch improved on the initial weights
	BestAccuracy float64 // validation accuracy of the best snapshot
	Best         map[string]*tensor.RawTensor
}
