package train

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// EpochMetrics holds the averaged loss and accuracy of one epoch's
// train and validation phases.
type EpochMetrics struct {
	Epoch         int
	TrainLoss     float64
	TrainAccuracy float64
	ValLoss       float64
	ValAccuracy   float64
	Duration      time.Duration
}

// Summary condenses a training run into a one-paragraph report.
func (r *Result) Summary() string {
	if len(r.History) == 0 {
		return "no epochs recorded"
	}
	valAcc := make([]float64, len(r.History))
	valLoss := make([]float64, len(r.History))
	for i, m := range r.History {
		valAcc[i] = m.ValAccuracy
		valLoss[i] = m.ValLoss
	}
	last := r.History[len(r.History)-1]
	return fmt.Sprintf(
		"%d epochs, best val acc %.4f (epoch %d), mean val acc %.4f, min val loss %.4f, final train loss %.4f",
		len(r.History), r.BestAccuracy, r.BestEpoch,
		stat.Mean(valAcc, nil), floats.Min(valLoss), last.TrainLoss,
	)
}
