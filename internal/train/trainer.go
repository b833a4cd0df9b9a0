// Package train drives fine-tuning: alternating train and validation
// phases over a fixed number of epochs, tracking the best validation
// accuracy and restoring its weights when the run completes.
package train

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/graft-ml/graft/internal/autodiff"
	"github.com/graft-ml/graft/internal/data"
	"github.com/graft-ml/graft/internal/nn"
	"github.com/graft-ml/graft/internal/optim"
	"github.com/graft-ml/graft/internal/tensor"
)

// auxLossWeight scales the auxiliary classifier's loss before it is
// added to the primary loss during training.
const auxLossWeight = 0.4

// Config controls a training run.
type Config struct {
	// Epochs is the fixed number of train+validation rounds.
	Epochs int

	// Out receives per-epoch progress lines. Defaults to stdout.
	Out io.Writer
}

// gradientRecorder is satisfied by backends that record operations for
// reverse-mode differentiation.
type gradientRecorder interface {
	Tape() *autodiff.GradientTape
}

// Model is what the driver needs from a classifier. vision.AdaptedModel
// satisfies it; ForwardWithAux must return a nil second result for
// models without an auxiliary head.
type Model[B tensor.Backend] interface {
	Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
	ForwardWithAux(x *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], *tensor.Tensor[float32, B])
	SetTraining(training bool)
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(state map[string]*tensor.RawTensor) error
}

// Run fine-tunes model for cfg.Epochs rounds of training followed by
// validation. After the final epoch the model carries the weights of
// the epoch with the highest validation accuracy; ties keep the
// earliest epoch. Any data or checkpoint failure aborts the run.
func Run[B tensor.Backend](backend B, model Model[B], trainLoader, valLoader *data.Loader, optimizer optim.Optimizer, cfg Config) (*Result, error) {
	if cfg.Epochs < 1 {
		return nil, fmt.Errorf("train: need at least 1 epoch, got %d", cfg.Epochs)
	}
	recorder, ok := any(backend).(gradientRecorder)
	if !ok {
		return nil, fmt.Errorf("train: backend %s does not record gradients", backend.Name())
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	tape := recorder.Tape()

	result := &Result{
		Best: snapshot(model.StateDict()),
	}

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		start := time.Now()
		fmt.Fprintf(out, "Epoch %d/%d\n", epoch, cfg.Epochs)

		trainLoss, trainAcc, err := trainEpoch(backend, model, trainLoader, optimizer, tape)
		if err != nil {
			return nil, fmt.Errorf("epoch %d train: %w", epoch, err)
		}
		fmt.Fprintf(out, "  train loss %.4f acc %.4f\n", trainLoss, trainAcc)

		valLoss, valAcc, err := validateEpoch(backend, model, valLoader, tape)
		if err != nil {
			return nil, fmt.Errorf("epoch %d val: %w", epoch, err)
		}
		elapsed := time.Since(start)
		fmt.Fprintf(out, "  val   loss %.4f acc %.4f (%.1fs)\n", valLoss, valAcc, elapsed.Seconds())

		result.History = append(result.History, EpochMetrics{
			Epoch:         epoch,
			TrainLoss:     trainLoss,
			TrainAccuracy: trainAcc,
			ValLoss:       valLoss,
			ValAccuracy:   valAcc,
			Duration:      elapsed,
		})

		// Strictly greater, so an equal later epoch never displaces an
		// earlier snapshot.
		if valAcc > result.BestAccuracy {
			result.BestAccuracy = valAcc
			result.BestEpoch = epoch
			result.Best = snapshot(model.StateDict())
		}
	}

	fmt.Fprintf(out, "Best val acc %.4f (epoch %d)\n", result.BestAccuracy, result.BestEpoch)
	if err := model.LoadStateDict(result.Best); err != nil {
		return nil, fmt.Errorf("restore best weights: %w", err)
	}
	return result, nil
}

// trainEpoch runs one full pass over the training data with gradient
// recording enabled, stepping the optimizer after every batch.
func trainEpoch[B tensor.Backend](backend B, model Model[B], loader *data.Loader, optimizer optim.Optimizer, tape *autodiff.GradientTape) (float64, float64, error) {
	model.SetTraining(true)
	tape.StartRecording()
	defer tape.StopRecording()
	defer tape.Clear()

	loader.Reset(true)
	var lossSum, accSum float64
	var total int
	for {
		batch, err := loader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, 0, err
		}
		x := tensor.New[float32, B](batch.Images, backend)
		y := tensor.New[int32, B](batch.Labels, backend)

		optimizer.ZeroGrad()
		logits, aux := model.ForwardWithAux(x)
		loss := nn.CrossEntropy(logits, y)
		if aux != nil {
			loss = loss.Add(nn.CrossEntropy(aux, y).MulScalar(auxLossWeight))
		}

		seed := tensor.Ones[float32](tensor.Shape{1}, backend)
		grads := tape.Backward(seed.Raw(), backend)
		optimizer.Step(grads)
		tape.Clear()

		n := batch.Size()
		lossSum += float64(loss.Item()) * float64(n)
		accSum += float64(nn.Accuracy(logits, y)) * float64(n)
		total += n
	}
	if total == 0 {
		return 0, 0, errors.New("empty training set")
	}
	return lossSum / float64(total), accSum / float64(total), nil
}

// validateEpoch runs one pass over the validation data with recording
// stopped. The optimizer never steps and the auxiliary head, when
// present, is not evaluated.
func validateEpoch[B tensor.Backend](backend B, model Model[B], loader *data.Loader, tape *autodiff.GradientTape) (float64, float64, error) {
	model.SetTraining(false)
	tape.StopRecording()

	loader.Reset(false)
	var lossSum, accSum float64
	var total int
	for {
		batch, err := loader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, 0, err
		}
		x := tensor.New[float32, B](batch.Images, backend)
		y := tensor.New[int32, B](batch.Labels, backend)

		logits := model.Forward(x)
		loss := nn.CrossEntropy(logits, y)

		n := batch.Size()
		lossSum += float64(loss.Item()) * float64(n)
		accSum += float64(nn.Accuracy(logits, y)) * float64(n)
		total += n
	}
	if total == 0 {
		return 0, 0, errors.New("empty validation set")
	}
	return lossSum / float64(total), accSum / float64(total), nil
}
