// Copyright 2025 Graft ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package train drives the epoch loop: train and validate each epoch,
// track metrics, and keep a snapshot of the best weights seen.
package train

import (
	"github.com/graft-ml/graft/internal/data"
	"github.com/graft-ml/graft/internal/optim"
	"github.com/graft-ml/graft/internal/tensor"
	"github.com/graft-ml/graft/internal/train"
)

// Config controls the training run.
type Config = train.Config

// Model is the classifier interface the driver trains. vision.Adapt
// returns a suitable model.
type Model[B tensor.Backend] = train.Model[B]

// EpochMetrics records one epoch's losses, accuracies, and duration.
type EpochMetrics = train.EpochMetrics

// Result is the outcome of a training run: the per-epoch history and
// the best validation snapshot.
type Result = train.Result

// Run trains the model for cfg.Epochs epochs. After each epoch it
// validates, and when validation accuracy strictly improves it snapshots
// the weights. On return the model holds the best snapshot.
func Run[B tensor.Backend](backend B, model Model[B], trainLoader, valLoader *data.Loader, optimizer optim.Optimizer, cfg Config) (*Result, error) {
	return train.Run(backend, model, trainLoader, valLoader, optimizer, cfg)
}
