// Copyright 2025 Graft ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides gradient-based optimizers.
package optim

import (
	"github.com/graft-ml/graft/internal/optim"
	"github.com/graft-ml/graft/internal/tensor"
)

// Optimizer is the interface all optimizers implement.
//
// Step applies the gradients returned by the tape. Tensors absent from the
// optimizer's parameter set are left untouched, which is how frozen
// parameters stay fixed.
type Optimizer = optim.Optimizer

// SGD implements stochastic gradient descent with optional momentum.
type SGD = optim.SGD

// NewSGD creates an SGD optimizer over the given parameter tensors.
func NewSGD(params []*tensor.RawTensor, lr, momentum float32) *SGD {
	return optim.NewSGD(params, lr, momentum)
}

// Adam implements the Adam optimizer with bias correction.
type Adam = optim.Adam

// NewAdam creates an Adam optimizer over the given parameter tensors.
func NewAdam(params []*tensor.RawTensor, lr float32) *Adam {
	return optim.NewAdam(params, lr)
}
