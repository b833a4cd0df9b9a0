// Copyright 2025 Graft ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation.
//
// It wraps any backend with a decorator that records operations on a
// gradient tape, then replays the tape backwards to compute gradients.
//
// Example:
//
//	base := cpu.New()
//	backend := autodiff.New(base)
//	backend.Tape().StartRecording()
//	// ... forward pass, loss ...
//	grads := backend.Tape().Backward(seed, backend)
package autodiff

import (
	"github.com/graft-ml/graft/internal/autodiff"
	"github.com/graft-ml/graft/internal/tensor"
)

// Backend is the autodiff-enabled backend decorator.
type Backend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// New creates a new autodiff backend wrapping the given backend.
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// GradientTape records operations for automatic differentiation.
type GradientTape = autodiff.GradientTape

// NewTape creates a new gradient tape.
func NewTape() *GradientTape {
	return autodiff.NewTape()
}
