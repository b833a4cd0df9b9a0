// Copyright 2025 Graft ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the GPU compute backend built on WebGPU.
//
// Element-wise math and matrix multiplication run as WGSL compute shaders;
// operations without a kernel fall back to the CPU backend transparently.
package webgpu

import (
	internalwebgpu "github.com/graft-ml/graft/internal/backend/webgpu"
	"github.com/graft-ml/graft/tensor"
)

// Backend represents the WebGPU backend implementation.
type Backend = internalwebgpu.Backend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new WebGPU backend.
// Returns an error if no GPU adapter is available.
func New() (*Backend, error) {
	return internalwebgpu.New()
}

// IsAvailable reports whether WebGPU can be initialized on this system.
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
