// Copyright 2025 Graft ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package checkpoint reads and writes .graft model files.
//
// The format is a fixed binary header, a JSON metadata block, and
// 64-byte-aligned tensor data protected by a SHA-256 checksum.
package checkpoint

import (
	"github.com/graft-ml/graft/internal/checkpoint"
	"github.com/graft-ml/graft/internal/tensor"
)

// Header is the JSON metadata block of a .graft file.
type Header = checkpoint.Header

// TrainingMeta records the training state a checkpoint was saved at.
type TrainingMeta = checkpoint.TrainingMeta

// TensorMeta describes one tensor's placement in the data section.
type TensorMeta = checkpoint.TensorMeta

// Sentinel errors for corrupt or unsupported files.
var (
	ErrInvalidMagic       = checkpoint.ErrInvalidMagic
	ErrUnsupportedVersion = checkpoint.ErrUnsupportedVersion
	ErrChecksumMismatch   = checkpoint.ErrChecksumMismatch
)

// Save writes a state dictionary to path with a minimal header.
func Save(path string, state map[string]*tensor.RawTensor, modelType string) error {
	return checkpoint.Save(path, state, modelType)
}

// SaveWithHeader writes a state dictionary with a caller-built header,
// typically carrying TrainingMeta.
func SaveWithHeader(path string, state map[string]*tensor.RawTensor, header Header) error {
	return checkpoint.SaveWithHeader(path, state, header)
}

// Load reads a .graft file, verifies its checksum, and returns the state
// dictionary and header.
func Load(path string, device tensor.Device) (map[string]*tensor.RawTensor, *Header, error) {
	return checkpoint.Load(path, device)
}
