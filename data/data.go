// Copyright 2025 Graft ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package data provides directory-organized image datasets, augmentation
// transforms, and batched loading for training.
package data

import (
	"math/rand"

	"github.com/graft-ml/graft/internal/data"
)

// Sample is one image path with its class label.
type Sample = data.Sample

// Dataset is a set of labeled image samples with the class name list.
type Dataset = data.Dataset

// DiscoverClasses lists class subdirectories of a split directory in
// sorted order. Class indices follow this order.
func DiscoverClasses(splitDir string) ([]string, error) {
	return data.DiscoverClasses(splitDir)
}

// NewImageFolder builds a dataset from a split directory laid out as
// one subdirectory per class.
func NewImageFolder(splitDir string, classes []string) (*Dataset, error) {
	return data.NewImageFolder(splitDir, classes)
}

// Transform maps an image to an augmented image.
type Transform = data.Transform

// TrainTransform returns the standard training augmentation:
// random resized crop to size, then random horizontal flip.
func TrainTransform(size int) Transform {
	return data.TrainTransform(size)
}

// EvalTransform returns the standard evaluation transform:
// resize then center crop to size.
func EvalTransform(size int) Transform {
	return data.EvalTransform(size)
}

// Batch holds one batch of normalized image tensors and labels.
type Batch = data.Batch

// Loader iterates a dataset in batches, decoding and transforming
// images into normalized NCHW tensors.
type Loader = data.Loader

// NewLoader creates a loader producing batches of the given size.
func NewLoader(dataset *Dataset, batchSize, size int, transform Transform, rng *rand.Rand) *Loader {
	return data.NewLoader(dataset, batchSize, size, transform, rng)
}
