// Copyright 2025 Graft ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package vision provides convolutional architectures for image
// classification and the adapter that repurposes them for new datasets.
package vision

import (
	"math/rand"

	"github.com/graft-ml/graft/internal/tensor"
	"github.com/graft-ml/graft/internal/vision"
)

// Family identifies a supported architecture family.
type Family = vision.Family

// Architecture family constants.
const (
	ResNet18    Family = vision.ResNet18Family
	AlexNet     Family = vision.AlexNetFamily
	VGG11       Family = vision.VGG11Family
	SqueezeNet  Family = vision.SqueezeNetFamily
	DenseNet121 Family = vision.DenseNet121Family
	InceptionV3 Family = vision.InceptionV3Family
)

// ErrUnsupportedFamily is returned when a family name is not recognized.
var ErrUnsupportedFamily = vision.ErrUnsupportedFamily

// ParseFamily resolves a family from its canonical name, e.g. "resnet18".
func ParseFamily(name string) (Family, error) {
	return vision.ParseFamily(name)
}

// Families returns all supported architecture families.
func Families() []Family {
	return vision.Families()
}

// ModelSpec describes the model to build: which family, how many output
// classes, whether to freeze the pretrained backbone, and where to find
// pretrained weights (empty means random initialization).
type ModelSpec = vision.ModelSpec

// AdaptedModel is an architecture with its classification head replaced
// for a new number of classes.
type AdaptedModel[B tensor.Backend] = vision.AdaptedModel[B]

// Adapt builds the requested architecture, optionally loads pretrained
// weights and freezes the backbone, and installs a fresh classification
// head sized for spec.NumClasses. The head is always trainable.
func Adapt[B tensor.Backend](spec ModelSpec, rng *rand.Rand, backend B) (*AdaptedModel[B], error) {
	return vision.Adapt(spec, rng, backend)
}
