// Copyright 2025 Graft ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides neural network building blocks.
package nn

import (
	"math/rand"

	"github.com/graft-ml/graft/internal/nn"
	"github.com/graft-ml/graft/internal/tensor"
)

// Module is the common interface for all neural network modules.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter represents a trainable parameter in a neural network.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a new parameter with the given name and tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// SetTraining switches a module and its children between train and eval mode.
func SetTraining[B tensor.Backend](m Module[B], training bool) {
	nn.SetTraining(m, training)
}

// Layers

// Linear represents a fully connected (dense) layer.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a new linear layer with Xavier initialization.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, rng *rand.Rand, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, rng, backend)
}

// Conv2D represents a 2D convolutional layer.
type Conv2D[B tensor.Backend] = nn.Conv2D[B]

// Conv2DConfig configures a Conv2D layer.
type Conv2DConfig = nn.Conv2DConfig

// NewConv2D creates a new 2D convolutional layer with Kaiming initialization.
func NewConv2D[B tensor.Backend](cfg Conv2DConfig, rng *rand.Rand, backend B) *Conv2D[B] {
	return nn.NewConv2D(cfg, rng, backend)
}

// NewConv2DSquare creates a Conv2D with a square kernel and symmetric padding.
func NewConv2DSquare[B tensor.Backend](inChannels, outChannels, kernelSize, stride, padding int, bias bool, rng *rand.Rand, backend B) *Conv2D[B] {
	return nn.NewConv2DSquare(inChannels, outChannels, kernelSize, stride, padding, bias, rng, backend)
}

// BatchNorm2D represents 2D batch normalization over NCHW tensors.
type BatchNorm2D[B tensor.Backend] = nn.BatchNorm2D[B]

// NewBatchNorm2D creates a batch normalization layer for the given channel count.
func NewBatchNorm2D[B tensor.Backend](channels int, backend B) *BatchNorm2D[B] {
	return nn.NewBatchNorm2D(channels, backend)
}

// MaxPool2D represents a 2D max pooling layer.
type MaxPool2D[B tensor.Backend] = nn.MaxPool2D[B]

// NewMaxPool2D creates a new 2D max pooling layer.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride, padding int) *MaxPool2D[B] {
	return nn.NewMaxPool2D[B](kernelSize, stride, padding)
}

// AvgPool2D represents a 2D average pooling layer.
type AvgPool2D[B tensor.Backend] = nn.AvgPool2D[B]

// NewAvgPool2D creates a new 2D average pooling layer.
func NewAvgPool2D[B tensor.Backend](kernelSize, stride, padding int) *AvgPool2D[B] {
	return nn.NewAvgPool2D[B](kernelSize, stride, padding)
}

// AdaptiveAvgPool2D pools to a fixed output size regardless of input size.
type AdaptiveAvgPool2D[B tensor.Backend] = nn.AdaptiveAvgPool2D[B]

// NewAdaptiveAvgPool2D creates an adaptive average pooling layer.
func NewAdaptiveAvgPool2D[B tensor.Backend](outH, outW int) *AdaptiveAvgPool2D[B] {
	return nn.NewAdaptiveAvgPool2D[B](outH, outW)
}

// Dropout randomly zeroes activations during training.
type Dropout[B tensor.Backend] = nn.Dropout[B]

// NewDropout creates a dropout layer with drop probability p.
func NewDropout[B tensor.Backend](p float32, rng *rand.Rand) *Dropout[B] {
	return nn.NewDropout[B](p, rng)
}

// ReLU applies the rectified linear activation.
type ReLU[B tensor.Backend] = nn.ReLU[B]

// NewReLU creates a ReLU activation module.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return nn.NewReLU[B]()
}

// Flatten reshapes [N, ...] to [N, rest].
type Flatten[B tensor.Backend] = nn.Flatten[B]

// NewFlatten creates a flatten module.
func NewFlatten[B tensor.Backend]() *Flatten[B] {
	return nn.NewFlatten[B]()
}

// Sequential chains modules in order.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates a sequential container from the given modules.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// Loss and metrics

// CrossEntropy computes softmax cross-entropy loss averaged over the batch.
func CrossEntropy[B tensor.Backend](logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	return nn.CrossEntropy(logits, targets)
}

// Accuracy computes the fraction of correct argmax predictions.
func Accuracy[B tensor.Backend](logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) float32 {
	return nn.Accuracy(logits, targets)
}
