package data

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/graft-ml/graft/internal/tensor"
)

// Batch is one batch of preprocessed images and labels. Images are
// [n, 3, size, size] float32, labels [n] int32.
type Batch struct {
	Images *tensor.RawTensor
	Labels *tensor.RawTensor
}

// Size returns the number of samples in the batch.
func (b *Batch) Size() int { return b.Images.Shape()[0] }

// Loader iterates a dataset in batches, decoding and transforming
// images on the fly. It is single-threaded; all randomness comes from
// the seeded rng passed at construction.
type Loader struct {
	dataset   *Dataset
	batchSize int
	size      int
	transform Transform
	mean      [3]float32
	std       [3]float32
	rng       *rand.Rand

	order []int
	pos   int
}

// NewLoader creates a loader producing size x size image batches.
func NewLoader(dataset *Dataset, batchSize, size int, transform Transform, rng *rand.Rand) *Loader {
	l := &Loader{
		dataset:   dataset,
		batchSize: batchSize,
		size:      size,
		transform: transform,
		mean:      ImageNetMean,
		std:       ImageNetStd,
		rng:       rng,
		order:     make([]int, dataset.Len()),
	}
	for i := range l.order {
		l.order[i] = i
	}
	return l
}

// NumBatches returns how many batches one pass over the dataset
// yields, counting a final partial batch.
func (l *Loader) NumBatches() int {
	return (l.dataset.Len() + l.batchSize - 1) / l.batchSize
}

// Reset rewinds the loader, optionally reshuffling sample order.
func (l *Loader) Reset(shuffle bool) {
	l.pos = 0
	if shuffle {
		l.rng.Shuffle(len(l.order), func(i, j int) {
			l.order[i], l.order[j] = l.order[j], l.order[i]
		})
	}
}

// Next returns the next batch, or io.EOF when the pass is complete.
// The final batch may be smaller than the configured batch size.
func (l *Loader) Next() (*Batch, error) {
	if l.pos >= len(l.order) {
		return nil, io.EOF
	}
	end := l.pos + l.batchSize
	if end > len(l.order) {
		end = len(l.order)
	}
	n := end - l.pos

	images := tensor.MustNewRaw(tensor.Shape{n, 3, l.size, l.size}, tensor.Float32, tensor.CPU)
	labels := tensor.MustNewRaw(tensor.Shape{n}, tensor.Int32, tensor.CPU)
	pixels := images.AsFloat32()
	lab := labels.AsInt32()
	plane := 3 * l.size * l.size

	for i := 0; i < n; i++ {
		sample := l.dataset.Samples[l.order[l.pos+i]]
		img, err := decodeImage(sample.Path)
		if err != nil {
			return nil, fmt.Errorf("load sample: %w", err)
		}
		if l.transform != nil {
			img = l.transform.Apply(img, l.rng)
		}
		if img.Bounds().Dx() != l.size || img.Bounds().Dy() != l.size {
			img = resizeTo(img, l.size, l.size)
		}
		writeCHW(pixels[i*plane:(i+1)*plane], img, l.size, l.mean, l.std)
		lab[i] = sample.Label
	}
	l.pos = end
	return &Batch{Images: images, Labels: labels}, nil
}
