package data_test

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graft-ml/graft/internal/data"
	"github.com/graft-ml/graft/internal/tensor"
)

// writeTestImage writes a w x h PNG filled with a solid color.
func writeTestImage(t *testing.T, path string, w, h int, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

// makeSplit builds a split directory with the given number of images
// per class.
func makeSplit(t *testing.T, root, split string, perClass map[string]int) string {
	t.Helper()
	dir := filepath.Join(root, split)
	for class, n := range perClass {
		classDir := filepath.Join(dir, class)
		require.NoError(t, os.MkdirAll(classDir, 0o755))
		for i := 0; i < n; i++ {
			name := filepath.Join(classDir, "img"+string(rune('a'+i))+".png")
			writeTestImage(t, name, 40, 40, color.RGBA{R: 200, A: 255})
		}
	}
	return dir
}

func TestDiscoverClasses(t *testing.T) {
	root := t.TempDir()
	dir := makeSplit(t, root, "train", map[string]int{"bees": 1, "ants": 1})

	classes, err := data.DiscoverClasses(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"ants", "bees"}, classes)
}

func TestDiscoverClassesEmpty(t *testing.T) {
	_, err := data.DiscoverClasses(t.TempDir())
	assert.Error(t, err)
}

func TestNewImageFolder(t *testing.T) {
	root := t.TempDir()
	dir := makeSplit(t, root, "train", map[string]int{"ants": 2, "bees": 3})

	ds, err := data.NewImageFolder(dir, []string{"ants", "bees"})
	require.NoError(t, err)
	assert.Equal(t, 5, ds.Len())
	assert.Equal(t, 2, ds.NumClasses())

	counts := map[int32]int{}
	for _, s := range ds.Samples {
		counts[s.Label]++
	}
	assert.Equal(t, 2, counts[0])
	assert.Equal(t, 3, counts[1])
}

func TestNewImageFolderUnknownClass(t *testing.T) {
	root := t.TempDir()
	dir := makeSplit(t, root, "val", map[string]int{"ants": 1, "wasps": 1})

	_, err := data.NewImageFolder(dir, []string{"ants", "bees"})
	assert.Error(t, err)
}

func TestNewImageFolderNoImages(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "train", "ants")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	_, err := data.NewImageFolder(filepath.Join(root, "train"), []string{"ants"})
	assert.Error(t, err)
}

func TestLoaderBatching(t *testing.T) {
	root := t.TempDir()
	dir := makeSplit(t, root, "train", map[string]int{"ants": 2, "bees": 3})
	ds, err := data.NewImageFolder(dir, []string{"ants", "bees"})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	loader := data.NewLoader(ds, 2, 32, nil, rng)
	assert.Equal(t, 3, loader.NumBatches())

	loader.Reset(false)
	sizes := []int{}
	for {
		batch, err := loader.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		sizes = append(sizes, batch.Size())
		assert.True(t, batch.Images.Shape().Equal(tensor.Shape{batch.Size(), 3, 32, 32}))
		assert.True(t, batch.Labels.Shape().Equal(tensor.Shape{batch.Size()}))
		assert.Equal(t, tensor.Int32, batch.Labels.DType())
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)
}

func TestLoaderShuffleDeterminism(t *testing.T) {
	root := t.TempDir()
	dir := makeSplit(t, root, "train", map[string]int{"ants": 3, "bees": 3})
	ds, err := data.NewImageFolder(dir, []string{"ants", "bees"})
	require.NoError(t, err)

	labelOrder := func(seed int64) []int32 {
		rng := rand.New(rand.NewSource(seed))
		loader := data.NewLoader(ds, 1, 16, nil, rng)
		loader.Reset(true)
		var labels []int32
		for {
			batch, err := loader.Next()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			labels = append(labels, batch.Labels.AsInt32()[0])
		}
		return labels
	}

	assert.Equal(t, labelOrder(42), labelOrder(42), "same seed must give the same order")
}

func TestEvalTransformSize(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 500, 300))
	rng := rand.New(rand.NewSource(1))

	out := data.EvalTransform(224).Apply(img, rng)
	assert.Equal(t, 224, out.Bounds().Dx())
	assert.Equal(t, 224, out.Bounds().Dy())
}

func TestTrainTransformSize(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 80))
	rng := rand.New(rand.NewSource(1))

	out := data.TrainTransform(64).Apply(img, rng)
	assert.Equal(t, 64, out.Bounds().Dx())
	assert.Equal(t, 64, out.Bounds().Dy())
}

func TestLoaderNormalization(t *testing.T) {
	root := t.TempDir()
	classDir := filepath.Join(root, "train", "white")
	require.NoError(t, os.MkdirAll(classDir, 0o755))
	writeTestImage(t, filepath.Join(classDir, "w.png"), 8, 8, color.White)

	ds, err := data.NewImageFolder(filepath.Join(root, "train"), []string{"white"})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	loader := data.NewLoader(ds, 1, 8, nil, rng)
	batch, err := loader.Next()
	require.NoError(t, err)

	// A pure white pixel normalizes to (1 - mean) / std per channel.
	pixels := batch.Images.AsFloat32()
	plane := 8 * 8
	assert.InDelta(t, (1-data.ImageNetMean[0])/data.ImageNetStd[0], pixels[0], 1e-4)
	assert.InDelta(t, (1-data.ImageNetMean[1])/data.ImageNetStd[1], pixels[plane], 1e-4)
	assert.InDelta(t, (1-data.ImageNetMean[2])/data.ImageNetStd[2], pixels[2*plane], 1e-4)
}
