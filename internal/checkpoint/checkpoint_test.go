package checkpoint_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graft-ml/graft/internal/checkpoint"
	"github.com/graft-ml/graft/internal/tensor"
)

func testState(t *testing.T) map[string]*tensor.RawTensor {
	t.Helper()
	w := tensor.MustNewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
	copy(w.AsFloat32(), []float32{1, 2, 3, 4, 5, 6})
	b := tensor.MustNewRaw(tensor.Shape{3}, tensor.Float32, tensor.CPU)
	copy(b.AsFloat32(), []float32{-1, 0, 1})
	return map[string]*tensor.RawTensor{"fc.weight": w, "fc.bias": b}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.graft")
	state := testState(t)

	require.NoError(t, checkpoint.Save(path, state, "resnet18"))

	loaded, header, err := checkpoint.Load(path, tensor.CPU)
	require.NoError(t, err)

	assert.Equal(t, "resnet18", header.ModelType)
	assert.Equal(t, checkpoint.FormatVersion, header.FormatVersion)
	assert.Len(t, loaded, 2)

	w := loaded["fc.weight"]
	require.NotNil(t, w)
	assert.True(t, w.Shape().Equal(tensor.Shape{2, 3}))
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, w.AsFloat32())

	b := loaded["fc.bias"]
	require.NotNil(t, b)
	assert.Equal(t, []float32{-1, 0, 1}, b.AsFloat32())
}

func TestSaveWithTrainingMeta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.graft")

	header := checkpoint.Header{
		ModelType: "inception_v3",
		CreatedAt: time.Now().UTC(),
		Training: &checkpoint.TrainingMeta{
			Epoch:        7,
			ValLoss:      0.25,
			ValAccuracy:  0.93,
			NumClasses:   2,
			Architecture: "inception_v3",
		},
	}
	require.NoError(t, checkpoint.SaveWithHeader(path, testState(t), header))

	_, got, err := checkpoint.Load(path, tensor.CPU)
	require.NoError(t, err)
	require.NotNil(t, got.Training)
	assert.Equal(t, 7, got.Training.Epoch)
	assert.InDelta(t, 0.93, got.Training.ValAccuracy, 1e-9)
	assert.Equal(t, 2, got.Training.NumClasses)
}

func TestLoadRejectsCorruptData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.graft")
	require.NoError(t, checkpoint.Save(path, testState(t), "resnet18"))

	// Flip one byte in the tensor data at the end of the file.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, _, err = checkpoint.Load(path, tensor.CPU)
	assert.ErrorIs(t, err, checkpoint.ErrChecksumMismatch)
}

func TestLoadRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.graft")
	require.NoError(t, checkpoint.Save(path, testState(t), "resnet18"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	copy(raw[0:4], "XXXX")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, _, err = checkpoint.Load(path, tensor.CPU)
	assert.ErrorIs(t, err, checkpoint.ErrInvalidMagic)
}

func TestLoadRejectsBadVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.graft")
	require.NoError(t, checkpoint.Save(path, testState(t), "resnet18"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[4] = 0xFE
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, _, err = checkpoint.Load(path, tensor.CPU)
	assert.ErrorIs(t, err, checkpoint.ErrUnsupportedVersion)
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := checkpoint.Load(filepath.Join(t.TempDir(), "nope.graft"), tensor.CPU)
	assert.Error(t, err)
}

func TestSaveDeterministic(t *testing.T) {
	dir := t.TempDir()
	state := testState(t)

	stamp := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	p1 := filepath.Join(dir, "a.graft")
	p2 := filepath.Join(dir, "b.graft")
	require.NoError(t, checkpoint.SaveWithHeader(p1, state, checkpoint.Header{ModelType: "resnet18", CreatedAt: stamp}))
	require.NoError(t, checkpoint.SaveWithHeader(p2, state, checkpoint.Header{ModelType: "resnet18", CreatedAt: stamp}))

	a, err := os.ReadFile(p1)
	require.NoError(t, err)
	b, err := os.ReadFile(p2)
	require.NoError(t, err)
	assert.Equal(t, a, b, "identical state should serialize identically")
}

func TestInt32TensorRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.graft")
	labels := tensor.MustNewRaw(tensor.Shape{3}, tensor.Int32, tensor.CPU)
	copy(labels.AsInt32(), []int32{3, 1, 2})

	require.NoError(t, checkpoint.Save(path, map[string]*tensor.RawTensor{"labels": labels}, "test"))

	loaded, _, err := checkpoint.Load(path, tensor.CPU)
	require.NoError(t, err)
	assert.Equal(t, []int32{3, 1, 2}, loaded["labels"].AsInt32())
}
