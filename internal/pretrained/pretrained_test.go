package pretrained_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graft-ml/graft/internal/checkpoint"
	"github.com/graft-ml/graft/internal/pretrained"
	"github.com/graft-ml/graft/internal/tensor"
)

func TestPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/weights", "resnet18.graft"), pretrained.Path("/weights", "resnet18"))
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	w := tensor.MustNewRaw(tensor.Shape{4, 2}, tensor.Float32, tensor.CPU)
	copy(w.AsFloat32(), []float32{1, 2, 3, 4, 5, 6, 7, 8})
	state := map[string]*tensor.RawTensor{"conv1.weight": w}
	require.NoError(t, checkpoint.Save(pretrained.Path(dir, "alexnet"), state, "alexnet"))

	loaded, err := pretrained.Load(dir, "alexnet", tensor.CPU)
	require.NoError(t, err)
	require.Contains(t, loaded, "conv1.weight")
	assert.Equal(t, w.AsFloat32(), loaded["conv1.weight"].AsFloat32())
}

func TestLoadMissing(t *testing.T) {
	_, err := pretrained.Load(t.TempDir(), "resnet18", tensor.CPU)
	assert.ErrorIs(t, err, pretrained.ErrWeightsNotFound)
}

func TestLoadFamilyMismatch(t *testing.T) {
	dir := t.TempDir()

	w := tensor.MustNewRaw(tensor.Shape{1}, tensor.Float32, tensor.CPU)
	state := map[string]*tensor.RawTensor{"fc.weight": w}
	// File named for resnet18 but stamped as alexnet inside.
	require.NoError(t, checkpoint.Save(pretrained.Path(dir, "resnet18"), state, "alexnet"))

	_, err := pretrained.Load(dir, "resnet18", tensor.CPU)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alexnet")
}
