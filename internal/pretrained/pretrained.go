// Package pretrained resolves and loads backbone weights from a local
// weights directory. Weights are stored one file per architecture,
// named <family>.graft.
package pretrained

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/graft-ml/graft/internal/checkpoint"
	"github.com/graft-ml/graft/internal/tensor"
)

// ErrWeightsNotFound is returned when the weights directory has no
// file for the requested architecture.
var ErrWeightsNotFound = errors.New("pretrained weights not found")

// Path returns the expected weights file for a family inside dir.
func Path(dir, family string) string {
	return filepath.Join(dir, family+".graft")
}

// Load reads the weights for the named architecture from dir. The
// returned state dict feeds straight into the model's LoadStateDict.
func Load(dir, family string, device tensor.Device) (map[string]*tensor.RawTensor, error) {
	path := Path(dir, family)
	state, header, err := checkpoint.Load(path, device)
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil, fmt.Errorf("%w: %s", ErrWeightsNotFound, path)
		}
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if header.ModelType != "" && header.ModelType != family {
		return nil, fmt.Errorf("weights file %s holds %q, want %q", path, header.ModelType, family)
	}
	return state, nil
}
