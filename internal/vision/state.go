package vision

import (
	"fmt"
	"strings"

	"github.com/graft-ml/graft/internal/nn"
	"github.com/graft-ml/graft/internal/tensor"
)

// addPrefixed merges src into dst with every key prefixed.
func addPrefixed(dst map[string]*tensor.RawTensor, prefix string, src map[string]*tensor.RawTensor) {
	for key, t := range src {
		dst[prefix+"."+key] = t
	}
}

// extractPrefix returns the sub-dictionary under prefix with the
// prefix stripped.
func extractPrefix(state map[string]*tensor.RawTensor, prefix string) map[string]*tensor.RawTensor {
	sub := make(map[string]*tensor.RawTensor)
	for key, t := range state {
		if rest, ok := strings.CutPrefix(key, prefix+"."); ok {
			sub[rest] = t
		}
	}
	return sub
}

// namedChild pairs a submodule with its state dict prefix. Models with
// many named components use it to drive parameter collection, state
// dict assembly and mode switching from a single child list.
type namedChild[B tensor.Backend] struct {
	name string
	mod  nn.Module[B]
}

func paramsOf[B tensor.Backend](children []namedChild[B]) []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for _, c := range children {
		params = append(params, c.mod.Parameters()...)
	}
	return params
}

func stateOf[B tensor.Backend](children []namedChild[B]) map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	for _, c := range children {
		addPrefixed(state, c.name, c.mod.StateDict())
	}
	return state
}

func loadStateOf[B tensor.Backend](children []namedChild[B], state map[string]*tensor.RawTensor) error {
	for _, c := range children {
		if err := c.mod.LoadStateDict(extractPrefix(state, c.name)); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return nil
}

func setTrainingOf[B tensor.Backend](children []namedChild[B], training bool) {
	for _, c := range children {
		nn.SetTraining(c.mod, training)
	}
}
