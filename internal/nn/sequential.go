package nn

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/graft-ml/graft/internal/tensor"
)

// Sequential chains modules, feeding each output into the next. State
// dict keys are prefixed with the child index, "3.weight" style, so a
// chain round-trips through a flat map.
type Sequential[B tensor.Backend] struct {
	modules []Module[B]
}

func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return &Sequential[B]{modules: modules}
}

// Add appends a module to the chain.
func (s *Sequential[B]) Add(m Module[B]) *Sequential[B] {
	s.modules = append(s.modules, m)
	return s
}

// Len returns the number of children.
func (s *Sequential[B]) Len() int { return len(s.modules) }

// Get returns the i-th child.
func (s *Sequential[B]) Get(i int) Module[B] { return s.modules[i] }

// Replace swaps the i-th child for another module.
func (s *Sequential[B]) Replace(i int, m Module[B]) {
	s.modules[i] = m
}

func (s *Sequential[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	for _, m := range s.modules {
		x = m.Forward(x)
	}
	return x
}

func (s *Sequential[B]) SetTraining(training bool) {
	for _, m := range s.modules {
		SetTraining(m, training)
	}
}

func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, m := range s.modules {
		params = append(params, m.Parameters()...)
	}
	return params
}

func (s *Sequential[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	for i, m := range s.modules {
		for key, t := range m.StateDict() {
			state[strconv.Itoa(i)+"."+key] = t
		}
	}
	return state
}

func (s *Sequential[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	children := make([]map[string]*tensor.RawTensor, len(s.modules))
	for i := range children {
		children[i] = make(map[string]*tensor.RawTensor)
	}
	for key, t := range state {
		idxStr, rest, found := strings.Cut(key, ".")
		if !found {
			return fmt.Errorf("sequential: key %q has no child index", key)
		}
		idx, err := strconv.Atoi(idxStr)
		if err != nil || idx < 0 || idx >= len(s.modules) {
			return fmt.Errorf("sequential: key %q: bad child index", key)
		}
		children[idx][rest] = t
	}
	for i, m := range s.modules {
		if err := m.LoadStateDict(children[i]); err != nil {
			return fmt.Errorf("child %d: %w", i, err)
		}
	}
	return nil
}
