package nn

import (
	"fmt"

	"github.com/graft-ml/graft/internal/tensor"
)

// loadInto copies src into dst, validating shape and dtype. Copying in
// place keeps the destination's identity stable, so references held by
// optimizers and tapes stay valid across a load.
func loadInto(dst, src *tensor.RawTensor, key string) error {
	if src == nil {
		return fmt.Errorf("missing key %q", key)
	}
	if !dst.Shape().Equal(src.Shape()) {
		return fmt.Errorf("key %q: shape mismatch, have %v, want %v", key, src.Shape(), dst.Shape())
	}
	if dst.DType() != src.DType() {
		return fmt.Errorf("key %q: dtype mismatch, have %v, want %v", key, src.DType(), dst.DType())
	}
	copy(dst.Data(), src.Data())
	return nil
}
