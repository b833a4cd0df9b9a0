// Package parallel fans work out over a bounded set of goroutines.
// Convolution, pooling and matmul kernels split their outer loops with
// it; everything else in the library is single threaded.
package parallel

import (
	"runtime"
	"sync"
)

// Config bounds a parallel loop.
type Config struct {
	// Enabled turns the goroutine fan-out on. When false every loop
	// runs inline on the calling goroutine.
	Enabled bool

	// NumWorkers caps the number of concurrently running chunks.
	NumWorkers int

	// MinChunkSize is the smallest amount of work worth a goroutine.
	// Loops shorter than this always run inline.
	MinChunkSize int
}

// DefaultConfig sizes the fan-out to the machine's CPU count.
func DefaultConfig() Config {
	workers := runtime.NumCPU()
	return Config{
		Enabled:      workers > 1,
		NumWorkers:   workers,
		MinChunkSize: 64,
	}
}

// For calls f(i) for every i in [0, n). Iterations must not depend on
// each other; chunks run on separate goroutines when the loop is large
// enough, and For returns only after all of them finish.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || n < cfg.MinChunkSize {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	chunk := (n + cfg.NumWorkers - 1) / cfg.NumWorkers
	if chunk < cfg.MinChunkSize {
		chunk = cfg.MinChunkSize
	}

	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				f(i)
			}
		}(lo, hi)
	}
	wg.Wait()
}

// ForBatch flattens the (batch, channel) grid that convolution and
// pooling kernels iterate and hands each cell to f.
func ForBatch(batch, channels int, f func(b, c int), cfg Config) {
	For(batch*channels, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}
