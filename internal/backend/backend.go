// Package backend provides the elementwise kernels used by noise transforms.
//
// Backends only do arithmetic on buffers that were already filled by the
// caller. They never draw random numbers, so switching backends cannot change
// the random stream a transform consumes.
package backend

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
)

// ErrLength is returned when kernel buffers have different lengths.
var ErrLength = errors.New("backend: buffer length mismatch")

// Backend computes out = sqrt((img + n1)^2 + n2^2) elementwise.
type Backend interface {
	// Name returns the backend identifier used in configuration.
	Name() string

	// RicianMagnitude writes the magnitude of (img + n1) + i*n2 into dst.
	// dst may alias img.
	RicianMagnitude(dst, img, n1, n2 []float64) error
}

// Name constants for Lookup.
const (
	HostName     = "host"
	ParallelName = "parallel"
)

// AllNames returns all supported backend names.
func AllNames() []string {
	return []string{HostName, ParallelName}
}

// Lookup returns the backend registered under name. Empty means host.
func Lookup(name string, workers int) (Backend, error) {
	switch name {
	case "", HostName:
		return Host{}, nil
	case ParallelName:
		return Parallel{Workers: workers}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q, valid backends: %v", name, AllNames())
	}
}

func checkLengths(dst, img, n1, n2 []float64) error {
	n := len(img)
	if len(dst) != n || len(n1) != n || len(n2) != n {
		return fmt.Errorf("%w: dst=%d img=%d n1=%d n2=%d", ErrLength, len(dst), n, len(n1), len(n2))
	}
	return nil
}

func magnitude(dst, img, n1, n2 []float64, lo, hi int) {
	for i := lo; i < hi; i++ {
		re := img[i] + n1[i]
		im := n2[i]
		dst[i] = math.Sqrt(re*re + im*im)
	}
}

// Host runs kernels serially on the calling goroutine.
type Host struct{}

// Name returns "host".
func (Host) Name() string { return HostName }

// RicianMagnitude implements Backend.
func (Host) RicianMagnitude(dst, img, n1, n2 []float64) error {
	if err := checkLengths(dst, img, n1, n2); err != nil {
		return err
	}
	magnitude(dst, img, n1, n2, 0, len(img))
	return nil
}

// minChunk keeps tiny images from being split across goroutines.
const minChunk = 4096

// Parallel splits kernels into contiguous chunks processed by a worker pool.
// Each element is computed with the same expression as Host, so results are
// bit-identical.
type Parallel struct {
	Workers int // 0 = runtime.NumCPU()
}

// Name returns "parallel".
func (Parallel) Name() string { return ParallelName }

type chunk struct {
	lo, hi int
}

// RicianMagnitude implements Backend.
func (p Parallel) RicianMagnitude(dst, img, n1, n2 []float64) error {
	if err := checkLengths(dst, img, n1, n2); err != nil {
		return err
	}

	n := len(img)
	numWorkers := p.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	chunkSize := max(minChunk, (n+numWorkers-1)/max(numWorkers, 1))
	numChunks := (n + chunkSize - 1) / chunkSize
	// Don't use more workers than chunks
	if numWorkers > numChunks {
		numWorkers = numChunks
	}
	if numWorkers <= 1 {
		magnitude(dst, img, n1, n2, 0, n)
		return nil
	}

	chunks := make(chan chunk, numChunks)
	for lo := 0; lo < n; lo += chunkSize {
		chunks <- chunk{lo: lo, hi: min(lo+chunkSize, n)}
	}
	close(chunks)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range chunks {
				magnitude(dst, img, n1, n2, c.lo, c.hi)
			}
		}()
	}
	wg.Wait()

	return nil
}
