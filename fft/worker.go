// Package fft wraps the real-valued FFT plans used by the correlation
// engine. Plan construction is serialized by a process-wide mutex;
// execution runs without it, so independent workers can transform
// concurrently.
package fft

import (
	"errors"
	"fmt"
	"sync"

	algofft "github.com/cwbudde/algo-fft"
)

// planMu guards plan construction. Execution of an already built plan
// does not take it; workers have no explicit plan teardown.
var planMu sync.Mutex

// ErrBadLength is returned for non-positive transform lengths.
var ErrBadLength = errors.New("fft: transform length must be positive")

// Worker holds a forward/inverse real FFT pair of a fixed length.
//
// Each worker owns its plans, so two workers of the same length can
// execute on different goroutines at the same time.
type Worker struct {
	n    int
	fast *algofft.FastPlanReal64
	safe *algofft.PlanRealT[float64, complex128]
}

// NewWorker builds the plans for transforms of length n.
func NewWorker(n int) (*Worker, error) {
	if n <= 0 {
		return nil, ErrBadLength
	}

	w := &Worker{n: n}

	planMu.Lock()
	defer planMu.Unlock()

	fast, err := algofft.NewFastPlanReal64(n)
	if err == nil {
		w.fast = fast
	} else if !errors.Is(err, algofft.ErrNotImplemented) {
		// Fast-plan setup failures are not fatal; the safe plan below
		// covers every length.
	}

	safe, err := algofft.NewPlanReal64(n)
	if err != nil {
		if w.fast == nil {
			return nil, fmt.Errorf("fft: plan length %d: %w", n, err)
		}
	} else {
		w.safe = safe
	}

	return w, nil
}

// Len returns the transform length.
func (w *Worker) Len() int { return w.n }

// SpectrumLen returns the length of the complex spectrum, n/2+1.
func (w *Worker) SpectrumLen() int { return w.n/2 + 1 }

// Forward computes the real-to-complex FFT of src into dst.
// len(src) must be n and len(dst) must be n/2+1.
func (w *Worker) Forward(dst []complex128, src []float64) error {
	if w.fast != nil {
		w.fast.Forward(dst, src)
		return nil
	}
	if w.safe != nil {
		return w.safe.Forward(dst, src)
	}
	return errors.New("fft: missing forward plan")
}

// Inverse computes the complex-to-real inverse FFT of src into dst.
// len(src) must be n/2+1 and len(dst) must be n.
func (w *Worker) Inverse(dst []float64, src []complex128) error {
	if w.fast != nil {
		w.fast.Inverse(dst, src)
		return nil
	}
	if w.safe != nil {
		return w.safe.Inverse(dst, src)
	}
	return errors.New("fft: missing inverse plan")
}
