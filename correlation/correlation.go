// Package correlation implements the circular cross-correlation engine
// used to measure the lag between a reference stream and a captured
// sample of the same track:
//
//	xcross = ifft(fft(source) * conj(fft(sample)))
//
// The source must be twice as long as the sample; the sample is
// zero-padded to the source length, which turns the circular
// correlation into the linear one over the valid lag range.
package correlation

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"github.com/vidify/old-audiosync/fft"
)

var (
	// ErrBadLength reports a source/sample size precondition violation.
	ErrBadLength = errors.New("correlation: source must be twice the sample length")

	// ErrDegenerate reports a correlation window with no defined
	// Pearson coefficient (zero variance or empty after alignment).
	ErrDegenerate = errors.New("correlation: degenerate window")

	// ErrFFT reports a transform planning or execution failure.
	ErrFFT = errors.New("correlation: fft failed")
)

// Result is the outcome of one cross-correlation evaluation.
type Result struct {
	// Lag is the frame offset that best aligns the sample inside the
	// source. Positive means the sample starts later than the source.
	Lag int64

	// Confidence is the Pearson coefficient of the aligned windows,
	// in [-1, 1].
	Confidence float64
}

// CrossCorrelation finds the lag of sample inside source and the
// confidence of the match. len(source) must be exactly 2*len(sample)
// and the sample must not be empty.
func CrossCorrelation(source, sample []float64) (Result, error) {
	n := len(sample)
	if n == 0 || len(source) != 2*n {
		return Result{}, ErrBadLength
	}
	length := 2 * n

	// The sample is zero-padded to the source length. The source is
	// already pre-sized and is used as-is.
	padded := make([]float64, length)
	copy(padded, sample)

	// One plan per goroutine: execution of a single plan is not
	// shared across the two forward transforms.
	srcWorker, err := fft.NewWorker(length)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrFFT, err)
	}
	smpWorker, err := fft.NewWorker(length)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrFFT, err)
	}

	specSource := make([]complex128, srcWorker.SpectrumLen())
	specSample := make([]complex128, smpWorker.SpectrumLen())

	var wg sync.WaitGroup
	var errSource, errSample error
	wg.Add(2)
	go func() {
		defer wg.Done()
		errSource = srcWorker.Forward(specSource, source)
	}()
	go func() {
		defer wg.Done()
		errSample = smpWorker.Forward(specSample, padded)
	}()
	wg.Wait()
	if errSource != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrFFT, errSource)
	}
	if errSample != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrFFT, errSample)
	}

	// Product of fft(source) * conj(fft(sample)), in place.
	for i := range specSource {
		specSource[i] *= cmplx.Conj(specSample[i])
	}

	corr := make([]float64, length)
	if err := srcWorker.Inverse(corr, specSource); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrFFT, err)
	}

	// The index of the maximum absolute value is the lag.
	peak := 0
	max := math.Abs(corr[0])
	for i := 1; i < length; i++ {
		if abs := math.Abs(corr[i]); abs > max {
			max = abs
			peak = i
		}
	}

	// Indices past the sample length wrap around to negative lags.
	var lag int
	var alignedSource, alignedSample []float64
	if peak < n {
		lag = peak
		alignedSource = source[peak : peak+n]
		alignedSample = sample
	} else {
		lag = peak%n - n
		alignedSource = source[:lag+n]
		alignedSample = sample[-lag:]
	}

	confidence, err := Pearson(alignedSource, alignedSample)
	if err != nil {
		return Result{}, err
	}
	return Result{Lag: int64(lag), Confidence: confidence}, nil
}
