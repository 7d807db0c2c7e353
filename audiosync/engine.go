// Package audiosync measures the lag between the locally playing audio
// and the reference stream of the same track fetched from an online
// source. It drives two ffmpeg byte producers in parallel and evaluates
// a cross-correlation at a sequence of growing intervals, returning as
// soon as one interval yields a confident match.
package audiosync

import (
	"errors"
	"math"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vidify/old-audiosync/control"
	"github.com/vidify/old-audiosync/correlation"
	"github.com/vidify/old-audiosync/producer"
)

const (
	// SampleRate mirrors the producer stream contract.
	SampleRate = producer.SampleRate

	// FramesToMS converts a lag in frames to milliseconds.
	FramesToMS = 1000.0 / float64(SampleRate)

	// MinConfidence is the default decision threshold on the absolute
	// Pearson coefficient.
	MinConfidence = 0.95
)

// DefaultIntervals are the sample checkpoint lengths, in frames. The
// source intervals are these doubled.
var DefaultIntervals = []int{
	3 * SampleRate,
	6 * SampleRate,
	10 * SampleRate,
	15 * SampleRate,
	20 * SampleRate,
	30 * SampleRate,
}

var (
	// ErrBusy means a run is already active.
	ErrBusy = errors.New("audiosync: a run is already active")

	// ErrNoMatch means every interval was exhausted without a
	// confident result.
	ErrNoMatch = errors.New("audiosync: no confident match")

	// ErrAborted means the caller aborted the run.
	ErrAborted = errors.New("audiosync: run aborted")
)

// Engine owns one run at a time: the control surface, both signal
// buffers and the producers that fill them.
type Engine struct {
	ctl *control.Control
	log *log.Logger

	minConfidence float64
	intervals     []int
	dumpDir       string

	capture  func() (string, []string)
	download func(url string) (string, []string)
	resolve  producer.Resolver
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger replaces the default stderr logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMinConfidence overrides the decision threshold.
func WithMinConfidence(v float64) Option {
	return func(e *Engine) { e.minConfidence = v }
}

// WithIntervals replaces the sample checkpoint lengths. Values are in
// frames, strictly increasing; the last one sizes the sample buffer.
func WithIntervals(intervals []int) Option {
	return func(e *Engine) { e.intervals = intervals }
}

// WithCaptureCommand replaces the capture byte-producer command.
func WithCaptureCommand(f func() (string, []string)) Option {
	return func(e *Engine) { e.capture = f }
}

// WithDownloadCommand replaces the download byte-producer command.
func WithDownloadCommand(f func(url string) (string, []string)) Option {
	return func(e *Engine) { e.download = f }
}

// WithResolver replaces the track-title resolver.
func WithResolver(r producer.Resolver) Option {
	return func(e *Engine) { e.resolve = r }
}

// WithDumpDir sets the directory for debug WAV dumps.
func WithDumpDir(dir string) Option {
	return func(e *Engine) { e.dumpDir = dir }
}

// New returns an Engine with the production defaults: pulse capture,
// yt-dlp resolution and ffmpeg download.
func New(opts ...Option) *Engine {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "audiosync"})
	logger.SetLevel(log.WarnLevel)

	e := &Engine{
		ctl:           control.New(),
		log:           logger,
		minConfidence: MinConfidence,
		intervals:     DefaultIntervals,
		capture:       producer.CaptureCommand,
		download:      producer.DownloadCommand,
		resolve:       producer.ResolveURL,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run synchronizes against the given track title and returns the lag in
// milliseconds. Positive means the local sample runs behind the
// reference. At most one run is active per engine; concurrent calls
// return ErrBusy.
func (e *Engine) Run(title string) (int64, error) {
	if !e.ctl.TryStart() {
		return 0, ErrBusy
	}
	defer e.ctl.Reset()

	n := len(e.intervals)
	if n == 0 {
		return 0, ErrNoMatch
	}
	sampleLen := e.intervals[n-1]
	sourceIntervals := make([]int, n)
	for i, iv := range e.intervals {
		sourceIntervals[i] = 2 * iv
	}

	sampleBuf, err := producer.NewBuffer(sampleLen, e.intervals)
	if err != nil {
		return 0, err
	}
	sourceBuf, err := producer.NewBuffer(2*sampleLen, sourceIntervals)
	if err != nil {
		return 0, err
	}

	e.log.Debug("starting run", "title", title, "intervals", n)

	var wg sync.WaitGroup
	var captureErr, downloadErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		name, args := e.capture()
		pipe := producer.NewPipe(e.ctl, sampleBuf, e.log.With("producer", "capture"))
		captureErr = pipe.Run(name, args...)
	}()
	go func() {
		defer wg.Done()
		url, err := e.resolve(title)
		if err != nil {
			downloadErr = err
			e.log.Error("resolver failed", "title", title, "err", err)
			e.ctl.Abort()
			return
		}
		e.log.Debug("resolved track", "title", title, "url", url)
		name, args := e.download(url)
		pipe := producer.NewPipe(e.ctl, sourceBuf, e.log.With("producer", "download"))
		downloadErr = pipe.Run(name, args...)
	}()

	lagMS, runErr := e.evaluate(sampleBuf, sourceBuf)

	// Either outcome tears the producers down the same way: flip to
	// aborting, join both, reset to idle (deferred).
	e.ctl.Abort()
	wg.Wait()

	if e.ctl.Debug() {
		e.dump(sampleBuf, sourceBuf)
	}

	if errors.Is(runErr, ErrAborted) {
		// The wakeup may have been a failing producer rather than an
		// external abort; the producer's error is the real cause.
		if captureErr != nil {
			return 0, captureErr
		}
		if downloadErr != nil {
			return 0, downloadErr
		}
	}
	if runErr != nil {
		return 0, runErr
	}
	return lagMS, nil
}

// evaluate walks the interval sequence, waiting for both buffers to
// reach each checkpoint and scoring the correlation until one result
// clears the confidence threshold.
func (e *Engine) evaluate(sampleBuf, sourceBuf *producer.Buffer) (int64, error) {
	for i, interval := range e.intervals {
		srcInterval := 2 * interval
		st := e.ctl.WaitInterval(func() bool {
			return sampleBuf.FilledLocked() >= interval &&
				sourceBuf.FilledLocked() >= srcInterval
		})
		if st == control.StatusAborting {
			return 0, ErrAborted
		}

		start := time.Now()
		res, err := correlation.CrossCorrelation(
			sourceBuf.Data()[:srcInterval],
			sampleBuf.Data()[:interval],
		)
		if err != nil {
			if errors.Is(err, correlation.ErrDegenerate) {
				e.log.Debug("degenerate interval, skipping", "interval", i)
				continue
			}
			return 0, err
		}

		lagMS := LagToMS(res.Lag)
		e.log.Debug("interval evaluated",
			"interval", i,
			"lag_frames", res.Lag,
			"lag_ms", lagMS,
			"confidence", res.Confidence,
			"elapsed", time.Since(start))

		if math.Abs(res.Confidence) >= e.minConfidence {
			return lagMS, nil
		}
	}
	return 0, ErrNoMatch
}

// LagToMS converts a lag in frames to milliseconds, rounding half away
// from zero.
func LagToMS(frames int64) int64 {
	return int64(math.Round(float64(frames) * FramesToMS))
}

// Pause suspends an active run; a no-op otherwise.
func (e *Engine) Pause() { e.ctl.Pause() }

// Resume continues a paused run; a no-op otherwise.
func (e *Engine) Resume() { e.ctl.Resume() }

// Abort cancels an active run; a no-op otherwise.
func (e *Engine) Abort() { e.ctl.Abort() }

// Status returns "idle", "running", "paused" or "aborting".
func (e *Engine) Status() string { return e.ctl.Status().String() }

// SetDebug toggles debug diagnostics: debug-level logging and WAV dumps
// of both buffers after a run.
func (e *Engine) SetDebug(on bool) {
	e.ctl.SetDebug(on)
	if on {
		e.log.SetLevel(log.DebugLevel)
	} else {
		e.log.SetLevel(log.WarnLevel)
	}
}

// Debug reports whether debug diagnostics are on.
func (e *Engine) Debug() bool { return e.ctl.Debug() }
