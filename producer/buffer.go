// Package producer streams float64 audio from external byte-producer
// processes (ffmpeg) into caller-owned signal buffers, signaling the
// controller as analysis intervals fill up.
package producer

import (
	"fmt"

	"github.com/vidify/old-audiosync/control"
)

// Audio contract shared by both producers. Both streams must arrive in
// the exact same format for the correlation to be meaningful.
const (
	// SampleRate is fixed at 48 kHz; it is the only rate the remote
	// sources reliably deliver, and both streams must share it.
	SampleRate = 48000

	// NumChannels is mono.
	NumChannels = 1

	// MaxSeconds caps the duration each producer records or downloads.
	MaxSeconds = 30
)

// Buffer is a fixed-capacity signal buffer owned by the run controller
// and written by exactly one producer. The filled length is only
// mutated under the control lock, which is also how the controller
// reads it while producers are live.
type Buffer struct {
	data      []float64
	intervals []int

	// Guarded by the owning Control's lock.
	filled int
	next   int
}

// NewBuffer allocates a buffer of the given capacity with its interval
// checkpoints. Intervals must be strictly increasing and end exactly at
// the capacity.
func NewBuffer(capacity int, intervals []int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("producer: buffer capacity %d", capacity)
	}
	if len(intervals) == 0 {
		return nil, fmt.Errorf("producer: no intervals")
	}
	prev := 0
	for _, iv := range intervals {
		if iv <= prev {
			return nil, fmt.Errorf("producer: intervals must increase, got %v", intervals)
		}
		prev = iv
	}
	if prev != capacity {
		return nil, fmt.Errorf("producer: last interval %d != capacity %d", prev, capacity)
	}
	return &Buffer{
		data:      make([]float64, capacity),
		intervals: intervals,
	}, nil
}

// Capacity returns the total sample capacity.
func (b *Buffer) Capacity() int { return len(b.data) }

// Data exposes the underlying storage. The writing producer owns
// [filled, capacity); the controller reads [0, interval) only after the
// corresponding checkpoint was signaled.
func (b *Buffer) Data() []float64 { return b.data }

// Intervals returns the checkpoint lengths.
func (b *Buffer) Intervals() []int { return b.intervals }

// FilledLocked returns the number of valid samples. The caller must
// hold the control lock, e.g. inside a WaitInterval predicate or
// Locked closure.
func (b *Buffer) FilledLocked() int { return b.filled }

// Commit publishes n newly written samples and signals the controller
// for every checkpoint the new length crossed.
func (b *Buffer) Commit(c *control.Control, n int) {
	crossed := false
	c.Locked(func() {
		b.filled += n
		for b.next < len(b.intervals) && b.filled >= b.intervals[b.next] {
			b.next++
			crossed = true
		}
	})
	if crossed {
		c.SignalInterval()
	}
}

// FillTail zero-fills the unwritten remainder, marks the buffer
// complete and signals the final checkpoint. Called when the byte
// producer ends before the buffer is full.
func (b *Buffer) FillTail(c *control.Control) {
	c.Locked(func() {
		for i := b.filled; i < len(b.data); i++ {
			b.data[i] = 0
		}
		b.filled = len(b.data)
		b.next = len(b.intervals)
	})
	c.SignalInterval()
}
