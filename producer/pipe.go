package producer

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/vidify/old-audiosync/control"
)

// BufSize is the number of samples read from the child per iteration.
const BufSize = 4096

const bytesPerSample = 8

var (
	// ErrLaunch reports a child process that could not be spawned or
	// died before producing any data.
	ErrLaunch = errors.New("producer: launch failed")

	// ErrRead reports a pipe read failure mid-stream.
	ErrRead = errors.New("producer: pipe read failed")

	// ErrResolve reports that no playable URL could be resolved.
	ErrResolve = errors.New("producer: url resolution failed")
)

// Pipe drives one byte-producer child process, decoding little-endian
// float64 samples from its stdout into a Buffer and honoring the shared
// control state on every loop iteration.
type Pipe struct {
	ctl *control.Control
	buf *Buffer
	log *log.Logger
}

// NewPipe binds a pipe to its control surface and output buffer.
func NewPipe(ctl *control.Control, buf *Buffer, logger *log.Logger) *Pipe {
	return &Pipe{ctl: ctl, buf: buf, log: logger}
}

// Run spawns the byte producer and streams its output until the buffer
// fills, the stream ends, or the run aborts. On a short stream the
// buffer tail is zero-filled so the final interval still evaluates.
//
// Fatal errors flip the control state to aborting before returning, so
// a waiting controller always wakes.
func (p *Pipe) Run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return p.fail(fmt.Errorf("%w: stdout pipe: %v", ErrLaunch, err))
	}
	if p.ctl.Debug() {
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Start(); err != nil {
		return p.fail(fmt.Errorf("%w: %s: %v", ErrLaunch, name, err))
	}
	p.log.Debug("producer started", "cmd", name, "pid", cmd.Process.Pid)

	reader := bufio.NewReaderSize(stdout, BufSize*bytesPerSample)
	chunk := make([]byte, BufSize*bytesPerSample)
	capacity := p.buf.Capacity()
	total := 0
	var readErr error

loop:
	for total < capacity {
		switch p.ctl.Status() {
		case control.StatusAborting:
			break loop
		case control.StatusPaused:
			p.signal(cmd, syscall.SIGSTOP)
			if p.ctl.AwaitResume() == control.StatusAborting {
				break loop
			}
			p.signal(cmd, syscall.SIGCONT)
		}

		want := BufSize
		if rem := capacity - total; rem < want {
			want = rem
		}
		n, err := io.ReadFull(reader, chunk[:want*bytesPerSample])
		if got := n / bytesPerSample; got > 0 {
			decodeSamples(p.buf.Data()[total:total+got], chunk[:got*bytesPerSample])
			total += got
			p.buf.Commit(p.ctl, got)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break loop
			}
			readErr = fmt.Errorf("%w: %v", ErrRead, err)
			break loop
		}
	}

	// The child may still be streaming (full buffer or abort); the
	// kill also unblocks its blocked writes so Wait can reap it.
	_ = cmd.Process.Kill()
	waitErr := cmd.Wait()

	if readErr != nil {
		return p.fail(readErr)
	}
	if total == 0 && waitErr != nil && p.ctl.Status() != control.StatusAborting {
		// The child died without producing a single sample, the modern
		// shape of an exec failure inside the producer.
		return p.fail(fmt.Errorf("%w: %s produced no data: %v", ErrLaunch, name, waitErr))
	}
	if p.ctl.Status() == control.StatusAborting {
		p.log.Debug("producer aborted", "cmd", name, "samples", total)
		return nil
	}
	if total < capacity {
		p.log.Debug("stream ended early, zero-filling tail",
			"cmd", name, "samples", total, "capacity", capacity)
		p.buf.FillTail(p.ctl)
	}
	p.log.Debug("producer finished", "cmd", name, "samples", total)
	return nil
}

// fail records a fatal producer error and aborts the run so the
// controller wakes up and unwinds.
func (p *Pipe) fail(err error) error {
	p.log.Error("producer failed", "err", err)
	p.ctl.Abort()
	return err
}

func (p *Pipe) signal(cmd *exec.Cmd, sig syscall.Signal) {
	if cmd.Process == nil {
		return
	}
	if err := cmd.Process.Signal(sig); err != nil {
		p.log.Debug("signal delivery failed", "sig", sig, "err", err)
	}
}

func decodeSamples(dst []float64, src []byte) {
	for i := range dst {
		bits := binary.LittleEndian.Uint64(src[i*bytesPerSample:])
		dst[i] = math.Float64frombits(bits)
	}
}
