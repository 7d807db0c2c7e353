package producer

import (
	"strconv"
	"sync"
)

// defaultDevice records the whole desktop audio when no dedicated
// monitor was registered.
const defaultDevice = "default"

var (
	monitorMu sync.Mutex
	monitor   string
)

// UseMonitor registers the monitor of the virtual sink created by the
// external PulseAudio setup collaborator. Capture then records that
// sink instead of the whole desktop. An empty name reverts to the
// default device.
func UseMonitor(name string) {
	monitorMu.Lock()
	defer monitorMu.Unlock()
	monitor = name
}

// CaptureDevice returns the pulse input the next capture will record.
func CaptureDevice() string {
	monitorMu.Lock()
	defer monitorMu.Unlock()
	if monitor == "" {
		return defaultDevice
	}
	return monitor
}

// CaptureCommand builds the byte-producer command that records local
// audio as raw little-endian float64 mono at the shared sample rate.
func CaptureCommand() (string, []string) {
	return "ffmpeg", []string{
		"-y",
		"-to", strconv.Itoa(MaxSeconds),
		"-f", "pulse",
		"-i", CaptureDevice(),
		"-ac", strconv.Itoa(NumChannels),
		"-r", strconv.Itoa(SampleRate),
		"-f", "f64le",
		"pipe:1",
	}
}
