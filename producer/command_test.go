package producer

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureCommandDefaults(t *testing.T) {
	UseMonitor("")
	name, args := CaptureCommand()

	assert.Equal(t, "ffmpeg", name)
	assert.Equal(t, []string{
		"-y", "-to", "30", "-f", "pulse", "-i", "default",
		"-ac", "1", "-r", "48000", "-f", "f64le", "pipe:1",
	}, args)
}

func TestCaptureCommandUsesRegisteredMonitor(t *testing.T) {
	UseMonitor("audiosync.monitor")
	t.Cleanup(func() { UseMonitor("") })

	assert.Equal(t, "audiosync.monitor", CaptureDevice())

	_, args := CaptureCommand()
	assert.Contains(t, args, "audiosync.monitor")
	assert.NotContains(t, args, "default")
}

func TestDownloadCommand(t *testing.T) {
	name, args := DownloadCommand("https://cdn.example/media.webm")

	assert.Equal(t, "ffmpeg", name)
	assert.Equal(t, []string{
		"-y", "-to", "30", "-i", "https://cdn.example/media.webm",
		"-ac", "1", "-r", "48000", "-f", "f64le", "pipe:1",
	}, args)
}

func TestFirstLineTakesOnlyTheFirstLine(t *testing.T) {
	cmd := exec.Command("sh", "-c", "echo 'https://cdn.example/a'; echo ignored")
	url, err := firstLine(cmd, "some title")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/a", url)
}

func TestFirstLineEmptyOutput(t *testing.T) {
	cmd := exec.Command("true")
	_, err := firstLine(cmd, "some title")
	require.ErrorIs(t, err, ErrResolve)
}

func TestFirstLineCommandFailure(t *testing.T) {
	cmd := exec.Command("false")
	_, err := firstLine(cmd, "some title")
	require.ErrorIs(t, err, ErrResolve)
}
