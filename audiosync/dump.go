package audiosync

import (
	"os"
	"path/filepath"

	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"

	"github.com/vidify/old-audiosync/producer"
)

// dump writes both signal buffers as mono WAV files so a debugging
// session can inspect what the producers actually delivered.
func (e *Engine) dump(sampleBuf, sourceBuf *producer.Buffer) {
	dir := e.dumpDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "audiosync")
	}
	if err := writeMonoWAV(filepath.Join(dir, "sample.wav"), sampleBuf.Data()); err != nil {
		e.log.Warn("sample dump failed", "err", err)
		return
	}
	if err := writeMonoWAV(filepath.Join(dir, "source.wav"), sourceBuf.Data()); err != nil {
		e.log.Warn("source dump failed", "err", err)
		return
	}
	e.log.Debug("wrote debug dumps", "dir", dir)
}

func writeMonoWAV(path string, samples []float64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, SampleRate, 16, 1, 1)
	defer enc.Close()

	data := make([]float32, len(samples))
	for i, s := range samples {
		data[i] = float32(s)
	}
	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  SampleRate,
			NumChannels: 1,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	return enc.Write(buf)
}
