package producer

import (
	"bufio"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Resolver turns a track title into a direct media URL.
type Resolver func(title string) (string, error)

// ResolveURL asks yt-dlp for the best-audio stream URL of the first
// search hit and reads the single line it prints.
func ResolveURL(title string) (string, error) {
	cmd := exec.Command("yt-dlp",
		"--get-url",
		"--format", "bestaudio",
		"--no-playlist",
		"ytsearch1:"+title,
	)
	return firstLine(cmd, title)
}

// firstLine runs the resolver command and returns the first line of its
// standard output.
func firstLine(cmd *exec.Cmd, title string) (string, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("%w: stdout pipe: %v", ErrResolve, err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrResolve, cmd.Path, err)
	}

	scanner := bufio.NewScanner(stdout)
	// Stream URLs can exceed bufio's default token size.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var url string
	if scanner.Scan() {
		url = strings.TrimSpace(scanner.Text())
	}
	// Drain so the child never blocks on a full pipe before exiting.
	for scanner.Scan() {
	}
	if err := cmd.Wait(); err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrResolve, title, err)
	}
	if url == "" {
		return "", fmt.Errorf("%w: empty result for %q", ErrResolve, title)
	}
	return url, nil
}

// DownloadCommand builds the byte-producer command that fetches the
// resolved URL and transcodes it to the shared raw stream format.
func DownloadCommand(url string) (string, []string) {
	return "ffmpeg", []string{
		"-y",
		"-to", strconv.Itoa(MaxSeconds),
		"-i", url,
		"-ac", strconv.Itoa(NumChannels),
		"-r", strconv.Itoa(SampleRate),
		"-f", "f64le",
		"pipe:1",
	}
}
