// Command audiosync runs one synchronization against the given track
// title and prints the measured lag in milliseconds.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	flag "github.com/spf13/pflag"

	"github.com/vidify/old-audiosync/audiosync"
)

func main() {
	debug := flag.Bool("debug", false, "Verbose logs plus WAV dumps of both streams")
	monitor := flag.String("monitor", "", "Record this pulse monitor instead of the default device")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: audiosync [flags] <track title>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	title := flag.Arg(0)

	if *monitor != "" {
		audiosync.UseMonitor(*monitor)
	}
	audiosync.SetDebug(*debug)

	lag, err := audiosync.Run(title)
	if err != nil {
		log.Error("synchronization failed", "title", title, "err", err)
		os.Exit(1)
	}
	fmt.Printf("%d ms\n", lag)
}
