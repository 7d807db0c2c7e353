package audiosync

import "github.com/vidify/old-audiosync/producer"

// defaultEngine backs the package-level surface. It lives for the host
// process lifetime, matching the one-run-at-a-time contract.
var defaultEngine = New()

// Run synchronizes against a track title using the default engine.
func Run(title string) (int64, error) { return defaultEngine.Run(title) }

// Pause suspends the default engine's active run.
func Pause() { defaultEngine.Pause() }

// Resume continues the default engine's paused run.
func Resume() { defaultEngine.Resume() }

// Abort cancels the default engine's active run.
func Abort() { defaultEngine.Abort() }

// Status reports the default engine's state as a stable string.
func Status() string { return defaultEngine.Status() }

// SetDebug toggles debug diagnostics on the default engine.
func SetDebug(on bool) { defaultEngine.SetDebug(on) }

// Debug reports whether debug diagnostics are on.
func Debug() bool { return defaultEngine.Debug() }

// UseMonitor registers the capture monitor chosen by the external sink
// setup collaborator.
func UseMonitor(name string) { producer.UseMonitor(name) }
