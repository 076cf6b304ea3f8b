// Package util provides the ambient logging and traffic-stats
// plumbing shared by the peer engine, server demux, and client shell.
package util

import (
	"fmt"

	"github.com/pterm/pterm"
)

func init() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 15:04:05.000"
	pterm.DefaultLogger.MaxWidth = 1000
}

// Leveled logging functions backed by pterm prefixed printers. All
// output goes to stderr by default (pterm's default). Decode and
// sequencing errors inside the engine are logged at Debug/Warning and
// swallowed per the transport's error-handling policy; only
// application-visible enqueue/send failures are returned as errors.

func LogDebug(format string, args ...interface{}) {
	pterm.DefaultLogger.Debug(fmt.Sprintf(format, args...))
}

func LogInfo(format string, args ...interface{}) {
	pterm.DefaultLogger.Info(fmt.Sprintf(format, args...))
}

// LogWarning and LogError also tee into the structured file sink (see
// filelog.go), so a deployment that enables it doesn't miss anything
// visible on the console.

func LogWarning(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	pterm.DefaultLogger.Warn(msg)
	FileLogWarning(nil, msg)
}

func LogError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	pterm.DefaultLogger.Error(msg)
	FileLogError(nil, msg)
}

// EnableDebug configures the console logger to show debug messages.
func EnableDebug() {
	pterm.DefaultLogger.Level = pterm.LogLevelDebug
}
