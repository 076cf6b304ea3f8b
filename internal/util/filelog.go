package util

import (
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// fileLogger is the optional structured sink for long-running server
// processes: pterm stays the interactive console logger, this is the
// machine-readable counterpart, rotated on disk.
var (
	fileLoggerMu sync.RWMutex
	fileLogger   *logrus.Logger
)

// EnableFileLogging routes a copy of every WARN-and-above engine event
// to a size-rotated JSON log file at path. Safe to call once at
// startup; a no-op call site (no EnableFileLogging) keeps the fileLog*
// helpers below cheap no-ops.
func EnableFileLogging(path string, maxSizeMB, maxBackups, maxAgeDays int) {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetOutput(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	})

	fileLoggerMu.Lock()
	fileLogger = l
	fileLoggerMu.Unlock()
}

// DisableFileLogging detaches the structured file sink, useful in
// tests that enable it against a temp directory.
func DisableFileLogging() {
	fileLoggerMu.Lock()
	fileLogger = nil
	fileLoggerMu.Unlock()
}

func currentFileLogger() *logrus.Logger {
	fileLoggerMu.RLock()
	defer fileLoggerMu.RUnlock()
	return fileLogger
}

// FileLogWarning and FileLogError mirror the console-level helpers
// in log.go but target the structured file sink when one is configured.
// Callers pass structured fields (peer address, sequence numbers) so
// the resulting JSON lines are greppable without parsing pterm's
// human-oriented text.

func FileLogWarning(fields map[string]interface{}, msg string) {
	logToFile(logrus.WarnLevel, fields, msg)
}

func FileLogError(fields map[string]interface{}, msg string) {
	logToFile(logrus.ErrorLevel, fields, msg)
}

func logToFile(level logrus.Level, fields map[string]interface{}, msg string) {
	l := currentFileLogger()
	if l == nil {
		return
	}
	entry := l.WithFields(logrus.Fields(fields))
	switch level {
	case logrus.WarnLevel:
		entry.Warn(msg)
	case logrus.ErrorLevel:
		entry.Error(msg)
	default:
		entry.Info(msg)
	}
}
