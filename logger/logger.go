/*
logger.go - Process-wide structured logging

PURPOSE:
  One leveled logger shared by the server, the CLI and the service layer.
  Calls before Init are dropped, so library code and tests can log freely.

OUTPUT:
  Stderr always. When Dir is set, a rotating file is added (timecost.log,
  10 MB per file, 3 backups, 28 days).
*/
package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var current atomic.Pointer[log.Logger]

// Config controls verbosity and the optional log directory.
type Config struct {
	Debug bool
	Dir   string
	// Quiet drops stderr output; useful for the CLI.
	Quiet bool
}

// Init builds the shared logger.
func Init(cfg Config) error {
	var writers []io.Writer
	if !cfg.Quiet {
		writers = append(writers, os.Stderr)
	}
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return err
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, "timecost.log"),
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	level := log.InfoLevel
	if cfg.Debug {
		level = log.DebugLevel
	}
	current.Store(log.NewWithOptions(io.MultiWriter(writers...), log.Options{
		ReportCaller:    cfg.Debug,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          "timecost",
	}))
	return nil
}

// SetOutput replaces the shared logger with one writing to w.
func SetOutput(w io.Writer, level log.Level) {
	current.Store(log.NewWithOptions(w, log.Options{Level: level}))
}

// Get returns the shared logger, or nil before Init.
func Get() *log.Logger {
	return current.Load()
}

func Debug(msg string, keyvals ...interface{}) {
	if l := current.Load(); l != nil {
		l.Debug(msg, keyvals...)
	}
}

func Info(msg string, keyvals ...interface{}) {
	if l := current.Load(); l != nil {
		l.Info(msg, keyvals...)
	}
}

func Warn(msg string, keyvals ...interface{}) {
	if l := current.Load(); l != nil {
		l.Warn(msg, keyvals...)
	}
}

func Error(msg string, keyvals ...interface{}) {
	if l := current.Load(); l != nil {
		l.Error(msg, keyvals...)
	}
}

// Fatal logs and exits with status 1.
func Fatal(msg string, keyvals ...interface{}) {
	if l := current.Load(); l != nil {
		l.Error(msg, keyvals...)
	}
	os.Exit(1)
}
