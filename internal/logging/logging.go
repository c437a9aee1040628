// Package logging wraps logrus with the formatting and file-rotation
// conventions used across the server. Import it aliased as log.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var base = logrus.New()

// SetupBaseLogger configures the process-wide logger with timestamped
// text output on stderr. Call once from main before any logging.
func SetupBaseLogger() {
	base.SetOutput(os.Stderr)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	base.SetLevel(logrus.InfoLevel)
}

// SetDebug toggles debug-level logging.
func SetDebug(enabled bool) {
	if enabled {
		base.SetLevel(logrus.DebugLevel)
	} else {
		base.SetLevel(logrus.InfoLevel)
	}
}

// ConfigureLogOutput redirects log output to a rotated file under dir
// when toFile is true. Rotation keeps 5 files of 20MB each.
func ConfigureLogOutput(toFile bool, dir string) error {
	if !toFile {
		return nil
	}
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	rotated := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "arni-worker.log"),
		MaxSize:    20,
		MaxBackups: 5,
		MaxAge:     28,
		Compress:   true,
	}
	base.SetOutput(io.MultiWriter(os.Stderr, rotated))
	return nil
}

func Debugf(format string, args ...any) { base.Debugf(format, args...) }
func Infof(format string, args ...any)  { base.Infof(format, args...) }
func Warnf(format string, args ...any)  { base.Warnf(format, args...) }
func Errorf(format string, args ...any) { base.Errorf(format, args...) }
func Fatalf(format string, args ...any) { base.Fatalf(format, args...) }

// Writer exposes the underlying writer for components that need an
// io.Writer (e.g. gin's default logger).
func Writer() io.Writer { return base.Writer() }
