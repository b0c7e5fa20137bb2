package handlers

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"go.uber.org/zap/zapcore"
	crzap "sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// newLogger returns a console logger writing to w. Verbose enables debug
// lines and caller information.
func newLogger(w io.Writer, verbose bool) logr.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	return crzap.New(
		crzap.WriteTo(w),
		crzap.UseDevMode(verbose),
		crzap.ConsoleEncoder(),
		crzap.Level(level),
		crzap.StacktraceLevel(zapcore.PanicLevel),
	).WithName("k8solo")
}

// openLogFile opens path for appending, creating its directory.
func openLogFile(path string) (io.WriteCloser, error) {
	if err := appFS.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := appFS.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}
