package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how much the application logs.
type Options struct {
	// BaseDir holds the logs/ directory (usually ~/.qsyntax).
	BaseDir string

	// Level is one of debug, info, warn, error. Empty means info.
	Level string

	// Verbose also writes to Stderr.
	Verbose bool

	// Stderr defaults to os.Stderr.
	Stderr io.Writer
}

// Path returns the rotating log file location inside baseDir.
func Path(baseDir string) string {
	return filepath.Join(baseDir, "logs", "qsyntax.log")
}

// New returns a structured logger writing to a rotating file under
// BaseDir/logs. The returned closer flushes and closes the file.
// Stdout is never written to, so the logger is safe in MCP stdio mode.
func New(opts Options) (*log.Logger, io.Closer, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	if err := os.MkdirAll(filepath.Join(opts.BaseDir, "logs"), 0700); err != nil {
		return nil, nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	file := &lumberjack.Logger{
		Filename:   Path(opts.BaseDir),
		MaxSize:    5, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}

	var w io.Writer = file
	if opts.Verbose {
		stderr := opts.Stderr
		if stderr == nil {
			stderr = os.Stderr
		}
		w = io.MultiWriter(file, stderr)
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          "qsyntax",
		Level:           level,
	})
	return logger, file, nil
}

// Discard returns a logger that drops everything. Used by tests and by
// callers that were not handed a logger.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}
