package utils

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerOptions describes where the application logger writes
type LoggerOptions struct {
	Prefix     string
	Output     string // stdout, file, both
	FilePath   string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// NewLogger builds the application logger. File output is rotated by lumberjack.
// The returned closer must be called on shutdown when file output is enabled.
func NewLogger(opts LoggerOptions) (*log.Logger, io.Closer, error) {
	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if opts.Output == "" || opts.Output == "stdout" || opts.Output == "both" {
		writers = append(writers, os.Stdout)
	}

	if opts.Output == "file" || opts.Output == "both" {
		if dir := filepath.Dir(opts.FilePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, err
			}
		}
		rotating := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSize,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAge,
			Compress:   opts.Compress,
		}
		writers = append(writers, rotating)
		closer = rotating
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	return log.New(io.MultiWriter(writers...), opts.Prefix, log.LstdFlags|log.LUTC|log.Lmicroseconds), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
