package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the root logger. With LogDir set, events are also
// appended to combined.log, and error events to error.log. The returned
// closer releases those files.
func NewLogger(cfg *Config) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var console io.Writer = os.Stdout
	if cfg.LogFormat == "console" {
		console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	writers := []io.Writer{console}
	files := closers{}

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("create log dir: %w", err)
		}
		combined, err := openLogFile(filepath.Join(cfg.LogDir, "combined.log"))
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		files = append(files, combined)
		errorsOnly, err := openLogFile(filepath.Join(cfg.LogDir, "error.log"))
		if err != nil {
			files.Close()
			return zerolog.Nop(), nil, err
		}
		files = append(files, errorsOnly)

		writers = append(writers, combined, &zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: errorsOnly},
			Level:  zerolog.ErrorLevel,
		})
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	return logger, files, nil
}

func openLogFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

type closers []io.Closer

func (c closers) Close() error {
	var errs []error
	for _, cl := range c {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
