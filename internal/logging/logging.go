// Package logging configures the process-wide zerolog logger. Headless
// commands log human-readable lines to stderr; the TUI owns the terminal,
// so its logs go to a file or nowhere.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup routes the global logger to a console writer on stderr, keeping
// stdout clean for command output.
func Setup(level string) {
	zerolog.SetGlobalLevel(parseLevel(level))
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

// SetupTUI routes the global logger away from the terminal: JSON lines
// appended to file, or discarded when file is empty. The returned closer
// releases the log file once the TUI exits.
func SetupTUI(level, file string) (io.Closer, error) {
	zerolog.SetGlobalLevel(parseLevel(level))
	if file == "" {
		log.Logger = zerolog.New(io.Discard)
		return nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	log.Logger = zerolog.New(f).With().Timestamp().Logger()
	return f, nil
}

func parseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
