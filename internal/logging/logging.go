// Package logging is a thin printf-style facade over zerolog.
//
// A nil *Logger is valid and discards everything, so stages can log
// unconditionally.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

type Config struct {
	Level  string
	Format Format
	Output io.Writer
}

type Logger struct {
	zl zerolog.Logger
}

// New returns a logger writing to cfg.Output (stderr when nil).
func New(cfg Config) (*Logger, error) {
	w := cfg.Output
	if w == nil {
		w = os.Stderr
	}

	lvl := zerolog.InfoLevel
	if cfg.Level != "" {
		var err error
		lvl, err = zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q", cfg.Level)
		}
	}

	switch cfg.Format {
	case FormatText, "":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: !isTerminal(w)}
	case FormatJSON:
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	return &Logger{zl: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}, nil
}

// NewTest returns a logger that writes without timestamps to w, for tests.
func NewTest(w io.Writer, lvl zerolog.Level) *Logger {
	return &Logger{zl: zerolog.New(w).Level(lvl)}
}

// With returns a child logger carrying an additional field.
func (l *Logger) With(key, value string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{zl: l.zl.With().Str(key, value).Logger()}
}

func (l *Logger) Debugf(format string, args ...any) {
	if l != nil {
		l.zl.Debug().Msgf(format, args...)
	}
}

func (l *Logger) Infof(format string, args ...any) {
	if l != nil {
		l.zl.Info().Msgf(format, args...)
	}
}

func (l *Logger) Warnf(format string, args ...any) {
	if l != nil {
		l.zl.Warn().Msgf(format, args...)
	}
}

func (l *Logger) Errorf(format string, args ...any) {
	if l != nil {
		l.zl.Error().Msgf(format, args...)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
