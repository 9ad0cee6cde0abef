// Package logging builds the zerolog loggers used by the itemx-gen command.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Format selects how log lines are written
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Config configures a logger
type Config struct {
	Level     string
	Format    Format
	Component string
	Output    io.Writer
	Fields    map[string]string
}

// ParseLevel maps a level name to a zerolog level. An empty name means info.
func ParseLevel(name string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off":
		return zerolog.Disabled, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level '%s'", name)
	}
}

// ParseFormat maps a format name to a Format. An empty name means console.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case "", FormatConsole:
		return FormatConsole, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown log format '%s'", name)
	}
}

// New creates a logger from config
func New(config Config) (zerolog.Logger, error) {
	level, err := ParseLevel(config.Level)
	if err != nil {
		return zerolog.Nop(), err
	}
	format, err := ParseFormat(string(config.Format))
	if err != nil {
		return zerolog.Nop(), err
	}

	out := config.Output
	if out == nil {
		out = os.Stderr
	}

	var w io.Writer = out
	if format == FormatConsole {
		w = zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    !isTerminal(out),
			TimeFormat: "15:04:05.000",
		}
	}

	ctx := zerolog.New(w).Level(level).With().Timestamp()
	if config.Component != "" {
		ctx = ctx.Str("component", config.Component)
	}
	for key, value := range config.Fields {
		ctx = ctx.Str(key, value)
	}
	return ctx.Logger(), nil
}

// Must is New for static configurations; it panics on an invalid level or format
func Must(config Config) zerolog.Logger {
	logger, err := New(config)
	if err != nil {
		panic(err)
	}
	return logger
}

// WithRun returns a child logger tagged with a run identifier
func WithRun(logger zerolog.Logger, runID string) zerolog.Logger {
	return logger.With().Str("run_id", runID).Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}
