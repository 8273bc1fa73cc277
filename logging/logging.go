// Package logging builds the slog loggers used by the command-line tools.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
)

// Output formats.
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

// Options configures New.
type Options struct {
	// Level is debug, info, warn or error. Empty means info.
	Level string
	// Format is auto, text or json. Auto writes text to terminals and JSON
	// everywhere else. Empty means auto.
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// New creates a logger from opts.
//
// Arguments:
//   - opts: Level, format and destination.
//
// Returns:
//   - *slog.Logger: The logger.
//   - error: An error if the level or format is unknown.
func New(opts Options) (*slog.Logger, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" || format == FormatAuto {
		format = FormatJSON
		if IsTerminal(out) {
			format = FormatText
		}
	}

	switch format {
	case FormatText:
		return slog.New(slog.NewTextHandler(out, handlerOpts)), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(out, handlerOpts)), nil
	default:
		return nil, errors.Errorf("unknown log format %q", opts.Format)
	}
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(name string) (slog.Level, error) {
	if strings.TrimSpace(name) == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return 0, errors.Wrapf(err, "unknown log level %q", name)
	}
	return level, nil
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
