package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	FormatAuto    = "auto"
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Init configures the global zerolog logger. When file is set, logs go
// there instead of stderr; the returned closer releases it.
func Init(level, format, file string) (io.Closer, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	out := os.Stderr
	var closer io.Closer = nopCloser{}
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, errors.Wrapf(err, "open log file %s", file)
		}
		out, closer = f, f
	}

	w, err := writerFor(format, out)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return closer, nil
}

func writerFor(format string, out *os.File) (io.Writer, error) {
	switch strings.ToLower(format) {
	case "", FormatAuto:
		if isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()) {
			return zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}, nil
		}
		return out, nil
	case FormatConsole:
		return zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen, NoColor: !isatty.IsTerminal(out.Fd())}, nil
	case FormatJSON:
		return out, nil
	default:
		return nil, errors.Errorf("unknown log format %q", format)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
