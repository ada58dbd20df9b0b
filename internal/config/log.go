package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger: human-friendly console output
// on stderr unless Format is "json".
func (l Log) Setup() error {
	return l.setup(os.Stderr)
}

func (l Log) setup(out io.Writer) error {
	level := zerolog.InfoLevel
	if l.Level != "" {
		parsed, err := zerolog.ParseLevel(l.Level)
		if err != nil {
			return fmt.Errorf("log level: %w", err)
		}
		level = parsed
	}
	zerolog.SetGlobalLevel(level)

	switch l.Format {
	case "", "console":
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}).With().Timestamp().Logger()
	case "json":
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	default:
		return fmt.Errorf("log format %q: want console or json", l.Format)
	}
	return nil
}
