// Package log configures zerolog for the pipeline's four binaries,
// following spec §6.5: JSON output by default, pretty console output
// in dev, every line carrying a "component" field.
package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger tagged with component ("prepare", "dispatch",
// "worker", "reaper"). Set LOG_FORMAT=console for human-readable
// output during local development; any other value (including unset)
// produces JSON.
func New(component string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var writer = os.Stderr
	var output zerolog.ConsoleWriter

	base := zerolog.New(writer).With().Timestamp().Str("component", component).Logger()

	if os.Getenv("LOG_FORMAT") == "console" {
		output = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.Kitchen}
		base = zerolog.New(output).With().Timestamp().Str("component", component).Logger()
	}

	return base
}
