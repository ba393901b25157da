// Package logging builds the process-wide zerolog.Logger. The upstream
// party-game CLI gates output behind a single cfg.verbose bool and
// writes plain lines with log.Printf; here the same verbose/non-verbose
// split selects between a human console writer and structured JSON,
// since the core has enough concurrent moving parts (dispatcher,
// coordinator, hubs) that "info" needs queryable fields in production.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a logger. In verbose mode it writes colorized, human
// readable lines to stderr; otherwise it writes one JSON object per
// line, suitable for shipping to a log aggregator.
func New(verbose bool) zerolog.Logger {
	var w io.Writer = os.Stderr

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	zerolog.SetGlobalLevel(level)

	return zerolog.New(w).With().Timestamp().Logger()
}
