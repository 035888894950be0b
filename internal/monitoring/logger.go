// Package monitoring provides structured logging via zerolog.
//
// DESIGN: Thin wrapper around zerolog with console output for the CLI
// and a Setup() that configures the global logger for the whole
// application.
package monitoring

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger with pretty console
// output. debug enables debug-level events; trace additionally logs
// wire sizes.
func Setup(debug, trace bool) {
	SetupWriter(os.Stderr, debug, trace)
}

// SetupWriter is Setup with an explicit output, for tests.
func SetupWriter(out io.Writer, debug, trace bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "15:04:05",
	})

	switch {
	case trace:
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case debug:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
