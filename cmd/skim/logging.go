package main

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// setupLogging points the global logger at w. A terminal gets the console
// writer unless JSON is forced.
func setupLogging(w io.Writer, verbose, forceJSON bool) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = newLogger(w, forceJSON)
}

func newLogger(w io.Writer, forceJSON bool) zerolog.Logger {
	if !forceJSON && isTerminal(w) {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
