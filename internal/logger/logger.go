// Package logger configures the zerolog logger shared by all commands.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"falcon-dedupe/internal/common"
	"falcon-dedupe/internal/dedupe"
)

// Config controls logger construction
type Config struct {
	Verbosity common.VerbosityLevel
	Writer    io.Writer // defaults to os.Stderr
	JSON      bool      // raw JSON lines instead of console formatting
	RunID     string    // generated when empty
}

// New creates a logger carrying a run_id field on every event
func New(cfg Config) zerolog.Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	if !cfg.JSON {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	return zerolog.New(w).
		Level(cfg.Verbosity.ZerologLevel()).
		With().
		Timestamp().
		Str("run_id", runID).
		Logger()
}

// WithComponent returns a child logger tagged with a component name
func WithComponent(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}

// SelectionObserver logs selection events; attach it with dedupe.WithObserver
type SelectionObserver struct {
	Log zerolog.Logger
}

// Selected implements dedupe.Observer
func (o SelectionObserver) Selected(sel dedupe.Selection) {
	o.Log.Info().
		Str("hostname", sel.Hostname).
		Str("device_id", sel.ID).
		Time("last_seen", sel.LastSeen).
		Msg("selected stale duplicate")
}

// Skipped implements dedupe.Observer
func (o SelectionObserver) Skipped(rec dedupe.HostRecord, reason string) {
	o.Log.Warn().
		Str("device_id", rec.ID).
		Str("reason", reason).
		Msg("host record skipped")
}
