package monitoring

import (
	"io"
	"log"
	"os"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// LogWriters holds the io.Writers for the three alignment logging streams.
// A nil writer disables that stream.
type LogWriters struct {
	Ops   io.Writer // actionable warnings, calibration failures, lost targets
	Diag  io.Writer // per-session diagnostics and tuning context
	Trace io.Writer // per-frame telemetry
}

// WritersFromEnv builds LogWriters from WALLALIGN_LOG. Values:
//
//	""      ops to stderr only
//	"off"   everything disabled
//	"diag"  ops and diag to stderr
//	"trace" all three streams to stderr
//
// Any other value is treated as a file path that receives all streams.
func WritersFromEnv() (LogWriters, func() error, error) {
	noop := func() error { return nil }
	switch v := os.Getenv("WALLALIGN_LOG"); v {
	case "":
		return LogWriters{Ops: os.Stderr}, noop, nil
	case "off":
		return LogWriters{}, noop, nil
	case "diag":
		return LogWriters{Ops: os.Stderr, Diag: os.Stderr}, noop, nil
	case "trace":
		return LogWriters{Ops: os.Stderr, Diag: os.Stderr, Trace: os.Stderr}, noop, nil
	default:
		f, err := os.OpenFile(v, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return LogWriters{Ops: os.Stderr}, noop, err
		}
		return LogWriters{Ops: f, Diag: f, Trace: f}, f.Close, nil
	}
}

// NewLogger creates a *log.Logger for w, or returns nil if w is nil.
func NewLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}
