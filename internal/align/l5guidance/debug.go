package l5guidance

import (
	"log"
	"sync"

	"github.com/banshee-data/wall.align/internal/monitoring"
)

var (
	logMu       sync.RWMutex
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures the three logging streams for the guidance package.
// A nil writer disables that stream.
func SetLogWriters(w monitoring.LogWriters) {
	logMu.Lock()
	defer logMu.Unlock()
	opsLogger = monitoring.NewLogger("[guidance] ", w.Ops)
	diagLogger = monitoring.NewLogger("[guidance] ", w.Diag)
	traceLogger = monitoring.NewLogger("[guidance] ", w.Trace)
}

func logf(l **log.Logger, format string, args ...interface{}) {
	logMu.RLock()
	lg := *l
	logMu.RUnlock()
	if lg != nil {
		lg.Printf(format, args...)
	}
}

// opsf logs to the ops stream (lost targets, configuration problems).
func opsf(format string, args ...interface{}) { logf(&opsLogger, format, args...) }

// diagf logs to the diag stream (state transitions, session lifecycle).
func diagf(format string, args ...interface{}) { logf(&diagLogger, format, args...) }

// tracef logs to the trace stream (per-frame deviation telemetry).
func tracef(format string, args ...interface{}) { logf(&traceLogger, format, args...) }
