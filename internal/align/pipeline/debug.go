package pipeline

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

// SetLogWriters configures the three logging streams for the pipeline package.
// A nil writer disables that stream.
func SetLogWriters(w monitoring.LogWriters) {
	logMu.Lock()
	defer logMu.Unlock()
	opsLogger = monitoring.NewLogger("[pipeline] ", w.Ops)
	diagLogger = monitoring.NewLogger("[pipeline] ", w.Diag)
	traceLogger = monitoring.NewLogger("[pipeline] ", w.Trace)
}

func logf(l **log.Logger, format string, args ...interface{}) {
	logMu.RLock()
	lg := *l
	logMu.RUnlock()
	if lg != nil {
		lg.Printf(format, args...)
	}
}

// opsf logs to the ops stream (actionable warnings, errors, data loss).
func opsf(format string, args ...interface{}) { logf(&opsLogger, format, args...) }

// diagf logs to the diag stream (run lifecycle, drop summaries).
func diagf(format string, args ...interface{}) { logf(&diagLogger, format, args...) }

// tracef logs to the trace stream (per-frame telemetry).
func tracef(format string, args ...interface{}) { logf(&traceLogger, format, args...) }
