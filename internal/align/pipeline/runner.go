package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/wall.align/internal/align/l1frames"
	"github.com/banshee-data/wall.align/internal/align/l5guidance"
	"github.com/banshee-data/wall.align/internal/config"
	"github.com/banshee-data/wall.align/internal/timeutil"
)

// Stepper advances guidance by one frame. *l5guidance.Engine satisfies it.
type Stepper interface {
	Step(frame l1frames.Frame) (l5guidance.GuidanceResult, error)
}

// Config tunes a Runner.
type Config struct {
	// MaxFrameAge drops frames whose timestamp is older than this when they
	// reach the engine. Zero disables the check.
	MaxFrameAge time.Duration
	// Lossless reads the source directly instead of through the
	// latest-wins mailbox, so every frame is processed. Used for replay.
	Lossless bool
	// Clock is used for frame age. Nil means the wall clock.
	Clock timeutil.Clock
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{MaxFrameAge: cfg.GetMaxFrameAge()}
}

// Stats counts what happened to frames. All counters are cumulative.
type Stats struct {
	Received      uint64 // frames read from the source
	Processed     uint64 // frames stepped through the engine
	Superseded    uint64 // replaced in the mailbox before being taken
	Stale         uint64 // older than MaxFrameAge
	SizeMismatch  uint64 // dimensions differ from the first frame
	Uncalibrated  uint64 // skipped while no calibration was active
	SinkErrors    uint64
	LastFrameSeq  uint64
	LastState     l5guidance.State
	LastProcessed time.Time
}

// Runner drives one alignment loop. One goroutine pumps the source into
// the mailbox and the Run goroutine owns the engine, so a slow step never
// queues frames: it only causes older ones to be superseded.
type Runner struct {
	src    l1frames.Source
	engine Stepper
	sink   Sink
	cfg    Config

	received     atomic.Uint64
	processed    atomic.Uint64
	stale        atomic.Uint64
	sizeMismatch atomic.Uint64
	uncalibrated atomic.Uint64
	sinkErrors   atomic.Uint64

	mu        sync.Mutex
	box       *l1frames.Mailbox
	size      image.Point
	haveSize  bool
	lastSeq   uint64
	lastState l5guidance.State
	lastAt    time.Time
}

// NewRunner creates a Runner. sinks may be empty.
func NewRunner(src l1frames.Source, engine Stepper, cfg Config, sinks ...Sink) *Runner {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Runner{src: src, engine: engine, sink: MultiSink(sinks), cfg: cfg}
}

// Run processes frames until the source is exhausted (nil), ctx is
// cancelled (ctx.Err()) or the engine fails with anything other than
// ErrNotCalibrated. A source error ends the run with that error after
// already-delivered frames are processed.
func (r *Runner) Run(ctx context.Context) error {
	if r.cfg.Lossless {
		return r.runLossless(ctx)
	}

	box := l1frames.NewMailbox()
	r.mu.Lock()
	r.box = box
	r.mu.Unlock()

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var srcErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer box.Close()
		for {
			f, err := r.src.Next(ctx)
			if err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					srcErr = err
				}
				return
			}
			r.received.Add(1)
			if !box.Put(f) {
				return
			}
		}
	}()

	err := r.consume(ctx, box.Next)
	cancel()
	wg.Wait()
	if err == nil {
		err = srcErr
	}
	if err == nil {
		// The pump may close the mailbox on cancellation before the
		// consumer notices ctx.
		err = parent.Err()
	}
	r.logSummary()
	return err
}

func (r *Runner) runLossless(ctx context.Context) error {
	err := r.consume(ctx, func(ctx context.Context) (l1frames.Frame, error) {
		f, err := r.src.Next(ctx)
		if err == nil {
			r.received.Add(1)
		}
		return f, err
	})
	r.logSummary()
	return err
}

func (r *Runner) consume(ctx context.Context, next func(context.Context) (l1frames.Frame, error)) error {
	for {
		f, err := next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := r.process(f); err != nil {
			return err
		}
	}
}

func (r *Runner) process(f l1frames.Frame) error {
	if age := r.cfg.MaxFrameAge; age > 0 && !f.Timestamp.IsZero() {
		if d := r.cfg.Clock.Since(f.Timestamp); d > age {
			r.stale.Add(1)
			tracef("frame %d dropped: %v old", f.Seq, d)
			return nil
		}
	}

	size := f.Size()
	r.mu.Lock()
	if !r.haveSize {
		r.size, r.haveSize = size, true
	}
	want := r.size
	r.mu.Unlock()
	if size != want {
		r.sizeMismatch.Add(1)
		opsf("frame %d dropped: size %v, expected %v", f.Seq, size, want)
		return nil
	}

	res, err := r.engine.Step(f)
	if errors.Is(err, l5guidance.ErrNotCalibrated) {
		if r.uncalibrated.Add(1) == 1 {
			opsf("frames are being skipped until a calibration is installed")
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("frame %d: %w", f.Seq, err)
	}
	r.processed.Add(1)

	r.mu.Lock()
	r.lastSeq, r.lastState, r.lastAt = f.Seq, res.State, r.cfg.Clock.Now()
	r.mu.Unlock()
	tracef("frame %d: %s %q", f.Seq, res.State, res.Primary.Text)

	if err := r.sink.RecordGuidance(res); err != nil {
		r.sinkErrors.Add(1)
		opsf("frame %d: sink: %v", f.Seq, err)
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (r *Runner) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Stats{
		Received:      r.received.Load(),
		Processed:     r.processed.Load(),
		Stale:         r.stale.Load(),
		SizeMismatch:  r.sizeMismatch.Load(),
		Uncalibrated:  r.uncalibrated.Load(),
		SinkErrors:    r.sinkErrors.Load(),
		LastFrameSeq:  r.lastSeq,
		LastState:     r.lastState,
		LastProcessed: r.lastAt,
	}
	if r.box != nil {
		s.Superseded = r.box.Dropped()
	}
	return s
}

func (r *Runner) logSummary() {
	s := r.Stats()
	diagf("run finished: received=%d processed=%d superseded=%d stale=%d size_mismatch=%d uncalibrated=%d sink_errors=%d",
		s.Received, s.Processed, s.Superseded, s.Stale, s.SizeMismatch, s.Uncalibrated, s.SinkErrors)
}
