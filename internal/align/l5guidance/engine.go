package l5guidance

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/wall.align/internal/align/l1frames"
	"github.com/banshee-data/wall.align/internal/align/l2calib"
	"github.com/banshee-data/wall.align/internal/align/l3layout"
	"github.com/banshee-data/wall.align/internal/align/l4pose"
	"github.com/banshee-data/wall.align/internal/config"
)

var (
	// ErrNotCalibrated is returned by Step while no calibration is active.
	ErrNotCalibrated = errors.New("no active calibration")
	// ErrNoSession is returned by Step before an item has been selected.
	ErrNoSession = errors.New("no item selected")
)

// PoseEstimator locates the item in a frame. *l4pose.Estimator satisfies it.
type PoseEstimator interface {
	Estimate(frame l1frames.Frame, hint *l4pose.ObservedPose) (l4pose.ObservedPose, bool)
}

// CalibrationSource supplies the calibration snapshot for each frame.
// *l2calib.Active satisfies it.
type CalibrationSource interface {
	Current() *l2calib.Calibration
}

// TargetSource resolves planned items. *l3layout.Model satisfies it.
type TargetSource interface {
	TargetFor(id l3layout.ItemID) (l3layout.PlannedItem, error)
}

// Config holds the state machine and smoothing parameters.
type Config struct {
	MaxMisses      int     // consecutive misses before LOST
	SmoothingAlpha float64 // EMA weight of the newest deviation, (0, 1]
	Tolerances     Tolerances
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		MaxMisses:      cfg.GetMaxMisses(),
		SmoothingAlpha: cfg.GetSmoothingAlpha(),
		Tolerances: Tolerances{
			X:           cfg.GetToleranceX(),
			Y:           cfg.GetToleranceY(),
			Scale:       cfg.GetToleranceScale(),
			RotationDeg: cfg.GetToleranceRotationDeg(),
		},
	}
}

// GuidanceResult is the outcome of one frame.
type GuidanceResult struct {
	SessionID    string               `json:"session_id"`
	ItemID       l3layout.ItemID      `json:"item_id"`
	FrameSeq     uint64               `json:"frame_seq"`
	Timestamp    time.Time            `json:"timestamp"`
	State        State                `json:"state"`
	Deviation    DeviationVector      `json:"deviation"`
	HasDeviation bool                 `json:"has_deviation"`
	Stale        bool                 `json:"stale"` // deviation carried over from an earlier frame
	Misses       int                  `json:"misses"`
	Primary      Directive            `json:"primary"`
	Directives   []Directive          `json:"directives,omitempty"`
	Observed     *l4pose.ObservedPose `json:"observed,omitempty"`
	Mapped       *MappedPose          `json:"mapped,omitempty"`
}

// Engine turns frames into guidance for one item at a time. Step calls are
// serialised; all session state is owned by the Engine.
type Engine struct {
	mu      sync.Mutex
	est     PoseEstimator
	calib   CalibrationSource
	targets TargetSource
	cfg     Config
	session *TrackingSession
	now     func() time.Time
}

// NewEngine creates an Engine with no item selected.
func NewEngine(est PoseEstimator, calib CalibrationSource, targets TargetSource, cfg Config) *Engine {
	if cfg.MaxMisses < 1 {
		cfg.MaxMisses = 1
	}
	if cfg.SmoothingAlpha <= 0 || cfg.SmoothingAlpha > 1 {
		cfg.SmoothingAlpha = 1
	}
	return &Engine{est: est, calib: calib, targets: targets, cfg: cfg, now: time.Now}
}

// Config returns the engine configuration in use.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// SwitchItem discards the current session and starts SEARCHING for id.
// The item must exist in the layout.
func (e *Engine) SwitchItem(id l3layout.ItemID) error {
	if _, err := e.targets.TargetFor(id); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startSession(id)
	return nil
}

// Reset starts a fresh session for the current item. It is a no-op when
// no item is selected.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		e.startSession(e.session.ItemID)
	}
}

func (e *Engine) startSession(id l3layout.ItemID) {
	if e.session != nil {
		diagf("session %s for %q ended after %d frames", e.session.ID, e.session.ItemID, e.session.Frames)
	}
	e.session = &TrackingSession{
		ID:        uuid.NewString(),
		ItemID:    id,
		State:     StateSearching,
		StartedAt: e.now(),
	}
	diagf("session %s started for %q", e.session.ID, id)
}

// EndSession discards the current session.
func (e *Engine) EndSession() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session = nil
}

// Session returns a copy of the current session.
func (e *Engine) Session() (TrackingSession, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return TrackingSession{}, false
	}
	return e.session.clone(), true
}

// Step processes one frame against the calibration and layout snapshots
// current at entry. A frame where the item is not found, or where the
// pose cannot be mapped into planning space, counts as a miss.
func (e *Engine) Step(frame l1frames.Frame) (GuidanceResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.session
	if s == nil {
		return GuidanceResult{}, ErrNoSession
	}
	cal := e.calib.Current()
	if cal == nil || cal.Homography == nil {
		return GuidanceResult{}, ErrNotCalibrated
	}
	target, err := e.targets.TargetFor(s.ItemID)
	if err != nil {
		return GuidanceResult{}, err
	}

	if s.State == StateLost {
		diagf("session %s: resuming search after loss", s.ID)
		s.restart()
	}
	s.Frames++

	var hint *l4pose.ObservedPose
	if s.State != StateSearching {
		hint = s.LastPose
	}
	pose, found := e.est.Estimate(frame, hint)

	var mapped MappedPose
	if found {
		if mapped, err = mapPose(cal.Homography, pose); err != nil {
			diagf("session %s frame %d: %v", s.ID, frame.Seq, err)
			found = false
		}
	}

	ev := frameEvent{found: found}
	if found {
		raw := computeDeviation(target, mapped)
		s.Smoothed = smooth(s.Smoothed, s.HasSmoothed, raw, e.cfg.SmoothingAlpha)
		s.HasSmoothed = true
		s.Misses = 0
		p := pose
		s.LastPose = &p
		ev.withinTol = e.cfg.Tolerances.Within(s.Smoothed)
		tracef("session %s frame %d: raw=%+v smoothed=%+v conf=%.2f", s.ID, frame.Seq, raw, s.Smoothed, pose.Confidence)
	} else if s.State != StateSearching {
		s.Misses++
		ev.missesExceeded = s.Misses >= e.cfg.MaxMisses
		tracef("session %s frame %d: miss %d/%d", s.ID, frame.Seq, s.Misses, e.cfg.MaxMisses)
	}

	next := nextState(s.State, ev)
	if next != s.State {
		diagf("session %s frame %d: %s -> %s", s.ID, frame.Seq, s.State, next)
		if next == StateLost {
			opsf("session %s: lost %q after %d consecutive misses", s.ID, s.ItemID, s.Misses)
		}
	}
	s.State = next

	res := GuidanceResult{
		SessionID: s.ID,
		ItemID:    s.ItemID,
		FrameSeq:  frame.Seq,
		Timestamp: frame.Timestamp,
		State:     next,
		Misses:    s.Misses,
	}
	if found {
		p, m := pose, mapped
		res.Observed, res.Mapped = &p, &m
	}
	switch next {
	case StateTracking, StateAligned:
		res.Deviation = s.Smoothed
		res.HasDeviation = s.HasSmoothed
		res.Stale = !found
	}
	res.Directives, res.Primary = e.directives(next, res)
	return res, nil
}

func (e *Engine) directives(st State, res GuidanceResult) ([]Directive, Directive) {
	switch st {
	case StateSearching:
		return nil, status(Searching)
	case StateLost:
		return nil, status(Lost)
	case StateAligned:
		return nil, status(HoldAligned)
	}
	dirs := Directives(res.Deviation, e.cfg.Tolerances)
	if len(dirs) == 0 {
		return nil, status(Hold)
	}
	return dirs, dirs[0]
}
