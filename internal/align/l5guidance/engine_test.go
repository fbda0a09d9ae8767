package l5guidance

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/wall.align/internal/align/l1frames"
	"github.com/banshee-data/wall.align/internal/align/l2calib"
	"github.com/banshee-data/wall.align/internal/align/l3layout"
	"github.com/banshee-data/wall.align/internal/align/l4pose"
)

// scriptedEstimator replays one result per call and records the hints it
// was given. Once the script runs out every frame is a miss.
type scriptedEstimator struct {
	script []*l4pose.ObservedPose // nil entry = not found
	hints  []*l4pose.ObservedPose
}

func (s *scriptedEstimator) Estimate(_ l1frames.Frame, hint *l4pose.ObservedPose) (l4pose.ObservedPose, bool) {
	s.hints = append(s.hints, hint)
	if len(s.script) == 0 {
		return l4pose.ObservedPose{}, false
	}
	next := s.script[0]
	s.script = s.script[1:]
	if next == nil {
		return l4pose.ObservedPose{}, false
	}
	return *next, true
}

func (s *scriptedEstimator) push(poses ...*l4pose.ObservedPose) {
	s.script = append(s.script, poses...)
}

type fixedCalibration struct{ cal *l2calib.Calibration }

func (f fixedCalibration) Current() *l2calib.Calibration { return f.cal }

var plannedA = l3layout.PlannedItem{
	ID:     "a",
	Label:  "landscape",
	Center: l2calib.PlanningPoint{X: 100, Y: 100},
	Width:  40,
	Height: 30,
}

// at returns an observed pose that maps, under the identity calibration,
// to (x, y) with the planned size and the given rotation.
func at(x, y, rot float64) *l4pose.ObservedPose {
	return &l4pose.ObservedPose{
		Center:      l2calib.CameraPoint{X: x, Y: y},
		Width:       40,
		Height:      30,
		RotationDeg: rot,
		Confidence:  0.9,
	}
}

func onTarget() *l4pose.ObservedPose { return at(100, 100, 0) }

type fixture struct {
	est    *scriptedEstimator
	layout *l3layout.Model
	engine *Engine
	seq    uint64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	layout := l3layout.NewModel()
	_, err := layout.Publish([]l3layout.PlannedItem{plannedA})
	require.NoError(t, err)

	f := &fixture{est: &scriptedEstimator{}, layout: layout}
	cal := &l2calib.Calibration{ID: "test", Homography: identity(t)}
	f.engine = NewEngine(f.est, fixedCalibration{cal}, layout, DefaultConfig())
	require.NoError(t, f.engine.SwitchItem("a"))
	return f
}

func (f *fixture) step(t *testing.T) GuidanceResult {
	t.Helper()
	f.seq++
	res, err := f.engine.Step(l1frames.Frame{Seq: f.seq, Timestamp: time.Unix(int64(f.seq), 0)})
	require.NoError(t, err)
	return res
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.Equal(t, 5, cfg.MaxMisses)
	assert.InDelta(t, 0.4, cfg.SmoothingAlpha, 1e-12)
	assert.Equal(t, Tolerances{X: 10, Y: 10, Scale: 0.05, RotationDeg: 2}, cfg.Tolerances)
}

func TestEngine_Errors(t *testing.T) {
	t.Parallel()

	layout := l3layout.NewModel()
	_, err := layout.Publish([]l3layout.PlannedItem{plannedA})
	require.NoError(t, err)
	est := &scriptedEstimator{}

	t.Run("no item selected", func(t *testing.T) {
		t.Parallel()
		e := NewEngine(est, fixedCalibration{}, layout, DefaultConfig())
		_, err := e.Step(l1frames.Frame{})
		assert.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("not calibrated", func(t *testing.T) {
		t.Parallel()
		e := NewEngine(&scriptedEstimator{}, fixedCalibration{}, layout, DefaultConfig())
		require.NoError(t, e.SwitchItem("a"))
		_, err := e.Step(l1frames.Frame{})
		assert.ErrorIs(t, err, ErrNotCalibrated)
	})

	t.Run("switch to unknown item", func(t *testing.T) {
		t.Parallel()
		e := NewEngine(&scriptedEstimator{}, fixedCalibration{}, layout, DefaultConfig())
		err := e.SwitchItem("nope")
		var unknown *l3layout.UnknownItemError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, l3layout.ItemID("nope"), unknown.ID)
		_, ok := e.Session()
		assert.False(t, ok)
	})

	t.Run("item removed mid-session", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.layout.RemoveItem("a")
		require.NoError(t, err)
		_, err = f.engine.Step(l1frames.Frame{Seq: 1})
		var unknown *l3layout.UnknownItemError
		assert.ErrorAs(t, err, &unknown)
	})
}

func TestEngine_ObservedAboveTarget(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.est.push(at(100, 5, 0))
	res := f.step(t)

	assert.Equal(t, StateTracking, res.State)
	require.True(t, res.HasDeviation)
	assert.False(t, res.Stale)
	assert.InDelta(t, 95, res.Deviation.DY, 1e-9)
	assert.InDelta(t, 0, res.Deviation.DX, 1e-9)
	assert.Equal(t, MoveDown, res.Primary.Kind)
	assert.Equal(t, "move down", res.Primary.Text)
	require.NotNil(t, res.Mapped)
	assert.InDelta(t, 5, res.Mapped.Center.Y, 1e-9)
}

func TestEngine_SearchingToTrackingOnFirstDetection(t *testing.T) {
	t.Parallel()

	// Real estimator around a detector reporting confidence 0.9.
	det := detectorFunc(func(image.Image, image.Rectangle) (l4pose.ObservedPose, bool) {
		return *at(130, 100, 0), true
	})
	est := l4pose.NewEstimator(det, l4pose.DefaultEstimatorConfig())
	layout := l3layout.NewModel()
	_, err := layout.Publish([]l3layout.PlannedItem{plannedA})
	require.NoError(t, err)

	e := NewEngine(est, fixedCalibration{&l2calib.Calibration{Homography: identity(t)}}, layout, DefaultConfig())
	require.NoError(t, e.SwitchItem("a"))

	img := image.NewGray(image.Rect(0, 0, 320, 240))
	res, err := e.Step(l1frames.Frame{Seq: 1, Image: img})
	require.NoError(t, err)

	assert.Equal(t, StateTracking, res.State)
	require.NotNil(t, res.Observed)
	assert.Equal(t, l4pose.SearchFull, res.Observed.Search)
	assert.InDelta(t, 0.9, res.Observed.Confidence, 1e-12)
	assert.Equal(t, MoveLeft, res.Primary.Kind)
}

type detectorFunc func(image.Image, image.Rectangle) (l4pose.ObservedPose, bool)

func (f detectorFunc) Detect(img image.Image, roi image.Rectangle) (l4pose.ObservedPose, bool) {
	return f(img, roi)
}

func TestEngine_SearchingStaysWithoutDetection(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	for i := 0; i < 10; i++ {
		res := f.step(t)
		assert.Equal(t, StateSearching, res.State)
		assert.Equal(t, Searching, res.Primary.Kind)
		assert.False(t, res.HasDeviation)
		assert.Zero(t, res.Misses)
	}
	for _, h := range f.est.hints {
		assert.Nil(t, h, "searching must not pass a hint")
	}
}

func TestEngine_AlignsAndDrifts(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.est.push(onTarget(), onTarget())

	res := f.step(t)
	assert.Equal(t, StateTracking, res.State, "first detection is always TRACKING")
	assert.Equal(t, Hold, res.Primary.Kind)

	res = f.step(t)
	assert.Equal(t, StateAligned, res.State)
	assert.Equal(t, HoldAligned, res.Primary.Kind)
	assert.Equal(t, "hold: aligned", res.Primary.Text)

	// Tilted 10 degrees clockwise; smoothed rotation error becomes -4.
	f.est.push(at(100, 100, 10))
	res = f.step(t)
	assert.Equal(t, StateTracking, res.State)
	assert.InDelta(t, -4, res.Deviation.DRotationDeg, 1e-6)
	assert.Equal(t, RotateCCW, res.Primary.Kind)
	assert.Equal(t, AxisRotation, res.Primary.Axis)

	// The second and third frames were hinted with the previous pose.
	require.Len(t, f.est.hints, 3)
	assert.Nil(t, f.est.hints[0])
	require.NotNil(t, f.est.hints[1])
	assert.Equal(t, *onTarget(), *f.est.hints[1])
}

func TestEngine_WrongOrientationIsNotAligned(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rot     float64
		wantRot float64
		want    DirectiveKind
	}{
		{name: "landscape hung portrait", rot: 0, wantRot: 90, want: RotateCW},
		{name: "portrait tilted 40 clockwise", rot: -40, wantRot: -50, want: RotateCCW},
		{name: "portrait tilted 40 counter-clockwise", rot: 40, wantRot: 50, want: RotateCW},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			p := at(100, 100, tt.rot)
			p.Width, p.Height = 30, 40
			f.est.push(p, p)

			f.step(t)
			res := f.step(t)
			assert.Equal(t, StateTracking, res.State)
			assert.InDelta(t, tt.wantRot, res.Deviation.DRotationDeg, 1e-6)
			assert.InDelta(t, 0, res.Deviation.DScale, 1e-9)
			assert.Equal(t, tt.want, res.Primary.Kind)
			assert.Equal(t, AxisRotation, res.Primary.Axis)
		})
	}
}

func TestEngine_LostAfterMaxMisses(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.est.push(at(120, 100, 0))
	res := f.step(t)
	require.Equal(t, StateTracking, res.State)
	tracked := res.Deviation

	for i := 1; i < 5; i++ {
		f.est.push(nil)
		res = f.step(t)
		assert.Equal(t, StateTracking, res.State, "miss %d is within the grace period", i)
		assert.Equal(t, i, res.Misses)
		assert.True(t, res.Stale)
		assert.Equal(t, tracked, res.Deviation, "stale guidance reuses the last deviation")
		assert.Nil(t, res.Observed)
	}

	f.est.push(nil)
	res = f.step(t)
	assert.Equal(t, StateLost, res.State)
	assert.Equal(t, 5, res.Misses)
	assert.Equal(t, Lost, res.Primary.Kind)
	assert.False(t, res.HasDeviation)
}

func TestEngine_SuccessResetsMisses(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.est.push(at(120, 100, 0), nil, nil, nil, nil, at(120, 100, 0), nil, nil, nil, nil)
	var res GuidanceResult
	for i := 0; i < 10; i++ {
		res = f.step(t)
		assert.NotEqual(t, StateLost, res.State, "frame %d", i+1)
	}
	assert.Equal(t, StateTracking, res.State)
	assert.Equal(t, 4, res.Misses)
}

func TestEngine_LostResumesAsSearching(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.est.push(at(130, 100, 0), nil, nil, nil, nil, nil)
	var res GuidanceResult
	for i := 0; i < 6; i++ {
		res = f.step(t)
	}
	require.Equal(t, StateLost, res.State)

	// Next frame without detection: fresh SEARCHING, no hint.
	res = f.step(t)
	assert.Equal(t, StateSearching, res.State)
	assert.Zero(t, res.Misses)
	assert.Nil(t, f.est.hints[len(f.est.hints)-1])

	s, ok := f.engine.Session()
	require.True(t, ok)
	assert.False(t, s.HasSmoothed)
	assert.Nil(t, s.LastPose)

	// Re-acquisition seeds smoothing afresh rather than blending with the
	// pre-loss deviation of +30.
	f.est.push(at(100, 5, 0))
	res = f.step(t)
	assert.Equal(t, StateTracking, res.State)
	assert.InDelta(t, 0, res.Deviation.DX, 1e-9)
	assert.InDelta(t, 95, res.Deviation.DY, 1e-9)
}

func TestEngine_LostThenImmediateDetection(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.est.push(onTarget(), nil, nil, nil, nil, nil, at(110, 100, 0))
	var res GuidanceResult
	for i := 0; i < 7; i++ {
		res = f.step(t)
	}
	assert.Equal(t, StateTracking, res.State)
	assert.Nil(t, f.est.hints[6], "frame after LOST is a full search")
	assert.InDelta(t, -10, res.Deviation.DX, 1e-9)
}

func TestEngine_ProjectionFailureIsAMiss(t *testing.T) {
	t.Parallel()

	layout := l3layout.NewModel()
	_, err := layout.Publish([]l3layout.PlannedItem{plannedA})
	require.NoError(t, err)
	h := homography(t, [9]float64{1, 0, 0, 0, 1, 0, -0.5, 0, 1})
	est := &scriptedEstimator{}
	e := NewEngine(est, fixedCalibration{&l2calib.Calibration{Homography: h}}, layout, DefaultConfig())
	require.NoError(t, e.SwitchItem("a"))

	est.push(&l4pose.ObservedPose{Center: l2calib.CameraPoint{X: -2, Y: 0}, Width: 2, Height: 2, Confidence: 1})
	res, err := e.Step(l1frames.Frame{Seq: 1})
	require.NoError(t, err)
	assert.Equal(t, StateSearching, res.State)
	assert.Nil(t, res.Observed)
}

func TestEngine_SessionLifecycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	first, ok := f.engine.Session()
	require.True(t, ok)
	assert.Equal(t, l3layout.ItemID("a"), first.ItemID)
	assert.Equal(t, StateSearching, first.State)
	assert.NotEmpty(t, first.ID)

	f.est.push(onTarget())
	res := f.step(t)
	assert.Equal(t, first.ID, res.SessionID)
	assert.Equal(t, uint64(1), res.FrameSeq)
	assert.Equal(t, time.Unix(1, 0), res.Timestamp)

	f.engine.Reset()
	second, ok := f.engine.Session()
	require.True(t, ok)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, StateSearching, second.State)
	assert.Zero(t, second.Frames)

	f.engine.EndSession()
	_, ok = f.engine.Session()
	assert.False(t, ok)
	_, err := f.engine.Step(l1frames.Frame{})
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestEngine_SessionIsACopy(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.est.push(onTarget())
	f.step(t)

	s, ok := f.engine.Session()
	require.True(t, ok)
	require.NotNil(t, s.LastPose)
	s.LastPose.Center.X = -1

	again, _ := f.engine.Session()
	assert.InDelta(t, 100, again.LastPose.Center.X, 1e-12)
}

func TestNewEngine_SanitisesConfig(t *testing.T) {
	t.Parallel()

	e := NewEngine(&scriptedEstimator{}, fixedCalibration{}, l3layout.NewModel(), Config{MaxMisses: 0, SmoothingAlpha: 3})
	cfg := e.Config()
	assert.Equal(t, 1, cfg.MaxMisses)
	assert.Equal(t, 1.0, cfg.SmoothingAlpha)
}
