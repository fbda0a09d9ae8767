package l5guidance

import (
	"math"

	"github.com/banshee-data/wall.align/internal/align/l2calib"
	"github.com/banshee-data/wall.align/internal/align/l3layout"
	"github.com/banshee-data/wall.align/internal/align/l4pose"
)

// DeviationVector is the correction still needed to bring the picture onto
// its target, in planning space: target minus observed. Positive DX means
// move right, positive DY move down (planning space is y-down), positive
// DRotationDeg turn clockwise. DScale is relative: positive when the
// picture appears smaller than planned.
type DeviationVector struct {
	DX           float64 `json:"dx"`
	DY           float64 `json:"dy"`
	DScale       float64 `json:"dscale"`
	DRotationDeg float64 `json:"drotation_deg"`
}

// Tolerances are the per-component limits for ALIGNED. Boundaries are
// inclusive.
type Tolerances struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Scale       float64 `json:"scale"`
	RotationDeg float64 `json:"rotation_deg"`
}

// Within reports whether every component of d is within tolerance.
func (t Tolerances) Within(d DeviationVector) bool {
	return math.Abs(d.DX) <= t.X &&
		math.Abs(d.DY) <= t.Y &&
		math.Abs(d.DScale) <= t.Scale &&
		math.Abs(d.DRotationDeg) <= t.RotationDeg
}

// MappedPose is an observed pose expressed in planning space.
type MappedPose struct {
	Center      l2calib.PlanningPoint `json:"center"`
	Width       float64               `json:"width"`
	Height      float64               `json:"height"`
	RotationDeg float64               `json:"rotation_deg"`
}

// mapPose projects the observed box through h into planning space. Size
// is the mean of opposite mapped edges and rotation the direction of the
// mapped top and bottom edges combined.
func mapPose(h *l2calib.Homography, p l4pose.ObservedPose) (MappedPose, error) {
	center, err := h.ToPlanning(p.Center)
	if err != nil {
		return MappedPose{}, err
	}
	var c [4]l2calib.PlanningPoint
	for i, cp := range p.Corners() {
		if c[i], err = h.ToPlanning(cp); err != nil {
			return MappedPose{}, err
		}
	}
	dist := func(a, b l2calib.PlanningPoint) float64 { return math.Hypot(b.X-a.X, b.Y-a.Y) }

	ex := (c[1].X - c[0].X) + (c[2].X - c[3].X)
	ey := (c[1].Y - c[0].Y) + (c[2].Y - c[3].Y)
	return MappedPose{
		Center:      center,
		Width:       (dist(c[0], c[1]) + dist(c[3], c[2])) / 2,
		Height:      (dist(c[0], c[3]) + dist(c[1], c[2])) / 2,
		RotationDeg: math.Atan2(ey, ex) * 180 / math.Pi,
	}, nil
}

// squareAspect is the largest |ln(w/h)| treated as square. Within it a
// box's sides say nothing about which way up it hangs.
var squareAspect = math.Log(1.1)

// computeDeviation compares a mapped pose with its target. A rectangle
// looks the same after a half turn, so rotation is wrapped to (-90, 90].
// The box is then read two ways: as measured, or as the item turned a
// quarter turn with width and height swapped. For oblong targets the
// reading whose aspect ratio matches the target wins; for square ones
// (or a square-looking box) the reading with the smaller turn wins.
func computeDeviation(target l3layout.PlannedItem, m MappedPose) DeviationVector {
	drot := wrapHalfTurn(target.RotationDeg - m.RotationDeg)
	alt := drot + 90
	if drot > 0 {
		alt = drot - 90
	}
	mw, mh := m.Width, m.Height

	swap := math.Abs(alt) < math.Abs(drot) || (math.Abs(alt) == math.Abs(drot) && drot < 0)
	want := logAspect(target.Width, target.Height)
	have := logAspect(mw, mh)
	if math.Abs(want) > squareAspect && math.Abs(have) > squareAspect {
		swap = math.Abs(want+have) < math.Abs(want-have)
	}
	if swap {
		drot = alt
		mw, mh = mh, mw
	}

	return DeviationVector{
		DX:           target.Center.X - m.Center.X,
		DY:           target.Center.Y - m.Center.Y,
		DScale:       math.Sqrt(target.Width*target.Height)/math.Sqrt(mw*mh) - 1,
		DRotationDeg: drot,
	}
}

func logAspect(w, h float64) float64 {
	if !(w > 0) || !(h > 0) {
		return 0
	}
	return math.Log(w / h)
}

// wrapHalfTurn maps an angle in degrees into (-90, 90].
func wrapHalfTurn(deg float64) float64 {
	deg = math.Mod(deg, 180)
	switch {
	case deg > 90:
		deg -= 180
	case deg <= -90:
		deg += 180
	}
	return deg
}

// smooth applies an exponential moving average. The first sample seeds it.
func smooth(prev DeviationVector, have bool, next DeviationVector, alpha float64) DeviationVector {
	if !have {
		return next
	}
	mix := func(a, b float64) float64 { return alpha*b + (1-alpha)*a }
	return DeviationVector{
		DX:           mix(prev.DX, next.DX),
		DY:           mix(prev.DY, next.DY),
		DScale:       mix(prev.DScale, next.DScale),
		DRotationDeg: mix(prev.DRotationDeg, next.DRotationDeg),
	}
}
