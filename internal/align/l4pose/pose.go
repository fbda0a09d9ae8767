package l4pose

import (
	"math"

	"github.com/banshee-data/wall.align/internal/align/l2calib"
)

// SearchKind records which search produced a pose.
type SearchKind string

const (
	SearchFull  SearchKind = "full"
	SearchLocal SearchKind = "local"
)

// ObservedPose is one frame's detection of the tracked item in camera
// space. RotationDeg follows image axes (y down), so positive angles turn
// clockwise on screen, and is kept in (-45, 45] with Width and Height
// swapped as needed.
type ObservedPose struct {
	Center      l2calib.CameraPoint
	Width       float64
	Height      float64
	RotationDeg float64
	Confidence  float64
	Search      SearchKind
}

// Corners returns the box corners in the pose's own frame: top-left,
// top-right, bottom-right, bottom-left before rotation.
func (p ObservedPose) Corners() [4]l2calib.CameraPoint {
	rad := p.RotationDeg * math.Pi / 180
	ux, uy := math.Cos(rad), math.Sin(rad)
	vx, vy := -uy, ux
	hw, hh := p.Width/2, p.Height/2

	corner := func(su, sv float64) l2calib.CameraPoint {
		return l2calib.CameraPoint{
			X: p.Center.X + su*hw*ux + sv*hh*vx,
			Y: p.Center.Y + su*hw*uy + sv*hh*vy,
		}
	}
	return [4]l2calib.CameraPoint{
		corner(-1, -1),
		corner(1, -1),
		corner(1, 1),
		corner(-1, 1),
	}
}

// normaliseBox folds an angle into (-45, 45], swapping the extents for
// every odd quarter turn removed.
func normaliseBox(w, h, deg float64) (float64, float64, float64) {
	k := math.Round(deg / 90)
	deg -= k * 90
	if int(math.Abs(k))%2 == 1 {
		w, h = h, w
	}
	if deg <= -45 {
		deg += 90
		w, h = h, w
	}
	return w, h, deg
}
