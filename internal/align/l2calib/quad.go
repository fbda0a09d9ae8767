package l2calib

import (
	"errors"
	"fmt"
	"math"
)

// minQuadArea is the smallest wall quadrilateral area, in square pixels,
// accepted by ValidateQuad.
const minQuadArea = 100.0

// ErrInvalidQuad is returned by ValidateQuad.
var ErrInvalidQuad = errors.New("invalid wall quadrilateral")

// OrderCorners sorts four corner points into top-left, top-right,
// bottom-right, bottom-left order. Top-left has the smallest x+y and
// bottom-right the largest; top-right has the smallest y-x and
// bottom-left the largest.
func OrderCorners(pts [4]CameraPoint) [4]CameraPoint {
	var out [4]CameraPoint
	minSum, maxSum := math.Inf(1), math.Inf(-1)
	minDiff, maxDiff := math.Inf(1), math.Inf(-1)
	for _, p := range pts {
		s, d := p.X+p.Y, p.Y-p.X
		if s < minSum {
			minSum, out[0] = s, p
		}
		if s > maxSum {
			maxSum, out[2] = s, p
		}
		if d < minDiff {
			minDiff, out[1] = d, p
		}
		if d > maxDiff {
			maxDiff, out[3] = d, p
		}
	}
	return out
}

// ValidateQuad checks that an ordered quadrilateral (top-left, top-right,
// bottom-right, bottom-left) has four distinct corners, is convex and
// encloses a usable area.
func ValidateQuad(q [4]CameraPoint) error {
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			if q[i] == q[j] {
				return fmt.Errorf("%w: corners %d and %d coincide", ErrInvalidQuad, i, j)
			}
		}
	}

	var sign float64
	var area float64
	for i := 0; i < 4; i++ {
		a, b, c := q[i], q[(i+1)%4], q[(i+2)%4]
		cross := (b.X-a.X)*(c.Y-b.Y) - (b.Y-a.Y)*(c.X-b.X)
		if cross == 0 {
			return fmt.Errorf("%w: corners %d-%d-%d are collinear", ErrInvalidQuad, i, (i+1)%4, (i+2)%4)
		}
		if sign == 0 {
			sign = math.Copysign(1, cross)
		} else if math.Copysign(1, cross) != sign {
			return fmt.Errorf("%w: not convex at corner %d", ErrInvalidQuad, (i+1)%4)
		}
		area += a.X*b.Y - b.X*a.Y
	}
	if math.Abs(area)/2 < minQuadArea {
		return fmt.Errorf("%w: area %.1f px² below %.0f", ErrInvalidQuad, math.Abs(area)/2, minQuadArea)
	}
	return nil
}

// QuadCorrespondences pairs the corners of a width x height planning
// rectangle with four detected wall corners, ordering and validating the
// corners first.
func QuadCorrespondences(width, height float64, corners [4]CameraPoint) ([]Correspondence, error) {
	if !(width > 0) || !(height > 0) {
		return nil, fmt.Errorf("%w: planning size %gx%g must be positive", ErrInvalidQuad, width, height)
	}
	q := OrderCorners(corners)
	if err := ValidateQuad(q); err != nil {
		return nil, err
	}
	plan := [4]PlanningPoint{{0, 0}, {width, 0}, {width, height}, {0, height}}
	out := make([]Correspondence, 4)
	for i := range out {
		out[i] = Correspondence{Planning: plan[i], Camera: q[i]}
	}
	return out, nil
}
