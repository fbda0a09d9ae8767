package l4pose

import (
	"math"
	"sort"
)

type point struct{ x, y float64 }

// orientedBox is a rectangle in pixel coordinates.
type orientedBox struct {
	cx, cy   float64
	w, h     float64
	angleDeg float64
}

// spanHull returns the convex hull of a pixel set described by per-row
// spans [minX, maxX], using the outer pixel corners so a lone pixel is a
// unit square. rows is indexed from y0.
func spanHull(y0 int, minX, maxX []int) []point {
	pts := make([]point, 0, 4*len(minX))
	for i := range minX {
		if minX[i] > maxX[i] {
			continue
		}
		y := float64(y0 + i)
		l, r := float64(minX[i]), float64(maxX[i]+1)
		pts = append(pts, point{l, y}, point{l, y + 1}, point{r, y}, point{r, y + 1})
	}
	return convexHull(pts)
}

// convexHull is Andrew's monotone chain. The result is counter-clockwise
// in a y-up frame and has no repeated or collinear points.
func convexHull(pts []point) []point {
	if len(pts) < 3 {
		return pts
	}
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].x != pts[j].x {
			return pts[i].x < pts[j].x
		}
		return pts[i].y < pts[j].y
	})
	cross := func(o, a, b point) float64 {
		return (a.x-o.x)*(b.y-o.y) - (a.y-o.y)*(b.x-o.x)
	}

	hull := make([]point, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// minAreaBox returns the smallest-area rectangle enclosing a convex hull.
// One side of the optimal rectangle is collinear with a hull edge, so each
// edge direction is tried and the hull projected onto it. The first edge
// wins ties, which keeps the result stable for symmetric shapes.
func minAreaBox(hull []point) (orientedBox, bool) {
	if len(hull) < 3 {
		return orientedBox{}, false
	}

	best := orientedBox{}
	bestArea := math.Inf(1)
	for i := range hull {
		a, b := hull[i], hull[(i+1)%len(hull)]
		ex, ey := b.x-a.x, b.y-a.y
		mag := math.Hypot(ex, ey)
		if mag == 0 {
			continue
		}
		ex, ey = ex/mag, ey/mag

		minU, maxU := math.Inf(1), math.Inf(-1)
		minV, maxV := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			u := p.x*ex + p.y*ey
			v := -p.x*ey + p.y*ex
			minU, maxU = math.Min(minU, u), math.Max(maxU, u)
			minV, maxV = math.Min(minV, v), math.Max(maxV, v)
		}
		w, h := maxU-minU, maxV-minV
		if area := w * h; area < bestArea-1e-9 {
			bestArea = area
			mu, mv := (minU+maxU)/2, (minV+maxV)/2
			best = orientedBox{
				cx:       mu*ex - mv*ey,
				cy:       mu*ey + mv*ex,
				w:        w,
				h:        h,
				angleDeg: math.Atan2(ey, ex) * 180 / math.Pi,
			}
		}
	}
	if math.IsInf(bestArea, 1) || bestArea <= 0 {
		return orientedBox{}, false
	}
	best.w, best.h, best.angleDeg = normaliseBox(best.w, best.h, best.angleDeg)
	return best, true
}
