package l2calib

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultMaxConditionNumber bounds the 2-norm condition number of an
// accepted homography.
const DefaultMaxConditionNumber = 1e9

const (
	// minSpread is the smallest mean distance from the centroid a point set
	// may have before normalisation is meaningless.
	minSpread = 1e-9
	// collinearArea is the smallest triangle area (in normalised units,
	// where the mean point distance from the origin is sqrt(2)) accepted
	// for a triple of points when exactly four pairs are given.
	collinearArea = 1e-6
	// collinearRatio is the smallest eigenvalue ratio of the normalised
	// scatter matrix before a point set is considered a line.
	collinearRatio = 1e-10
	// rankTolerance is the singular value ratio under which the DLT system
	// is treated as having more than one null direction.
	rankTolerance = 1e-10
	// wEpsilon is the smallest homogeneous w accepted by Project.
	wEpsilon = 1e-12
)

// CalibrateOptions tunes Calibrate. The zero value uses defaults.
type CalibrateOptions struct {
	MaxConditionNumber float64
}

func (o CalibrateOptions) maxCond() float64 {
	if o.MaxConditionNumber <= 0 {
		return DefaultMaxConditionNumber
	}
	return o.MaxConditionNumber
}

// Homography is an immutable planar projective transform from planning
// space to camera space, carrying its precomputed inverse.
type Homography struct {
	fwd  [9]float64
	inv  [9]float64
	cond float64
}

// Calibrate estimates the homography mapping each correspondence's
// planning point onto its camera point using the normalised direct linear
// transform. At least four pairs are required; collinear, coincident or
// numerically unstable sets fail with *CalibrationError.
func Calibrate(corrs []Correspondence, opts CalibrateOptions) (*Homography, error) {
	if len(corrs) < 4 {
		return nil, calibErrorf(ReasonTooFewPoints, "need at least 4 correspondences, got %d", len(corrs))
	}

	src := make([][2]float64, len(corrs))
	dst := make([][2]float64, len(corrs))
	for i, c := range corrs {
		if !finite(c.Planning.X, c.Planning.Y, c.Camera.X, c.Camera.Y) {
			return nil, calibErrorf(ReasonInvalidInput, "correspondence %d has a non-finite coordinate", i)
		}
		src[i] = [2]float64{c.Planning.X, c.Planning.Y}
		dst[i] = [2]float64{c.Camera.X, c.Camera.Y}
	}

	srcT, srcN, err := normalise(src)
	if err != nil {
		return nil, calibErrorf(ReasonDegenerate, "planning points: %v", err)
	}
	dstT, dstN, err := normalise(dst)
	if err != nil {
		return nil, calibErrorf(ReasonDegenerate, "camera points: %v", err)
	}
	if err := checkCollinear(srcN); err != nil {
		return nil, calibErrorf(ReasonDegenerate, "planning points: %v", err)
	}
	if err := checkCollinear(dstN); err != nil {
		return nil, calibErrorf(ReasonDegenerate, "camera points: %v", err)
	}

	n := len(corrs)
	a := mat.NewDense(2*n, 9, nil)
	for i := 0; i < n; i++ {
		x, y := srcN[i][0], srcN[i][1]
		u, v := dstN[i][0], dstN[i][1]
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return nil, calibErrorf(ReasonIllConditioned, "SVD factorisation failed")
	}
	values := svd.Values(nil)
	if values[0] == 0 || values[7]/values[0] < rankTolerance {
		return nil, calibErrorf(ReasonDegenerate, "correspondences do not determine a unique homography")
	}
	var v mat.Dense
	svd.VTo(&v)

	hn := mat.NewDense(3, 3, nil)
	for i := 0; i < 9; i++ {
		hn.Set(i/3, i%3, v.At(i, 8))
	}

	// Denormalise: H = inv(Tdst) * Hn * Tsrc
	var dstInv mat.Dense
	if err := dstInv.Inverse(dstT); err != nil {
		return nil, calibErrorf(ReasonIllConditioned, "camera normalisation not invertible: %v", err)
	}
	var h mat.Dense
	h.Product(&dstInv, hn, srcT)

	var m [9]float64
	for i := 0; i < 9; i++ {
		m[i] = h.At(i/3, i%3)
	}
	return FromMatrix(m, opts)
}

// FromMatrix validates a row-major 3x3 planning->camera matrix and
// returns it as a Homography, normalised so the bottom-right entry is 1
// where possible.
func FromMatrix(m [9]float64, opts CalibrateOptions) (*Homography, error) {
	if !finite(m[:]...) {
		return nil, calibErrorf(ReasonIllConditioned, "matrix has non-finite entries")
	}
	scale := m[8]
	if math.Abs(scale) < wEpsilon {
		scale = 0
		for _, v := range m {
			scale += v * v
		}
		scale = math.Sqrt(scale)
	}
	if scale == 0 {
		return nil, calibErrorf(ReasonDegenerate, "matrix is zero")
	}
	for i := range m {
		m[i] /= scale
	}

	fwd := mat.NewDense(3, 3, m[:])
	cond := mat.Cond(fwd, 2)
	if math.IsNaN(cond) || cond > opts.maxCond() {
		return nil, calibErrorf(ReasonIllConditioned, "condition number %.3g exceeds %.3g", cond, opts.maxCond())
	}
	var inv mat.Dense
	if err := inv.Inverse(fwd); err != nil {
		return nil, calibErrorf(ReasonIllConditioned, "matrix not invertible: %v", err)
	}

	h := &Homography{fwd: m, cond: cond}
	for i := 0; i < 9; i++ {
		h.inv[i] = inv.At(i/3, i%3)
	}
	if !finite(h.inv[:]...) {
		return nil, calibErrorf(ReasonIllConditioned, "inverse has non-finite entries")
	}
	return h, nil
}

// Matrix returns the row-major planning->camera matrix.
func (h *Homography) Matrix() [9]float64 { return h.fwd }

// InverseMatrix returns the row-major camera->planning matrix.
func (h *Homography) InverseMatrix() [9]float64 { return h.inv }

// Condition returns the 2-norm condition number of the forward matrix.
func (h *Homography) Condition() float64 { return h.cond }

// Project maps (x, y) through the homography in the given direction.
func (h *Homography) Project(x, y float64, dir Direction) (float64, float64, error) {
	m := &h.fwd
	if dir == CameraToPlanning {
		m = &h.inv
	}
	w := m[6]*x + m[7]*y + m[8]
	if math.Abs(w) < wEpsilon {
		return 0, 0, fmt.Errorf("%w: (%g, %g) %s", ErrProjection, x, y, dir)
	}
	px := (m[0]*x + m[1]*y + m[2]) / w
	py := (m[3]*x + m[4]*y + m[5]) / w
	if !finite(px, py) {
		return 0, 0, fmt.Errorf("%w: (%g, %g) %s", ErrProjection, x, y, dir)
	}
	return px, py, nil
}

// ToCamera maps a planning point into camera space.
func (h *Homography) ToCamera(p PlanningPoint) (CameraPoint, error) {
	x, y, err := h.Project(p.X, p.Y, PlanningToCamera)
	return CameraPoint{X: x, Y: y}, err
}

// ToPlanning maps a camera point into planning space.
func (h *Homography) ToPlanning(p CameraPoint) (PlanningPoint, error) {
	x, y, err := h.Project(p.X, p.Y, CameraToPlanning)
	return PlanningPoint{X: x, Y: y}, err
}

// Project is the free-function form of (*Homography).Project.
func Project(h *Homography, x, y float64, dir Direction) (float64, float64, error) {
	return h.Project(x, y, dir)
}

// normalise translates pts to their centroid and scales them to a mean
// distance of sqrt(2), returning the similarity used and the moved points.
func normalise(pts [][2]float64) (*mat.Dense, [][2]float64, error) {
	var cx, cy float64
	for _, p := range pts {
		cx += p[0]
		cy += p[1]
	}
	n := float64(len(pts))
	cx /= n
	cy /= n

	var mean float64
	for _, p := range pts {
		mean += math.Hypot(p[0]-cx, p[1]-cy)
	}
	mean /= n
	if mean < minSpread {
		return nil, nil, fmt.Errorf("points are coincident")
	}

	s := math.Sqrt2 / mean
	t := mat.NewDense(3, 3, []float64{
		s, 0, -s * cx,
		0, s, -s * cy,
		0, 0, 1,
	})
	out := make([][2]float64, len(pts))
	for i, p := range pts {
		out[i] = [2]float64{s * (p[0] - cx), s * (p[1] - cy)}
	}
	return t, out, nil
}

// checkCollinear rejects point sets that lie on a line. With exactly four
// points every triple must span a triangle, otherwise the homography is
// not determined.
func checkCollinear(pts [][2]float64) error {
	var sxx, sxy, syy float64
	for _, p := range pts {
		sxx += p[0] * p[0]
		sxy += p[0] * p[1]
		syy += p[1] * p[1]
	}
	// Eigenvalues of the 2x2 scatter matrix.
	tr := sxx + syy
	det := sxx*syy - sxy*sxy
	disc := math.Sqrt(math.Max(tr*tr/4-det, 0))
	hi, lo := tr/2+disc, tr/2-disc
	if hi <= 0 || lo/hi < collinearRatio {
		return fmt.Errorf("points are collinear")
	}

	if len(pts) != 4 {
		return nil
	}
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			for k := j + 1; k < 4; k++ {
				if triangleArea(pts[i], pts[j], pts[k]) < collinearArea {
					return fmt.Errorf("points %d, %d and %d are collinear", i, j, k)
				}
			}
		}
	}
	return nil
}

func triangleArea(a, b, c [2]float64) float64 {
	return math.Abs((b[0]-a[0])*(c[1]-a[1])-(b[1]-a[1])*(c[0]-a[0])) / 2
}
