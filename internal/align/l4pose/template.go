package l4pose

import (
	"errors"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/banshee-data/wall.align/internal/align/l2calib"
)

// ErrFlatTemplate is returned for a template with no intensity variation,
// which cannot be correlated.
var ErrFlatTemplate = errors.New("template has no contrast")

// minCoarseSide is the smallest template side, after downscaling, for
// which the coarse pass is used.
const minCoarseSide = 6

// grayPlane is a luminance image stored as float64 in row-major order.
type grayPlane struct {
	w, h int
	pix  []float64
}

func newGrayPlane(img image.Image) grayPlane {
	g := imaging.Grayscale(img)
	b := g.Bounds()
	p := grayPlane{w: b.Dx(), h: b.Dy(), pix: make([]float64, b.Dx()*b.Dy())}
	for y := 0; y < p.h; y++ {
		row := g.Pix[y*g.Stride:]
		for x := 0; x < p.w; x++ {
			p.pix[y*p.w+x] = float64(row[4*x])
		}
	}
	return p
}

// zeroMean subtracts the mean and returns the plane with its L2 norm.
func (p grayPlane) zeroMean() (grayPlane, float64) {
	var sum float64
	for _, v := range p.pix {
		sum += v
	}
	mean := sum / float64(len(p.pix))
	out := grayPlane{w: p.w, h: p.h, pix: make([]float64, len(p.pix))}
	var ss float64
	for i, v := range p.pix {
		d := v - mean
		out.pix[i] = d
		ss += d * d
	}
	return out, math.Sqrt(ss)
}

// integral holds summed-area tables of a plane and its square.
type integral struct {
	w      int
	s, sq  []float64
	stride int
}

func newIntegral(p grayPlane) integral {
	stride := p.w + 1
	in := integral{w: p.w, stride: stride, s: make([]float64, stride*(p.h+1)), sq: make([]float64, stride*(p.h+1))}
	for y := 0; y < p.h; y++ {
		var rs, rsq float64
		for x := 0; x < p.w; x++ {
			v := p.pix[y*p.w+x]
			rs += v
			rsq += v * v
			in.s[(y+1)*stride+x+1] = in.s[y*stride+x+1] + rs
			in.sq[(y+1)*stride+x+1] = in.sq[y*stride+x+1] + rsq
		}
	}
	return in
}

func (in integral) window(x, y, w, h int) (sum, sq float64) {
	a, b := y*in.stride+x, y*in.stride+x+w
	c, d := (y+h)*in.stride+x, (y+h)*in.stride+x+w
	return in.s[d] - in.s[b] - in.s[c] + in.s[a], in.sq[d] - in.sq[b] - in.sq[c] + in.sq[a]
}

// correlator scores a zero-mean template against every placement in a
// search plane.
type correlator struct {
	tmpl grayPlane // zero-mean
	norm float64
}

func newCorrelator(img image.Image) (correlator, error) {
	t, norm := newGrayPlane(img).zeroMean()
	if norm < 1e-6 {
		return correlator{}, ErrFlatTemplate
	}
	return correlator{tmpl: t, norm: norm}, nil
}

// score is the zero-mean normalised cross-correlation at (x, y), in [-1, 1].
func (c correlator) score(search grayPlane, in integral, x, y int) float64 {
	n := float64(c.tmpl.w * c.tmpl.h)
	sum, sq := in.window(x, y, c.tmpl.w, c.tmpl.h)
	variance := sq - sum*sum/n
	if variance < 1e-6 {
		return 0
	}
	var cross float64
	for ty := 0; ty < c.tmpl.h; ty++ {
		srow := search.pix[(y+ty)*search.w+x:]
		trow := c.tmpl.pix[ty*c.tmpl.w:]
		for tx := 0; tx < c.tmpl.w; tx++ {
			cross += srow[tx] * trow[tx]
		}
	}
	return cross / (math.Sqrt(variance) * c.norm)
}

// best scans placements with x in [x0, x1] and y in [y0, y1]. The first
// maximum in scan order wins.
func (c correlator) best(search grayPlane, in integral, x0, y0, x1, y1 int) (int, int, float64) {
	bx, by, bs := -1, -1, math.Inf(-1)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if s := c.score(search, in, x, y); s > bs {
				bx, by, bs = x, y, s
			}
		}
	}
	return bx, by, bs
}

// TemplateDetector locates a reference image of the item (or of a printed
// marker on it) by normalised cross-correlation. A coarse pass on a
// downscaled copy picks a candidate that is refined at full resolution.
// Matching is translation-only: reported rotation is always zero and the
// size is the template size.
type TemplateDetector struct {
	full   correlator
	coarse *correlator
	step   int
}

// NewTemplateDetector prepares tmpl for matching. coarseStep is the
// downscale factor of the coarse pass; 1 disables it.
func NewTemplateDetector(tmpl image.Image, coarseStep int) (*TemplateDetector, error) {
	full, err := newCorrelator(tmpl)
	if err != nil {
		return nil, err
	}
	d := &TemplateDetector{full: full, step: 1}
	b := tmpl.Bounds()
	if coarseStep > 1 && b.Dx()/coarseStep >= minCoarseSide && b.Dy()/coarseStep >= minCoarseSide {
		small := imaging.Resize(tmpl, b.Dx()/coarseStep, b.Dy()/coarseStep, imaging.Box)
		if c, err := newCorrelator(small); err == nil {
			d.coarse = &c
			d.step = coarseStep
		}
	}
	return d, nil
}

// Detect implements Detector.
func (d *TemplateDetector) Detect(img image.Image, roi image.Rectangle) (ObservedPose, bool) {
	roi = roi.Intersect(img.Bounds())
	tw, th := d.full.tmpl.w, d.full.tmpl.h
	if roi.Dx() < tw || roi.Dy() < th {
		return ObservedPose{}, false
	}

	sub := imaging.Crop(img, roi)
	search := newGrayPlane(sub)
	in := newIntegral(search)

	x0, y0, x1, y1 := 0, 0, search.w-tw, search.h-th
	if d.coarse != nil {
		cw, ch := search.w/d.step, search.h/d.step
		ctw, cth := d.coarse.tmpl.w, d.coarse.tmpl.h
		if cw >= ctw && ch >= cth {
			small := newGrayPlane(imaging.Resize(sub, cw, ch, imaging.Box))
			sin := newIntegral(small)
			cx, cy, _ := d.coarse.best(small, sin, 0, 0, cw-ctw, ch-cth)
			// Refine within one coarse cell either side.
			x0, x1 = clampInt(cx*d.step-d.step, 0, x1), clampInt(cx*d.step+d.step, 0, x1)
			y0, y1 = clampInt(cy*d.step-d.step, 0, y1), clampInt(cy*d.step+d.step, 0, y1)
		}
	}

	bx, by, bs := d.full.best(search, in, x0, y0, x1, y1)
	if bx < 0 || bs <= 0 {
		return ObservedPose{}, false
	}
	if bs > 1 {
		bs = 1
	}
	return ObservedPose{
		Center: l2calib.CameraPoint{
			X: float64(roi.Min.X+bx) + float64(tw)/2,
			Y: float64(roi.Min.Y+by) + float64(th)/2,
		},
		Width:      float64(tw),
		Height:     float64(th),
		Confidence: bs,
	}, true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
