package l4pose

import (
	"image"
	"math"

	"github.com/banshee-data/wall.align/internal/align/l1frames"
	"github.com/banshee-data/wall.align/internal/config"
)

// Detector is one detection technique. Detect looks for the item inside
// roi (already clipped to the image) and reports a candidate pose in full
// image coordinates. A false return means no candidate at all.
type Detector interface {
	Detect(img image.Image, roi image.Rectangle) (ObservedPose, bool)
}

// EstimatorConfig holds tuning for hinted search and the confidence floor.
type EstimatorConfig struct {
	MinConfidence      float64 // poses below this are "not found"
	SearchRadiusFactor float64 // local radius as a multiple of the hint's larger side
	MinSearchRadiusPx  int
}

// DefaultEstimatorConfig returns the built-in defaults.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfigFromTuning(config.EmptyTuningConfig())
}

// EstimatorConfigFromTuning builds an EstimatorConfig from tuning values.
func EstimatorConfigFromTuning(cfg *config.TuningConfig) EstimatorConfig {
	return EstimatorConfig{
		MinConfidence:      cfg.GetMinConfidence(),
		SearchRadiusFactor: cfg.GetSearchRadiusFactor(),
		MinSearchRadiusPx:  cfg.GetMinSearchRadiusPx(),
	}
}

// Estimator wraps a Detector with hinted local search and the minimum
// confidence rule.
type Estimator struct {
	det Detector
	cfg EstimatorConfig
}

// NewEstimator creates an Estimator around det.
func NewEstimator(det Detector, cfg EstimatorConfig) *Estimator {
	return &Estimator{det: det, cfg: cfg}
}

// Estimate locates the item in frame. With a hint the neighbourhood of the
// last pose is searched first; the whole frame is searched when there is
// no hint, the local search fails, or the local pose runs into the edge
// of the window.
func (e *Estimator) Estimate(frame l1frames.Frame, hint *ObservedPose) (ObservedPose, bool) {
	if frame.Image == nil {
		return ObservedPose{}, false
	}
	bounds := frame.Image.Bounds()
	if bounds.Empty() {
		return ObservedPose{}, false
	}

	if hint != nil {
		roi := e.searchWindow(*hint, bounds)
		if !roi.Empty() && roi != bounds {
			if p, ok := e.accept(frame.Image, roi); ok && !clipped(p, roi, bounds) {
				p.Search = SearchLocal
				return p, true
			}
		}
	}

	if p, ok := e.accept(frame.Image, bounds); ok {
		p.Search = SearchFull
		return p, true
	}
	return ObservedPose{}, false
}

func (e *Estimator) accept(img image.Image, roi image.Rectangle) (ObservedPose, bool) {
	p, ok := e.det.Detect(img, roi)
	if !ok || p.Confidence < e.cfg.MinConfidence {
		return ObservedPose{}, false
	}
	return p, true
}

// searchWindow is the square of side 2r centred on the hint, clipped to
// the frame, with r = max(MinSearchRadiusPx, factor * max(w, h)).
func (e *Estimator) searchWindow(hint ObservedPose, bounds image.Rectangle) image.Rectangle {
	r := e.cfg.SearchRadiusFactor * math.Max(hint.Width, hint.Height)
	if floor := float64(e.cfg.MinSearchRadiusPx); r < floor {
		r = floor
	}
	if math.IsNaN(r) || math.IsNaN(hint.Center.X) || math.IsNaN(hint.Center.Y) {
		return image.Rectangle{}
	}
	roi := image.Rect(
		int(math.Floor(hint.Center.X-r)),
		int(math.Floor(hint.Center.Y-r)),
		int(math.Ceil(hint.Center.X+r)),
		int(math.Ceil(hint.Center.Y+r)),
	)
	return roi.Intersect(bounds)
}

// clipSlackPx is how close, in pixels, a pose may come to a window edge
// before it counts as cut off by it.
const clipSlackPx = 1.0

// clipped reports whether p reaches an edge of roi that lies inside the
// frame. Such a pose may be the visible part of a larger item.
func clipped(p ObservedPose, roi, bounds image.Rectangle) bool {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range p.Corners() {
		minX, maxX = math.Min(minX, c.X), math.Max(maxX, c.X)
		minY, maxY = math.Min(minY, c.Y), math.Max(maxY, c.Y)
	}
	return (roi.Min.X > bounds.Min.X && minX <= float64(roi.Min.X)+clipSlackPx) ||
		(roi.Min.Y > bounds.Min.Y && minY <= float64(roi.Min.Y)+clipSlackPx) ||
		(roi.Max.X < bounds.Max.X && maxX >= float64(roi.Max.X)-clipSlackPx) ||
		(roi.Max.Y < bounds.Max.Y && maxY >= float64(roi.Max.Y)-clipSlackPx)
}
