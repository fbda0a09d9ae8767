package l4pose

import (
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/banshee-data/wall.align/internal/align/l2calib"
	"github.com/banshee-data/wall.align/internal/config"
)

// ForegroundMode selects how the contour detector separates the item
// from the wall.
type ForegroundMode string

const (
	ForegroundDark  ForegroundMode = config.ForegroundDark  // item darker than the wall
	ForegroundLight ForegroundMode = config.ForegroundLight // item lighter than the wall
	ForegroundColor ForegroundMode = config.ForegroundColor // coloured marker on the item
)

// ContourConfig tunes ContourDetector.
type ContourConfig struct {
	Mode          ForegroundMode
	Threshold     uint8          // luminance split for dark and light modes
	MarkerColor   colorful.Color // key colour for color mode
	ColorDistance float64        // max CIE Lab distance to MarkerColor
	BlurSigma     float64        // 0 disables pre-blur
	MinArea       int            // smallest component in pixels
	MaxFraction   float64        // components covering more of the ROI are background
	BorderPenalty float64        // confidence multiplier for components touching the ROI edge
}

// ContourConfigFromTuning builds a ContourConfig from tuning values.
func ContourConfigFromTuning(cfg *config.TuningConfig) (ContourConfig, error) {
	key, err := colorful.Hex(cfg.GetMarkerColor())
	if err != nil {
		return ContourConfig{}, fmt.Errorf("invalid marker_color: %w", err)
	}
	return ContourConfig{
		Mode:          ForegroundMode(cfg.GetForegroundMode()),
		Threshold:     uint8(cfg.GetThresholdLevel()),
		MarkerColor:   key,
		ColorDistance: cfg.GetColorDistance(),
		BlurSigma:     cfg.GetBlurSigma(),
		MinArea:       cfg.GetMinBlobAreaPx(),
		MaxFraction:   cfg.GetMaxBlobFraction(),
		BorderPenalty: cfg.GetBorderPenalty(),
	}, nil
}

// ContourDetector finds the largest foreground blob in the search window
// and fits the minimum-area rectangle around it.
//
// Confidence is the blob's rectangularity (pixel count over box area). A
// picture seen face-on fills its box almost completely; clutter, partial
// occlusion and merged shadows do not. Blobs that touch the window edge
// may be truncated and are scaled by BorderPenalty.
type ContourDetector struct {
	cfg ContourConfig
}

// NewContourDetector creates a ContourDetector.
func NewContourDetector(cfg ContourConfig) *ContourDetector {
	return &ContourDetector{cfg: cfg}
}

// Detect implements Detector.
func (d *ContourDetector) Detect(img image.Image, roi image.Rectangle) (ObservedPose, bool) {
	roi = roi.Intersect(img.Bounds())
	if roi.Empty() {
		return ObservedPose{}, false
	}

	sub := imaging.Crop(img, roi)
	if d.cfg.BlurSigma > 0 {
		sub = imaging.Blur(sub, d.cfg.BlurSigma)
	}
	w, h := sub.Bounds().Dx(), sub.Bounds().Dy()
	mask := d.foreground(sub)

	blob, ok := largestComponent(mask, w, h, d.cfg.MinArea, int(d.cfg.MaxFraction*float64(w*h)))
	if !ok {
		return ObservedPose{}, false
	}
	box, ok := minAreaBox(spanHull(blob.y0, blob.minX, blob.maxX))
	if !ok {
		return ObservedPose{}, false
	}

	conf := float64(blob.count) / (box.w * box.h)
	if conf > 1 {
		conf = 1
	}
	if blob.touchesBorder {
		conf *= d.cfg.BorderPenalty
	}
	return ObservedPose{
		Center:      l2calib.CameraPoint{X: float64(roi.Min.X) + box.cx, Y: float64(roi.Min.Y) + box.cy},
		Width:       box.w,
		Height:      box.h,
		RotationDeg: box.angleDeg,
		Confidence:  conf,
	}, true
}

func (d *ContourDetector) foreground(sub *image.NRGBA) []bool {
	b := sub.Bounds()
	w, h := b.Dx(), b.Dy()
	mask := make([]bool, w*h)

	switch d.cfg.Mode {
	case ForegroundColor:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c, ok := colorful.MakeColor(sub.NRGBAAt(b.Min.X+x, b.Min.Y+y))
				mask[y*w+x] = ok && c.DistanceLab(d.cfg.MarkerColor) <= d.cfg.ColorDistance
			}
		}
	default:
		// Threshold maps luminance >= level to white.
		bin := segment.Threshold(sub, d.cfg.Threshold)
		bb := bin.Bounds()
		want := uint8(0)
		if d.cfg.Mode == ForegroundLight {
			want = 255
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				mask[y*w+x] = bin.GrayAt(bb.Min.X+x, bb.Min.Y+y).Y == want
			}
		}
	}
	return mask
}

type component struct {
	count         int
	y0            int
	minX, maxX    []int // per-row span, indexed from y0
	touchesBorder bool
}

// largestComponent labels 4-connected foreground regions in scan order and
// returns the biggest one whose size lies in [minArea, maxArea]. Equal
// sizes resolve to the region found first.
func largestComponent(mask []bool, w, h, minArea, maxArea int) (component, bool) {
	seen := make([]bool, len(mask))
	stack := make([]int, 0, 64)
	var best component
	found := false

	for start := range mask {
		if !mask[start] || seen[start] {
			continue
		}
		seen[start] = true
		stack = append(stack[:0], start)

		cur := component{y0: start / w}
		rowMin := map[int]int{}
		rowMax := map[int]int{}
		maxY := cur.y0
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%w, i/w
			cur.count++
			if x == 0 || y == 0 || x == w-1 || y == h-1 {
				cur.touchesBorder = true
			}
			if v, ok := rowMin[y]; !ok || x < v {
				rowMin[y] = x
			}
			if v, ok := rowMax[y]; !ok || x > v {
				rowMax[y] = x
			}
			if y > maxY {
				maxY = y
			}

			for _, n := range [4]int{i - w, i + w, i - 1, i + 1} {
				switch {
				case n < 0 || n >= len(mask):
					continue
				case (n == i-1 && x == 0) || (n == i+1 && x == w-1):
					continue
				case !mask[n] || seen[n]:
					continue
				}
				seen[n] = true
				stack = append(stack, n)
			}
		}

		if cur.count < minArea || cur.count > maxArea {
			continue
		}
		if found && cur.count <= best.count {
			continue
		}
		rows := maxY - cur.y0 + 1
		cur.minX = make([]int, rows)
		cur.maxX = make([]int, rows)
		for r := 0; r < rows; r++ {
			cur.minX[r], cur.maxX[r] = rowMin[cur.y0+r], rowMax[cur.y0+r]
		}
		best, found = cur, true
	}
	return best, found
}
