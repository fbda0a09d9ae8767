//go:build gocv

package l4pose

import (
	"image"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"

	"github.com/banshee-data/wall.align/internal/align/l2calib"
)

// CVContourDetector is the OpenCV counterpart of ContourDetector: Otsu
// threshold, morphological clean-up, external contours and minAreaRect.
// Built only with -tags gocv.
type CVContourDetector struct {
	cfg ContourConfig
}

// NewCVContourDetector creates a CVContourDetector. Only Mode, MinArea,
// MaxFraction and BorderPenalty are used; the threshold is chosen by Otsu.
func NewCVContourDetector(cfg ContourConfig) *CVContourDetector {
	return &CVContourDetector{cfg: cfg}
}

// Detect implements Detector.
func (d *CVContourDetector) Detect(img image.Image, roi image.Rectangle) (ObservedPose, bool) {
	roi = roi.Intersect(img.Bounds())
	if roi.Empty() {
		return ObservedPose{}, false
	}
	sub := imaging.Crop(img, roi)
	w, h := sub.Bounds().Dx(), sub.Bounds().Dy()

	rgba, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC4, sub.Pix)
	if err != nil {
		return ObservedPose{}, false
	}
	defer rgba.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(rgba, &gray, gocv.ColorRGBAToGray)

	mask := gocv.NewMat()
	defer mask.Close()
	mode := gocv.ThresholdBinaryInv
	if d.cfg.Mode == ForegroundLight {
		mode = gocv.ThresholdBinary
	}
	gocv.Threshold(gray, &mask, 0, 255, mode|gocv.ThresholdOtsu)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: 3, Y: 3})
	defer kernel.Close()
	gocv.MorphologyEx(mask, &mask, gocv.MorphOpen, kernel)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var best gocv.PointVector
	bestArea := 0.0
	maxArea := d.cfg.MaxFraction * float64(w*h)
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		area := gocv.ContourArea(c)
		if area >= float64(d.cfg.MinArea) && area <= maxArea && area > bestArea {
			best, bestArea = c, area
		}
	}
	if bestArea == 0 {
		return ObservedPose{}, false
	}

	rr := gocv.MinAreaRect(best)
	bw, bh := float64(rr.Width), float64(rr.Height)
	if bw <= 0 || bh <= 0 {
		return ObservedPose{}, false
	}
	conf := bestArea / (bw * bh)
	if conf > 1 {
		conf = 1
	}
	bounds := rr.BoundingRect
	if bounds.Min.X <= 0 || bounds.Min.Y <= 0 || bounds.Max.X >= w || bounds.Max.Y >= h {
		conf *= d.cfg.BorderPenalty
	}
	bw, bh, angle := normaliseBox(bw, bh, float64(rr.Angle))
	return ObservedPose{
		Center:      l2calib.CameraPoint{X: float64(roi.Min.X + rr.Center.X), Y: float64(roi.Min.Y + rr.Center.Y)},
		Width:       bw,
		Height:      bh,
		RotationDeg: angle,
		Confidence:  conf,
	}, true
}
