package l2calib

import "math"

// Quality is the assessed quality of a calibration fit.
type Quality string

const (
	// QualityExcellent indicates reprojection RMSE < 1px
	QualityExcellent Quality = "excellent"
	// QualityGood indicates RMSE 1-3px, fine for guidance
	QualityGood Quality = "good"
	// QualityFair indicates RMSE 3-6px, usable but consider recalibration
	QualityFair Quality = "fair"
	// QualityPoor indicates RMSE > 6px, requires recalibration
	QualityPoor Quality = "poor"
	// QualityUnknown indicates the fit is exactly determined (four pairs)
	// so the residual says nothing about accuracy
	QualityUnknown Quality = "unknown"
)

// Reprojection RMSE thresholds (camera pixels)
const (
	RMSEThresholdExcellent = 1.0
	RMSEThresholdGood      = 3.0
	RMSEThresholdFair      = 6.0
)

// Assessment is the outcome of grading a calibration.
type Assessment struct {
	RMSE    float64
	Quality Quality
	Issues  []string
}

// ReprojectionRMSE returns the root mean square distance, in camera
// pixels, between each camera point and its planning point projected
// through h. Pairs that cannot be projected count as +Inf.
func ReprojectionRMSE(h *Homography, corrs []Correspondence) float64 {
	if len(corrs) == 0 {
		return 0
	}
	var sum float64
	for _, c := range corrs {
		p, err := h.ToCamera(c.Planning)
		if err != nil {
			return math.Inf(1)
		}
		dx, dy := p.X-c.Camera.X, p.Y-c.Camera.Y
		sum += dx*dx + dy*dy
	}
	return math.Sqrt(sum / float64(len(corrs)))
}

// Assess grades the fit of h against the correspondences it was built from.
func Assess(h *Homography, corrs []Correspondence) Assessment {
	res := Assessment{
		RMSE:    ReprojectionRMSE(h, corrs),
		Quality: QualityUnknown,
		Issues:  make([]string, 0),
	}

	if len(corrs) == 4 {
		res.Issues = append(res.Issues, "exactly four correspondences - add more points to measure accuracy")
		return res
	}
	switch rmse := res.RMSE; {
	case rmse < RMSEThresholdExcellent:
		res.Quality = QualityExcellent
	case rmse < RMSEThresholdGood:
		res.Quality = QualityGood
	case rmse < RMSEThresholdFair:
		res.Quality = QualityFair
		res.Issues = append(res.Issues, "calibration quality is fair - consider recalibration")
	default:
		res.Quality = QualityPoor
		res.Issues = append(res.Issues, "calibration quality is poor - recalibration required")
	}
	if h.Condition() > DefaultMaxConditionNumber/1e3 {
		res.Issues = append(res.Issues, "homography is close to singular - spread reference points wider")
	}
	return res
}
