package l2calib

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Calibration is one immutable calibration snapshot. Frames processed
// against a snapshot use its homography for every projection.
type Calibration struct {
	ID              string
	Homography      *Homography
	Correspondences []Correspondence
	Assessment      Assessment
	CreatedAt       time.Time
}

// ErrNilCalibration is returned by Install for a nil or empty snapshot.
var ErrNilCalibration = errors.New("calibration snapshot has no homography")

// Active holds the calibration in effect for the current camera session.
// Readers call Current once per frame; Recalibrate publishes a complete
// replacement by pointer swap so a reader never sees a partial update.
type Active struct {
	cur  atomic.Pointer[Calibration]
	opts CalibrateOptions
	now  func() time.Time
}

// NewActive creates an empty holder. Current returns nil until the first
// successful Recalibrate or Install.
func NewActive(opts CalibrateOptions) *Active {
	return &Active{opts: opts, now: time.Now}
}

// Current returns the active snapshot, or nil when uncalibrated.
func (a *Active) Current() *Calibration {
	return a.cur.Load()
}

// Recalibrate builds a new snapshot from corrs and makes it active. On
// error the previous snapshot stays active and is returned unchanged by
// Current.
func (a *Active) Recalibrate(corrs []Correspondence) (*Calibration, error) {
	h, err := Calibrate(corrs, a.opts)
	if err != nil {
		return nil, err
	}
	owned := make([]Correspondence, len(corrs))
	copy(owned, corrs)
	c := &Calibration{
		ID:              uuid.NewString(),
		Homography:      h,
		Correspondences: owned,
		Assessment:      Assess(h, owned),
		CreatedAt:       a.now(),
	}
	a.cur.Store(c)
	return c, nil
}

// Install makes an existing snapshot active.
func (a *Active) Install(c *Calibration) error {
	if c == nil || c.Homography == nil {
		return ErrNilCalibration
	}
	a.cur.Store(c)
	return nil
}
