package l3layout

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/wall.align/internal/align/l2calib"
)

// ItemID is the stable identifier of one planned picture.
type ItemID string

// PlannedItem is one picture's target pose in planning space.
type PlannedItem struct {
	ID          ItemID                `json:"id"`
	Label       string                `json:"label,omitempty"`
	Center      l2calib.PlanningPoint `json:"center"`
	Width       float64               `json:"width"`
	Height      float64               `json:"height"`
	RotationDeg float64               `json:"rotation_deg"`
}

// ErrInvalidItem is wrapped by Validate failures.
var ErrInvalidItem = errors.New("invalid planned item")

// UnknownItemError is returned when a lookup names an item that is not in
// the current snapshot.
type UnknownItemError struct {
	ID ItemID
}

func (e *UnknownItemError) Error() string {
	return fmt.Sprintf("unknown item %q", string(e.ID))
}

// Validate checks the item has an id, finite centre and positive size.
func (it PlannedItem) Validate() error {
	if it.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidItem)
	}
	if !isFinite(it.Center.X) || !isFinite(it.Center.Y) || !isFinite(it.RotationDeg) {
		return fmt.Errorf("%w: %s has a non-finite coordinate", ErrInvalidItem, it.ID)
	}
	if !(it.Width > 0) || !(it.Height > 0) || math.IsInf(it.Width, 0) || math.IsInf(it.Height, 0) {
		return fmt.Errorf("%w: %s size %gx%g must be positive", ErrInvalidItem, it.ID, it.Width, it.Height)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
