package l2calib

import (
	"errors"
	"fmt"
)

// CalibrationReason classifies why a calibration attempt was rejected.
type CalibrationReason string

const (
	ReasonTooFewPoints   CalibrationReason = "too_few_points"
	ReasonDegenerate     CalibrationReason = "degenerate"
	ReasonIllConditioned CalibrationReason = "ill_conditioned"
	ReasonInvalidInput   CalibrationReason = "invalid_input"
)

// CalibrationError is returned when correspondences cannot produce a
// usable homography. The previously active calibration is unaffected.
type CalibrationError struct {
	Reason CalibrationReason
	Detail string
}

func (e *CalibrationError) Error() string {
	return fmt.Sprintf("calibration failed (%s): %s", e.Reason, e.Detail)
}

func calibErrorf(reason CalibrationReason, format string, args ...interface{}) error {
	return &CalibrationError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// ErrProjection is returned when a point maps to the line at infinity or
// the result is not finite.
var ErrProjection = errors.New("projection undefined for point")
