package l2calib

import "math"

// PlanningPoint is a coordinate in the static wall-photo space.
type PlanningPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CameraPoint is a pixel coordinate in the current live frame.
type CameraPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Correspondence pairs a planning-space reference point with the camera
// pixel where the same physical point was observed.
type Correspondence struct {
	Planning PlanningPoint `json:"planning"`
	Camera   CameraPoint   `json:"camera"`
}

// Direction selects which way Project maps a point.
type Direction int

const (
	PlanningToCamera Direction = iota
	CameraToPlanning
)

func (d Direction) String() string {
	switch d {
	case PlanningToCamera:
		return "planning->camera"
	case CameraToPlanning:
		return "camera->planning"
	default:
		return "unknown"
	}
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
