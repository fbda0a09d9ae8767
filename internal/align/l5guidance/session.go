package l5guidance

import (
	"time"

	"github.com/banshee-data/wall.align/internal/align/l3layout"
	"github.com/banshee-data/wall.align/internal/align/l4pose"
)

// TrackingSession is the per-item tracking context. It is owned by the
// Engine; callers only ever see copies.
type TrackingSession struct {
	ID          string
	ItemID      l3layout.ItemID
	State       State
	LastPose    *l4pose.ObservedPose
	Misses      int
	Smoothed    DeviationVector
	HasSmoothed bool
	Frames      uint64
	StartedAt   time.Time
}

// restart clears tracking history and returns the session to SEARCHING.
// Identity and frame count are kept.
func (s *TrackingSession) restart() {
	s.State = StateSearching
	s.LastPose = nil
	s.Misses = 0
	s.Smoothed = DeviationVector{}
	s.HasSmoothed = false
}

func (s *TrackingSession) clone() TrackingSession {
	c := *s
	if s.LastPose != nil {
		p := *s.LastPose
		c.LastPose = &p
	}
	return c
}
