// Package report renders convergence charts and summaries of recorded
// guidance sessions.
package report

import (
	"github.com/banshee-data/wall.align/internal/align/l5guidance"
)

// Summary condenses one session.
type Summary struct {
	Frames int `json:"frames"`
	// FramesToAligned is the 1-based position of the first ALIGNED
	// result, or 0 if the session never aligned.
	FramesToAligned int                        `json:"frames_to_aligned"`
	AlignedFrames   int                        `json:"aligned_frames"`
	LostCount       int                        `json:"lost_count"` // transitions into LOST
	StaleFrames     int                        `json:"stale_frames"`
	FinalState      l5guidance.State           `json:"final_state"`
	FinalDeviation  l5guidance.DeviationVector `json:"final_deviation"`
}

// Summarise computes a Summary over results in frame order.
func Summarise(results []l5guidance.GuidanceResult) Summary {
	s := Summary{Frames: len(results)}
	prev := l5guidance.State("")
	for i, r := range results {
		if r.State == l5guidance.StateAligned {
			s.AlignedFrames++
			if s.FramesToAligned == 0 {
				s.FramesToAligned = i + 1
			}
		}
		if r.State == l5guidance.StateLost && prev != l5guidance.StateLost {
			s.LostCount++
		}
		if r.Stale {
			s.StaleFrames++
		}
		prev = r.State
	}
	if len(results) > 0 {
		last := results[len(results)-1]
		s.FinalState = last.State
		s.FinalDeviation = last.Deviation
	}
	return s
}
