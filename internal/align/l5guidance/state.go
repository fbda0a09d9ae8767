package l5guidance

// State is the tracking state of a session.
type State string

const (
	StateSearching State = "SEARCHING" // no pose yet, full-frame search
	StateTracking  State = "TRACKING"  // pose known, deviation outside tolerance
	StateAligned   State = "ALIGNED"   // smoothed deviation within tolerance
	StateLost      State = "LOST"      // too many consecutive misses
)

// frameEvent is what one frame contributed to the state machine.
type frameEvent struct {
	found          bool // estimator produced a usable pose and it mapped
	withinTol      bool // smoothed deviation within tolerance (found only)
	missesExceeded bool // consecutive misses reached the limit (not found only)
}

// nextState is the complete transition table. LOST is resolved by the
// caller before a frame is evaluated: the session is reset and the frame
// is processed as SEARCHING.
func nextState(cur State, ev frameEvent) State {
	switch cur {
	case StateSearching, StateLost:
		if ev.found {
			return StateTracking
		}
		return StateSearching
	case StateTracking, StateAligned:
		if !ev.found {
			if ev.missesExceeded {
				return StateLost
			}
			return cur
		}
		if ev.withinTol {
			return StateAligned
		}
		return StateTracking
	default:
		return StateSearching
	}
}
