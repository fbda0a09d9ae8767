package l5guidance

import (
	"math"
	"sort"
)

// DirectiveKind identifies one instruction to the person holding the item.
type DirectiveKind string

const (
	MoveLeft     DirectiveKind = "move_left"
	MoveRight    DirectiveKind = "move_right"
	MoveUp       DirectiveKind = "move_up"
	MoveDown     DirectiveKind = "move_down"
	RotateCW     DirectiveKind = "rotate_cw"
	RotateCCW    DirectiveKind = "rotate_ccw"
	PushToWall   DirectiveKind = "push_to_wall"
	PullFromWall DirectiveKind = "pull_from_wall"
	Hold         DirectiveKind = "hold"
	HoldAligned  DirectiveKind = "aligned"
	Searching    DirectiveKind = "searching"
	Lost         DirectiveKind = "lost"
)

var directiveText = map[DirectiveKind]string{
	MoveLeft:     "move left",
	MoveRight:    "move right",
	MoveUp:       "move up",
	MoveDown:     "move down",
	RotateCW:     "rotate clockwise",
	RotateCCW:    "rotate counter-clockwise",
	PushToWall:   "push toward the wall",
	PullFromWall: "pull away from the wall",
	Hold:         "hold steady",
	HoldAligned:  "hold: aligned",
	Searching:    "searching for the picture",
	Lost:         "picture lost: searching again",
}

// Text returns the human-readable instruction.
func (k DirectiveKind) Text() string { return directiveText[k] }

// Axis is the deviation component a directive corrects.
type Axis string

const (
	AxisNone     Axis = ""
	AxisX        Axis = "x"
	AxisY        Axis = "y"
	AxisRotation Axis = "rotation"
	AxisScale    Axis = "scale"
)

// Directive is one correction, with the size of the remaining error both
// in its own units and relative to the axis tolerance.
type Directive struct {
	Kind       DirectiveKind `json:"kind"`
	Axis       Axis          `json:"axis,omitempty"`
	Magnitude  float64       `json:"magnitude"`
	Normalized float64       `json:"normalized"`
	Text       string        `json:"text"`
}

func status(k DirectiveKind) Directive {
	return Directive{Kind: k, Text: k.Text()}
}

// axis groups in priority order: translation, then rotation, then scale.
const (
	groupTranslation = iota
	groupRotation
	groupScale
)

// Directives lists a correction for every component of d outside tol,
// ordered by priority. Translation comes before rotation and rotation
// before scale; within translation the axis with the larger
// tolerance-relative error leads, X before Y on a tie. An empty result
// means d is within tolerance.
func Directives(d DeviationVector, tol Tolerances) []Directive {
	type candidate struct {
		group int
		dir   Directive
	}
	var out []candidate
	add := func(group int, axis Axis, delta, limit float64, pos, neg DirectiveKind) {
		mag := math.Abs(delta)
		if mag <= limit {
			return
		}
		kind := pos
		if delta < 0 {
			kind = neg
		}
		norm := math.Inf(1)
		if limit > 0 {
			norm = mag / limit
		}
		out = append(out, candidate{group, Directive{Kind: kind, Axis: axis, Magnitude: mag, Normalized: norm, Text: kind.Text()}})
	}

	add(groupTranslation, AxisX, d.DX, tol.X, MoveRight, MoveLeft)
	add(groupTranslation, AxisY, d.DY, tol.Y, MoveDown, MoveUp)
	add(groupRotation, AxisRotation, d.DRotationDeg, tol.RotationDeg, RotateCW, RotateCCW)
	// Appearing smaller than planned means the item sits behind the wall
	// plane as calibrated, larger means it is held out in front.
	add(groupScale, AxisScale, d.DScale, tol.Scale, PullFromWall, PushToWall)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].group != out[j].group {
			return out[i].group < out[j].group
		}
		return out[i].dir.Normalized > out[j].dir.Normalized
	})
	dirs := make([]Directive, len(out))
	for i, c := range out {
		dirs[i] = c.dir
	}
	return dirs
}
