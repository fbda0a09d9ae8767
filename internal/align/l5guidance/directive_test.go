package l5guidance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultTol = Tolerances{X: 10, Y: 10, Scale: 0.05, RotationDeg: 2}

func kinds(dirs []Directive) []DirectiveKind {
	out := make([]DirectiveKind, len(dirs))
	for i, d := range dirs {
		out[i] = d.Kind
	}
	return out
}

func TestDirectives_WithinToleranceIsEmpty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Directives(DeviationVector{DX: 10, DY: -10, DScale: 0.05, DRotationDeg: 2}, defaultTol))
}

func TestDirectives_Signs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		d    DeviationVector
		want DirectiveKind
		text string
	}{
		{DeviationVector{DX: 20}, MoveRight, "move right"},
		{DeviationVector{DX: -20}, MoveLeft, "move left"},
		{DeviationVector{DY: 20}, MoveDown, "move down"},
		{DeviationVector{DY: -20}, MoveUp, "move up"},
		{DeviationVector{DRotationDeg: 5}, RotateCW, "rotate clockwise"},
		{DeviationVector{DRotationDeg: -5}, RotateCCW, "rotate counter-clockwise"},
		{DeviationVector{DScale: -0.2}, PushToWall, "push toward the wall"},
		{DeviationVector{DScale: 0.2}, PullFromWall, "pull away from the wall"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			dirs := Directives(tt.d, defaultTol)
			require.Len(t, dirs, 1)
			assert.Equal(t, tt.want, dirs[0].Kind)
			assert.Equal(t, tt.text, dirs[0].Text)
		})
	}
}

func TestDirectives_Priority(t *testing.T) {
	t.Parallel()

	t.Run("translation before rotation before scale", func(t *testing.T) {
		t.Parallel()
		// Scale and rotation are much further out relative to tolerance.
		d := DeviationVector{DX: 11, DScale: 1, DRotationDeg: 40}
		assert.Equal(t, []DirectiveKind{MoveRight, RotateCW, PullFromWall}, kinds(Directives(d, defaultTol)))
	})

	t.Run("larger normalised translation first", func(t *testing.T) {
		t.Parallel()
		tol := Tolerances{X: 10, Y: 2, Scale: 1, RotationDeg: 1}
		d := DeviationVector{DX: 30, DY: -8} // 3x vs 4x tolerance
		dirs := Directives(d, tol)
		assert.Equal(t, []DirectiveKind{MoveUp, MoveRight}, kinds(dirs))
		assert.InDelta(t, 4, dirs[0].Normalized, 1e-9)
		assert.InDelta(t, 8, dirs[0].Magnitude, 1e-9)
	})

	t.Run("x before y on a tie", func(t *testing.T) {
		t.Parallel()
		d := DeviationVector{DX: -20, DY: 20}
		assert.Equal(t, []DirectiveKind{MoveLeft, MoveDown}, kinds(Directives(d, defaultTol)))
	})
}

func TestDirectives_ZeroTolerance(t *testing.T) {
	t.Parallel()

	dirs := Directives(DeviationVector{DX: 0.5}, Tolerances{})
	require.Len(t, dirs, 1)
	assert.True(t, math.IsInf(dirs[0].Normalized, 1))
	assert.Empty(t, Directives(DeviationVector{}, Tolerances{}))
}

func TestDirectiveKindText(t *testing.T) {
	t.Parallel()

	for k, text := range directiveText {
		assert.NotEmpty(t, text, "kind %s", k)
		assert.Equal(t, text, k.Text())
	}
	assert.Equal(t, "hold: aligned", HoldAligned.Text())
	assert.Equal(t, "searching for the picture", Searching.Text())
}
