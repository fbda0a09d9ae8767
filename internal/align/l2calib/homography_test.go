package l2calib

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// perspective is a mild keystone similar to a phone held below and left of
// the wall centre.
var perspective = [9]float64{
	1.2, 0.1, 30,
	0.05, 0.9, 40,
	1e-4, 2e-4, 1,
}

func applyMatrix(m [9]float64, x, y float64) (float64, float64) {
	w := m[6]*x + m[7]*y + m[8]
	return (m[0]*x + m[1]*y + m[2]) / w, (m[3]*x + m[4]*y + m[5]) / w
}

func gridCorrespondences(m [9]float64, n int, size float64) []Correspondence {
	var out []Correspondence
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			px := size * float64(i) / float64(n-1)
			py := size * float64(j) / float64(n-1)
			cx, cy := applyMatrix(m, px, py)
			out = append(out, Correspondence{
				Planning: PlanningPoint{X: px, Y: py},
				Camera:   CameraPoint{X: cx, Y: cy},
			})
		}
	}
	return out
}

func square(size float64, toCamera func(x, y float64) (float64, float64)) []Correspondence {
	corners := [][2]float64{{0, 0}, {size, 0}, {size, size}, {0, size}}
	out := make([]Correspondence, 0, 4)
	for _, c := range corners {
		cx, cy := toCamera(c[0], c[1])
		out = append(out, Correspondence{
			Planning: PlanningPoint{X: c[0], Y: c[1]},
			Camera:   CameraPoint{X: cx, Y: cy},
		})
	}
	return out
}

func requireCalibrationError(t *testing.T, err error, reason CalibrationReason) {
	t.Helper()
	require.Error(t, err)
	var ce *CalibrationError
	require.True(t, errors.As(err, &ce), "expected *CalibrationError, got %T: %v", err, err)
	assert.Equal(t, reason, ce.Reason, "detail: %s", ce.Detail)
}

func TestCalibrate_UnitSquareIdentity(t *testing.T) {
	t.Parallel()

	corrs := square(1, func(x, y float64) (float64, float64) { return x, y })
	h, err := Calibrate(corrs, CalibrateOptions{})
	require.NoError(t, err)

	identity := [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
	if diff := cmp.Diff(identity, h.Matrix(), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("unit square homography mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, 1.0, h.Condition(), 1e-6)
}

func TestCalibrate_RecoversKnownPerspective(t *testing.T) {
	t.Parallel()

	h, err := Calibrate(gridCorrespondences(perspective, 3, 1000), CalibrateOptions{})
	require.NoError(t, err)

	if diff := cmp.Diff(perspective, h.Matrix(), cmpopts.EquateApprox(1e-6, 1e-9)); diff != "" {
		t.Errorf("recovered homography mismatch (-want +got):\n%s", diff)
	}
}

func TestCalibrate_RoundTrip(t *testing.T) {
	t.Parallel()

	cases := map[string][]Correspondence{
		"four corners": square(800, func(x, y float64) (float64, float64) {
			return applyMatrix(perspective, x, y)
		}),
		"grid of nine":    gridCorrespondences(perspective, 3, 1000),
		"grid of sixteen": gridCorrespondences([9]float64{0.5, -0.02, 600, 0.01, 0.48, 200, -5e-5, 1e-5, 1}, 4, 1200),
	}
	for name, corrs := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			h, err := Calibrate(corrs, CalibrateOptions{})
			require.NoError(t, err)

			for i := 0; i < 50; i++ {
				p := PlanningPoint{X: float64(i*37%900) + 0.25, Y: float64(i*53%700) + 0.75}
				c, err := h.ToCamera(p)
				require.NoError(t, err)
				back, err := h.ToPlanning(c)
				require.NoError(t, err)
				assert.InDelta(t, p.X, back.X, 1e-6)
				assert.InDelta(t, p.Y, back.Y, 1e-6)
			}
		})
	}
}

func TestCalibrate_Degenerate(t *testing.T) {
	t.Parallel()

	pair := func(px, py, cx, cy float64) Correspondence {
		return Correspondence{Planning: PlanningPoint{px, py}, Camera: CameraPoint{cx, cy}}
	}

	tests := []struct {
		name   string
		corrs  []Correspondence
		reason CalibrationReason
	}{
		{"empty", nil, ReasonTooFewPoints},
		{"three points", []Correspondence{
			pair(0, 0, 0, 0), pair(1, 0, 1, 0), pair(0, 1, 0, 1),
		}, ReasonTooFewPoints},
		{"all planning points on a line", []Correspondence{
			pair(0, 0, 0, 0), pair(1, 1, 10, 0), pair(2, 2, 10, 10), pair(3, 3, 0, 10),
		}, ReasonDegenerate},
		{"camera points on a line", []Correspondence{
			pair(0, 0, 0, 0), pair(1, 0, 5, 0), pair(1, 1, 10, 0), pair(0, 1, 20, 0),
		}, ReasonDegenerate},
		{"three of four collinear", []Correspondence{
			pair(0, 0, 0, 0), pair(1, 0, 1, 0), pair(2, 0, 2, 0), pair(0, 1, 0, 1),
		}, ReasonDegenerate},
		{"coincident points", []Correspondence{
			pair(5, 5, 1, 1), pair(5, 5, 2, 1), pair(5, 5, 2, 2), pair(5, 5, 1, 2),
		}, ReasonDegenerate},
		{"eight collinear points", func() []Correspondence {
			var out []Correspondence
			for i := 0; i < 8; i++ {
				out = append(out, pair(float64(i), 2*float64(i), float64(i*i), float64(i)))
			}
			return out
		}(), ReasonDegenerate},
		{"non-finite input", []Correspondence{
			pair(0, 0, 0, 0), pair(1, 0, 1, 0), pair(1, 1, math.NaN(), 1), pair(0, 1, 0, 1),
		}, ReasonInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, err := Calibrate(tt.corrs, CalibrateOptions{})
			assert.Nil(t, h)
			requireCalibrationError(t, err, tt.reason)
		})
	}
}

func TestCalibrate_ConditionThreshold(t *testing.T) {
	t.Parallel()

	// Planning square of side 1 seen at 1000x the size: condition number ~1e3.
	corrs := square(1, func(x, y float64) (float64, float64) { return 1000 * x, 1000 * y })

	_, err := Calibrate(corrs, CalibrateOptions{MaxConditionNumber: 10})
	requireCalibrationError(t, err, ReasonIllConditioned)

	h, err := Calibrate(corrs, CalibrateOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 1000, h.Condition(), 1e-3)
}

func TestFromMatrix(t *testing.T) {
	t.Parallel()

	t.Run("rescales bottom-right entry", func(t *testing.T) {
		t.Parallel()
		h, err := FromMatrix([9]float64{2, 0, 0, 0, 2, 0, 0, 0, 2}, CalibrateOptions{})
		require.NoError(t, err)
		assert.Equal(t, [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, h.Matrix())
	})

	t.Run("rejects near-singular", func(t *testing.T) {
		t.Parallel()
		_, err := FromMatrix([9]float64{1, 0, 0, 0, 1e-12, 0, 0, 0, 1}, CalibrateOptions{})
		requireCalibrationError(t, err, ReasonIllConditioned)
	})

	t.Run("rejects zero", func(t *testing.T) {
		t.Parallel()
		_, err := FromMatrix([9]float64{}, CalibrateOptions{})
		requireCalibrationError(t, err, ReasonDegenerate)
	})

	t.Run("rejects NaN", func(t *testing.T) {
		t.Parallel()
		_, err := FromMatrix([9]float64{math.NaN(), 0, 0, 0, 1, 0, 0, 0, 1}, CalibrateOptions{})
		requireCalibrationError(t, err, ReasonIllConditioned)
	})
}

func TestProject(t *testing.T) {
	t.Parallel()

	// w = x + 1 vanishes on the line x = -1.
	h, err := FromMatrix([9]float64{1, 0, 0, 0, 1, 0, 1, 0, 1}, CalibrateOptions{})
	require.NoError(t, err)

	x, y, err := Project(h, 1, 4, PlanningToCamera)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, x, 1e-12)
	assert.InDelta(t, 2.0, y, 1e-12)

	_, _, err = Project(h, -1, 3, PlanningToCamera)
	assert.ErrorIs(t, err, ErrProjection)

	// Inverse maps back.
	bx, by, err := h.Project(x, y, CameraToPlanning)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, bx, 1e-12)
	assert.InDelta(t, 4.0, by, 1e-12)
}

func TestProject_Pure(t *testing.T) {
	t.Parallel()

	h, err := Calibrate(gridCorrespondences(perspective, 3, 1000), CalibrateOptions{})
	require.NoError(t, err)
	before := h.Matrix()

	x1, y1, err := h.Project(123, 456, PlanningToCamera)
	require.NoError(t, err)
	x2, y2, err := h.Project(123, 456, PlanningToCamera)
	require.NoError(t, err)

	assert.Equal(t, x1, x2)
	assert.Equal(t, y1, y2)
	assert.Equal(t, before, h.Matrix())
}

func TestDirectionString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "planning->camera", PlanningToCamera.String())
	assert.Equal(t, "camera->planning", CameraToPlanning.String())
	assert.Equal(t, "unknown", Direction(9).String())
}
