package l2calib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderCorners(t *testing.T) {
	t.Parallel()

	tl := CameraPoint{X: 102, Y: 88}
	tr := CameraPoint{X: 940, Y: 120}
	br := CameraPoint{X: 910, Y: 700}
	bl := CameraPoint{X: 80, Y: 660}

	shuffled := [4]CameraPoint{br, tl, bl, tr}
	assert.Equal(t, [4]CameraPoint{tl, tr, br, bl}, OrderCorners(shuffled))
}

func TestValidateQuad(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		quad    [4]CameraPoint
		wantErr bool
	}{
		{"rectangle", [4]CameraPoint{{0, 0}, {200, 0}, {200, 100}, {0, 100}}, false},
		{"keystone", [4]CameraPoint{{20, 0}, {180, 10}, {200, 100}, {0, 110}}, false},
		{"bowtie", [4]CameraPoint{{0, 0}, {200, 100}, {200, 0}, {0, 100}}, true},
		{"collinear edge", [4]CameraPoint{{0, 0}, {100, 0}, {200, 0}, {0, 100}}, true},
		{"duplicate corner", [4]CameraPoint{{0, 0}, {0, 0}, {200, 100}, {0, 100}}, true},
		{"too small", [4]CameraPoint{{0, 0}, {5, 0}, {5, 5}, {0, 5}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateQuad(tt.quad)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidQuad)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQuadCorrespondences(t *testing.T) {
	t.Parallel()

	corners := [4]CameraPoint{{910, 700}, {102, 88}, {80, 660}, {940, 120}}
	corrs, err := QuadCorrespondences(1200, 800, corners)
	require.NoError(t, err)
	require.Len(t, corrs, 4)

	h, err := Calibrate(corrs, CalibrateOptions{})
	require.NoError(t, err)

	c, err := h.ToCamera(PlanningPoint{X: 0, Y: 0})
	require.NoError(t, err)
	assert.InDelta(t, 102, c.X, 1e-6)
	assert.InDelta(t, 88, c.Y, 1e-6)

	c, err = h.ToCamera(PlanningPoint{X: 1200, Y: 800})
	require.NoError(t, err)
	assert.InDelta(t, 910, c.X, 1e-6)
	assert.InDelta(t, 700, c.Y, 1e-6)

	_, err = QuadCorrespondences(0, 800, corners)
	assert.ErrorIs(t, err, ErrInvalidQuad)
}
