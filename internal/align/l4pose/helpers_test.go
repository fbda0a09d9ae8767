package l4pose

import (
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/banshee-data/wall.align/internal/config"
)

var (
	wallGray    = color.RGBA{R: 220, G: 218, B: 214, A: 255}
	pictureDark = color.RGBA{R: 35, G: 30, B: 40, A: 255}
	markerPink  = color.RGBA{R: 255, G: 0, B: 255, A: 255}
)

// wallImage returns a plain wall-coloured frame.
func wallImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// fillBox paints every pixel whose centre lies inside the rotated box.
func fillBox(img *image.RGBA, cx, cy, w, h, deg float64, c color.Color) {
	rad := deg * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dx, dy := float64(x)+0.5-cx, float64(y)+0.5-cy
			u := dx*cos + dy*sin
			v := -dx*sin + dy*cos
			if math.Abs(u) <= w/2 && math.Abs(v) <= h/2 {
				img.Set(x, y, c)
			}
		}
	}
}

func testContourConfig() ContourConfig {
	cfg, err := ContourConfigFromTuning(config.EmptyTuningConfig())
	if err != nil {
		panic(err)
	}
	return cfg
}

func colorConfig() ContourConfig {
	cfg := testContourConfig()
	cfg.Mode = ForegroundColor
	cfg.MarkerColor, _ = colorful.MakeColor(markerPink)
	return cfg
}
