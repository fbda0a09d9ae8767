package l1frames

import (
	"context"
	"image"
	"io"
	"time"
)

// Frame is one timestamped raster from the camera. The image is treated
// as read-only once the frame has been handed to the core.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Image     image.Image
}

// Size returns the frame dimensions, or the zero point for an empty frame.
func (f Frame) Size() image.Point {
	if f.Image == nil {
		return image.Point{}
	}
	return f.Image.Bounds().Size()
}

// Source yields frames in capture order. Next returns io.EOF when the
// source is exhausted and ctx.Err() when cancelled.
type Source interface {
	Next(ctx context.Context) (Frame, error)
}

// SliceSource replays a fixed list of frames.
type SliceSource struct {
	frames []Frame
	pos    int
}

// NewSliceSource returns a Source over frames.
func NewSliceSource(frames []Frame) *SliceSource {
	return &SliceSource{frames: frames}
}

// Next returns the next frame or io.EOF.
func (s *SliceSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.pos >= len(s.frames) {
		return Frame{}, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}
