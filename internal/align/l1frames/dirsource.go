package l1frames

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

type decodeFunc func(io.Reader) (image.Image, error)

var decoders = map[string]decodeFunc{
	".png":  png.Decode,
	".jpg":  jpeg.Decode,
	".jpeg": jpeg.Decode,
	".tif":  tiff.Decode,
	".tiff": tiff.Decode,
	".bmp":  bmp.Decode,
}

// DirSource replays still images from a directory in lexical file order,
// one frame per file. Files with unsupported extensions are skipped.
type DirSource struct {
	paths []string
	pos   int
	seq   uint64
	now   func() time.Time
}

// NewDirSource lists dir. now stamps each frame as it is read; nil uses
// time.Now.
func NewDirSource(dir string, now func() time.Time) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := decoders[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no frame images found in %s", dir)
	}
	if now == nil {
		now = time.Now
	}
	return &DirSource{paths: paths, now: now}, nil
}

// Len returns the number of frames the source will produce.
func (s *DirSource) Len() int { return len(s.paths) }

// Next decodes the next file.
func (s *DirSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.pos >= len(s.paths) {
		return Frame{}, io.EOF
	}
	path := s.paths[s.pos]
	s.pos++

	img, err := LoadImage(path)
	if err != nil {
		return Frame{}, err
	}
	s.seq++
	return Frame{Seq: s.seq, Timestamp: s.now(), Image: img}, nil
}

// LoadImage decodes a PNG, JPEG, TIFF or BMP file chosen by extension.
func LoadImage(path string) (image.Image, error) {
	dec, ok := decoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("unsupported image type %q", filepath.Ext(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame: %w", err)
	}
	defer f.Close()
	img, err := dec(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}
