// Package canvas provides the raster surface a scratch card is eroded on.
//
// A Surface wraps a gg drawing context and the pixmap it renders into. The
// cover is painted through gg, erasure writes transparent pixels straight into
// the pixmap, and readback produces a gg.Mask of the alpha channel.
package canvas

import (
	"errors"
	"io"
	"math"
	"sync"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/gobold"

	"scratchcard/internal/scratch"
)

var (
	ErrClosed    = errors.New("canvas: surface closed")
	ErrEmptySize = errors.New("canvas: empty size")
	ErrNotReady  = errors.New("canvas: surface not allocated")
)

var (
	fontOnce   sync.Once
	fontSource *text.FontSource
	fontErr    error
)

func labelFont() (*text.FontSource, error) {
	fontOnce.Do(func() {
		fontSource, fontErr = text.NewFontSource(gobold.TTF)
	})
	return fontSource, fontErr
}

// Surface is an owned, erasable RGBA raster. The zero value is not ready;
// call Resize first. A Surface is not safe for concurrent use.
type Surface struct {
	dc     *gg.Context
	pm     *gg.Pixmap
	width  int
	height int
	erased int
	closed bool
}

// New returns an unallocated surface.
func New() *Surface {
	return &Surface{}
}

var _ scratch.Surface = (*Surface)(nil)

// Resize allocates a fresh transparent raster of the given device size.
func (s *Surface) Resize(width, height int) error {
	if s.closed {
		return ErrClosed
	}
	if width <= 0 || height <= 0 {
		return ErrEmptySize
	}
	if s.dc != nil {
		_ = s.dc.Close()
	}
	s.pm = gg.NewPixmap(width, height)
	s.dc = gg.NewContext(width, height, gg.WithPixmap(s.pm))
	s.width = width
	s.height = height
	s.erased = width * height
	return nil
}

// Size returns the device size, zero when unallocated.
func (s *Surface) Size() (int, int) {
	return s.width, s.height
}

// Paint fills the surface with the cover gradient and label, then forces
// every pixel opaque.
func (s *Surface) Paint(cover scratch.Cover) error {
	if s.closed {
		return ErrClosed
	}
	if s.pm == nil {
		return ErrNotReady
	}
	w, h := float64(s.width), float64(s.height)
	gradient := gg.NewLinearGradientBrush(0, 0, w, h).
		AddColorStop(0, gg.Hex(cover.GradientFrom)).
		AddColorStop(1, gg.Hex(cover.GradientTo))
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			s.pm.SetPixel(x, y, gradient.ColorAt(float64(x)+0.5, float64(y)+0.5))
		}
	}

	if cover.Label != "" {
		if src, err := labelFont(); err == nil {
			s.dc.SetFont(src.Face(cover.LabelSize))
			s.dc.SetRGBA(1, 1, 1, cover.LabelAlpha)
			s.dc.DrawStringAnchored(cover.Label, w/2, h/2, 0.5, 0.5)
		}
	}

	data := s.pm.Data()
	for i := 3; i < len(data); i += 4 {
		data[i] = 255
	}
	s.erased = 0
	return nil
}

// EraseCapsule makes every pixel whose centre lies within radius of the
// segment a-b fully transparent. a == b erases a disc.
func (s *Surface) EraseCapsule(a, b scratch.Point, radius float64) {
	if s.pm == nil || !(radius > 0) || !finite(a) || !finite(b) {
		return
	}
	minX, maxX := clampRange(math.Min(a.X, b.X)-radius, math.Max(a.X, b.X)+radius, s.width)
	minY, maxY := clampRange(math.Min(a.Y, b.Y)-radius, math.Max(a.Y, b.Y)+radius, s.height)

	r2 := radius * radius
	data := s.pm.Data()
	for y := minY; y < maxY; y++ {
		cy := float64(y) + 0.5
		for x := minX; x < maxX; x++ {
			if !(segmentDistSq(float64(x)+0.5, cy, a, b) <= r2) {
				continue
			}
			i := (y*s.width + x) * 4
			if data[i+3] == 0 {
				continue
			}
			data[i], data[i+1], data[i+2], data[i+3] = 0, 0, 0, 0
			s.erased++
		}
	}
}

// Alpha reads back the alpha channel of the whole surface.
func (s *Surface) Alpha() scratch.AlphaMap {
	if s.pm == nil {
		return gg.NewMask(0, 0)
	}
	mask := gg.NewMask(s.width, s.height)
	data := s.pm.Data()
	for y := 0; y < s.height; y++ {
		row := y * s.width
		for x := 0; x < s.width; x++ {
			mask.Set(x, y, data[(row+x)*4+3])
		}
	}
	return mask
}

// erasedCount is the number of transparent pixels, maintained incrementally.
func (s *Surface) erasedCount() int {
	return s.erased
}

// Clear makes the whole surface transparent.
func (s *Surface) Clear() {
	if s.dc == nil {
		return
	}
	s.dc.Clear()
	s.erased = s.width * s.height
}

// EncodePNG writes the current raster as PNG.
func (s *Surface) EncodePNG(w io.Writer) error {
	if s.closed {
		return ErrClosed
	}
	if s.dc == nil {
		return ErrNotReady
	}
	return s.dc.EncodePNG(w)
}

// Close releases the raster. Further Resize calls fail with ErrClosed.
func (s *Surface) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if s.dc != nil {
		err = s.dc.Close()
	}
	s.dc = nil
	s.pm = nil
	s.width, s.height, s.erased = 0, 0, 0
	return err
}

// clampRange converts a float span to pixel indices within [0, limit).
// Clamping happens before the int conversion so huge spans stay defined.
func clampRange(lo, hi float64, limit int) (int, int) {
	lo = math.Max(math.Floor(lo), 0)
	hi = math.Min(math.Ceil(hi), float64(limit))
	if !(lo < hi) {
		return 0, 0
	}
	return int(lo), int(hi)
}

func finite(p scratch.Point) bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// segmentDistSq is the squared distance from (px, py) to segment a-b.
func segmentDistSq(px, py float64, a, b scratch.Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	t := 0.0
	if lenSq > 0 {
		t = ((px-a.X)*dx + (py-a.Y)*dy) / lenSq
		t = math.Max(0, math.Min(1, t))
	}
	cx, cy := a.X+t*dx-px, a.Y+t*dy-py
	return cx*cx + cy*cy
}
