package card

import (
	"errors"
	"io"
	"math"
	"sync"
	"time"

	"scratchcard/internal/canvas"
	"scratchcard/internal/prize"
	"scratchcard/internal/scratch"
	"scratchcard/pkg/realtime"
)

var ErrCardClosed = errors.New("card closed")

// Card is one scratch session: an erosion engine over its own surface and
// the prize drawn when the card was created.
type Card struct {
	mu        sync.Mutex
	ID        string
	CreatedAt time.Time

	engine   *scratch.Engine
	surface  *canvas.Surface
	prize    prize.Tier
	timeline realtime.Timeline
	closed   bool
}

// Snapshot is a consistent view of a card for rendering.
type Snapshot struct {
	ID           string
	ClearedRatio float64
	Percent      int
	Revealed     bool
	Faded        bool
	Closed       bool
	Prize        prize.Tier
	Width        int
	Height       int
	PixelRatio   float64
	Threshold    float64
	EraseMode    scratch.EraseMode
	BrushRadius  float64
	RevealedAt   time.Time
}

// HiddenPrize stands in for the drawn tier until the card is revealed.
var HiddenPrize = prize.Tier{
	Name:        "????",
	Description: "Scratch to check the result",
	Color:       "#9ca3af",
}

// VisiblePrize is what a viewer may see: the placeholder until reveal,
// then the drawn tier.
func (s Snapshot) VisiblePrize() prize.Tier {
	if !s.Revealed {
		return HiddenPrize
	}
	return s.Prize
}

// Apply runs events in order against the engine. It reports whether this
// batch crossed the reveal threshold.
func (c *Card) Apply(events []scratch.PointerEvent, vp scratch.Viewport, now time.Time) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return c.snapshotLocked(), false
	}
	if !c.engine.Mounted() {
		c.engine.Initialize(c.surface)
	}
	wasRevealed := c.engine.Revealed()
	for _, ev := range events {
		c.engine.Handle(ev, vp)
	}
	c.timeline.Touch(now)
	revealedNow := !wasRevealed && c.engine.Revealed()
	if revealedNow {
		c.timeline.Reveal(now)
	}
	return c.snapshotLocked(), revealedNow
}

// Snapshot returns the current state.
func (c *Card) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Card) snapshotLocked() Snapshot {
	st := c.engine.State()
	cfg := c.engine.Config()
	return Snapshot{
		ID:           c.ID,
		ClearedRatio: st.ClearedRatio,
		Percent:      int(math.Round(st.ClearedRatio * 100)),
		Revealed:     st.Revealed,
		Faded:        c.timeline.Faded(),
		Closed:       c.closed,
		Prize:        c.prize,
		Width:        cfg.Width,
		Height:       cfg.Height,
		PixelRatio:   cfg.PixelRatio,
		Threshold:    cfg.RevealThreshold,
		EraseMode:    cfg.EraseMode,
		BrushRadius:  cfg.BrushRadius,
		RevealedAt:   c.timeline.RevealedAt,
	}
}

// WriteMask encodes the current mask as PNG.
func (c *Card) WriteMask(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCardClosed
	}
	return c.surface.EncodePNG(w)
}

// Coverage samples the mask on a cols x rows grid and returns, per cell,
// the fraction of device pixels still opaque.
func (c *Card) Coverage(cols, rows int) [][]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, cols)
	}
	if c.closed || cols <= 0 || rows <= 0 {
		return out
	}
	alpha := c.surface.Alpha()
	w, h := alpha.Width(), alpha.Height()
	if w == 0 || h == 0 {
		return out
	}
	for row := 0; row < rows; row++ {
		y0, y1 := row*h/rows, (row+1)*h/rows
		for col := 0; col < cols; col++ {
			x0, x1 := col*w/cols, (col+1)*w/cols
			opaque, total := 0, 0
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					total++
					if alpha.At(x, y) != 0 {
						opaque++
					}
				}
			}
			if total > 0 {
				out[row][col] = float64(opaque) / float64(total)
			}
		}
	}
	return out
}

// Faded reports whether the post-reveal fade has fired.
func (c *Card) Faded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeline.Faded()
}

// Close releases the surface. Snapshots stay readable.
func (c *Card) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.engine.Close()
}

func (c *Card) advance(now time.Time) (faded bool, expired bool, next time.Time, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	faded, expired = c.timeline.Advance(now)
	if faded && !c.closed {
		c.engine.Clear()
	}
	next, ok = c.timeline.NextWake(now)
	return faded, expired, next, ok
}
