package scratch

import "math"

// Point is a position in card-local logical pixels unless noted otherwise.
type Point struct {
	X float64
	Y float64
}

func (p Point) finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Cover describes the opaque layer painted over the prize panel.
type Cover struct {
	GradientFrom string
	GradientTo   string
	Label        string
	LabelAlpha   float64
	LabelSize    float64
}

// DefaultCover is the grey "scratch here" layer.
func DefaultCover() Cover {
	return Cover{
		GradientFrom: "#9ca3af",
		GradientTo:   "#4b5563",
		Label:        "Scratch here!",
		LabelAlpha:   0.3,
		LabelSize:    20,
	}
}

// AlphaMap is a full-surface alpha readback. 0 means fully transparent.
type AlphaMap interface {
	Width() int
	Height() int
	At(x, y int) uint8
}

// Surface is the erasable raster an Engine draws on. Coordinates passed to
// a Surface are device pixels.
type Surface interface {
	// Resize allocates the raster. It fails when the surface is unavailable.
	Resize(width, height int) error
	Paint(cover Cover) error
	EraseCapsule(a, b Point, radius float64)
	Alpha() AlphaMap
	Clear()
	Close() error
}

// State is the externally observable session state of an Engine.
type State struct {
	ClearedRatio float64
	Revealed     bool
	IsDrawing    bool
	LastPosition *Point
}

// Engine tracks erosion of one card's mask. It is not safe for concurrent
// use; callers serialize events per card.
type Engine struct {
	cfg     Config
	cover   Cover
	surface Surface
	mounted bool
	closed  bool

	ratio     float64
	revealed  bool
	drawing   bool
	anchor    Point
	hasAnchor bool
}

// NewEngine validates cfg and returns an un-mounted engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, cover: DefaultCover()}, nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config {
	return e.cfg
}

// Initialize allocates the mask on surface and paints the cover. A nil or
// unavailable surface leaves the engine un-mounted so the caller can retry.
// Calls after a successful mount are no-ops, and a closed engine never
// mounts again.
func (e *Engine) Initialize(surface Surface) bool {
	if e.mounted {
		return true
	}
	if e.closed || surface == nil {
		return false
	}
	w, h := e.cfg.MaskSize()
	if err := surface.Resize(w, h); err != nil {
		return false
	}
	cover := e.cover
	cover.LabelSize *= e.cfg.PixelRatio
	if err := surface.Paint(cover); err != nil {
		return false
	}
	e.surface = surface
	e.mounted = true
	e.ratio = e.MeasureClearedRatio()
	return true
}

// Mounted reports whether Initialize has succeeded.
func (e *Engine) Mounted() bool {
	return e.mounted
}

// BeginStroke anchors a new stroke at p and erases a dab there.
func (e *Engine) BeginStroke(p Point) {
	if !e.mounted || e.revealed || !p.finite() {
		return
	}
	e.drawing = true
	e.anchor = p
	e.hasAnchor = true
	e.erase(p, p)
}

// ExtendStroke erases from the current anchor to p and moves the anchor.
func (e *Engine) ExtendStroke(p Point) {
	if !e.mounted || e.revealed || !e.drawing || !e.hasAnchor || !p.finite() {
		return
	}
	from := e.anchor
	if e.cfg.EraseMode == EraseDab {
		from = p
	}
	e.anchor = p
	e.erase(from, p)
}

// EndStroke stops drawing and forgets the anchor.
func (e *Engine) EndStroke() {
	e.drawing = false
	e.hasAnchor = false
	e.anchor = Point{}
}

// MeasureClearedRatio counts fully transparent cells over the whole mask.
func (e *Engine) MeasureClearedRatio() float64 {
	if e.surface == nil {
		return 0
	}
	alpha := e.surface.Alpha()
	w, h := alpha.Width(), alpha.Height()
	if w == 0 || h == 0 {
		return 0
	}
	cleared := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if alpha.At(x, y) == 0 {
				cleared++
			}
		}
	}
	return float64(cleared) / float64(w*h)
}

// State returns a copy of the session state.
func (e *Engine) State() State {
	s := State{
		ClearedRatio: e.ratio,
		Revealed:     e.revealed,
		IsDrawing:    e.drawing,
	}
	if e.hasAnchor {
		p := e.anchor
		s.LastPosition = &p
	}
	return s
}

// Revealed reports whether the reveal threshold has been crossed.
func (e *Engine) Revealed() bool {
	return e.revealed
}

// Clear drops whatever is left of the cover once the card is revealed.
// The cleared ratio keeps the value measured at reveal.
func (e *Engine) Clear() {
	if !e.mounted || !e.revealed {
		return
	}
	e.surface.Clear()
}

// Closed reports whether Close has been called.
func (e *Engine) Closed() bool {
	return e.closed
}

// Close releases the surface. The engine stays revealed or masked but
// accepts no further strokes and cannot be mounted again.
func (e *Engine) Close() error {
	e.EndStroke()
	e.closed = true
	if e.surface == nil {
		return nil
	}
	s := e.surface
	e.surface = nil
	e.mounted = false
	return s.Close()
}

func (e *Engine) erase(from, to Point) {
	scale := e.cfg.PixelRatio
	a := Point{X: from.X * scale, Y: from.Y * scale}
	b := Point{X: to.X * scale, Y: to.Y * scale}
	e.surface.EraseCapsule(a, b, e.cfg.BrushRadius*scale)

	ratio := e.MeasureClearedRatio()
	if ratio > e.ratio {
		e.ratio = ratio
	}
	if !e.revealed && e.ratio >= e.cfg.RevealThreshold {
		e.revealed = true
		e.EndStroke()
	}
}
