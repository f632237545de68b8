package scratch

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidViewport = errors.New("invalid viewport")

// EventKind is the normalized pointer event kind. Mouse and touch input
// both reduce to these.
type EventKind string

const (
	EventStart  EventKind = "start"
	EventMove   EventKind = "move"
	EventEnd    EventKind = "end"
	EventLeave  EventKind = "leave"
	EventCancel EventKind = "cancel"
)

// PointerEvent carries the primary contact position in client coordinates.
type PointerEvent struct {
	Kind EventKind `json:"kind"`
	X    float64   `json:"x"`
	Y    float64   `json:"y"`
}

// Viewport is the on-screen bounding box of the card element in client
// coordinates. A zero Width or Height means the element is drawn at its
// logical size.
type Viewport struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Validate rejects non-finite fields and element sizes below one client
// pixel, which would blow card coordinates up to infinity.
func (v Viewport) Validate() error {
	for _, f := range []float64{v.Left, v.Top, v.Width, v.Height} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite value", ErrInvalidViewport)
		}
	}
	if v.Width < 0 || (v.Width > 0 && v.Width < 1) {
		return fmt.Errorf("%w: width %v", ErrInvalidViewport, v.Width)
	}
	if v.Height < 0 || (v.Height > 0 && v.Height < 1) {
		return fmt.Errorf("%w: height %v", ErrInvalidViewport, v.Height)
	}
	return nil
}

// ToCard maps a client position to card-local logical pixels.
func (v Viewport) ToCard(x, y float64, cfg Config) Point {
	p := Point{X: x - v.Left, Y: y - v.Top}
	if v.Width > 0 {
		p.X *= float64(cfg.Width) / v.Width
	}
	if v.Height > 0 {
		p.Y *= float64(cfg.Height) / v.Height
	}
	return p
}

// ParseEventKind validates a wire event kind.
func ParseEventKind(s string) (EventKind, error) {
	switch k := EventKind(s); k {
	case EventStart, EventMove, EventEnd, EventLeave, EventCancel:
		return k, nil
	}
	return "", fmt.Errorf("unknown pointer event %q", s)
}

// Validate checks the kind and that the position is finite.
func (ev PointerEvent) Validate() error {
	if _, err := ParseEventKind(string(ev.Kind)); err != nil {
		return err
	}
	if math.IsNaN(ev.X) || math.IsInf(ev.X, 0) || math.IsNaN(ev.Y) || math.IsInf(ev.Y, 0) {
		return fmt.Errorf("pointer event %q: non-finite position", ev.Kind)
	}
	return nil
}

// Handle applies one normalized event. End, leave and cancel all end the
// current stroke.
func (e *Engine) Handle(ev PointerEvent, vp Viewport) {
	switch ev.Kind {
	case EventStart:
		e.EndStroke()
		e.BeginStroke(vp.ToCard(ev.X, ev.Y, e.cfg))
	case EventMove:
		e.ExtendStroke(vp.ToCard(ev.X, ev.Y, e.cfg))
	case EventEnd, EventLeave, EventCancel:
		e.EndStroke()
	}
}
