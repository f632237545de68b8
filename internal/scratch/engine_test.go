package scratch_test

import (
	"math"
	"math/rand"
	"testing"

	"scratchcard/internal/canvas"
	"scratchcard/internal/scratch"
)

func newMounted(t *testing.T, cfg scratch.Config) (*scratch.Engine, *canvas.Surface) {
	t.Helper()
	e, err := scratch.NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	s := canvas.New()
	if !e.Initialize(s) {
		t.Fatal("Initialize returned false for a fresh surface")
	}
	return e, s
}

func transparentPixels(s *canvas.Surface) int {
	alpha := s.Alpha()
	n := 0
	for y := 0; y < alpha.Height(); y++ {
		for x := 0; x < alpha.Width(); x++ {
			if alpha.At(x, y) == 0 {
				n++
			}
		}
	}
	return n
}

func distToSegment(px, py, ax, ay, bx, by float64) float64 {
	dx, dy := bx-ax, by-ay
	t := 0.0
	if l := dx*dx + dy*dy; l > 0 {
		t = math.Max(0, math.Min(1, ((px-ax)*dx+(py-ay)*dy)/l))
	}
	return math.Hypot(ax+t*dx-px, ay+t*dy-py)
}

func TestEngine_InitializeIsOpaque(t *testing.T) {
	e, s := newMounted(t, scratch.DefaultConfig())
	if got := e.MeasureClearedRatio(); got != 0 {
		t.Errorf("cleared ratio %v, want 0", got)
	}
	st := e.State()
	if st.Revealed || st.IsDrawing || st.LastPosition != nil {
		t.Errorf("unexpected initial state %+v", st)
	}
	w, h := s.Size()
	if w != 320 || h != 180 {
		t.Errorf("mask size %dx%d, want 320x180", w, h)
	}
}

func TestEngine_InitializeUnreadySurface(t *testing.T) {
	e, err := scratch.NewEngine(scratch.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if e.Initialize(nil) {
		t.Error("Initialize(nil) should not mount")
	}
	closed := canvas.New()
	_ = closed.Close()
	if e.Initialize(closed) {
		t.Error("Initialize on a closed surface should not mount")
	}
	e.BeginStroke(scratch.Point{X: 10, Y: 10})
	if e.State().IsDrawing {
		t.Error("strokes must be ignored while un-mounted")
	}
	if !e.Initialize(canvas.New()) {
		t.Fatal("retry with a ready surface should mount")
	}
	if !e.Mounted() {
		t.Error("Mounted should be true after retry")
	}
}

func TestEngine_InitializeIdempotent(t *testing.T) {
	e, _ := newMounted(t, scratch.DefaultConfig())
	e.BeginStroke(scratch.Point{X: 100, Y: 100})
	e.EndStroke()
	before := e.MeasureClearedRatio()
	if !e.Initialize(canvas.New()) {
		t.Fatal("second Initialize should report mounted")
	}
	if got := e.MeasureClearedRatio(); got != before {
		t.Errorf("second Initialize repainted: ratio %v, want %v", got, before)
	}
}

func TestEngine_TapErases(t *testing.T) {
	e, s := newMounted(t, scratch.DefaultConfig())
	e.BeginStroke(scratch.Point{X: 160, Y: 90})
	st := e.State()
	if !st.IsDrawing {
		t.Error("BeginStroke should mark drawing")
	}
	if st.LastPosition == nil || *st.LastPosition != (scratch.Point{X: 160, Y: 90}) {
		t.Errorf("anchor %v, want (160,90)", st.LastPosition)
	}
	if st.ClearedRatio <= 0 {
		t.Error("a tap alone should erase something")
	}
	if s.Alpha().At(160, 90) != 0 {
		t.Error("pixel under the tap should be transparent")
	}
}

func TestEngine_MonotonicCoverage(t *testing.T) {
	e, _ := newMounted(t, scratch.Config{
		Width: 200, Height: 120, BrushRadius: 6, RevealThreshold: 1,
		EraseMode: scratch.EraseLine, PixelRatio: 1,
	})
	rng := rand.New(rand.NewSource(7))
	prev := 0.0
	for i := 0; i < 300; i++ {
		p := scratch.Point{X: rng.Float64()*240 - 20, Y: rng.Float64()*160 - 20}
		switch rng.Intn(4) {
		case 0:
			e.BeginStroke(p)
		case 3:
			e.EndStroke()
		default:
			e.ExtendStroke(p)
		}
		got := e.State().ClearedRatio
		if got < prev {
			t.Fatalf("step %d: ratio decreased %v -> %v", i, prev, got)
		}
		if m := e.MeasureClearedRatio(); m < prev {
			t.Fatalf("step %d: measured ratio decreased %v -> %v", i, prev, m)
		}
		prev = got
	}
}

func scratchRows(e *scratch.Engine, from, to int, width float64) {
	for y := from; y < to; y++ {
		cy := float64(y) + 0.5
		e.BeginStroke(scratch.Point{X: 0, Y: cy})
		e.ExtendStroke(scratch.Point{X: width, Y: cy})
		e.EndStroke()
	}
}

func TestEngine_ThresholdCrossing(t *testing.T) {
	cfg := scratch.Config{
		Width: 100, Height: 100, BrushRadius: 0.5, RevealThreshold: 0.6,
		EraseMode: scratch.EraseLine, PixelRatio: 1,
	}
	e, _ := newMounted(t, cfg)

	scratchRows(e, 0, 59, 100)
	if got := e.MeasureClearedRatio(); got != 0.59 {
		t.Fatalf("ratio after 59 rows %v, want 0.59", got)
	}
	if e.Revealed() {
		t.Fatal("0.59 of the area must leave the card masked")
	}

	scratchRows(e, 59, 60, 100)
	if got := e.State().ClearedRatio; got != 0.6 {
		t.Errorf("ratio after 60 rows %v, want 0.6", got)
	}
	if !e.Revealed() {
		t.Error("0.6 of the area must reveal")
	}
}

func TestEngine_ThresholdSeventyPercent(t *testing.T) {
	cfg := scratch.Config{
		Width: 100, Height: 100, BrushRadius: 0.5, RevealThreshold: 0.7,
		EraseMode: scratch.EraseLine, PixelRatio: 1,
	}
	e, _ := newMounted(t, cfg)
	scratchRows(e, 0, 65, 100)
	if e.Revealed() {
		t.Fatal("0.65 must stay masked with a 0.7 threshold")
	}
	scratchRows(e, 65, 70, 100)
	if !e.Revealed() {
		t.Error("0.7 must reveal with a 0.7 threshold")
	}
}

func TestEngine_RevealIsTerminal(t *testing.T) {
	cfg := scratch.Config{
		Width: 100, Height: 100, BrushRadius: 0.5, RevealThreshold: 0.6,
		EraseMode: scratch.EraseLine, PixelRatio: 1,
	}
	e, s := newMounted(t, cfg)
	scratchRows(e, 0, 60, 100)
	if !e.Revealed() {
		t.Fatal("expected reveal")
	}
	if e.State().IsDrawing {
		t.Error("reveal should end the active stroke")
	}
	ratio := e.State().ClearedRatio
	erased := transparentPixels(s)

	scratchRows(e, 60, 100, 100)
	e.Handle(scratch.PointerEvent{Kind: scratch.EventStart, X: 50, Y: 80}, scratch.Viewport{})
	e.Handle(scratch.PointerEvent{Kind: scratch.EventMove, X: 90, Y: 90}, scratch.Viewport{})

	if got := e.State().ClearedRatio; got != ratio {
		t.Errorf("ratio changed after reveal: %v -> %v", ratio, got)
	}
	if got := transparentPixels(s); got != erased {
		t.Errorf("mask changed after reveal: %d -> %d", erased, got)
	}
	if !e.Revealed() {
		t.Error("reveal must not revert")
	}
	if e.State().IsDrawing {
		t.Error("strokes must not start after reveal")
	}
}

func TestEngine_FullCoverageIdempotence(t *testing.T) {
	e, _ := newMounted(t, scratch.Config{
		Width: 64, Height: 48, BrushRadius: 200, RevealThreshold: 0.6,
		EraseMode: scratch.EraseLine, PixelRatio: 1,
	})
	e.BeginStroke(scratch.Point{X: 32, Y: 24})
	e.ExtendStroke(scratch.Point{X: 10, Y: 10})
	if got := e.State().ClearedRatio; got != 1 {
		t.Fatalf("ratio %v, want 1", got)
	}
	for i := 0; i < 5; i++ {
		e.BeginStroke(scratch.Point{X: float64(i * 10), Y: 5})
		e.ExtendStroke(scratch.Point{X: 60, Y: 40})
		e.EndStroke()
		if got := e.MeasureClearedRatio(); got != 1 {
			t.Errorf("pass %d: ratio %v, want 1", i, got)
		}
		if !e.Revealed() {
			t.Errorf("pass %d: should stay revealed", i)
		}
	}
}

func TestEngine_StrokeContinuity(t *testing.T) {
	cfg := scratch.Config{
		Width: 320, Height: 180, BrushRadius: 24, RevealThreshold: 0.6,
		EraseMode: scratch.EraseLine, PixelRatio: 1,
	}
	e, s := newMounted(t, cfg)
	e.BeginStroke(scratch.Point{X: 0, Y: 0})
	e.ExtendStroke(scratch.Point{X: 200, Y: 0})

	alpha := s.Alpha()
	for y := 0; y < alpha.Height(); y++ {
		for x := 0; x < alpha.Width(); x++ {
			d := distToSegment(float64(x)+0.5, float64(y)+0.5, 0, 0, 200, 0)
			a := alpha.At(x, y)
			if d <= 24-1e-6 && a != 0 {
				t.Fatalf("pixel (%d,%d) at distance %.3f still opaque", x, y, d)
			}
			if d > 24+1e-6 && a == 0 {
				t.Fatalf("pixel (%d,%d) at distance %.3f erased outside the brush", x, y, d)
			}
		}
	}
}

func TestEngine_DabModeLeavesGaps(t *testing.T) {
	base := scratch.Config{
		Width: 100, Height: 100, BrushRadius: 5, RevealThreshold: 0.9,
		PixelRatio: 1,
	}
	dab := base
	dab.EraseMode = scratch.EraseDab
	e, s := newMounted(t, dab)
	e.BeginStroke(scratch.Point{X: 20, Y: 50})
	e.ExtendStroke(scratch.Point{X: 80, Y: 50})
	if s.Alpha().At(50, 50) == 0 {
		t.Error("dab mode should not erase between samples")
	}
	if s.Alpha().At(80, 50) != 0 {
		t.Error("dab mode should erase at the sample")
	}

	line := base
	line.EraseMode = scratch.EraseLine
	e2, s2 := newMounted(t, line)
	e2.BeginStroke(scratch.Point{X: 20, Y: 50})
	e2.ExtendStroke(scratch.Point{X: 80, Y: 50})
	if s2.Alpha().At(50, 50) != 0 {
		t.Error("line mode should erase between samples")
	}
}

func TestEngine_ExtendWithoutBegin(t *testing.T) {
	e, s := newMounted(t, scratch.DefaultConfig())
	e.ExtendStroke(scratch.Point{X: 50, Y: 50})
	if transparentPixels(s) != 0 {
		t.Error("ExtendStroke without an active stroke must not erase")
	}
	e.EndStroke()
	e.EndStroke()
	if e.State().LastPosition != nil {
		t.Error("EndStroke should clear the anchor")
	}
}

func TestEngine_NewGestureResetsAnchor(t *testing.T) {
	e, s := newMounted(t, scratch.Config{
		Width: 100, Height: 100, BrushRadius: 3, RevealThreshold: 0.9,
		EraseMode: scratch.EraseLine, PixelRatio: 1,
	})
	e.BeginStroke(scratch.Point{X: 10, Y: 10})
	e.EndStroke()
	e.BeginStroke(scratch.Point{X: 90, Y: 90})
	e.ExtendStroke(scratch.Point{X: 90, Y: 80})
	if s.Alpha().At(50, 50) == 0 {
		t.Error("a new press must not connect to the previous gesture")
	}
}

func TestEngine_CloseReleasesSurface(t *testing.T) {
	e, s := newMounted(t, scratch.DefaultConfig())
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if w, h := s.Size(); w != 0 || h != 0 {
		t.Errorf("surface size after close %dx%d, want 0x0", w, h)
	}
	e.BeginStroke(scratch.Point{X: 1, Y: 1})
	if e.State().IsDrawing {
		t.Error("closed engine must ignore strokes")
	}
}

func TestEngine_ClosedEngineNeverRemounts(t *testing.T) {
	e, _ := newMounted(t, scratch.DefaultConfig())
	e.BeginStroke(scratch.Point{X: 100, Y: 100})
	e.EndStroke()
	before := e.State().ClearedRatio
	if before == 0 {
		t.Fatal("stroke cleared nothing")
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !e.Closed() {
		t.Error("Closed() = false after Close")
	}

	if e.Initialize(canvas.New()) {
		t.Error("Initialize after Close should not mount")
	}
	if e.Mounted() {
		t.Error("closed engine reports mounted")
	}
	e.BeginStroke(scratch.Point{X: 10, Y: 10})
	e.ExtendStroke(scratch.Point{X: 40, Y: 10})
	if got := e.State().ClearedRatio; got != before {
		t.Errorf("cleared ratio %v after close, want %v", got, before)
	}
}

func TestEngine_IgnoresNonFinitePoints(t *testing.T) {
	e, s := newMounted(t, scratch.DefaultConfig())
	e.BeginStroke(scratch.Point{X: math.NaN(), Y: 10})
	if e.State().IsDrawing {
		t.Error("NaN start should not open a stroke")
	}
	e.BeginStroke(scratch.Point{X: 10, Y: 10})
	erased := transparentPixels(s)
	e.ExtendStroke(scratch.Point{X: math.Inf(1), Y: 10})
	if got := transparentPixels(s); got != erased {
		t.Errorf("infinite move erased %d pixels", got-erased)
	}
	if p := e.State().LastPosition; p == nil || *p != (scratch.Point{X: 10, Y: 10}) {
		t.Errorf("anchor moved to %v", p)
	}
}

func TestEngine_ClearAfterReveal(t *testing.T) {
	e, s := newMounted(t, scratch.Config{
		Width: 40, Height: 40, BrushRadius: 4, RevealThreshold: 0.6,
		EraseMode: scratch.EraseLine, PixelRatio: 1,
	})
	e.Clear()
	if s.Alpha().At(20, 20) == 0 {
		t.Fatal("Clear before reveal must leave the cover intact")
	}

	for y := 0.0; y <= 40 && !e.Revealed(); y += 4 {
		e.BeginStroke(scratch.Point{X: 0, Y: y})
		e.ExtendStroke(scratch.Point{X: 40, Y: y})
		e.EndStroke()
	}
	if !e.Revealed() {
		t.Fatal("card did not reveal")
	}
	ratio := e.State().ClearedRatio
	e.Clear()
	alpha := s.Alpha()
	for y := 0; y < alpha.Height(); y++ {
		for x := 0; x < alpha.Width(); x++ {
			if alpha.At(x, y) != 0 {
				t.Fatalf("pixel (%d,%d) still opaque after Clear", x, y)
			}
		}
	}
	if got := e.State().ClearedRatio; got != ratio {
		t.Errorf("cleared ratio %v after Clear, want %v", got, ratio)
	}
}

func TestEngine_PixelRatioMapping(t *testing.T) {
	e, s := newMounted(t, scratch.Config{
		Width: 100, Height: 100, BrushRadius: 2, RevealThreshold: 0.9,
		EraseMode: scratch.EraseLine, PixelRatio: 2,
	})
	if w, h := s.Size(); w != 200 || h != 200 {
		t.Fatalf("mask size %dx%d, want 200x200", w, h)
	}

	vp := scratch.Viewport{Left: 10, Top: 20}
	e.Handle(scratch.PointerEvent{Kind: scratch.EventStart, X: 60, Y: 70}, vp)
	alpha := s.Alpha()
	if alpha.At(100, 100) != 0 {
		t.Error("client (60,70) should erase mask pixel (100,100)")
	}
	if alpha.At(50, 50) == 0 {
		t.Error("mask pixel (50,50) should be untouched")
	}
	if alpha.At(107, 100) == 0 {
		t.Error("brush radius must scale with the pixel ratio, not exceed it")
	}
	if alpha.At(103, 100) != 0 {
		t.Error("brush radius must be scaled by the pixel ratio")
	}

	e.Handle(scratch.PointerEvent{Kind: scratch.EventEnd}, vp)
	if e.State().IsDrawing {
		t.Error("end should stop drawing")
	}
}

func TestEngine_LeaveAndCancelEndStroke(t *testing.T) {
	for _, kind := range []scratch.EventKind{scratch.EventLeave, scratch.EventCancel} {
		e, s := newMounted(t, scratch.Config{
			Width: 100, Height: 100, BrushRadius: 3, RevealThreshold: 0.9,
			EraseMode: scratch.EraseLine, PixelRatio: 1,
		})
		vp := scratch.Viewport{}
		e.Handle(scratch.PointerEvent{Kind: scratch.EventStart, X: 10, Y: 10}, vp)
		e.Handle(scratch.PointerEvent{Kind: kind}, vp)
		e.Handle(scratch.PointerEvent{Kind: scratch.EventMove, X: 90, Y: 90}, vp)
		if s.Alpha().At(50, 50) == 0 {
			t.Errorf("%s: move after the stroke ended must not erase", kind)
		}
	}
}
