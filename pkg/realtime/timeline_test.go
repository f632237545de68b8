package realtime

import (
	"testing"
	"time"
)

func TestTimeline_NextWake_Idle(t *testing.T) {
	var tl Timeline
	if _, ok := tl.NextWake(time.Now()); ok {
		t.Error("NextWake should return false when nothing is scheduled")
	}

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tl = Timeline{IdleTTL: time.Minute}
	tl.Touch(now)
	next, ok := tl.NextWake(now)
	if !ok || !next.Equal(now.Add(time.Minute)) {
		t.Errorf("next %v %v, want %v", next, ok, now.Add(time.Minute))
	}
}

func TestTimeline_NextWake_PrefersFade(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tl := Timeline{FadeAfter: 2 * time.Second, IdleTTL: time.Minute}
	tl.Reveal(now)
	next, ok := tl.NextWake(now)
	if !ok || !next.Equal(now.Add(2*time.Second)) {
		t.Errorf("next %v, want fade deadline %v", next, now.Add(2*time.Second))
	}

	late := now.Add(10 * time.Second)
	if next, _ := tl.NextWake(late); !next.Equal(late) {
		t.Errorf("overdue deadline should wake now, got %v", next)
	}
}

func TestTimeline_Advance_FadeOnce(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tl := Timeline{FadeAfter: time.Second}
	tl.Reveal(now)

	if faded, _ := tl.Advance(now.Add(500 * time.Millisecond)); faded {
		t.Fatal("fade fired early")
	}
	faded, expired := tl.Advance(now.Add(time.Second))
	if !faded || expired {
		t.Fatalf("Advance = %v, %v; want fade only", faded, expired)
	}
	if !tl.Faded() || !tl.FadedAt.Equal(now.Add(time.Second)) {
		t.Errorf("FadedAt %v", tl.FadedAt)
	}
	if faded, _ := tl.Advance(now.Add(5 * time.Second)); faded {
		t.Error("fade must fire once")
	}
	if _, ok := tl.NextWake(now.Add(5 * time.Second)); ok {
		t.Error("nothing should be scheduled after the fade without an idle TTL")
	}
}

func TestTimeline_RevealKeepsFirstTime(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	var tl Timeline
	tl.Reveal(now)
	tl.Reveal(now.Add(time.Minute))
	if !tl.RevealedAt.Equal(now) {
		t.Errorf("RevealedAt %v, want %v", tl.RevealedAt, now)
	}
	if !tl.LastActive.Equal(now.Add(time.Minute)) {
		t.Errorf("LastActive %v", tl.LastActive)
	}
}

func TestTimeline_Advance_Expiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tl := Timeline{IdleTTL: time.Minute}
	tl.Touch(now)
	if _, expired := tl.Advance(now.Add(30 * time.Second)); expired {
		t.Fatal("expired early")
	}
	tl.Touch(now.Add(30 * time.Second))
	if _, expired := tl.Advance(now.Add(time.Minute)); expired {
		t.Fatal("touch should push the expiry back")
	}
	if _, expired := tl.Advance(now.Add(90 * time.Second)); !expired {
		t.Error("expected expiry")
	}
	tl.Touch(now)
	if !tl.LastActive.Equal(now.Add(30 * time.Second)) {
		t.Error("Touch must not move LastActive backwards")
	}
}
