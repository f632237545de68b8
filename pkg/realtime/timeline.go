package realtime

import "time"

// Timeline holds the timers of one session: an optional delay between a
// terminal event (reveal) and its follow-up (fade), and an idle expiry.
// It does not hold session state; the owner composes it and reacts to
// Advance(now).
type Timeline struct {
	FadeAfter  time.Duration
	IdleTTL    time.Duration
	LastActive time.Time
	RevealedAt time.Time
	FadedAt    time.Time
}

// DefaultFadeAfter is the pause between reveal and fade.
const DefaultFadeAfter = 500 * time.Millisecond

// DefaultIdleTTL is how long an untouched session is kept.
const DefaultIdleTTL = 30 * time.Minute

// Touch records activity at now.
func (t *Timeline) Touch(now time.Time) {
	if now.After(t.LastActive) {
		t.LastActive = now
	}
}

// Reveal starts the fade countdown. Later calls keep the first time.
func (t *Timeline) Reveal(now time.Time) {
	if t.RevealedAt.IsZero() {
		t.RevealedAt = now
	}
	t.Touch(now)
}

// Faded reports whether the fade has fired.
func (t *Timeline) Faded() bool {
	return !t.FadedAt.IsZero()
}

// NextWake returns the earliest pending deadline, or (zero, false) when
// nothing is scheduled.
func (t *Timeline) NextWake(now time.Time) (time.Time, bool) {
	var next time.Time
	if !t.RevealedAt.IsZero() && t.FadedAt.IsZero() {
		next = t.RevealedAt.Add(t.FadeAfter)
	}
	if t.IdleTTL > 0 && !t.LastActive.IsZero() {
		expiry := t.LastActive.Add(t.IdleTTL)
		if next.IsZero() || expiry.Before(next) {
			next = expiry
		}
	}
	if next.IsZero() {
		return time.Time{}, false
	}
	if now.After(next) {
		return now, true
	}
	return next, true
}

// Advance fires due deadlines. faded is true only on the call that sets
// FadedAt; expired is true whenever the idle deadline has passed.
func (t *Timeline) Advance(now time.Time) (faded bool, expired bool) {
	if !t.RevealedAt.IsZero() && t.FadedAt.IsZero() {
		due := t.RevealedAt.Add(t.FadeAfter)
		if !now.Before(due) {
			t.FadedAt = due
			faded = true
		}
	}
	if t.IdleTTL > 0 && !t.LastActive.IsZero() && !now.Before(t.LastActive.Add(t.IdleTTL)) {
		expired = true
	}
	return faded, expired
}
