package card

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"scratchcard/internal/canvas"
	"scratchcard/internal/prize"
	"scratchcard/internal/scratch"
	"scratchcard/pkg/realtime"
)

// Event names published on a card's broadcaster.
const (
	EventProgress = "progress"
	EventPrize    = "prize"
	EventFade     = "fade"
)

var ErrSurfaceUnavailable = errors.New("card surface unavailable")

// Settings are the store-wide timing and randomness knobs.
type Settings struct {
	FadeAfter time.Duration
	IdleTTL   time.Duration
	RNG       prize.RandomSource
}

// Store holds cards and delegates to realtime.RoomStore for lookup,
// broadcast and timers.
type Store struct {
	r        *realtime.RoomStore[*Card]
	catalog  *prize.Catalog
	settings Settings
}

// NewStore creates an in-memory card store drawing prizes from catalog.
func NewStore(catalog *prize.Catalog, settings Settings) *Store {
	if settings.RNG == nil {
		settings.RNG = prize.DefaultRNG()
	}
	if settings.FadeAfter <= 0 {
		settings.FadeAfter = realtime.DefaultFadeAfter
	}
	return &Store{
		r:        realtime.NewRoomStore[*Card](),
		catalog:  catalog,
		settings: settings,
	}
}

// CreateCard mounts a new engine, draws its prize and registers it.
func (s *Store) CreateCard(cfg scratch.Config) (*Card, error) {
	engine, err := scratch.NewEngine(cfg)
	if err != nil {
		return nil, fmt.Errorf("create card: %w", err)
	}
	surface := canvas.New()
	if !engine.Initialize(surface) {
		_ = surface.Close()
		return nil, ErrSurfaceUnavailable
	}
	now := time.Now().UTC()
	c := &Card{
		ID:        newID(),
		CreatedAt: now,
		engine:    engine,
		surface:   surface,
		prize:     s.catalog.Draw(s.settings.RNG),
		timeline: realtime.Timeline{
			FadeAfter: s.settings.FadeAfter,
			IdleTTL:   s.settings.IdleTTL,
		},
	}
	c.timeline.Touch(now)
	s.r.Create(c.ID, c)
	s.ensureLoop(c.ID)
	return c, nil
}

// GetCard returns a card by ID if it exists.
func (s *Store) GetCard(id string) (*Card, bool) {
	room, ok := s.r.Get(id)
	if !ok || room.State == nil {
		return nil, false
	}
	return room.State, true
}

// RemoveCard unregisters a card, ends its streams and releases its surface.
func (s *Store) RemoveCard(id string) bool {
	room, ok := s.r.Delete(id)
	if !ok {
		return false
	}
	if room.State != nil {
		if err := room.State.Close(); err != nil {
			log.Printf("close card id=%s err=%v", id, err)
		}
	}
	return true
}

// Shutdown removes every card, ending their streams and timer loops.
func (s *Store) Shutdown() int {
	n := 0
	s.r.Range(func(room *realtime.Room[*Card]) bool {
		if s.RemoveCard(room.ID) {
			n++
		}
		return true
	})
	return n
}

// Len is the number of live cards.
func (s *Store) Len() int {
	return s.r.Len()
}

// Catalog is the catalog prizes are drawn from.
func (s *Store) Catalog() *prize.Catalog {
	return s.catalog
}

// Broadcaster returns the SSE broadcaster for a card.
func (s *Store) Broadcaster(id string) (*realtime.Broadcaster, bool) {
	return s.r.Broadcaster(id)
}

// Publish notifies subscribers of a card update with a typed event.
func (s *Store) Publish(id string, event string) {
	s.r.Publish(id, event)
}

// ScheduleFade makes the card's timer loop pick up a fresh reveal, starting
// the loop if it had nothing left to wait for.
func (s *Store) ScheduleFade(id string) {
	s.ensureLoop(id)
}

func (s *Store) ensureLoop(id string) {
	getState := func() *Card {
		room, ok := s.r.Get(id)
		if !ok {
			return nil
		}
		return room.State
	}
	tick := func(c *Card, now time.Time) (time.Time, []string, bool) {
		if c == nil {
			return time.Time{}, nil, true
		}
		faded, expired, next, ok := c.advance(now)
		if expired {
			log.Printf("card expired id=%s", c.ID)
			s.RemoveCard(c.ID)
			return time.Time{}, nil, true
		}
		var events []string
		if faded {
			events = append(events, EventFade)
		}
		if !ok {
			return time.Time{}, events, true
		}
		return next, events, false
	}
	s.r.RunLoop(id, getState, tick)
}

func newID() string {
	// 10 bytes -> 16 chars of base32, short and url-safe.
	buf := make([]byte, 10)
	_, _ = rand.Read(buf)
	encoder := base32.StdEncoding.WithPadding(base32.NoPadding)
	return strings.ToLower(encoder.EncodeToString(buf))
}
