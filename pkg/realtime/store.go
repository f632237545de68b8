package realtime

import (
	"context"
	"sync"
	"time"
)

// Room pairs a session's state with its event hub.
type Room[T any] struct {
	ID        string
	State     T
	CreatedAt time.Time
	hub       *Broadcaster
}

// RoomStore manages rooms, their broadcasters and at most one timing loop
// per room.
type RoomStore[T any] struct {
	mu    sync.RWMutex
	rooms map[string]*Room[T]
	loops map[string]context.CancelFunc
	wakes map[string]chan struct{}
}

// NewRoomStore creates an empty room store.
func NewRoomStore[T any]() *RoomStore[T] {
	return &RoomStore[T]{
		rooms: make(map[string]*Room[T]),
		loops: make(map[string]context.CancelFunc),
		wakes: make(map[string]chan struct{}),
	}
}

// Create adds a room with the given id and state, and a new Broadcaster.
func (s *RoomStore[T]) Create(id string, state T) *Room[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := &Room[T]{ID: id, State: state, CreatedAt: time.Now().UTC(), hub: NewBroadcaster()}
	s.rooms[id] = r
	return r
}

// Get returns the room by ID if it exists.
func (s *RoomStore[T]) Get(id string) (*Room[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	return r, ok
}

// Len is the number of live rooms.
func (s *RoomStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Range calls fn for a snapshot of the rooms; fn may call Delete.
func (s *RoomStore[T]) Range(fn func(*Room[T]) bool) {
	s.mu.RLock()
	rooms := make([]*Room[T], 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.RUnlock()
	for _, r := range rooms {
		if !fn(r) {
			return
		}
	}
}

// Delete removes the room, stops its loop and closes its subscribers.
// It returns the removed room so the caller can release the state.
func (s *RoomStore[T]) Delete(id string) (*Room[T], bool) {
	s.mu.Lock()
	r, ok := s.rooms[id]
	delete(s.rooms, id)
	cancel := s.loops[id]
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if ok && r.hub != nil {
		r.hub.Close()
	}
	return r, ok
}

// Publish notifies the room's subscribers. Unknown rooms are ignored.
func (s *RoomStore[T]) Publish(id string, event string) {
	if hub, ok := s.Broadcaster(id); ok {
		hub.Publish(event)
	}
}

// Broadcaster returns the hub for an existing room.
func (s *RoomStore[T]) Broadcaster(id string) (*Broadcaster, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, false
	}
	if r.hub == nil {
		r.hub = NewBroadcaster()
	}
	return r.hub, true
}

// TickFunc is called by RunLoop to determine the next wake time and events to publish.
// stop true means exit the loop.
type TickFunc[T any] func(state T, now time.Time) (next time.Time, events []string, stop bool)

// RunLoop starts a timing loop for the room. If a loop already exists for id
// it is woken instead, so it re-reads the state. A loop that is about to stop
// checks for pending wakes under the same lock, so a wake is never lost.
func (s *RoomStore[T]) RunLoop(id string, getState func() T, tick TickFunc[T]) {
	s.mu.Lock()
	if wake, ok := s.wakes[id]; ok {
		select {
		case wake <- struct{}{}:
		default:
		}
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	wake := make(chan struct{}, 1)
	s.loops[id] = cancel
	s.wakes[id] = wake
	s.mu.Unlock()

	release := func() {
		if s.wakes[id] == wake {
			delete(s.loops, id)
			delete(s.wakes, id)
		}
	}

	go func() {
		defer cancel()
		for {
			if ctx.Err() != nil {
				s.mu.Lock()
				release()
				s.mu.Unlock()
				return
			}
			state := getState()
			now := time.Now().UTC()
			next, events, stop := tick(state, now)
			for _, e := range events {
				s.Publish(id, e)
			}
			if stop {
				s.mu.Lock()
				select {
				case <-wake:
					s.mu.Unlock()
					continue
				default:
				}
				release()
				s.mu.Unlock()
				return
			}
			wait := time.Until(next)
			if wait < 0 {
				wait = 0
			}
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
			case <-timer.C:
			case <-wake:
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
			}
		}
	}()
}
