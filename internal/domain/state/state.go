// Package state holds the dashboard's current view and fans out frame
// updates to subscribed observers.
package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/epidash/internal/domain/model"
)

// Observer is notified of every published frame.
type Observer interface {
	OnFrame(ctx context.Context, frame model.AnimationFrame) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, frame model.AnimationFrame) error

// OnFrame calls f.
func (f ObserverFunc) OnFrame(ctx context.Context, frame model.AnimationFrame) error {
	return f(ctx, frame)
}

// Snapshot is a copy of the state at one point in time.
type Snapshot struct {
	CurrentIndex int                   `json:"current_index"`
	Dates        []string              `json:"dates"`
	Frame        *model.AnimationFrame `json:"frame,omitempty"`
	LoadedAt     time.Time             `json:"loaded_at"`
	Observers    int                   `json:"observers"`
}

type subscription struct {
	id       string
	observer Observer
}

// State is safe for concurrent use. Observers are called in subscription
// order outside the state lock.
type State struct {
	mu       sync.RWMutex
	index    int
	dates    []string
	frame    *model.AnimationFrame
	loadedAt time.Time
	subs     []subscription
}

// New returns an empty state with no dates loaded.
func New() *State {
	return &State{index: -1}
}

// Load replaces the date labels, resets the index and clears the last frame.
func (s *State) Load(dates []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dates = append([]string(nil), dates...)
	s.index = -1
	s.frame = nil
	s.loadedAt = time.Now()
}

// Subscribe registers o and returns a function removing it. The returned
// function is idempotent.
func (s *State) Subscribe(o Observer) (unsubscribe func()) {
	id := uuid.NewString()
	s.mu.Lock()
	s.subs = append(s.subs, subscription{id: id, observer: o})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish records frame as current and notifies observers in order. Every
// observer is called; the first error is returned.
func (s *State) Publish(ctx context.Context, frame model.AnimationFrame) error {
	s.mu.Lock()
	f := frame
	s.index = frame.Index
	s.frame = &f
	subs := append([]subscription(nil), s.subs...)
	s.mu.Unlock()

	var first error
	for _, sub := range subs {
		if err := sub.observer.OnFrame(ctx, frame); err != nil && first == nil {
			first = fmt.Errorf("observer %s: %w", sub.id, err)
		}
	}
	return first
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		CurrentIndex: s.index,
		Dates:        append([]string(nil), s.dates...),
		LoadedAt:     s.loadedAt,
		Observers:    len(s.subs),
	}
	if s.frame != nil {
		f := *s.frame
		snap.Frame = &f
	}
	return snap
}
