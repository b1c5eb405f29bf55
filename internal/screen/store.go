package screen

import (
	"errors"
	"sync"
)

// Store keeps one Screen per visitor session in memory. Screens live as long as the process; nothing
// is written to disk.
type Store struct {
	responder Responder
	opts      Options

	mu      sync.RWMutex
	screens map[string]*Screen
}

// NewStore validates opts once and returns a Store whose screens all share responder.
func NewStore(responder Responder, opts Options) (*Store, error) {
	if responder == nil {
		return nil, errors.New("responder is required")
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Store{
		responder: responder,
		opts:      opts,
		screens:   make(map[string]*Screen),
	}, nil
}

// Get returns the screen of session id, if one was created.
func (s *Store) Get(id string) (*Screen, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.screens[id]
	return sc, ok
}

// GetOrCreate returns the screen of session id, creating a fresh one on first use.
func (s *Store) GetOrCreate(id string) *Screen {
	if sc, ok := s.Get(id); ok {
		return sc
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sc, ok := s.screens[id]; ok {
		return sc
	}
	sc := newScreen(s.responder, s.opts)
	s.screens[id] = sc
	return sc
}

// Len returns the number of sessions with a screen.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.screens)
}
