package main

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/bodul/minefield/world"
)

// WorldMaker builds the world backing a new session.
type WorldMaker func(id string, seed uint64) *world.World

// Store holds all sessions in memory.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	newWorld WorldMaker
}

// NewStore creates an empty store.
func NewStore(mk WorldMaker) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		newWorld: mk,
	}
}

// Create registers a new session and initializes its world. The session is
// visible in the store before the first chunk loads.
func (s *Store) Create(seed uint64) *Session {
	id := uuid.NewString()
	sess := newSession(id, seed, s.newWorld(id, seed))

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	sess.World.Initialize()
	return sess
}

// Get returns a session by ID, or nil if not found.
func (s *Store) Get(id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// List returns all sessions, most recent first.
func (s *Store) List() []*Session {
	s.mu.RLock()
	list := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	s.mu.RUnlock()

	slices.SortFunc(list, func(a, b *Session) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return list
}

// Delete stops a session's world and forgets it.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		sess.World.Close()
	}
	return ok
}

// Close stops every world.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		sess.World.Close()
		delete(s.sessions, id)
	}
}
