package main

import (
	"sync"
	"testing"
	"time"

	"github.com/bodul/minefield/world"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(func(_ string, seed uint64) *world.World {
		return world.New(testFactory(seed), world.WithChunkSize(4), world.WithRadius(1), world.WithLogger(quietLogger()))
	})
	t.Cleanup(s.Close)
	return s
}

func TestCreateAndGetSession(t *testing.T) {
	s := newTestStore(t)
	sess := s.Create(42)

	if sess.ID == "" {
		t.Fatal("expected session to have an ID")
	}
	if sess.Seed != 42 {
		t.Fatalf("expected seed 42, got %d", sess.Seed)
	}
	if sess.World.State() != world.Playing {
		t.Fatalf("expected world to be initialized, got %v", sess.World.State())
	}
	if got := s.Get(sess.ID); got != sess {
		t.Fatal("expected to find created session")
	}
	if got := s.Get("nonexistent"); got != nil {
		t.Fatal("expected nil for unknown ID")
	}
}

func TestListSessions(t *testing.T) {
	s := newTestStore(t)
	first := s.Create(1)
	time.Sleep(time.Millisecond)
	second := s.Create(2)

	list := s.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(list))
	}
	if list[0] != second || list[1] != first {
		t.Fatal("expected most recent first")
	}
}

func TestDeleteSession(t *testing.T) {
	s := newTestStore(t)
	sess := s.Create(1)

	if !s.Delete(sess.ID) {
		t.Fatal("expected delete to succeed")
	}
	if s.Get(sess.ID) != nil {
		t.Fatal("expected session to be gone")
	}
	if s.Delete(sess.ID) {
		t.Fatal("expected second delete to fail")
	}
}

func TestAddRemovePlayer(t *testing.T) {
	s := newTestStore(t)
	sess := s.Create(1)

	p1 := sess.AddPlayer("Alice")
	p2 := sess.AddPlayer("Bob")
	if p1.Color == p2.Color {
		t.Fatal("expected different colors")
	}
	if again := sess.AddPlayer("Alice"); again != p1 {
		t.Fatal("joining twice must return the same player")
	}

	sess.RemovePlayer("Alice")
	if sess.Player("Alice") != nil {
		t.Fatal("expected Alice to be removed")
	}
	// A newcomer never reuses a color still held by a connected player.
	p3 := sess.AddPlayer("Carol")
	if p3.Color == p2.Color {
		t.Fatal("expected Carol not to take Bob's color")
	}
	if got := sess.Players(); len(got) != 2 || got[0] != p2 {
		t.Fatalf("expected Bob then Carol, got %v", got)
	}
}

func TestConcurrentPlayers(t *testing.T) {
	s := newTestStore(t)
	sess := s.Create(1)
	var wg sync.WaitGroup

	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := string(rune('A' + i))
			sess.AddPlayer(name)
			sess.Players()
			sess.Summary()
			sess.RemovePlayer(name)
		}(i)
	}
	wg.Wait()

	if got := len(sess.Players()); got != 0 {
		t.Fatalf("expected no players left, got %d", got)
	}
}
