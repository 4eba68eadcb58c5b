package main

import (
	"slices"
	"sync"
	"time"

	"github.com/bodul/minefield/world"
)

// Player represents a connected player.
type Player struct {
	Pseudo   string    `json:"pseudo"`
	Color    string    `json:"color"`
	JoinedAt time.Time `json:"joined_at"`
}

// Session is one shared infinite board and the players exploring it.
type Session struct {
	ID        string
	Seed      uint64
	CreatedAt time.Time
	World     *world.World

	mu      sync.Mutex
	players map[string]*Player
	joined  int
}

// Summary is the JSON description of a session.
type Summary struct {
	ID        string          `json:"id"`
	Seed      uint64          `json:"seed"`
	State     world.GameState `json:"state"`
	ChunkSize int             `json:"chunk_size"`
	Chunks    int             `json:"chunks"`
	Pending   int             `json:"pending"`
	Bounds    world.Bounds    `json:"bounds"`
	Players   []*Player       `json:"players"`
	CreatedAt time.Time       `json:"created_at"`
}

// playerColors is the palette assigned to players in order.
var playerColors = []string{
	"#2563eb", "#dc2626", "#16a34a", "#9333ea",
	"#ea580c", "#0891b2", "#c026d3", "#ca8a04",
}

func newSession(id string, seed uint64, w *world.World) *Session {
	return &Session{
		ID:        id,
		Seed:      seed,
		CreatedAt: time.Now(),
		World:     w,
		players:   make(map[string]*Player),
	}
}

// AddPlayer adds a player to the session and returns the player. Joining
// twice with the same pseudo returns the existing player.
func (s *Session) AddPlayer(pseudo string) *Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.players[pseudo]; ok {
		return p
	}

	p := &Player{
		Pseudo:   pseudo,
		Color:    playerColors[s.joined%len(playerColors)],
		JoinedAt: time.Now(),
	}
	s.joined++
	s.players[pseudo] = p
	return p
}

// RemovePlayer removes a player from the session.
func (s *Session) RemovePlayer(pseudo string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, pseudo)
}

// Player returns a player by pseudo, or nil.
func (s *Session) Player(pseudo string) *Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players[pseudo]
}

// Players returns the connected players in join order.
func (s *Session) Players() []*Player {
	s.mu.Lock()
	list := make([]*Player, 0, len(s.players))
	for _, p := range s.players {
		list = append(list, p)
	}
	s.mu.Unlock()

	slices.SortFunc(list, func(a, b *Player) int {
		return a.JoinedAt.Compare(b.JoinedAt)
	})
	return list
}

// Summary snapshots the session and its world.
func (s *Session) Summary() Summary {
	return Summary{
		ID:        s.ID,
		Seed:      s.Seed,
		State:     s.World.State(),
		ChunkSize: s.World.ChunkSize(),
		Chunks:    s.World.Len(),
		Pending:   s.World.Pending(),
		Bounds:    s.World.Bounds(),
		Players:   s.Players(),
		CreatedAt: s.CreatedAt,
	}
}
