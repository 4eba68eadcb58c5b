package world

import (
	"fmt"

	"github.com/bodul/minefield/grid"
)

// GameState is the global state of a world.
type GameState int32

const (
	Loading GameState = iota
	Playing
	Lost
)

func (s GameState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Playing:
		return "playing"
	case Lost:
		return "lost"
	}
	return fmt.Sprintf("GameState(%d)", int32(s))
}

// MarshalText encodes the state by name.
func (s GameState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *GameState) UnmarshalText(b []byte) error {
	for _, v := range []GameState{Loading, Playing, Lost} {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown game state %q", b)
}

// EventKind identifies what changed in the world.
type EventKind int

const (
	ChunkLoaded EventKind = iota
	TilesChanged
	StateChanged
)

func (k EventKind) String() string {
	switch k {
	case ChunkLoaded:
		return "chunk_loaded"
	case TilesChanged:
		return "tiles_changed"
	case StateChanged:
		return "state_changed"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// MarshalText encodes the kind by name.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event is pushed to the observer after every visible change.
type Event struct {
	Kind  EventKind    `json:"type"`
	Chunk grid.Point   `json:"chunk"`
	Tiles []grid.Point `json:"tiles,omitempty"`
	State GameState    `json:"state"`
}

// Change lists the tiles of one chunk touched by an operation.
type Change struct {
	Chunk grid.Point   `json:"chunk"`
	Tiles []grid.Point `json:"tiles"`
}

// Result reports the effect of an interaction across every chunk it reached.
type Result struct {
	Changes  []Change `json:"changes"`
	Exploded bool     `json:"exploded"`
}
