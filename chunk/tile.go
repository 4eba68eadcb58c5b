package chunk

import (
	"errors"
	"fmt"

	"github.com/bodul/minefield/grid"
)

// State is the visible state of a tile.
type State int

const (
	Hidden State = iota
	Revealed
	Flagged
	Mine
	Exploded
)

var stateNames = map[State]string{
	Hidden:   "hidden",
	Revealed: "visible",
	Flagged:  "flag",
	Mine:     "mine",
	Exploded: "explosion",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state by name for JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	n, ok := stateNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown tile state %d", int(s))
	}
	return []byte(n), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	for k, v := range stateNames {
		if v == string(b) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown tile state %q", b)
}

// Mode selects what an interaction does to a tile.
type Mode int

const (
	Reveal Mode = iota
	Flag
)

// ErrUnknownMode is returned when parsing an unsupported interaction mode.
var ErrUnknownMode = errors.New("unknown mode")

// ParseMode accepts "reveal" or "flag".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "reveal":
		return Reveal, nil
	case "flag":
		return Flag, nil
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownMode, s)
}

func (m Mode) String() string {
	if m == Flag {
		return "flag"
	}
	return "reveal"
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes "reveal" or "flag".
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Tile is a snapshot of one square of a chunk.
type Tile struct {
	X         int   `json:"x"`
	Y         int   `json:"y"`
	State     State `json:"state"`
	MineCount int   `json:"mine_count"`
	EdgeCount int   `json:"edge_count"` // neighbour slots still unknown
	IsMine    bool  `json:"-"`
}

// Point returns the tile's local coordinate.
func (t Tile) Point() grid.Point {
	return grid.Point{X: t.X, Y: t.Y}
}

// Settled reports whether the tile's number can no longer change.
func (t Tile) Settled() bool {
	return t.EdgeCount == 0
}
