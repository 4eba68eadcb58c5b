package world

import (
	"context"

	"github.com/bodul/minefield/chunk"
	"github.com/bodul/minefield/grid"
)

// Interaction is a recorded user action to replay when a chunk loads.
type Interaction struct {
	Mode chunk.Mode `json:"mode"`
	X    int        `json:"x"`
	Y    int        `json:"y"`
}

// Layout is what a Factory supplies for one chunk.
type Layout struct {
	Mines        []grid.Point  `json:"mines"`
	Interactions []Interaction `json:"interactions,omitempty"`
}

// Factory produces the mine layout of a chunk. Calls may be slow or fail;
// failures are retried by the loader.
type Factory interface {
	Create(ctx context.Context, at grid.Point) (Layout, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(ctx context.Context, at grid.Point) (Layout, error)

func (f FactoryFunc) Create(ctx context.Context, at grid.Point) (Layout, error) {
	return f(ctx, at)
}
