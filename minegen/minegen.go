// Package minegen supplies chunk layouts from a seeded random source, so the
// same seed always yields the same infinite board.
package minegen

import (
	"context"
	"math/rand/v2"

	"github.com/bodul/minefield/grid"
	"github.com/bodul/minefield/world"
)

// Random is a world.Factory placing mines uniformly at random. Each chunk
// draws from its own PCG stream keyed by the seed and its coordinate.
type Random struct {
	Size int
	Seed uint64
	Rule *Rule
}

// NewRandom builds a factory for size×size chunks.
func NewRandom(size int, seed uint64, rule *Rule) *Random {
	return &Random{Size: size, Seed: seed, Rule: rule}
}

// Create implements world.Factory.
func (r *Random) Create(ctx context.Context, at grid.Point) (world.Layout, error) {
	if err := ctx.Err(); err != nil {
		return world.Layout{}, err
	}
	count := r.Size
	if r.Rule != nil {
		n, err := r.Rule.Count(at, r.Size)
		if err != nil {
			return world.Layout{}, err
		}
		count = n
	}
	return world.Layout{Mines: Mines(r.stream(at), r.Size, count)}, nil
}

func (r *Random) stream(at grid.Point) *rand.Rand {
	key := uint64(uint32(at.X))<<32 | uint64(uint32(at.Y))
	return rand.New(rand.NewPCG(r.Seed, key))
}

// Mines picks count distinct tiles of a size×size chunk.
func Mines(rng *rand.Rand, size, count int) []grid.Point {
	count = min(max(count, 0), size*size)
	out := make([]grid.Point, 0, count)
	for _, i := range rng.Perm(size * size)[:count] {
		out = append(out, grid.Point{X: i % size, Y: i / size})
	}
	return out
}
