// Package chunk implements one N×N section of the infinite board: its mine
// layout, per-tile reveal/flag state, mine and edge accounting, and the
// flood reveal that feeds continuations to neighbouring chunks.
package chunk

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zyedidia/generic/mapset"

	"github.com/bodul/minefield/grid"
)

var (
	ErrNotInitialized = errors.New("chunk not initialized")
	ErrOutOfRange     = errors.New("tile out of range")
	ErrInProgress     = errors.New("chunk already stitched to neighbours")
	ErrAlreadyLinked  = errors.New("direction already linked")
	ErrEdgeUnderflow  = errors.New("edge count would go negative")
	ErrBadDirection   = errors.New("invalid direction")
)

// Spill asks the neighbour at Dir to continue a reveal at its local tile At.
type Spill struct {
	Dir grid.Direction
	At  grid.Point
}

// Outcome reports what an update did.
type Outcome struct {
	Changed  []grid.Point // tiles whose state changed, in visit order
	Spills   []Spill
	Exploded bool
}

// Contribution is what a neighbouring chunk adds to one border tile once it
// exists: MineDelta mines among EdgeDelta newly known slots.
type Contribution struct {
	Point     grid.Point
	MineDelta int
	EdgeDelta int
}

// Chunk owns one size×size tile grid. All methods are safe for concurrent use;
// each call holds the chunk's lock for its whole duration and never calls into
// another chunk.
type Chunk struct {
	mu          sync.Mutex
	size        int
	offset      grid.Point
	tiles       []Tile
	initialized bool
	playing     bool
	bound       [8]bool
}

// New creates an uninitialized chunk at the given chunk-space offset.
func New(size int, offset grid.Point) *Chunk {
	if size <= 0 {
		size = 1
	}
	return &Chunk{size: size, offset: offset}
}

func (c *Chunk) Size() int          { return c.size }
func (c *Chunk) Offset() grid.Point { return c.offset }

func (c *Chunk) idx(p grid.Point) int {
	return p.Y*c.size + p.X
}

func (c *Chunk) at(p grid.Point) *Tile {
	return &c.tiles[c.idx(p)]
}

// Initialize lays out the mines and resets every tile. It replaces all tile
// state, but refuses once any neighbour has been stitched in since the
// stitched counts would be lost.
func (c *Chunk) Initialize(mines []grid.Point) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, b := range c.bound {
		if b {
			return fmt.Errorf("initialize chunk %v: %w", c.offset, ErrInProgress)
		}
	}
	for _, m := range mines {
		if !grid.InBounds(m.X, m.Y, c.size) {
			return fmt.Errorf("initialize chunk %v: mine %v: %w", c.offset, m, ErrOutOfRange)
		}
	}

	tiles := make([]Tile, c.size*c.size)
	for y := 0; y < c.size; y++ {
		for x := 0; x < c.size; x++ {
			tiles[y*c.size+x] = Tile{
				X:         x,
				Y:         y,
				State:     Hidden,
				EdgeCount: grid.EdgeWeight(c.size, x, y),
			}
		}
	}
	for _, m := range mines {
		t := &tiles[m.Y*c.size+m.X]
		if t.IsMine {
			continue
		}
		t.IsMine = true
		for _, n := range grid.Neighbors(m.X, m.Y, c.size) {
			tiles[n.Y*c.size+n.X].MineCount++
		}
	}

	c.tiles = tiles
	c.initialized = true
	c.playing = true
	return nil
}

func (c *Chunk) check(x, y int) error {
	if !c.initialized {
		return fmt.Errorf("chunk %v: %w", c.offset, ErrNotInitialized)
	}
	if !grid.InBounds(x, y, c.size) {
		return fmt.Errorf("chunk %v tile (%d,%d): %w", c.offset, x, y, ErrOutOfRange)
	}
	return nil
}

// Tile returns a snapshot of the tile at (x, y).
func (c *Chunk) Tile(x, y int) (Tile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(x, y); err != nil {
		return Tile{}, err
	}
	return *c.at(grid.Point{X: x, Y: y}), nil
}

// Tiles returns a row-major snapshot of every tile, or nil before Initialize.
func (c *Chunk) Tiles() []Tile {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return nil
	}
	out := make([]Tile, len(c.tiles))
	copy(out, c.tiles)
	return out
}

// Initialized reports whether Initialize has completed.
func (c *Chunk) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// Playing is false once a mine in this chunk exploded.
func (c *Chunk) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Bound reports whether the neighbour in direction d has been stitched in.
func (c *Chunk) Bound(d grid.Direction) bool {
	if !d.Valid() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bound[d.Index()]
}

// Update applies a user interaction. Invalid targets are no-ops; only
// addressing errors are returned.
func (c *Chunk) Update(mode Mode, x, y int) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out Outcome
	if err := c.check(x, y); err != nil {
		return out, err
	}
	if !c.playing {
		return out, nil
	}

	p := grid.Point{X: x, Y: y}
	t := c.at(p)

	switch mode {
	case Flag:
		switch t.State {
		case Hidden:
			t.State = Flagged
		case Flagged:
			t.State = Hidden
		default:
			return out, nil
		}
		out.Changed = append(out.Changed, p)
	case Reveal:
		if t.State != Hidden && t.State != Flagged {
			return out, nil
		}
		if t.IsMine {
			t.State = Exploded
			c.playing = false
			out.Exploded = true
			out.Changed = append(out.Changed, p)
			return out, nil
		}
		c.flood(p, &out)
	default:
		return out, fmt.Errorf("chunk %v: %w %d", c.offset, ErrUnknownMode, int(mode))
	}
	return out, nil
}

// Continue resumes a reveal arriving across a seam. Only a hidden, safe tile
// is opened; flags stay and propagation never detonates a mine.
func (c *Chunk) Continue(x, y int) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out Outcome
	if err := c.check(x, y); err != nil {
		return out, err
	}
	p := grid.Point{X: x, Y: y}
	if t := c.at(p); !c.playing || t.State != Hidden || t.IsMine {
		return out, nil
	}
	c.flood(p, &out)
	return out, nil
}

// flood reveals start and, through zero tiles, every connected hidden tile.
// It runs on an explicit stack; each tile is visited at most once.
func (c *Chunk) flood(start grid.Point, out *Outcome) {
	visited := mapset.New[grid.Point]()
	stack := []grid.Point{start}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited.Has(p) {
			continue
		}
		visited.Put(p)

		t := c.at(p)
		if p != start && t.State != Hidden {
			continue
		}
		t.State = Revealed
		out.Changed = append(out.Changed, p)
		if t.MineCount != 0 {
			continue
		}

		ns := grid.Neighbors(p.X, p.Y, c.size)
		for i := len(ns) - 1; i >= 0; i-- {
			n := ns[i]
			if !visited.Has(n) && c.at(n).State == Hidden {
				stack = append(stack, n)
			}
		}
		out.Spills = append(out.Spills, c.spills(p)...)
	}
}

// spills lists the out-of-chunk neighbours of p that lie in linked chunks.
func (c *Chunk) spills(p grid.Point) []Spill {
	var out []Spill
	for _, o := range grid.Offsets() {
		d, far, ok := grid.Outside(c.size, p.X+o.DX, p.Y+o.DY)
		if ok && c.bound[d.Index()] {
			out = append(out, Spill{Dir: d, At: far})
		}
	}
	return out
}

// Contributions computes what this chunk adds to the border tiles of the
// neighbour lying in direction d, one entry per neighbour tile along the seam.
func (c *Chunk) Contributions(d grid.Direction) ([]Contribution, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("chunk %v: %w %v", c.offset, ErrBadDirection, d)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return nil, fmt.Errorf("chunk %v: %w", c.offset, ErrNotInitialized)
	}

	// Seen from the neighbour, this chunk lies in the opposite direction.
	var out []Contribution
	pos := map[grid.Point]int{}
	for _, pair := range grid.Seam(c.size, d.Opposite()) {
		i, ok := pos[pair.Near]
		if !ok {
			i = len(out)
			pos[pair.Near] = i
			out = append(out, Contribution{Point: pair.Near})
		}
		out[i].EdgeDelta++
		if c.at(pair.Far).IsMine {
			out[i].MineDelta++
		}
	}
	return out, nil
}

// ApplyNeighbour folds in the contributions of the neighbour at direction d
// and marks d as linked so later reveals spill into it. A direction can only
// be linked once.
func (c *Chunk) ApplyNeighbour(d grid.Direction, contribs []Contribution) error {
	if !d.Valid() {
		return fmt.Errorf("chunk %v: %w %v", c.offset, ErrBadDirection, d)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return fmt.Errorf("chunk %v: %w", c.offset, ErrNotInitialized)
	}
	if c.bound[d.Index()] {
		return fmt.Errorf("chunk %v direction %v: %w", c.offset, d, ErrAlreadyLinked)
	}
	for _, ct := range contribs {
		if !grid.InBounds(ct.Point.X, ct.Point.Y, c.size) {
			return fmt.Errorf("chunk %v contribution %v: %w", c.offset, ct.Point, ErrOutOfRange)
		}
		if c.at(ct.Point).EdgeCount < ct.EdgeDelta {
			return fmt.Errorf("chunk %v tile %v: %w", c.offset, ct.Point, ErrEdgeUnderflow)
		}
	}

	for _, ct := range contribs {
		t := c.at(ct.Point)
		t.MineCount += ct.MineDelta
		t.EdgeCount -= ct.EdgeDelta
	}
	c.bound[d.Index()] = true
	return nil
}

// Frontier lists the tiles of the neighbour at direction d that touch a
// revealed zero tile of this chunk, in the neighbour's local coordinates.
// A reveal that reached the border before the neighbour existed is resumed
// from these.
func (c *Chunk) Frontier(d grid.Direction) []grid.Point {
	if !d.Valid() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return nil
	}

	var out []grid.Point
	seen := mapset.New[grid.Point]()
	for _, pair := range grid.Seam(c.size, d) {
		t := c.at(pair.Near)
		if t.State != Revealed || t.MineCount != 0 || seen.Has(pair.Far) {
			continue
		}
		seen.Put(pair.Far)
		out = append(out, pair.Far)
	}
	return out
}
