package world

import (
	"fmt"

	"github.com/bodul/minefield/chunk"
	"github.com/bodul/minefield/grid"
)

// attach registers c and stitches it to every existing neighbour in one step
// under the exclusive lock, so two new neighbours can never both see each
// other. It returns the directions that were stitched.
func (w *World) attach(c *chunk.Chunk) ([]grid.Direction, error) {
	at := c.Offset()

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.chunks[at]; ok {
		return nil, fmt.Errorf("chunk %v materialized twice: %w", at, errInvariant)
	}

	var dirs []grid.Direction
	for _, d := range grid.Directions {
		n, ok := w.chunks[at.Add(d)]
		if !ok {
			continue
		}
		if err := stitch(c, n, d); err != nil {
			return dirs, fmt.Errorf("stitch %v to %v: %w: %w", at, n.Offset(), errInvariant, err)
		}
		w.links[link{from: at, dir: d}] = n
		w.links[link{from: n.Offset(), dir: d.Opposite()}] = c
		dirs = append(dirs, d)
	}

	w.chunks[at] = c
	w.widen(at)
	return dirs, nil
}

// stitch exchanges border contributions between c and its neighbour n lying
// in direction d.
func stitch(c, n *chunk.Chunk, d grid.Direction) error {
	toC, err := n.Contributions(d.Opposite())
	if err != nil {
		return err
	}
	toN, err := c.Contributions(d)
	if err != nil {
		return err
	}
	if err := c.ApplyNeighbour(d, toC); err != nil {
		return err
	}
	return n.ApplyNeighbour(d.Opposite(), toN)
}

func (w *World) widen(at grid.Point) {
	if !w.hasBounds {
		w.bounds = Bounds{MinX: at.X, MaxX: at.X, MinY: at.Y, MaxY: at.Y}
		w.hasBounds = true
		return
	}
	w.bounds.MinX = min(w.bounds.MinX, at.X)
	w.bounds.MaxX = max(w.bounds.MaxX, at.X)
	w.bounds.MinY = min(w.bounds.MinY, at.Y)
	w.bounds.MaxY = max(w.bounds.MaxY, at.Y)
}

// resume carries reveals across the seams just created: a revealed zero tile
// on either side of a new seam opens its counterpart on the other side. This
// covers reveals that reached a border before the neighbour existed.
func (w *World) resume(c *chunk.Chunk, dirs []grid.Direction) {
	if len(dirs) == 0 || w.State() == Lost {
		return
	}

	w.mu.RLock()
	var changes []Change
	for _, d := range dirs {
		n := w.links[link{from: c.Offset(), dir: d}]
		changes = append(changes, w.cross(n, c, n.Frontier(d.Opposite()))...)
		changes = append(changes, w.cross(c, n, c.Frontier(d))...)
	}
	w.mu.RUnlock()

	w.publish(changes)
}

// cross continues a reveal from one chunk into the given tiles of another.
func (w *World) cross(from, into *chunk.Chunk, tiles []grid.Point) []Change {
	var changes []Change
	for _, p := range tiles {
		if w.State() == Lost {
			break
		}
		out, err := into.Continue(p.X, p.Y)
		if err != nil {
			w.log.Error("seam reveal failed", "from", from.Offset(), "into", into.Offset(), "tile", p, "error", err)
			continue
		}
		changes = append(changes, w.propagate(into, out)...)
	}
	return changes
}
