// Package world owns the sparse, lazily materialized set of chunks making up
// an infinite board: on-demand loading through a Factory, stitching of every
// new chunk to its existing neighbours, reveal propagation across seams, and
// the global game state.
package world

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zyedidia/generic/mapset"

	"github.com/bodul/minefield/chunk"
	"github.com/bodul/minefield/grid"
)

var (
	ErrNotFound         = errors.New("chunk not materialized")
	ErrGameOver         = errors.New("game over")
	ErrRetriesExhausted = errors.New("chunk load retries exhausted")
	errInvariant        = errors.New("world invariant violated")
)

// Bounds is the rectangle, in chunk space, spanned by materialized chunks.
type Bounds struct {
	MinX int `json:"min_x"`
	MaxX int `json:"max_x"`
	MinY int `json:"min_y"`
	MaxY int `json:"max_y"`
}

// link addresses the neighbour of the chunk at from in direction dir.
type link struct {
	from grid.Point
	dir  grid.Direction
}

// record is a queued chunk request.
type record struct {
	at      grid.Point
	retries int
}

// World is safe for concurrent use.
type World struct {
	factory Factory
	size    int
	batch   int
	retries int
	radius  int
	tick    time.Duration
	log     *slog.Logger
	observe func(Event)

	// mu guards the chunk map, the link registry and the bounds. Stitching
	// holds it exclusively; interactions hold it shared and lock one chunk
	// at a time.
	mu        sync.RWMutex
	chunks    map[grid.Point]*chunk.Chunk
	links     map[link]*chunk.Chunk
	bounds    Bounds
	hasBounds bool

	state atomic.Int32

	qmu      sync.Mutex
	queue    []record
	inflight mapset.Set[grid.Point]
	running  bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an empty world in the Loading state.
func New(factory Factory, opts ...Option) *World {
	ctx, cancel := context.WithCancel(context.Background())
	w := &World{
		factory:  factory,
		size:     defaultChunkSize,
		batch:    defaultBatchSize,
		retries:  defaultRetries,
		radius:   defaultRadius,
		tick:     defaultTick,
		log:      slog.Default(),
		chunks:   make(map[grid.Point]*chunk.Chunk),
		links:    make(map[link]*chunk.Chunk),
		inflight: mapset.New[grid.Point](),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ChunkSize returns the side length of every chunk.
func (w *World) ChunkSize() int { return w.size }

// State returns the current game state.
func (w *World) State() GameState {
	return GameState(w.state.Load())
}

// Bounds returns the rectangle covering every materialized chunk.
func (w *World) Bounds() Bounds {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.bounds
}

// Len returns the number of materialized chunks.
func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.chunks)
}

// Peek returns the chunk at (x, y) if it has been materialized. It never
// triggers loading.
func (w *World) Peek(x, y int) (*chunk.Chunk, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c, ok := w.chunks[grid.Point{X: x, Y: y}]
	return c, ok
}

// Initialize requests the neighbourhood around the origin, starts the loader
// and moves the world to Playing. Only the first call has an effect.
func (w *World) Initialize() {
	if !w.state.CompareAndSwap(int32(Loading), int32(Playing)) {
		return
	}
	w.Request(0, 0)
	for r := 1; r <= w.radius; r++ {
		for y := -r; y <= r; y++ {
			for x := -r; x <= r; x++ {
				if max(abs(x), abs(y)) == r {
					w.Request(x, y)
				}
			}
		}
	}
	w.Process()
	w.emit(Event{Kind: StateChanged, State: Playing})
}

// Interaction applies a user action to tile (tx, ty) of chunk (x, y) and
// propagates any reveal into linked neighbours.
func (w *World) Interaction(x, y int, mode chunk.Mode, tx, ty int) (Result, error) {
	if w.State() == Lost {
		return Result{}, ErrGameOver
	}
	at := grid.Point{X: x, Y: y}
	c, ok := w.Peek(x, y)
	if !ok {
		return Result{}, fmt.Errorf("interaction at chunk %v: %w", at, ErrNotFound)
	}
	return w.apply(c, mode, tx, ty)
}

func (w *World) apply(c *chunk.Chunk, mode chunk.Mode, tx, ty int) (Result, error) {
	w.mu.RLock()
	out, err := c.Update(mode, tx, ty)
	if err != nil {
		w.mu.RUnlock()
		return Result{}, err
	}
	res := Result{Exploded: out.Exploded}
	res.Changes = w.propagate(c, out)
	w.mu.RUnlock()

	w.publish(res.Changes)
	if out.Exploded {
		w.lose(c.Offset())
	}
	return res, nil
}

// propagate delivers spills across links until the reveal dies out. Callers
// hold mu shared.
func (w *World) propagate(origin *chunk.Chunk, out chunk.Outcome) []Change {
	var changes []Change
	if len(out.Changed) > 0 {
		changes = append(changes, Change{Chunk: origin.Offset(), Tiles: out.Changed})
	}

	type job struct {
		c  *chunk.Chunk
		at grid.Point
	}
	var work []job
	push := func(from grid.Point, spills []chunk.Spill) {
		for _, s := range spills {
			if n, ok := w.links[link{from: from, dir: s.Dir}]; ok {
				work = append(work, job{c: n, at: s.At})
			}
		}
	}
	push(origin.Offset(), out.Spills)

	for len(work) > 0 {
		if w.State() == Lost {
			break
		}
		j := work[0]
		work = work[1:]
		o, err := j.c.Continue(j.at.X, j.at.Y)
		if err != nil {
			w.log.Error("reveal continuation failed", "chunk", j.c.Offset(), "tile", j.at, "error", err)
			continue
		}
		if len(o.Changed) > 0 {
			changes = append(changes, Change{Chunk: j.c.Offset(), Tiles: o.Changed})
		}
		push(j.c.Offset(), o.Spills)
	}
	return changes
}

func (w *World) lose(at grid.Point) {
	if GameState(w.state.Swap(int32(Lost))) == Lost {
		return
	}
	w.log.Info("mine exploded, game lost", "chunk", at)
	w.emit(Event{Kind: StateChanged, Chunk: at, State: Lost})
}

func (w *World) publish(changes []Change) {
	for _, ch := range changes {
		w.emit(Event{Kind: TilesChanged, Chunk: ch.Chunk, Tiles: ch.Tiles, State: w.State()})
	}
}

func (w *World) emit(e Event) {
	if w.observe != nil {
		w.observe(e)
	}
}

// Close stops the loader between ticks and cancels outstanding factory calls.
func (w *World) Close() {
	w.cancel()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
