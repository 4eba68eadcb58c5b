package world

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bodul/minefield/chunk"
	"github.com/bodul/minefield/grid"
)

// Request queues chunk (x, y) for loading. Duplicates are fine; the loader
// skips coordinates that are already materialized or in flight.
func (w *World) Request(x, y int) {
	w.qmu.Lock()
	w.queue = append(w.queue, record{at: grid.Point{X: x, Y: y}, retries: w.retries})
	w.qmu.Unlock()
}

// Process starts the loader if it is not already running. The loader stops by
// itself once the queue drains.
func (w *World) Process() {
	w.qmu.Lock()
	defer w.qmu.Unlock()
	if w.running || w.ctx.Err() != nil {
		return
	}
	w.running = true
	go w.loop()
}

// Pending returns the number of queued plus in-flight chunk loads.
func (w *World) Pending() int {
	w.qmu.Lock()
	defer w.qmu.Unlock()
	return len(w.queue) + w.inflight.Size()
}

// Idle reports whether the loader has stopped with nothing left to do.
func (w *World) Idle() bool {
	w.qmu.Lock()
	defer w.qmu.Unlock()
	return !w.running && len(w.queue) == 0 && w.inflight.Size() == 0
}

// Wait blocks until the loader is idle or ctx is done.
func (w *World) Wait(ctx context.Context) error {
	t := time.NewTicker(w.tick)
	defer t.Stop()
	for !w.Idle() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

func (w *World) loop() {
	for {
		batch := w.next()
		if len(batch) > 0 {
			w.runBatch(batch)
		}
		if w.drained() {
			return
		}
		select {
		case <-w.ctx.Done():
			w.qmu.Lock()
			w.running = false
			w.qmu.Unlock()
			return
		case <-time.After(w.tick):
		}
	}
}

// drained stops the loader when nothing is queued.
func (w *World) drained() bool {
	w.qmu.Lock()
	defer w.qmu.Unlock()
	if len(w.queue) > 0 && w.ctx.Err() == nil {
		return false
	}
	w.running = false
	return true
}

// next takes up to batch distinct coordinates off the queue and marks them in
// flight. Entries for chunks that already exist or are being loaded are
// dropped.
func (w *World) next() []record {
	w.qmu.Lock()
	defer w.qmu.Unlock()

	var picked []record
	rest := make([]record, 0, len(w.queue))
	for i, r := range w.queue {
		if len(picked) == w.batch {
			rest = append(rest, w.queue[i:]...)
			break
		}
		if w.inflight.Has(r.at) {
			continue
		}
		if _, ok := w.Peek(r.at.X, r.at.Y); ok {
			continue
		}
		w.inflight.Put(r.at)
		picked = append(picked, r)
	}
	w.queue = rest
	return picked
}

func (w *World) runBatch(batch []record) {
	errs := make([]error, len(batch))
	g := new(errgroup.Group)
	g.SetLimit(w.batch)
	for i, r := range batch {
		g.Go(func() error {
			errs[i] = w.load(r.at)
			return nil
		})
	}
	g.Wait()

	w.qmu.Lock()
	defer w.qmu.Unlock()
	for i, r := range batch {
		w.inflight.Remove(r.at)
		err := errs[i]
		if err == nil {
			continue
		}
		switch {
		case errors.Is(err, errInvariant):
			w.log.Error("chunk load aborted", "chunk", r.at, "error", err)
		case w.ctx.Err() != nil:
			w.log.Debug("chunk load cancelled", "chunk", r.at)
		case r.retries > 0:
			r.retries--
			w.queue = append(w.queue, r)
			w.log.Warn("chunk load failed, retrying", "chunk", r.at, "retries_left", r.retries, "error", err)
		default:
			w.log.Warn("dropping chunk", "chunk", r.at, "error", fmt.Errorf("%w: %w", ErrRetriesExhausted, err))
		}
	}
}

// load materializes one chunk: fetch its layout, stitch it into the world,
// resume reveals that reached the new seams, then replay recorded
// interactions.
func (w *World) load(at grid.Point) error {
	layout, err := w.factory.Create(w.ctx, at)
	if err != nil {
		return fmt.Errorf("create chunk %v: %w", at, err)
	}

	c := chunk.New(w.size, at)
	if err := c.Initialize(layout.Mines); err != nil {
		return err
	}

	dirs, err := w.attach(c)
	if err != nil {
		return err
	}
	w.emit(Event{Kind: ChunkLoaded, Chunk: at, State: w.State()})

	w.resume(c, dirs)

	for _, in := range layout.Interactions {
		if w.State() == Lost {
			break
		}
		if _, err := w.apply(c, in.Mode, in.X, in.Y); err != nil {
			w.log.Warn("skipping recorded interaction", "chunk", at, "mode", in.Mode, "x", in.X, "y", in.Y, "error", err)
		}
	}
	return nil
}
