package world

import (
	"log/slog"
	"time"
)

const (
	defaultChunkSize = 8
	defaultBatchSize = 10
	defaultRetries   = 5
	defaultRadius    = 3
	defaultTick      = 16 * time.Millisecond
)

// Option configures a World.
type Option func(*World)

// WithChunkSize sets the side length of every chunk.
func WithChunkSize(n int) Option {
	return func(w *World) {
		if n > 0 {
			w.size = n
		}
	}
}

// WithBatchSize caps how many chunks load concurrently per loader tick.
func WithBatchSize(n int) Option {
	return func(w *World) {
		if n > 0 {
			w.batch = n
		}
	}
}

// WithRetries sets how often a failed chunk load is re-queued.
func WithRetries(n int) Option {
	return func(w *World) {
		if n >= 0 {
			w.retries = n
		}
	}
}

// WithRadius sets the chunk radius around the origin requested by Initialize.
func WithRadius(n int) Option {
	return func(w *World) {
		if n >= 0 {
			w.radius = n
		}
	}
}

// WithTick sets the pause between loader ticks.
func WithTick(d time.Duration) Option {
	return func(w *World) {
		if d > 0 {
			w.tick = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(w *World) {
		if l != nil {
			w.log = l
		}
	}
}

// WithObserver registers a callback for world events. It is called without
// any world lock held and must not block.
func WithObserver(fn func(Event)) Option {
	return func(w *World) {
		w.observe = fn
	}
}
