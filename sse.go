package main

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

const (
	sseChannelBuffer = 64
	sseHeartbeat     = 30 * time.Second
)

// client is a single SSE or WebSocket subscriber.
type client struct {
	ch      chan string
	worldID string
}

// Broadcaster fans world events out to subscribers grouped by session.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[*client]struct{}),
	}
}

// Register adds a subscriber for a session and returns it.
func (b *Broadcaster) Register(worldID string) *client {
	c := &client{
		ch:      make(chan string, sseChannelBuffer),
		worldID: worldID,
	}
	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()
	return c
}

// Unregister removes a subscriber and closes its channel.
func (b *Broadcaster) Unregister(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.ch)
	}
	b.mu.Unlock()
}

// Broadcast sends a message to every subscriber of a session. Slow
// subscribers miss messages rather than blocking the world.
func (b *Broadcaster) Broadcast(worldID, data string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for c := range b.clients {
		if c.worldID == worldID {
			select {
			case c.ch <- data:
			default:
			}
		}
	}
}

// Drop closes every subscriber of a session.
func (b *Broadcaster) Drop(worldID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		if c.worldID == worldID {
			delete(b.clients, c)
			close(c.ch)
		}
	}
}

// ClientCount returns the number of subscribers of a session.
func (b *Broadcaster) ClientCount(worldID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for c := range b.clients {
		if c.worldID == worldID {
			n++
		}
	}
	return n
}

// ServeSSE streams a session's events until the request ends.
func (b *Broadcaster) ServeSSE(w http.ResponseWriter, r *http.Request, worldID string, onConnect func(c *client), onDisconnect func()) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming non supporté", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	c := b.Register(worldID)
	defer func() {
		b.Unregister(c)
		if onDisconnect != nil {
			onDisconnect()
		}
	}()

	if onConnect != nil {
		onConnect(c)
	}

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-c.ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}
