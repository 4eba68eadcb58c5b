package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/bodul/minefield/chunk"
	"github.com/bodul/minefield/grid"
	"github.com/bodul/minefield/world"
)

const (
	maxBodySize      = 64 << 10
	maxChunkRequests = 256
)

// rateLimiter is a simple per-IP token bucket rate limiter.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*bucket
	rate     int           // tokens per interval
	interval time.Duration // refill interval
}

type bucket struct {
	tokens   int
	lastSeen time.Time
}

func newRateLimiter(rate int, interval time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*bucket),
		rate:     rate,
		interval: interval,
	}
	// Cleanup stale entries every minute.
	go func() {
		for {
			time.Sleep(time.Minute)
			rl.mu.Lock()
			for ip, b := range rl.visitors {
				if time.Since(b.lastSeen) > 5*time.Minute {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}()
	return rl
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.visitors[ip]
	if !ok {
		rl.visitors[ip] = &bucket{tokens: rl.rate - 1, lastSeen: time.Now()}
		return true
	}

	elapsed := time.Since(b.lastSeen)
	refill := int(elapsed / rl.interval)
	if refill > 0 {
		b.tokens += refill * rl.rate
		if b.tokens > rl.rate {
			b.tokens = rl.rate
		}
		b.lastSeen = time.Now()
	}

	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// FactoryMaker returns the chunk factory for a world seed.
type FactoryMaker func(seed uint64) world.Factory

// Server is the HTTP render boundary in front of the worlds.
type Server struct {
	mux      *http.ServeMux
	cfg      Config
	store    *Store
	sse      *Broadcaster
	factory  FactoryMaker
	log      *slog.Logger
	upgrader websocket.Upgrader
	createRL *rateLimiter
	moveRL   *rateLimiter
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, factory FactoryMaker, logger *slog.Logger) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		cfg:      cfg,
		sse:      NewBroadcaster(),
		factory:  factory,
		log:      logger,
		createRL: newRateLimiter(5, time.Minute),  // 5 worlds/min per IP
		moveRL:   newRateLimiter(60, time.Second), // 60 moves/sec per IP
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
	s.store = NewStore(s.newWorld)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleInfo)

	s.mux.HandleFunc("POST /api/worlds", s.handleCreateWorld)
	s.mux.HandleFunc("GET /api/worlds", s.handleListWorlds)
	s.mux.HandleFunc("GET /api/worlds/{id}", s.handleGetWorld)
	s.mux.HandleFunc("DELETE /api/worlds/{id}", s.handleDeleteWorld)
	s.mux.HandleFunc("POST /api/worlds/{id}/join", s.handleJoin)
	s.mux.HandleFunc("GET /api/worlds/{id}/chunks/{x}/{y}", s.handleGetChunk)
	s.mux.HandleFunc("POST /api/worlds/{id}/chunks", s.handleRequestChunks)
	s.mux.HandleFunc("POST /api/worlds/{id}/interact", s.handleInteract)
	s.mux.HandleFunc("GET /api/worlds/{id}/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/worlds/{id}/ws", s.handleWebSocket)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; connect-src 'self'")
	s.mux.ServeHTTP(w, r)
}

// Close stops every world.
func (s *Server) Close() {
	s.store.Close()
}

// newWorld builds the world of a session and relays its events to the
// session's subscribers.
func (s *Server) newWorld(id string, seed uint64) *world.World {
	var w *world.World
	w = world.New(s.factory(seed),
		world.WithChunkSize(s.cfg.ChunkSize),
		world.WithBatchSize(s.cfg.BatchSize),
		world.WithRetries(s.cfg.Retries),
		world.WithRadius(s.cfg.Radius),
		world.WithLogger(s.log.With("world", id)),
		world.WithObserver(func(e world.Event) { s.relay(id, w, e) }),
	)
	return w
}

// wireEvent is the JSON form of a world event sent to subscribers.
type wireEvent struct {
	Type  string          `json:"type"`
	State world.GameState `json:"state"`
	Chunk *ChunkView      `json:"chunk,omitempty"`
	At    *grid.Point     `json:"at,omitempty"`
	Tiles []TileView      `json:"tiles,omitempty"`
}

// relay is the world observer. It runs outside the world's locks.
func (s *Server) relay(id string, w *world.World, e world.Event) {
	if s.sse.ClientCount(id) == 0 {
		return
	}

	out := wireEvent{Type: e.Kind.String(), State: e.State}
	switch e.Kind {
	case world.ChunkLoaded:
		c, ok := w.Peek(e.Chunk.X, e.Chunk.Y)
		if !ok {
			return
		}
		v := viewChunk(c, w.State())
		out.Chunk = &v
	case world.TilesChanged:
		c, ok := w.Peek(e.Chunk.X, e.Chunk.Y)
		if !ok {
			return
		}
		at := e.Chunk
		out.At = &at
		out.Tiles = viewTiles(c, e.Tiles, w.State())
	case world.StateChanged:
		if e.State == world.Lost {
			at := e.Chunk
			out.At = &at
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		s.log.Error("encode world event", "world", id, "error", err)
		return
	}
	s.sse.Broadcast(id, string(data))
}

// --- World handlers ---

// GET / — service description.
func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":       "minefield",
		"chunk_size": s.cfg.ChunkSize,
		"mine_rule":  s.cfg.MineRule,
		"worlds":     len(s.store.List()),
	})
}

// POST /api/worlds — create and initialize a world.
func (s *Server) handleCreateWorld(w http.ResponseWriter, r *http.Request) {
	if !s.createRL.allow(r.RemoteAddr) {
		jsonError(w, "Trop de requêtes, réessayez plus tard", http.StatusTooManyRequests)
		return
	}

	var req struct {
		Seed uint64 `json:"seed"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "Requête invalide", http.StatusBadRequest)
			return
		}
	}

	seed := req.Seed
	if seed == 0 {
		seed = s.cfg.Seed
	}
	if seed == 0 {
		seed = rand.Uint64()
	}

	sess := s.store.Create(seed)
	s.log.Info("world created", "world", sess.ID, "seed", seed)
	writeJSON(w, http.StatusCreated, sess.Summary())
}

// GET /api/worlds — list worlds, most recent first.
func (s *Server) handleListWorlds(w http.ResponseWriter, _ *http.Request) {
	sessions := s.store.List()
	list := make([]Summary, len(sessions))
	for i, sess := range sessions {
		list[i] = sess.Summary()
	}
	writeJSON(w, http.StatusOK, list)
}

// GET /api/worlds/{id} — world summary.
func (s *Server) handleGetWorld(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	writeJSON(w, http.StatusOK, sess.Summary())
}

// DELETE /api/worlds/{id} — stop a world and disconnect its subscribers.
func (s *Server) handleDeleteWorld(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.store.Delete(id) {
		jsonError(w, "Monde introuvable", http.StatusNotFound)
		return
	}
	s.sse.Drop(id)
	s.log.Info("world deleted", "world", id)
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/worlds/{id}/join — join a world with a pseudo.
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	var req struct {
		Pseudo string `json:"pseudo"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Pseudo == "" {
		jsonError(w, "Champ 'pseudo' requis", http.StatusBadRequest)
		return
	}

	pseudo := sanitizePseudo(req.Pseudo)
	if pseudo == "" {
		jsonError(w, "Pseudo invalide", http.StatusBadRequest)
		return
	}

	player := sess.AddPlayer(pseudo)
	s.broadcast(sess.ID, map[string]string{
		"type":   "player_joined",
		"pseudo": player.Pseudo,
		"color":  player.Color,
	})
	writeJSON(w, http.StatusOK, player)
}

// --- Chunk handlers ---

// GET /api/worlds/{id}/chunks/{x}/{y} — one chunk. With ?request=1 a missing
// chunk is queued for loading and 202 is returned.
func (s *Server) handleGetChunk(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	x, errX := strconv.Atoi(r.PathValue("x"))
	y, errY := strconv.Atoi(r.PathValue("y"))
	if errX != nil || errY != nil {
		jsonError(w, "Coordonnées invalides", http.StatusBadRequest)
		return
	}

	c, ok := sess.World.Peek(x, y)
	if !ok {
		if r.URL.Query().Get("request") != "" {
			sess.World.Request(x, y)
			sess.World.Process()
			writeJSON(w, http.StatusAccepted, map[string]int{"pending": sess.World.Pending()})
			return
		}
		jsonError(w, "Section non chargée", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, viewChunk(c, sess.World.State()))
}

// POST /api/worlds/{id}/chunks — queue chunks for loading.
func (s *Server) handleRequestChunks(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	var req struct {
		Chunks []grid.Point `json:"chunks"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Chunks) == 0 {
		jsonError(w, "Champ 'chunks' requis", http.StatusBadRequest)
		return
	}
	if len(req.Chunks) > maxChunkRequests {
		jsonError(w, "Trop de sections demandées (max 256)", http.StatusBadRequest)
		return
	}

	requestChunks(sess.World, req.Chunks)
	writeJSON(w, http.StatusAccepted, map[string]int{"pending": sess.World.Pending()})
}

func requestChunks(w *world.World, points []grid.Point) {
	for _, p := range points {
		w.Request(p.X, p.Y)
	}
	w.Process()
}

// --- Interaction ---

// interactRequest is a player action on one tile.
type interactRequest struct {
	Pseudo string     `json:"pseudo"`
	Chunk  grid.Point `json:"chunk"`
	X      int        `json:"x"`
	Y      int        `json:"y"`
	Mode   string     `json:"mode"`
}

// changeView lists the tiles of one chunk touched by an interaction.
type changeView struct {
	Chunk grid.Point `json:"chunk"`
	Tiles []TileView `json:"tiles"`
}

type interactResponse struct {
	Exploded bool            `json:"exploded"`
	State    world.GameState `json:"state"`
	Changes  []changeView    `json:"changes"`
}

// interact applies req to the session's world and announces the player's
// action. Tile updates reach subscribers through the world observer.
func (s *Server) interact(sess *Session, req interactRequest) (interactResponse, error) {
	mode, err := chunk.ParseMode(req.Mode)
	if err != nil {
		return interactResponse{}, err
	}

	res, err := sess.World.Interaction(req.Chunk.X, req.Chunk.Y, mode, req.X, req.Y)
	if err != nil {
		return interactResponse{}, err
	}

	state := sess.World.State()
	out := interactResponse{Exploded: res.Exploded, State: state, Changes: make([]changeView, 0, len(res.Changes))}
	for _, ch := range res.Changes {
		c, ok := sess.World.Peek(ch.Chunk.X, ch.Chunk.Y)
		if !ok {
			continue
		}
		out.Changes = append(out.Changes, changeView{Chunk: ch.Chunk, Tiles: viewTiles(c, ch.Tiles, state)})
	}

	if pseudo := sanitizePseudo(req.Pseudo); pseudo != "" {
		evt := map[string]any{
			"type":   "player_action",
			"pseudo": pseudo,
			"chunk":  req.Chunk,
			"x":      req.X,
			"y":      req.Y,
			"mode":   mode,
		}
		if p := sess.Player(pseudo); p != nil {
			evt["color"] = p.Color
		}
		s.broadcast(sess.ID, evt)
	}
	return out, nil
}

// interactStatus maps an interaction error to an HTTP status and message.
func interactStatus(err error) (int, string) {
	switch {
	case errors.Is(err, chunk.ErrUnknownMode):
		return http.StatusBadRequest, "Mode invalide : reveal ou flag"
	case errors.Is(err, chunk.ErrOutOfRange):
		return http.StatusBadRequest, "Position hors limites"
	case errors.Is(err, world.ErrNotFound):
		return http.StatusNotFound, "Section non chargée"
	case errors.Is(err, world.ErrGameOver):
		return http.StatusConflict, "Partie terminée"
	case errors.Is(err, chunk.ErrNotInitialized):
		return http.StatusConflict, "Section en cours de chargement"
	default:
		return http.StatusInternalServerError, "Erreur interne"
	}
}

// POST /api/worlds/{id}/interact — reveal or flag a tile.
func (s *Server) handleInteract(w http.ResponseWriter, r *http.Request) {
	if !s.moveRL.allow(r.RemoteAddr) {
		jsonError(w, "Trop de requêtes, réessayez plus tard", http.StatusTooManyRequests)
		return
	}

	sess := s.session(w, r)
	if sess == nil {
		return
	}

	var req interactRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Requête invalide", http.StatusBadRequest)
		return
	}

	res, err := s.interact(sess, req)
	if err != nil {
		code, msg := interactStatus(err)
		if code == http.StatusInternalServerError {
			s.log.Error("interaction failed", "world", sess.ID, "chunk", req.Chunk, "x", req.X, "y", req.Y, "error", err)
		}
		jsonError(w, msg, code)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /api/worlds/{id}/events — SSE stream.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	playerPseudo := sanitizePseudo(r.URL.Query().Get("pseudo"))

	s.sse.ServeSSE(w, r, sess.ID, func(c *client) {
		c.ch <- s.worldState(sess)
	}, func() {
		s.leave(sess, playerPseudo)
	})
}

// worldState is the message sent to a subscriber on connect.
func (s *Server) worldState(sess *Session) string {
	data, _ := json.Marshal(map[string]any{
		"type":  "world_state",
		"world": sess.Summary(),
	})
	return string(data)
}

func (s *Server) leave(sess *Session, pseudo string) {
	if pseudo == "" {
		return
	}
	sess.RemovePlayer(pseudo)
	s.broadcast(sess.ID, map[string]string{
		"type":   "player_left",
		"pseudo": pseudo,
	})
}

// --- Helpers ---

// session resolves the {id} path value, writing a 404 when unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *Session {
	sess := s.store.Get(r.PathValue("id"))
	if sess == nil {
		jsonError(w, "Monde introuvable", http.StatusNotFound)
	}
	return sess
}

func (s *Server) broadcast(id string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("encode event", "world", id, "error", err)
		return
	}
	s.sse.Broadcast(id, string(data))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizePseudo(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > 20 {
		s = string([]rune(s)[:20])
	}
	return s
}
