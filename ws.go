package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bodul/minefield/grid"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) writeText(data string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, []byte(data))
}

func (c *wsConn) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

// wsEnvelope is a client message.
type wsEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// wsReply answers one client message.
type wsReply struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// GET /api/worlds/{id}/ws — bidirectional alternative to /events: the same
// event stream, plus join, interact, request and chunk messages.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", "world", sess.ID, "error", err)
		return
	}

	ws := &wsConn{conn: conn}
	sub := s.sse.Register(sess.ID)
	var pseudo string
	defer func() {
		s.sse.Unregister(sub)
		conn.Close()
		s.leave(sess, pseudo)
	}()

	if err := ws.writeText(s.worldState(sess)); err != nil {
		return
	}
	go s.pump(ws, sub)

	conn.SetReadLimit(maxBodySize)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env wsEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			ws.writeJSON(wsReply{Type: "error", Error: "Message invalide"})
			continue
		}

		reply := s.dispatch(sess, r.RemoteAddr, &pseudo, env)
		if err := ws.writeJSON(reply); err != nil {
			return
		}
	}
}

// pump forwards subscription messages and keeps the connection alive until
// the subscription closes.
func (s *Server) pump(ws *wsConn, sub *client) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		ws.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-sub.ch:
			if !ok {
				return
			}
			if err := ws.writeText(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := ws.ping(); err != nil {
				return
			}
		}
	}
}

// dispatch handles one client message. pseudo is the player bound to the
// connection by a join message.
func (s *Server) dispatch(sess *Session, addr string, pseudo *string, env wsEnvelope) wsReply {
	fail := func(msg string) wsReply {
		return wsReply{Type: "error", Error: msg}
	}

	switch env.Type {
	case "join":
		var req struct {
			Pseudo string `json:"pseudo"`
		}
		if json.Unmarshal(env.Payload, &req) != nil {
			return fail("Champ 'pseudo' requis")
		}
		name := sanitizePseudo(req.Pseudo)
		if name == "" {
			return fail("Pseudo invalide")
		}
		if *pseudo != "" && *pseudo != name {
			s.leave(sess, *pseudo)
		}
		*pseudo = name
		player := sess.AddPlayer(name)
		s.broadcast(sess.ID, map[string]string{
			"type":   "player_joined",
			"pseudo": player.Pseudo,
			"color":  player.Color,
		})
		return wsReply{Type: "joined", Payload: player}

	case "interact":
		if !s.moveRL.allow(addr) {
			return fail("Trop de requêtes, réessayez plus tard")
		}
		var req interactRequest
		if json.Unmarshal(env.Payload, &req) != nil {
			return fail("Requête invalide")
		}
		if req.Pseudo == "" {
			req.Pseudo = *pseudo
		}
		res, err := s.interact(sess, req)
		if err != nil {
			_, msg := interactStatus(err)
			return fail(msg)
		}
		return wsReply{Type: "interaction", Payload: res}

	case "request":
		var req struct {
			Chunks []grid.Point `json:"chunks"`
		}
		if json.Unmarshal(env.Payload, &req) != nil || len(req.Chunks) == 0 {
			return fail("Champ 'chunks' requis")
		}
		if len(req.Chunks) > maxChunkRequests {
			return fail("Trop de sections demandées (max 256)")
		}
		requestChunks(sess.World, req.Chunks)
		return wsReply{Type: "requested", Payload: map[string]int{"pending": sess.World.Pending()}}

	case "chunk":
		var at grid.Point
		if json.Unmarshal(env.Payload, &at) != nil {
			return fail("Coordonnées invalides")
		}
		c, ok := sess.World.Peek(at.X, at.Y)
		if !ok {
			return fail("Section non chargée")
		}
		return wsReply{Type: "chunk", Payload: viewChunk(c, sess.World.State())}
	}
	return fail("Type de message inconnu")
}
