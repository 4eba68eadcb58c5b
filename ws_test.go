package main

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialWorld(t *testing.T, srv *Server, id string) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/worlds/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readType reads messages until one of the given type arrives.
func readType(t *testing.T, conn *websocket.Conn, typ string) map[string]json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %q: %v", typ, err)
		}
		var msg map[string]json.RawMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		var got string
		json.Unmarshal(msg["type"], &got)
		if got == typ {
			return msg
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

func TestWebSocketFlow(t *testing.T) {
	srv := newTestServer(t)
	sum := createWorld(t, srv)
	conn := dialWorld(t, srv, sum.ID)

	readType(t, conn, "world_state")

	send(t, conn, "join", map[string]string{"pseudo": "Alice"})
	msg := readType(t, conn, "joined")
	var player Player
	json.Unmarshal(msg["payload"], &player)
	if player.Pseudo != "Alice" {
		t.Fatalf("expected Alice, got %+v", player)
	}

	send(t, conn, "chunk", map[string]int{"x": 0, "y": 0})
	msg = readType(t, conn, "chunk")
	var v ChunkView
	json.Unmarshal(msg["payload"], &v)
	if len(v.Tiles) != 16 {
		t.Fatalf("expected 16 tiles, got %d", len(v.Tiles))
	}

	send(t, conn, "interact", map[string]any{"chunk": map[string]int{"x": 0, "y": 0}, "x": 1, "y": 1, "mode": "reveal"})
	msg = readType(t, conn, "interaction")
	var res interactResponse
	json.Unmarshal(msg["payload"], &res)
	if res.Exploded || len(res.Changes) == 0 {
		t.Fatalf("unexpected interaction result %+v", res)
	}

	send(t, conn, "interact", map[string]any{"chunk": map[string]int{"x": 9, "y": 9}, "x": 0, "y": 0, "mode": "reveal"})
	msg = readType(t, conn, "error")
	if len(msg["error"]) == 0 {
		t.Fatal("expected an error message")
	}

	send(t, conn, "bogus", nil)
	readType(t, conn, "error")
}

func TestWebSocketReceivesBroadcasts(t *testing.T) {
	srv := newTestServer(t)
	sum := createWorld(t, srv)
	conn := dialWorld(t, srv, sum.ID)
	readType(t, conn, "world_state")

	do(t, srv, "POST", "/api/worlds/"+sum.ID+"/join", `{"pseudo":"Bob"}`)
	msg := readType(t, conn, "player_joined")
	var pseudo string
	json.Unmarshal(msg["pseudo"], &pseudo)
	if pseudo != "Bob" {
		t.Fatalf("expected Bob, got %q", pseudo)
	}

	do(t, srv, "POST", "/api/worlds/"+sum.ID+"/interact", `{"chunk":{"x":0,"y":0},"x":1,"y":1,"mode":"reveal"}`)
	readType(t, conn, "tiles_changed")
}

func TestWebSocketUnknownWorld(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/worlds/nope/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != 404 {
		t.Fatalf("expected 404 response, got %v", resp)
	}
}
