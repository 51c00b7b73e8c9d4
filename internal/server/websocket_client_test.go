package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/lawnchairsociety/cliffbrush/internal/cliff"
	"github.com/lawnchairsociety/cliffbrush/internal/session"
)

// pipe starts a server that writes messages then waits, and returns a client
// reading from it.
func pipe(t *testing.T, messages ...string) *WebSocketClient {
	t.Helper()
	upgrader := websocket.Upgrader{}
	done := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade: %v", err)
			return
		}
		defer conn.Close()
		for _, m := range messages {
			conn.WriteMessage(websocket.TextMessage, []byte(m))
		}
		<-done
	}))
	t.Cleanup(func() {
		close(done)
		srv.Close()
	})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewWebSocketClient(conn)
}

func TestWebSocketClient_ReadEvent_EmptyMessages(t *testing.T) {
	client := pipe(t, "", "   ", "\n\n\n", `{"type":"undo"}`)

	ev, err := client.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent failed: %v", err)
	}
	if ev.Type != session.EventUndo {
		t.Errorf("Type = %q, want %q", ev.Type, session.EventUndo)
	}
}

func TestWebSocketClient_ReadEvent_MultiLineMessage(t *testing.T) {
	client := pipe(t,
		"{\"type\":\"place\",\"tile\":{\"tile_set\":\"Ridge\",\"index\":2},\"x\":3,\"y\":-1}\n\n{\"type\":\"exit\"}\n")

	tile := cliff.TileRef{TileSet: "Ridge", Index: 2}
	want := []session.Event{
		{Type: session.EventPlace, Tile: &tile, X: 3, Y: -1},
		{Type: session.EventExit},
	}

	var got []session.Event
	for range want {
		ev, err := client.ReadEvent()
		if err != nil {
			t.Fatalf("ReadEvent failed: %v", err)
		}
		got = append(got, ev)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestWebSocketClient_ReadEvent_Malformed(t *testing.T) {
	client := pipe(t, "not json\n{\"x\":1}\n{\"type\":\"undo\"}")

	for i := 0; i < 2; i++ {
		if _, err := client.ReadEvent(); !errors.Is(err, ErrMalformedMessage) {
			t.Errorf("ReadEvent() #%d error = %v, want %v", i, err, ErrMalformedMessage)
		}
	}

	// Bad lines do not poison the stream
	ev, err := client.ReadEvent()
	if err != nil || ev.Type != session.EventUndo {
		t.Errorf("ReadEvent() = %+v, %v after malformed lines", ev, err)
	}
}

func TestWebSocketClient_SendPalette(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan string, 2)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < 2; i++ {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- string(msg)
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	client := NewWebSocketClient(conn)
	p := session.Palette{TileSet: "Ridge", Tiles: []cliff.TileRef{{TileSet: "Ridge", Index: 1}}, Filtered: true}
	if err := client.SendPalette("abc", p); err != nil {
		t.Fatalf("SendPalette failed: %v", err)
	}
	if err := client.SendError(session.ErrNothingToUndo); err != nil {
		t.Fatalf("SendError failed: %v", err)
	}

	wantPalette := `{"type":"palette","session":"abc","tile_set":"Ridge","tiles":[{"tile_set":"Ridge","index":1}],"filtered":true}`
	wantError := `{"type":"error","error":"session: nothing to undo"}`
	for _, want := range []string{wantPalette, wantError} {
		select {
		case got := <-received:
			if strings.TrimSpace(got) != want {
				t.Errorf("message = %s, want %s", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for message")
		}
	}
}

func TestWebSocketClient_RemoteAddr(t *testing.T) {
	client := pipe(t)
	if addr := client.RemoteAddr(); !strings.HasPrefix(addr, "127.0.0.1:") {
		t.Errorf("RemoteAddr() = %q", addr)
	}
}
