package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lawnchairsociety/cliffbrush/internal/session"
)

// ErrMalformedMessage marks a client message that is not a valid event. The
// connection stays usable after it.
var ErrMalformedMessage = errors.New("server: malformed message")

const writeWait = 10 * time.Second

// Outbound message types.
const (
	msgPalette = "palette"
	msgError   = "error"
)

type paletteMessage struct {
	Type    string `json:"type"`
	Session string `json:"session"`
	session.Palette
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// WebSocketClient wraps a WebSocket connection carrying JSON events.
// One goroutine may read while others write.
type WebSocketClient struct {
	conn    *websocket.Conn
	readBuf [][]byte   // remaining lines of a multi-line message
	writeMu sync.Mutex // gorilla allows one concurrent writer
}

// NewWebSocketClient creates a new WebSocketClient from a WebSocket connection.
func NewWebSocketClient(conn *websocket.Conn) *WebSocketClient {
	return &WebSocketClient{conn: conn}
}

// ReadEvent blocks for the next event. A message may hold several events,
// one JSON object per line; they are returned one at a time. Blank messages
// are skipped.
func (c *WebSocketClient) ReadEvent() (session.Event, error) {
	for len(c.readBuf) == 0 {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return session.Event{}, err
		}
		for _, line := range bytes.Split(message, []byte("\n")) {
			if line = bytes.TrimSpace(line); len(line) > 0 {
				c.readBuf = append(c.readBuf, line)
			}
		}
	}

	line := c.readBuf[0]
	c.readBuf = c.readBuf[1:]

	var ev session.Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return session.Event{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if ev.Type == "" {
		return session.Event{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}
	return ev, nil
}

// SendPalette pushes a palette to the client.
func (c *WebSocketClient) SendPalette(id string, p session.Palette) error {
	return c.writeJSON(paletteMessage{Type: msgPalette, Session: id, Palette: p})
}

// SendError reports a rejected event to the client.
func (c *WebSocketClient) SendError(err error) error {
	return c.writeJSON(errorMessage{Type: msgError, Error: err.Error()})
}

func (c *WebSocketClient) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// Close sends a close frame and closes the connection.
func (c *WebSocketClient) Close() error {
	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}

// RemoteAddr returns the remote address as a string.
func (c *WebSocketClient) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
