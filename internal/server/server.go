// Package server exposes editing sessions over WebSocket: each connection
// drives its own session and receives the palette whenever it changes.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lawnchairsociety/cliffbrush/internal/cliff"
	"github.com/lawnchairsociety/cliffbrush/internal/config"
	"github.com/lawnchairsociety/cliffbrush/internal/history"
	"github.com/lawnchairsociety/cliffbrush/internal/logger"
	"github.com/lawnchairsociety/cliffbrush/internal/session"
	"github.com/lawnchairsociety/cliffbrush/internal/theater"
)

// Store journals sessions so they can be resumed.
type Store interface {
	session.Recorder
	LoadPlacements(id string) ([]history.PlacedTile, error)
	SessionTileSet(id string) (string, error)
}

type Server struct {
	rules   *cliff.RuleSet
	theater *theater.Theater
	cfg     *config.Config
	store   Store

	connLimiter *ConnLimiter
	metrics     *Metrics
	upgrader    websocket.Upgrader

	mu           sync.Mutex
	clients      map[*WebSocketClient]struct{}
	httpServer   *http.Server
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewServer creates a palette service over a shared rule set and theater.
// A nil cfg means defaults.
func NewServer(rules *cliff.RuleSet, th *theater.Theater, cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	s := &Server{
		rules:       rules,
		theater:     th,
		cfg:         cfg,
		connLimiter: NewConnLimiter(cfg.Connections),
		metrics:     NewMetrics(),
		clients:     make(map[*WebSocketClient]struct{}),
		shutdown:    make(chan struct{}),
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := s.cfg.WebSocket.IsOriginAllowed(origin, r.Host)
			if !allowed {
				logger.Warning("WebSocket connection rejected - origin not allowed",
					"origin", origin,
					"host", r.Host,
					"remote_addr", r.RemoteAddr)
				s.metrics.connectionRejected("origin")
			}
			return allowed
		},
	}

	return s
}

// SetStore enables journaling and session resume.
func (s *Server) SetStore(store Store) {
	s.store = store
}

// Metrics returns the service collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler returns the HTTP routes of the service.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocketUpgrade)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})
	if s.cfg.Metrics.Enabled {
		mux.Handle(s.cfg.Metrics.Path, s.metrics.Handler())
	}
	return mux
}

// Start serves on address until Shutdown is called.
func (s *Server) Start(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return s.Serve(listener)
}

// Serve accepts connections on listener until Shutdown is called.
func (s *Server) Serve(listener net.Listener) error {
	srv := &http.Server{Handler: s.Handler()}

	s.mu.Lock()
	select {
	case <-s.shutdown:
		s.mu.Unlock()
		listener.Close()
		return nil
	default:
	}
	s.httpServer = srv
	s.mu.Unlock()

	logger.Info("Palette service listening", "address", listener.Addr().String(), "metrics", s.cfg.Metrics.Enabled)

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}

// handleWebSocketUpgrade upgrades an HTTP connection to WebSocket. The
// optional "session" query parameter resumes a journaled session and
// "tile_set" chooses the initial tile set.
func (s *Server) handleWebSocketUpgrade(w http.ResponseWriter, r *http.Request) {
	resumeID := r.URL.Query().Get("session")
	if resumeID != "" {
		if _, err := uuid.Parse(resumeID); err != nil {
			s.metrics.connectionRejected("bad_session")
			http.Error(w, "invalid session id", http.StatusBadRequest)
			return
		}
	}
	tileSet := r.URL.Query().Get("tile_set")
	if tileSet != "" {
		if _, ok := s.theater.TileSet(tileSet); !ok {
			s.metrics.connectionRejected("bad_tile_set")
			http.Error(w, "unknown tile set", http.StatusBadRequest)
			return
		}
	}

	clientIP := s.connLimiter.ClientIP(r)
	release, ok := s.connLimiter.Acquire(clientIP)
	if !ok {
		logger.Warning("WebSocket connection rejected - limit exceeded",
			"remote_addr", r.RemoteAddr,
			"client_ip", clientIP)
		s.metrics.connectionRejected("limit")
		http.Error(w, "Too many connections. Please try again later.", http.StatusTooManyRequests)
		return
	}

	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", "error", err)
		release()
		return
	}
	wsConn.SetReadLimit(s.cfg.WebSocket.MaxMessageSize)

	go s.handleWebSocketConnection(wsConn, release, resumeID, tileSet)
}

// handleWebSocketConnection runs one session until the client goes away.
func (s *Server) handleWebSocketConnection(wsConn *websocket.Conn, release func(), resumeID, tileSet string) {
	client := NewWebSocketClient(wsConn)
	defer func() {
		s.untrack(client)
		release()
		client.Close()
	}()
	if !s.track(client) {
		return
	}

	sess, err := s.openSession(&connListener{s: s, client: client}, resumeID, tileSet)
	if err != nil {
		logger.Error("Failed to open session", "remote_addr", client.RemoteAddr(), "error", err)
		client.SendError(err)
		return
	}
	s.metrics.sessionOpened()
	defer func() {
		sess.Close()
		s.metrics.sessionClosed()
		logger.Info("Session disconnected", "session", sess.ID())
	}()

	logger.Info("Session connected", "session", sess.ID(), "remote_addr", client.RemoteAddr(), "resumed", resumeID != "")

	// The first palette tells the client its session id.
	s.sendPalette(client, sess.ID(), sess.Palette())

	for {
		ev, err := client.ReadEvent()
		if errors.Is(err, ErrMalformedMessage) {
			s.metrics.eventFailed()
			client.SendError(err)
			continue
		}
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warning("WebSocket read failed", "session", sess.ID(), "error", err)
			}
			return
		}

		if err := ev.Apply(sess); err != nil {
			logger.Debug("Event rejected", "session", sess.ID(), "type", ev.Type, "error", err)
			s.metrics.eventFailed()
			client.SendError(err)
		}
	}
}

// connListener forwards palette changes to the client once the session is
// live. Palettes computed while restoring are superseded by the initial one.
type connListener struct {
	s      *Server
	client *WebSocketClient
	live   bool
}

func (l *connListener) PaletteChanged(id string, p session.Palette) {
	if l.live {
		l.s.sendPalette(l.client, id, p)
	}
}

func (s *Server) openSession(listener *connListener, resumeID, tileSet string) (*session.Session, error) {
	opts := session.Options{
		ID:            resumeID,
		TileSet:       tileSet,
		FilterEnabled: s.cfg.Filter.Enabled,
		Listener:      listener,
	}

	var restored []history.PlacedTile
	if s.store != nil {
		opts.Recorder = s.store
		if resumeID != "" && tileSet == "" {
			journaled, err := s.store.SessionTileSet(resumeID)
			if err != nil {
				return nil, fmt.Errorf("failed to resume session: %w", err)
			}
			if _, ok := s.theater.TileSet(journaled); ok {
				opts.TileSet = journaled
			} else if journaled != "" {
				logger.Warning("Journaled tile set is not in the theater", "session", resumeID, "tile_set", journaled)
			}
		}
		if resumeID != "" {
			placements, err := s.store.LoadPlacements(resumeID)
			if err != nil {
				return nil, fmt.Errorf("failed to resume session: %w", err)
			}
			restored = placements
		}
	}

	sess, err := session.New(s.rules, s.theater, opts)
	if err != nil {
		return nil, err
	}
	if len(restored) > 0 {
		sess.Restore(restored)
	}
	listener.live = true
	return sess, nil
}

func (s *Server) sendPalette(client *WebSocketClient, id string, p session.Palette) {
	if err := client.SendPalette(id, p); err != nil {
		logger.Warning("Failed to send palette", "session", id, "error", err)
		return
	}
	s.metrics.paletteSent(p.TileSet, len(p.Tiles))
}

func (s *Server) track(client *WebSocketClient) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.shutdown:
		return false
	default:
	}
	s.clients[client] = struct{}{}
	return true
}

func (s *Server) untrack(client *WebSocketClient) {
	s.mu.Lock()
	delete(s.clients, client)
	s.mu.Unlock()
}

// ActiveSessions returns the number of connected clients.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Shutdown stops accepting connections and disconnects every client.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		close(s.shutdown)
		srv := s.httpServer
		clients := make([]*WebSocketClient, 0, len(s.clients))
		for c := range s.clients {
			clients = append(clients, c)
		}
		s.mu.Unlock()

		if srv != nil {
			err = srv.Shutdown(ctx)
		}
		// Hijacked connections are not closed by http.Server.Shutdown
		for _, c := range clients {
			c.Close()
		}

		logger.Info("Palette service shut down", "sessions", len(clients))
	})
	return err
}
