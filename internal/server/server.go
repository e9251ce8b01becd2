// Package server accepts downstream WebSocket clients and relays hub
// messages to them. The relay is send-only: after the upgrade handshake no
// inbound client traffic is read.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"pumpfun-relay/internal/hub"
	"pumpfun-relay/internal/observability"
)

const welcomeText = "Connected to Pump.fun WebSocket Service"

// Server upgrades inbound connections and runs one delivery loop per client.
type Server struct {
	hub    *hub.Hub
	logger *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	active   atomic.Int64
}

// New creates a server that relays messages from h.
func New(h *hub.Hub, logger *log.Logger) *Server {
	return &Server{
		hub:    h,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Active returns the number of connected clients. Diagnostic only; nothing
// gates on this value.
func (s *Server) Active() int64 {
	return s.active.Load()
}

// Accepted returns the total number of connections accepted so far.
func (s *Server) Accepted() uint64 {
	return s.nextID.Load()
}

// Handler returns the WebSocket upgrade handler.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleClient)
}

// Run binds 0.0.0.0:port and serves until ctx is cancelled. A bind failure
// is returned to the caller and is fatal to the relay. Shutdown is abrupt:
// in-flight sends to clients may be cut mid-frame.
func (s *Server) Run(ctx context.Context, port int) error {
	addr := fmt.Sprintf("0.0.0.0:%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}
	s.logger.Printf("WebSocket server running on %s", addr)

	srv := &http.Server{Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return ctx.Err()
}

type welcomeFrame struct {
	Type         string `json:"type"`
	ConnectionID uint64 `json:"connection_id"`
	Message      string `json:"message"`
}

// handleClient runs the lifecycle of one client: upgrade, welcome frame,
// delivery loop, teardown. Failures are isolated to this connection.
func (s *Server) handleClient(w http.ResponseWriter, r *http.Request) {
	id := s.nextID.Add(1)

	s.active.Add(1)
	observability.RecordClientConnected()
	defer func() {
		s.active.Add(-1)
		observability.RecordClientDisconnected()
	}()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("Failed to accept WebSocket connection #%d from %s: %v", id, r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	s.logger.Printf("WebSocket connection #%d established from %s", id, r.RemoteAddr)

	sub := s.hub.Subscribe()
	defer sub.Close()

	welcome, _ := json.Marshal(welcomeFrame{
		Type:         "connection_established",
		ConnectionID: id,
		Message:      welcomeText,
	})
	if err := conn.WriteMessage(websocket.TextMessage, welcome); err != nil {
		s.logger.Printf("Failed to send welcome message to connection #%d: %v", id, err)
		return
	}

	var sent uint64
	for msg := range sub.C() {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			s.logger.Printf("Failed to send message to connection #%d: %v", id, err)
			break
		}
		sent++
		observability.RecordMessageSent()
	}

	s.logger.Printf("Connection #%d from %s disconnected. Total messages sent: %d", id, r.RemoteAddr, sent)
}
