package broker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/parlor/internal/config"
)

// Server exposes the websocket endpoint and ties accepted connections to the
// hub and command handler. It implements the lifecycle Service contract.
type Server struct {
	cfg      config.ServerConfig
	hub      *Hub
	handler  *Handler
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	listener net.Listener
	httpSrv  *http.Server
}

// NewServer creates a websocket server.
//
// Precondition: hub, handler, and logger must be non-nil.
func NewServer(cfg config.ServerConfig, hub *Hub, handler *Handler, logger *zap.Logger) *Server {
	return &Server{
		cfg:     cfg,
		hub:     hub,
		handler: handler,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The broker fronts browser clients from arbitrary origins, the
			// same posture as the system it replaces.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades an HTTP request to a websocket connection and starts its
// pumps. Exposed as a handler so tests can mount it on their own servers.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	c := s.hub.register(conn)
	go c.writePump()
	go c.readPump(s.handler)
}

// Start listens on the configured address and serves until Stop is called.
// This method blocks until the server is stopped.
//
// Postcondition: The listener is closed when this method returns.
func (s *Server) Start() error {
	start := time.Now()

	listener, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.ServeWS)

	srv := &http.Server{Handler: mux}

	s.mu.Lock()
	s.listener = listener
	s.httpSrv = srv
	s.mu.Unlock()

	s.logger.Info("websocket server listening",
		zap.String("addr", listener.Addr().String()),
		zap.Duration("startup", time.Since(start)),
	)

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving websocket endpoint: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server and force-closes the remaining
// websocket connections.
func (s *Server) Stop() {
	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Warn("http shutdown", zap.Error(err))
		}
	}

	s.hub.closeAll()
	s.logger.Info("websocket server stopped")
}

// Addr returns the actual listening address, or empty string if not yet listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
