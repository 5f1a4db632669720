// Package control handles the touch surface protocol and dispatches intents to the PC.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Server handles the websocket the touch surface streams input into.
type Server struct {
	mu         sync.Mutex
	upgrader   websocket.Upgrader
	dispatcher *Dispatcher
	settings   SettingsFunc
	now        func() time.Time
	logger     *slog.Logger
	conn       *websocket.Conn
}

// NewServer creates a control websocket server.
func NewServer(dispatcher *Dispatcher, settings SettingsFunc) *Server {
	return &Server{
		dispatcher: dispatcher,
		settings:   settings,
		now:        time.Now,
		logger:     slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// SetNowFunc overrides the clock used to stamp incoming frames.
func (s *Server) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// SetLogger replaces the logger.
func (s *Server) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// ServeHTTP upgrades the connection and processes control messages.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	if err := s.acceptConn(conn); err != nil {
		s.logger.Warn("control: rejecting connection", "remote", r.RemoteAddr, "error", err)
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}
	defer s.cleanupConn(conn)

	ctx, cancel := context.WithCancel(context.Background())
	loop := NewInputLoop(s.dispatcher, s.settings)
	loop.SetNowFunc(s.now)
	loop.logger = s.logger
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	s.logger.Info("control: surface connected", "remote", r.RemoteAddr)
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			s.logger.Info("control: surface disconnected", "remote", r.RemoteAddr, "error", err)
			return
		}
		if err := s.handleMessage(ctx, loop, msg); err != nil {
			s.logger.Debug("control: message rejected", "t", msg.T, "error", err)
		}
	}
}

// acceptConn ensures only one active control connection exists.
func (s *Server) acceptConn(conn *websocket.Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return fmt.Errorf("control connection already active")
	}
	s.conn = conn
	return nil
}

// cleanupConn clears the active connection when closed.
func (s *Server) cleanupConn(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	_ = conn.Close()
}

// Active reports whether a surface is connected.
func (s *Server) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// handleMessage routes a single control message into the input loop.
func (s *Server) handleMessage(ctx context.Context, loop *InputLoop, msg Message) error {
	if ev, ok := EventFromMessage(msg, loop.NowMs()); ok {
		return loop.SubmitEvent(ctx, ev)
	}
	if msg.T == "test" {
		text := msg.Text
		if text == "" {
			text = "Hello from touchlink"
		}
		return s.dispatcher.PostTestPing(text)
	}
	in, ok, err := IntentFromMessage(msg)
	if err != nil || !ok {
		return err
	}
	return loop.SubmitIntent(ctx, in)
}
