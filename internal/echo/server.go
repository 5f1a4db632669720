// Package echo implements a PC-side peer that acknowledges touchlink messages.
// It stands in for the real input agent in tests and local trials.
package echo

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Name is reported in test ping responses.
const Name = "touchlink-echo"

// Response is a frame sent back to the client.
type Response struct {
	Type      string `json:"type"`
	Action    string `json:"action,omitempty"`
	Status    string `json:"status,omitempty"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Server acknowledges every message it receives. Any number of clients may connect.
type Server struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewServer returns an echo peer logging to logger (slog.Default when nil).
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  logger,
		now:     time.Now,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// SetNowFunc overrides the clock used for response timestamps.
func (s *Server) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// ServeHTTP upgrades the connection and answers each text frame.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	s.logger.Info("echo: client connected", "remote", r.RemoteAddr)
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			s.logger.Info("echo: client disconnected", "remote", r.RemoteAddr, "error", err)
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		out, err := json.Marshal(s.Respond(data))
		if err != nil {
			s.logger.Error("echo: encode response", "error", err)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			s.logger.Warn("echo: write failed", "remote", r.RemoteAddr, "error", err)
			return
		}
	}
}

// inbound is the subset of a client frame the peer inspects. Keyboard fields
// are read from data first and from the top level second.
type inbound struct {
	Type        string          `json:"type"`
	Action      string          `json:"action"`
	Data        json.RawMessage `json:"data"`
	Key         string          `json:"key"`
	Text        string          `json:"text"`
	Combination string          `json:"combination"`
}

type keyFields struct {
	Key         string `json:"key"`
	Text        string `json:"text"`
	Combination string `json:"combination"`
}

// Respond builds the reply to one client frame.
func (s *Server) Respond(frame []byte) Response {
	var raw map[string]any
	if err := json.Unmarshal(frame, &raw); err != nil {
		s.logger.Warn("echo: invalid json", "error", err)
		return s.reply(Response{Type: "error", Message: "Invalid JSON format"})
	}
	var in inbound
	_ = json.Unmarshal(frame, &in)
	s.logger.Info("echo: received", "type", in.Type, "action", in.Action)

	switch {
	case in.Type == "test" && in.Action == "ping":
		var echoData any = map[string]any{}
		if v, ok := raw["data"]; ok {
			echoData = v
		}
		return s.reply(Response{
			Type:    "pong",
			Action:  "response",
			Status:  "success",
			Message: "pong",
			Data: map[string]any{
				"server":      Name,
				"version":     "1.0",
				"echo_data":   echoData,
				"server_time": s.timestamp(),
			},
		})
	case in.Type == "ping" && in.Action == "keepalive":
		return s.reply(Response{Type: "pong", Action: "keepalive"})
	case in.Type == "mouse":
		return s.reply(Response{
			Type:    "response",
			Action:  "mouse_ack",
			Status:  "success",
			Message: fmt.Sprintf("Mouse %s processed", in.Action),
		})
	case in.Type == "keyboard":
		return s.reply(Response{
			Type:    "response",
			Action:  "keyboard_ack",
			Status:  "success",
			Message: keyboardMessage(in),
		})
	default:
		return s.reply(Response{Type: "response", Action: "echo", Status: "success", Data: raw})
	}
}

// keyboardMessage describes a keyboard frame.
func keyboardMessage(in inbound) string {
	var f keyFields
	if len(in.Data) > 0 {
		_ = json.Unmarshal(in.Data, &f)
	}
	if f.Key == "" {
		f.Key = in.Key
	}
	if f.Text == "" {
		f.Text = in.Text
	}
	if f.Combination == "" {
		f.Combination = in.Combination
	}
	switch in.Action {
	case "press", "release":
		if f.Key == "" {
			f.Key = "unknown"
		}
		return fmt.Sprintf("Key %s: %s", in.Action, f.Key)
	case "type":
		return fmt.Sprintf("Text typed: %s", f.Text)
	case "combo":
		return fmt.Sprintf("Key combo: %s", f.Combination)
	default:
		return fmt.Sprintf("Unknown keyboard action: %s", in.Action)
	}
}

func (s *Server) reply(r Response) Response {
	r.Timestamp = s.timestamp()
	return r
}

func (s *Server) timestamp() string {
	return s.now().Format(time.RFC3339Nano)
}
