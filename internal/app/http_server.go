// Package app wires configuration, the PC session and the touch surface together.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/frudas24/touchlink/internal/control"
	"github.com/frudas24/touchlink/internal/session"
	"github.com/frudas24/touchlink/internal/web"
)

const actionTimeout = 5 * time.Second

var errNoHost = errors.New("host is required")

// Settings is the user-adjustable part of the configuration.
type Settings struct {
	Sensitivity       float32 `json:"sensitivity"`
	ScrollSensitivity float32 `json:"scrollSensitivity"`
	Gestures          bool    `json:"gestures"`
	Scrolling         bool    `json:"scrolling"`
	RightClick        bool    `json:"rightClick"`
	DoubleClick       bool    `json:"doubleClick"`
}

// SettingsUpdate changes only the fields that are set.
type SettingsUpdate struct {
	Sensitivity       *float32 `json:"sensitivity,omitempty"`
	ScrollSensitivity *float32 `json:"scrollSensitivity,omitempty"`
	Gestures          *bool    `json:"gestures,omitempty"`
	Scrolling         *bool    `json:"scrolling,omitempty"`
	RightClick        *bool    `json:"rightClick,omitempty"`
	DoubleClick       *bool    `json:"doubleClick,omitempty"`
}

type stateResponse struct {
	State            string   `json:"state"`
	Host             string   `json:"host"`
	Port             int      `json:"port"`
	ConnID           string   `json:"connId,omitempty"`
	QueueDepth       int      `json:"queueDepth"`
	Sent             uint64   `json:"sent"`
	Failed           uint64   `json:"failed"`
	Throttled        uint64   `json:"throttled"`
	Coalesced        uint64   `json:"coalesced"`
	Dropped          uint64   `json:"dropped"`
	Lagged           uint64   `json:"lagged"`
	LastError        string   `json:"lastError,omitempty"`
	LastMessage      string   `json:"lastMessage,omitempty"`
	SurfaceConnected bool     `json:"surfaceConnected"`
	Settings         Settings `json:"settings"`
}

type connectRequest struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type actionRequest struct {
	Key     string `json:"key"`
	Phase   string `json:"phase"`
	Text    string `json:"text"`
	Combo   string `json:"combo"`
	Button  string `json:"button"`
	Message string `json:"message"`
}

// RegisterRoutes wires API and static handlers onto the mux.
func (a *App) RegisterRoutes(mux *http.ServeMux, staticDir string) {
	mux.HandleFunc("/api/state", a.handleState)
	mux.HandleFunc("/api/connect", a.handleConnect)
	mux.HandleFunc("/api/disconnect", a.handleDisconnect)
	mux.HandleFunc("/api/settings", a.handleSettings)
	mux.HandleFunc("/api/key", a.action(a.doKey))
	mux.HandleFunc("/api/type", a.action(a.doType))
	mux.HandleFunc("/api/combo", a.action(a.doCombo))
	mux.HandleFunc("/api/click", a.action(a.doClick))
	mux.HandleFunc("/api/test", a.action(a.doTest))
	mux.Handle("/ws/touch", a.Control())
	mux.HandleFunc("/favicon.ico", handleFavicon)
	mux.Handle("/", staticFileServer(staticDir))
}

// handleState returns the connection state, counters and settings.
func (a *App) handleState(w http.ResponseWriter, _ *http.Request) {
	st := a.manager.Stats()
	cfg := a.Config()
	a.mu.Lock()
	lastError, lastMessage := a.lastError, a.lastMessage
	a.mu.Unlock()

	writeJSON(w, http.StatusOK, stateResponse{
		State:            st.State.String(),
		Host:             cfg.Host,
		Port:             cfg.Port,
		ConnID:           st.ConnID,
		QueueDepth:       st.QueueDepth,
		Sent:             st.Sent,
		Failed:           st.Failed,
		Throttled:        st.Throttled,
		Coalesced:        st.Coalesced,
		Dropped:          st.Dropped,
		Lagged:           st.Lagged,
		LastError:        lastError,
		LastMessage:      lastMessage,
		SurfaceConnected: a.control.Active(),
		Settings:         a.Settings(),
	})
}

// handleConnect dials the PC, replacing any current connection.
func (a *App) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req connectRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
	}

	err := a.Connect(r.Context(), req.Host, req.Port)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"state": a.manager.State().String()})
	case errors.Is(err, session.ErrConnectPending):
		writeJSON(w, http.StatusAccepted, map[string]string{"state": a.manager.State().String()})
	case errors.Is(err, errNoHost):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}

// handleDisconnect tears down the PC connection.
func (a *App) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	a.manager.Disconnect()
	writeJSON(w, http.StatusOK, map[string]string{"state": a.manager.State().String()})
}

// handleSettings returns or updates the settings.
func (a *App) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, a.Settings())
	case http.MethodPost:
		var u SettingsUpdate
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, a.UpdateSettings(u))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// action wraps an explicit UI action: decode, run with a timeout, map errors.
func (a *App) action(do func(context.Context, actionRequest) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req actionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), actionTimeout)
		defer cancel()

		var bad *invalidRequest
		err := do(ctx, req)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		case errors.As(err, &bad):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, session.ErrNotConnected):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, context.DeadlineExceeded):
			http.Error(w, err.Error(), http.StatusGatewayTimeout)
		default:
			http.Error(w, err.Error(), http.StatusBadGateway)
		}
	}
}

// invalidRequest marks errors caused by the request itself.
type invalidRequest struct {
	err error
}

func (e *invalidRequest) Error() string { return e.err.Error() }

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return &invalidRequest{err: err}
}

// doKey sends a key press or release.
func (a *App) doKey(ctx context.Context, req actionRequest) error {
	if req.Key == "" {
		return invalid(errors.New("key is required"))
	}
	switch req.Phase {
	case "", "press":
		return a.dispatcher.Press(ctx, req.Key)
	case "release":
		return a.dispatcher.Release(ctx, req.Key)
	default:
		return invalid(errors.New("phase must be press or release"))
	}
}

// doType sends literal text.
func (a *App) doType(ctx context.Context, req actionRequest) error {
	if req.Text == "" {
		return invalid(errors.New("text is required"))
	}
	return a.dispatcher.Type(ctx, req.Text)
}

// doCombo sends a key combination.
func (a *App) doCombo(ctx context.Context, req actionRequest) error {
	if req.Combo == "" {
		return invalid(errors.New("combo is required"))
	}
	return a.dispatcher.Combo(ctx, req.Combo)
}

// doClick sends a quick-action click.
func (a *App) doClick(ctx context.Context, req actionRequest) error {
	b, err := control.ParseButton(req.Button)
	if err != nil {
		return invalid(err)
	}
	return a.dispatcher.Click(ctx, b)
}

// doTest sends a test ping.
func (a *App) doTest(ctx context.Context, req actionRequest) error {
	msg := req.Message
	if msg == "" {
		msg = "Hello from touchlink"
	}
	return a.dispatcher.TestPing(ctx, msg)
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// staticFileServer returns a handler for static assets, preferring disk then embed.
func staticFileServer(staticDir string) http.Handler {
	if staticDir != "" {
		if info, err := os.Stat(staticDir); err == nil && info.IsDir() {
			return http.FileServer(http.Dir(staticDir))
		}
	}

	embedded, err := web.StaticFS()
	if err != nil {
		log.Printf("static assets unavailable: %v", err)
		return http.NotFoundHandler()
	}
	return http.FileServer(http.FS(embedded))
}

// handleFavicon avoids noisy 404s for the default browser request.
func handleFavicon(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
