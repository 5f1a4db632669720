// Package app wires configuration, the PC session and the touch surface together.
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/frudas24/touchlink/internal/config"
	"github.com/frudas24/touchlink/internal/control"
	"github.com/frudas24/touchlink/internal/gesture"
	"github.com/frudas24/touchlink/internal/prefs"
	"github.com/frudas24/touchlink/internal/session"
)

// App coordinates the HTTP API, the control websocket and the PC session.
type App struct {
	mu          sync.Mutex
	cfg         config.Config
	logger      *slog.Logger
	manager     *session.Manager
	dispatcher  *control.Dispatcher
	control     *control.Server
	lastError   string
	lastMessage string

	stopWatch func()
	watchDone chan struct{}
}

// New creates a new application with its dependencies wired.
func New(cfg config.Config, dialer session.Dialer, logger *slog.Logger) (*App, error) {
	if dialer == nil {
		return nil, errors.New("dialer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{cfg: cfg, logger: logger}
	a.manager = session.NewManager(dialer,
		session.WithLogger(logger),
		session.WithConnectWait(cfg.ConnectWait()),
		session.WithDialTimeout(cfg.DialTimeout()),
		session.WithKeepalive(cfg.Keepalive()),
		session.WithMoveInterval(cfg.MoveThrottle()),
	)
	a.dispatcher = control.NewDispatcher(a.manager, cfg.Features())
	a.control = control.NewServer(a.dispatcher, a.GestureSettings)
	a.control.SetLogger(logger)
	return a, nil
}

// Start begins watching the session and connects when a host is configured.
// A failed initial connect is logged, not returned; the API can retry.
func (a *App) Start(ctx context.Context) error {
	a.watch()

	a.mu.Lock()
	host, port, auto := a.cfg.Host, a.cfg.Port, a.cfg.AutoConnect
	a.mu.Unlock()
	if !auto || host == "" {
		return nil
	}
	err := a.manager.Connect(ctx, host, port)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrConnectPending):
		a.logger.Info("app: connection still negotiating", "host", host, "port", port)
	default:
		a.logger.Warn("app: initial connect failed", "host", host, "port", port, "error", err)
	}
	return nil
}

// savePrefs persists the remembered part of the configuration. Failures are logged.
func (a *App) savePrefs() {
	a.mu.Lock()
	path := a.cfg.PrefsPath
	p := a.cfg.Prefs()
	a.mu.Unlock()
	if path == "" {
		return
	}
	if err := prefs.Save(path, p); err != nil {
		a.logger.Warn("app: save prefs failed", "path", path, "error", err)
	}
}

// Stop disconnects and stops background work.
func (a *App) Stop() error {
	a.mu.Lock()
	stop, done := a.stopWatch, a.watchDone
	a.stopWatch, a.watchDone = nil, nil
	a.mu.Unlock()

	a.manager.Close()
	if stop != nil {
		stop()
		<-done
	}
	return nil
}

// watch records faults and peer replies for the state endpoint.
func (a *App) watch() {
	faults, cancelFaults := a.manager.SubscribeErrors()
	msgs, cancelMsgs := a.manager.SubscribeMessages()
	done := make(chan struct{})

	a.mu.Lock()
	a.stopWatch = func() {
		cancelFaults()
		cancelMsgs()
	}
	a.watchDone = done
	a.mu.Unlock()

	go func() {
		defer close(done)
		for faults != nil || msgs != nil {
			select {
			case f, ok := <-faults:
				if !ok {
					faults = nil
					continue
				}
				a.mu.Lock()
				a.lastError = f.Error()
				a.mu.Unlock()
			case in, ok := <-msgs:
				if !ok {
					msgs = nil
					continue
				}
				if in.IsError() {
					a.logger.Warn("app: peer reported error", "message", in.Message)
				}
				a.mu.Lock()
				a.lastMessage = string(in.Raw)
				a.mu.Unlock()
			}
		}
	}()
}

// Connect dials the PC. Empty host or zero port fall back to the configuration.
func (a *App) Connect(ctx context.Context, host string, port int) error {
	a.mu.Lock()
	if host == "" {
		host = a.cfg.Host
	}
	if port == 0 {
		port = a.cfg.Port
	}
	a.mu.Unlock()
	if host == "" {
		return errNoHost
	}

	err := a.manager.Connect(ctx, host, port)
	if err == nil || errors.Is(err, session.ErrConnectPending) {
		a.mu.Lock()
		a.cfg.Host, a.cfg.Port = host, port
		a.mu.Unlock()
		a.savePrefs()
	}
	return err
}

// GestureSettings returns the current engine settings.
func (a *App) GestureSettings() gesture.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.GestureSettings()
}

// Config returns a copy of the current configuration.
func (a *App) Config() config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// UpdateSettings applies a partial settings change.
func (a *App) UpdateSettings(u SettingsUpdate) Settings {
	a.mu.Lock()
	if u.Sensitivity != nil {
		a.cfg.Sensitivity = gesture.ClampSensitivity(*u.Sensitivity)
	}
	if u.ScrollSensitivity != nil {
		a.cfg.ScrollSensitivity = gesture.ClampScrollSensitivity(*u.ScrollSensitivity)
	}
	if u.Gestures != nil {
		a.cfg.Gestures = *u.Gestures
	}
	if u.Scrolling != nil {
		a.cfg.Scrolling = *u.Scrolling
	}
	if u.RightClick != nil {
		a.cfg.RightClick = *u.RightClick
	}
	if u.DoubleClick != nil {
		a.cfg.DoubleClick = *u.DoubleClick
	}
	features := a.cfg.Features()
	a.mu.Unlock()

	a.dispatcher.SetFeatures(features)
	a.savePrefs()
	return a.Settings()
}

// Settings returns the user-adjustable settings.
func (a *App) Settings() Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Settings{
		Sensitivity:       a.cfg.Sensitivity,
		ScrollSensitivity: a.cfg.ScrollSensitivity,
		Gestures:          a.cfg.Gestures,
		Scrolling:         a.cfg.Scrolling,
		RightClick:        a.cfg.RightClick,
		DoubleClick:       a.cfg.DoubleClick,
	}
}

// Manager returns the PC session manager.
func (a *App) Manager() *session.Manager {
	return a.manager
}

// Dispatcher returns the command dispatcher.
func (a *App) Dispatcher() *control.Dispatcher {
	return a.dispatcher
}

// Control returns the control websocket handler.
func (a *App) Control() *control.Server {
	return a.control
}
