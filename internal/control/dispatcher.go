// Package control handles the touch surface protocol and dispatches intents to the PC.
package control

import (
	"context"
	"sync"
	"time"

	"github.com/frudas24/touchlink/internal/gesture"
	"github.com/frudas24/touchlink/internal/protocol"
)

// Sender delivers envelopes to the PC. *session.Manager satisfies it.
type Sender interface {
	Send(ctx context.Context, env protocol.Envelope, reliable bool) error
	Post(env protocol.Envelope) error
}

// Features toggles optional intents. Disabled intents are dropped silently.
type Features struct {
	Scrolling   bool `json:"scrolling" yaml:"scrolling"`
	RightClick  bool `json:"rightClick" yaml:"right_click"`
	DoubleClick bool `json:"doubleClick" yaml:"double_click"`
}

// DefaultFeatures enables everything.
func DefaultFeatures() Features {
	return Features{Scrolling: true, RightClick: true, DoubleClick: true}
}

// Dispatcher turns intents into envelopes and hands them to the sender.
type Dispatcher struct {
	sender Sender

	mu       sync.Mutex
	features Features
	now      func() time.Time
}

// NewDispatcher returns a dispatcher sending through sender.
func NewDispatcher(sender Sender, features Features) *Dispatcher {
	return &Dispatcher{sender: sender, features: features, now: time.Now}
}

// SetNowFunc overrides the clock used for envelope timestamps.
func (d *Dispatcher) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = fn
}

// Features returns the current toggles.
func (d *Dispatcher) Features() Features {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.features
}

// SetFeatures replaces the toggles.
func (d *Dispatcher) SetFeatures(f Features) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.features = f
}

// Dispatch sends a gesture intent. Moves are throttled fire-and-forget; every
// other intent is queued reliably without waiting for the write.
func (d *Dispatcher) Dispatch(in gesture.Intent) error {
	env, ok, err := d.envelope(in)
	if err != nil || !ok {
		return err
	}
	if env.Droppable() {
		return d.sender.Send(context.Background(), env, false)
	}
	return d.sender.Post(env)
}

// send delivers an explicit UI action and waits for the write.
func (d *Dispatcher) send(ctx context.Context, in gesture.Intent) error {
	env, ok, err := d.envelope(in)
	if err != nil || !ok {
		return err
	}
	return d.sender.Send(ctx, env, true)
}

// envelope applies the feature toggles and builds the envelope.
func (d *Dispatcher) envelope(in gesture.Intent) (protocol.Envelope, bool, error) {
	d.mu.Lock()
	f := d.features
	now := d.now()
	d.mu.Unlock()

	if !f.allows(in.Kind) {
		return protocol.Envelope{}, false, nil
	}
	env, err := protocol.FromIntent(in, now.UnixMilli())
	if err != nil {
		return protocol.Envelope{}, false, err
	}
	return env, true, nil
}

// allows reports whether an intent kind passes the toggles.
func (f Features) allows(k gesture.Kind) bool {
	switch k {
	case gesture.KindScroll:
		return f.Scrolling
	case gesture.KindRightClick:
		return f.RightClick
	case gesture.KindDoubleClick:
		return f.DoubleClick
	default:
		return true
	}
}

// nowMs returns the dispatcher clock in milliseconds.
func (d *Dispatcher) nowMs() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.now().UnixMilli()
}
