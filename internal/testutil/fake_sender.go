// Package testutil provides fakes shared by package tests.
package testutil

import (
	"context"
	"sync"

	"github.com/frudas24/touchlink/internal/protocol"
)

// Sent records a single outbound envelope.
type Sent struct {
	Env      protocol.Envelope
	Reliable bool
	Posted   bool
}

// FakeSender records envelopes instead of sending them.
type FakeSender struct {
	mu   sync.Mutex
	sent []Sent
	Err  error
}

// Send records a sent envelope.
func (f *FakeSender) Send(_ context.Context, env protocol.Envelope, reliable bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.sent = append(f.sent, Sent{Env: env, Reliable: reliable})
	return nil
}

// Post records a posted envelope.
func (f *FakeSender) Post(env protocol.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.sent = append(f.sent, Sent{Env: env, Reliable: true, Posted: true})
	return nil
}

// Sent returns a copy of the recorded envelopes.
func (f *FakeSender) Sent() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sent(nil), f.sent...)
}

// Actions returns "type/action" for each recorded envelope.
func (f *FakeSender) Actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.Env.Type+"/"+s.Env.Action)
	}
	return out
}
