// Package control handles the touch surface protocol and dispatches intents to the PC.
package control

import (
	"context"
	"log/slog"
	"time"

	"github.com/frudas24/touchlink/internal/gesture"
)

const inputBuffer = 256

// SettingsFunc returns the gesture settings applied to the next frame.
type SettingsFunc func() gesture.Settings

// inputItem is either a touch frame or a ready intent, kept in arrival order.
type inputItem struct {
	event  *gesture.Event
	intent *gesture.Intent
}

// InputLoop owns a gesture engine and its deadlines. Frames, intents and timer
// expiries are all handled on the goroutine running Run.
type InputLoop struct {
	engine     *gesture.Engine
	dispatcher *Dispatcher
	settings   SettingsFunc
	items      chan inputItem
	now        func() time.Time
	logger     *slog.Logger
}

// NewInputLoop returns a loop dispatching through d.
func NewInputLoop(d *Dispatcher, settings SettingsFunc) *InputLoop {
	if settings == nil {
		settings = gesture.DefaultSettings
	}
	return &InputLoop{
		engine:     gesture.New(),
		dispatcher: d,
		settings:   settings,
		items:      make(chan inputItem, inputBuffer),
		now:        time.Now,
		logger:     slog.Default(),
	}
}

// SetNowFunc overrides the clock used to stamp frames and fire deadlines.
func (l *InputLoop) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		l.now = fn
	}
}

// NowMs returns the loop clock in milliseconds.
func (l *InputLoop) NowMs() int64 {
	return l.now().UnixMilli()
}

// SubmitEvent queues a touch frame. It blocks only when the loop is saturated.
func (l *InputLoop) SubmitEvent(ctx context.Context, ev gesture.Event) error {
	return l.submit(ctx, inputItem{event: &ev})
}

// SubmitIntent queues an intent behind any pending frames.
func (l *InputLoop) SubmitIntent(ctx context.Context, in gesture.Intent) error {
	return l.submit(ctx, inputItem{intent: &in})
}

func (l *InputLoop) submit(ctx context.Context, it inputItem) error {
	select {
	case l.items <- it:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes input until ctx is done. The engine is reset on exit.
func (l *InputLoop) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()
	defer l.engine.Reset()

	for {
		select {
		case <-ctx.Done():
			return
		case it := <-l.items:
			l.handle(it)
		case <-timer.C:
			l.emit(l.engine.Advance(l.NowMs()))
		}
		l.rearm(timer)
	}
}

// handle feeds one item to the engine or the dispatcher.
func (l *InputLoop) handle(it inputItem) {
	switch {
	case it.event != nil:
		l.emit(l.engine.Handle(*it.event, l.settings()))
	case it.intent != nil:
		l.emit(l.engine.Advance(l.NowMs()))
		l.emit([]gesture.Intent{*it.intent})
	}
}

// emit dispatches intents. Send failures are logged; input keeps flowing.
func (l *InputLoop) emit(intents []gesture.Intent) {
	for _, in := range intents {
		if err := l.dispatcher.Dispatch(in); err != nil {
			l.logger.Debug("control: dispatch failed", "kind", string(in.Kind), "error", err)
		}
	}
}

// rearm points the timer at the engine's next deadline.
func (l *InputLoop) rearm(timer *time.Timer) {
	timer.Stop()
	at, ok := l.engine.NextDeadline()
	if !ok {
		return
	}
	wait := time.Duration(at-l.NowMs()) * time.Millisecond
	if wait < 0 {
		wait = 0
	}
	timer.Reset(wait)
}
