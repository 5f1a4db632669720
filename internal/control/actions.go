// Package control handles the touch surface protocol and dispatches intents to the PC.
package control

import (
	"context"
	"fmt"

	"github.com/frudas24/touchlink/internal/gesture"
	"github.com/frudas24/touchlink/internal/protocol"
)

// Button identifies a quick-action click.
type Button string

const (
	// ButtonLeft performs a left click.
	ButtonLeft Button = "left"
	// ButtonRight performs a right click.
	ButtonRight Button = "right"
	// ButtonDouble performs a double click.
	ButtonDouble Button = "double"
)

// ParseButton validates a button name. Empty means left.
func ParseButton(s string) (Button, error) {
	switch Button(s) {
	case "", ButtonLeft:
		return ButtonLeft, nil
	case ButtonRight, ButtonDouble:
		return Button(s), nil
	default:
		return ButtonLeft, fmt.Errorf("unknown button %q", s)
	}
}

// intent returns the click intent at the origin.
func (b Button) intent() gesture.Intent {
	switch b {
	case ButtonRight:
		return gesture.Intent{Kind: gesture.KindRightClick}
	case ButtonDouble:
		return gesture.Intent{Kind: gesture.KindDoubleClick}
	default:
		return gesture.Intent{Kind: gesture.KindLeftClick}
	}
}

// Press sends a key press.
func (d *Dispatcher) Press(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}
	return d.send(ctx, gesture.KeyIntent(key, gesture.PhasePress))
}

// Release sends a key release.
func (d *Dispatcher) Release(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}
	return d.send(ctx, gesture.KeyIntent(key, gesture.PhaseRelease))
}

// Type sends literal text.
func (d *Dispatcher) Type(ctx context.Context, text string) error {
	if text == "" {
		return fmt.Errorf("text is required")
	}
	return d.send(ctx, gesture.TextIntent(text))
}

// Combo sends a key combination such as "ctrl+c".
func (d *Dispatcher) Combo(ctx context.Context, combo string) error {
	if combo == "" {
		return fmt.Errorf("combo is required")
	}
	return d.send(ctx, gesture.ComboIntent(combo))
}

// Click sends a quick-action click. Disabled buttons are dropped.
func (d *Dispatcher) Click(ctx context.Context, b Button) error {
	return d.send(ctx, b.intent())
}

// TestPing sends a test message and waits for the write.
func (d *Dispatcher) TestPing(ctx context.Context, message string) error {
	return d.sender.Send(ctx, protocol.TestPing(message, d.nowMs()), true)
}

// PostTestPing queues a test message without waiting.
func (d *Dispatcher) PostTestPing(message string) error {
	return d.sender.Post(protocol.TestPing(message, d.nowMs()))
}
