// Package control handles the touch surface protocol and dispatches intents to the PC.
package control

import (
	"fmt"

	"github.com/frudas24/touchlink/internal/gesture"
)

// EventFromMessage maps a pointer message to a gesture event stamped with nowMs.
// ok is false for messages that are not pointer frames.
func EventFromMessage(msg Message, nowMs int64) (gesture.Event, bool) {
	switch msg.T {
	case "down":
		return gesture.Down(msg.ID, msg.X, msg.Y, nowMs), true
	case "up":
		return gesture.Up(msg.ID, msg.X, msg.Y, nowMs), true
	case "move":
		if len(msg.Pointers) == 0 {
			return gesture.Move(gesture.PointerSample{ID: msg.ID, X: msg.X, Y: msg.Y, TimeMs: nowMs}), true
		}
		samples := make([]gesture.PointerSample, 0, len(msg.Pointers))
		for _, p := range msg.Pointers {
			samples = append(samples, gesture.PointerSample{ID: p.ID, X: p.X, Y: p.Y, TimeMs: nowMs})
		}
		return gesture.Move(samples...), true
	case "cancel":
		return gesture.Cancel(), true
	default:
		return gesture.Event{}, false
	}
}

// IntentFromMessage maps a keyboard or quick-action message to an intent.
// ok is false for messages that carry no intent.
func IntentFromMessage(msg Message) (gesture.Intent, bool, error) {
	switch msg.T {
	case "key":
		if msg.Key == "" {
			return gesture.Intent{}, false, fmt.Errorf("key is required")
		}
		phase, err := parsePhase(msg.Phase)
		if err != nil {
			return gesture.Intent{}, false, err
		}
		return gesture.KeyIntent(msg.Key, phase), true, nil
	case "type":
		if msg.Text == "" {
			return gesture.Intent{}, false, fmt.Errorf("text is required")
		}
		return gesture.TextIntent(msg.Text), true, nil
	case "combo":
		if msg.Combo == "" {
			return gesture.Intent{}, false, fmt.Errorf("combo is required")
		}
		return gesture.ComboIntent(msg.Combo), true, nil
	case "click":
		b, err := ParseButton(msg.Button)
		if err != nil {
			return gesture.Intent{}, false, err
		}
		return b.intent(), true, nil
	default:
		return gesture.Intent{}, false, nil
	}
}

// parsePhase maps a wire phase to a key phase. Empty means press.
func parsePhase(s string) (gesture.Phase, error) {
	switch s {
	case "", "press":
		return gesture.PhasePress, nil
	case "release":
		return gesture.PhaseRelease, nil
	default:
		return gesture.PhasePress, fmt.Errorf("unknown key phase %q", s)
	}
}
