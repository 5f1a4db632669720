// Package protocol defines the wire envelope exchanged with the PC peer.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/frudas24/touchlink/internal/gesture"
)

// Message types.
const (
	TypeMouse    = "mouse"
	TypeKeyboard = "keyboard"
	TypeTest     = "test"
)

// Message actions.
const (
	ActMove        = "move"
	ActLeftClick   = "left_click"
	ActRightClick  = "right_click"
	ActDoubleClick = "double_click"
	ActScroll      = "scroll"
	ActPress       = "press"
	ActRelease     = "release"
	ActType        = "type"
	ActCombo       = "combo"
	ActPing        = "ping"
)

// Envelope is a single outbound message.
type Envelope struct {
	Type      string `json:"type"`
	Action    string `json:"action"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// DeltaData carries move and scroll deltas.
type DeltaData struct {
	DeltaX float32 `json:"deltaX"`
	DeltaY float32 `json:"deltaY"`
}

// PointData carries the position of a click.
type PointData struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// KeyData carries a literal key identifier.
type KeyData struct {
	Key string `json:"key"`
}

// TextData carries typed text.
type TextData struct {
	Text string `json:"text"`
}

// ComboData carries a key combination such as "ctrl+c".
type ComboData struct {
	Combination string `json:"combination"`
}

// PingData carries the body of a test ping.
type PingData struct {
	Message string `json:"message"`
}

// Droppable reports whether the envelope belongs to the throttled mouse-move class.
func (e Envelope) Droppable() bool {
	return e.Type == TypeMouse && e.Action == ActMove
}

// Encode serializes the envelope into a text frame.
func Encode(e Envelope) ([]byte, error) {
	if e.Type == "" || e.Action == "" {
		return nil, fmt.Errorf("envelope missing type or action")
	}
	return json.Marshal(e)
}

// FromIntent maps a control intent to its envelope stamped with nowMs.
func FromIntent(in gesture.Intent, nowMs int64) (Envelope, error) {
	switch in.Kind {
	case gesture.KindMove:
		return mouse(ActMove, DeltaData{DeltaX: in.DX, DeltaY: in.DY}, nowMs), nil
	case gesture.KindScroll:
		return mouse(ActScroll, DeltaData{DeltaX: in.DX, DeltaY: in.DY}, nowMs), nil
	case gesture.KindLeftClick:
		return mouse(ActLeftClick, PointData{X: in.X, Y: in.Y}, nowMs), nil
	case gesture.KindRightClick:
		return mouse(ActRightClick, PointData{X: in.X, Y: in.Y}, nowMs), nil
	case gesture.KindDoubleClick:
		return mouse(ActDoubleClick, PointData{X: in.X, Y: in.Y}, nowMs), nil
	case gesture.KindKey:
		action := ActPress
		if in.Phase == gesture.PhaseRelease {
			action = ActRelease
		}
		return keyboard(action, KeyData{Key: in.Key}, nowMs), nil
	case gesture.KindText:
		return keyboard(ActType, TextData{Text: in.Text}, nowMs), nil
	case gesture.KindCombo:
		return keyboard(ActCombo, ComboData{Combination: in.Combo}, nowMs), nil
	default:
		return Envelope{}, fmt.Errorf("unknown intent kind %q", in.Kind)
	}
}

// TestPing builds an explicit test message.
func TestPing(message string, nowMs int64) Envelope {
	return Envelope{Type: TypeTest, Action: ActPing, Data: PingData{Message: message}, Timestamp: nowMs}
}

func mouse(action string, data any, nowMs int64) Envelope {
	return Envelope{Type: TypeMouse, Action: action, Data: data, Timestamp: nowMs}
}

func keyboard(action string, data any, nowMs int64) Envelope {
	return Envelope{Type: TypeKeyboard, Action: action, Data: data, Timestamp: nowMs}
}
