// Package control handles the touch surface protocol and dispatches intents to the PC.
package control

// Pointer is one contact in a move frame.
type Pointer struct {
	ID int     `json:"id"`
	X  float32 `json:"x"`
	Y  float32 `json:"y"`
}

// Message is a control websocket payload sent by the touch surface.
type Message struct {
	T        string    `json:"t"`
	ID       int       `json:"id,omitempty"`
	X        float32   `json:"x,omitempty"`
	Y        float32   `json:"y,omitempty"`
	Pointers []Pointer `json:"pointers,omitempty"`
	Key      string    `json:"key,omitempty"`
	Phase    string    `json:"phase,omitempty"`
	Text     string    `json:"text,omitempty"`
	Combo    string    `json:"combo,omitempty"`
	Button   string    `json:"button,omitempty"`
}
