// Package protocol defines the wire envelope exchanged with the PC peer.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrMalformedFrame is returned for inbound frames that are not JSON objects.
var ErrMalformedFrame = errors.New("malformed inbound frame")

// Inbound is a message received from the PC peer.
type Inbound struct {
	Type    string          `json:"type"`
	Action  string          `json:"action,omitempty"`
	Status  string          `json:"status,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	// Timestamp is kept raw because peers send either epoch millis or ISO strings.
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
	Raw       []byte          `json:"-"`
}

// DecodeInbound parses a text frame from the peer.
func DecodeInbound(frame []byte) (Inbound, error) {
	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Inbound{}, ErrMalformedFrame
	}
	var in Inbound
	if err := json.Unmarshal(trimmed, &in); err != nil {
		return Inbound{}, errors.Join(ErrMalformedFrame, err)
	}
	in.Raw = append([]byte(nil), frame...)
	return in, nil
}

// IsError reports whether the peer flagged the message as an error.
func (in Inbound) IsError() bool {
	return in.Type == "error" || in.Status == "error"
}
