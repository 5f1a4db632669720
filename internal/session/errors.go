// Package session owns the realtime connection to the PC peer.
package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when a reliable send has no live connection.
	ErrNotConnected = errors.New("not connected")
	// ErrConnectPending is returned when the dial is still in flight after the connect wait.
	ErrConnectPending = errors.New("connection still negotiating")
	// ErrSuperseded is reported to a connect attempt cancelled by a newer connect or a disconnect.
	ErrSuperseded = errors.New("connect attempt superseded")
)

// FaultKind classifies transport faults.
type FaultKind int

const (
	// FaultConnect is a failed dial or handshake.
	FaultConnect FaultKind = iota
	// FaultSend is a failed write or keepalive probe.
	FaultSend
	// FaultClosedByPeer is a connection closed or dropped by the peer.
	FaultClosedByPeer
	// FaultMalformedFrame is an inbound frame that could not be decoded.
	FaultMalformedFrame
)

// String returns the taxonomy name of the kind.
func (k FaultKind) String() string {
	switch k {
	case FaultConnect:
		return "TransportConnectFailure"
	case FaultSend:
		return "TransportSendFailure"
	case FaultClosedByPeer:
		return "TransportClosedByPeer"
	case FaultMalformedFrame:
		return "MalformedInboundFrame"
	default:
		return "UnknownFault"
	}
}

// Fault is a transport-level failure published on the error stream.
type Fault struct {
	Kind   FaultKind
	ConnID string
	Err    error
}

// Error implements error.
func (f *Fault) Error() string {
	if f.Err == nil {
		return f.Kind.String()
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

// Unwrap returns the underlying error.
func (f *Fault) Unwrap() error {
	return f.Err
}
