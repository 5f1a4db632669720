// Package session owns the realtime connection to the PC peer.
package session

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultPort is used when Connect is called with port 0.
const DefaultPort = 8080

// Conn is the live transport. *websocket.Conn satisfies it; WriteControl must be
// safe to call concurrently with the other methods. The pong handler runs inside
// ReadMessage.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Dialer opens a transport to host:port.
type Dialer interface {
	Dial(ctx context.Context, host string, port int) (Conn, error)
}

// WSDialer dials the PC peer over WebSocket.
type WSDialer struct {
	// Path is the request path, "/" when empty.
	Path string
	// HandshakeTimeout bounds the opening handshake.
	HandshakeTimeout time.Duration
}

// Dial opens ws://host:port/path.
func (d WSDialer) Dial(ctx context.Context, host string, port int) (Conn, error) {
	path := d.Path
	if path == "" {
		path = "/"
	}
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(host, strconv.Itoa(port)), Path: path}
	dialer := websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: d.HandshakeTimeout,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}
