// Package testutil provides fakes shared by package tests.
package testutil

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"time"

	"github.com/frudas24/touchlink/internal/session"
	"github.com/gorilla/websocket"
)

type frame struct {
	mt   int
	data []byte
	err  error
}

// FakeConn is an in-memory session.Conn. Inbound frames are fed with Deliver;
// outbound frames are recorded for Writes. Pings are answered with a pong
// unless the peer is silenced.
type FakeConn struct {
	mu           sync.Mutex
	writes       [][]byte
	controls     []int
	writeErr     error
	pingErr      error
	closed       bool
	silent       bool
	writeGate    chan struct{}
	readDeadline time.Time
	pong         func(string) error

	inbound   chan frame
	rearm     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewFakeConn returns an open fake connection.
func NewFakeConn() *FakeConn {
	return &FakeConn{
		inbound: make(chan frame, 64),
		rearm:   make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// ReadMessage returns the next delivered frame, a timeout once the read
// deadline passes, or an error once closed.
func (c *FakeConn) ReadMessage() (int, []byte, error) {
	for {
		c.mu.Lock()
		deadline := c.readDeadline
		c.mu.Unlock()

		var expired <-chan time.Time
		var timer *time.Timer
		if !deadline.IsZero() {
			timer = time.NewTimer(time.Until(deadline))
			expired = timer.C
		}
		select {
		case f := <-c.inbound:
			stopTimer(timer)
			return f.mt, f.data, f.err
		case <-c.done:
			stopTimer(timer)
			return 0, nil, net.ErrClosed
		case <-c.rearm:
			stopTimer(timer)
		case <-expired:
			return 0, nil, os.ErrDeadlineExceeded
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// WriteMessage records a data frame. It blocks while writes are held.
func (c *FakeConn) WriteMessage(mt int, data []byte) error {
	c.mu.Lock()
	gate := c.writeGate
	c.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-c.done:
			return net.ErrClosed
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return net.ErrClosed
	}
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

// WriteControl records a control frame and answers pings.
func (c *FakeConn) WriteControl(mt int, _ []byte, _ time.Time) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return net.ErrClosed
	}
	if mt == websocket.PingMessage && c.pingErr != nil {
		c.mu.Unlock()
		return c.pingErr
	}
	c.controls = append(c.controls, mt)
	pong := c.pong
	if c.silent || mt != websocket.PingMessage {
		pong = nil
	}
	c.mu.Unlock()

	if pong != nil {
		_ = pong("")
	}
	return nil
}

// SetWriteDeadline is a no-op.
func (c *FakeConn) SetWriteDeadline(time.Time) error {
	return nil
}

// SetReadDeadline sets the time after which a blocked read times out.
func (c *FakeConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.readDeadline = t
	c.mu.Unlock()
	select {
	case c.rearm <- struct{}{}:
	default:
	}
	return nil
}

// SetPongHandler installs the handler called for each answered ping.
func (c *FakeConn) SetPongHandler(h func(string) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pong = h
}

// Silence stops answering pings, like a peer whose network went away.
func (c *FakeConn) Silence() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.silent = true
}

// HoldWrites blocks data writes until ReleaseWrites.
func (c *FakeConn) HoldWrites() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeGate = make(chan struct{})
}

// ReleaseWrites unblocks held data writes.
func (c *FakeConn) ReleaseWrites() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeGate != nil {
		close(c.writeGate)
		c.writeGate = nil
	}
}

// Close marks the connection closed and unblocks readers.
func (c *FakeConn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
	return nil
}

// Deliver queues an inbound frame.
func (c *FakeConn) Deliver(mt int, data []byte) {
	c.inbound <- frame{mt: mt, data: data}
}

// DeliverText queues an inbound text frame.
func (c *FakeConn) DeliverText(s string) {
	c.Deliver(websocket.TextMessage, []byte(s))
}

// PeerClose makes the next read fail as if the peer closed the connection.
func (c *FakeConn) PeerClose() {
	c.inbound <- frame{err: &websocket.CloseError{Code: websocket.CloseGoingAway, Text: "peer gone"}}
}

// FailWrites makes every following data write fail with err.
func (c *FakeConn) FailWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

// FailPings makes every following keepalive ping fail with err.
func (c *FakeConn) FailPings(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pingErr = err
}

// Writes returns a copy of every data frame written so far.
func (c *FakeConn) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.writes...)
}

// Controls returns the control frame types written so far.
func (c *FakeConn) Controls() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.controls...)
}

// Closed reports whether Close was called.
func (c *FakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// FakeDialer hands out FakeConns and records dial targets.
type FakeDialer struct {
	mu    sync.Mutex
	conns []*FakeConn
	hosts []string
	ports []int
	err   error
	block chan struct{}
}

// Ensure FakeDialer implements the interface.
var _ session.Dialer = (*FakeDialer)(nil)

// FailWith makes following dials fail with err.
func (d *FakeDialer) FailWith(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

// Hold makes following dials block until Release or ctx cancellation.
func (d *FakeDialer) Hold() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.block = make(chan struct{})
}

// Release unblocks held dials.
func (d *FakeDialer) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.block != nil {
		close(d.block)
		d.block = nil
	}
}

// Dial returns a new FakeConn unless configured to fail or block.
func (d *FakeDialer) Dial(ctx context.Context, host string, port int) (session.Conn, error) {
	d.mu.Lock()
	d.hosts = append(d.hosts, host)
	d.ports = append(d.ports, port)
	block := d.block
	err := d.err
	d.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	conn := NewFakeConn()
	d.mu.Lock()
	d.conns = append(d.conns, conn)
	d.mu.Unlock()
	return conn, nil
}

// Conns returns every connection handed out.
func (d *FakeDialer) Conns() []*FakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*FakeConn(nil), d.conns...)
}

// Last returns the most recent connection or nil.
func (d *FakeDialer) Last() *FakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// Target returns the most recent dial target.
func (d *FakeDialer) Target() (string, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.hosts) == 0 {
		return "", 0, errors.New("no dial recorded")
	}
	return d.hosts[len(d.hosts)-1], d.ports[len(d.ports)-1], nil
}
