// Package session owns the realtime connection to the PC peer.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/frudas24/touchlink/internal/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// link is one live connection and the tasks scoped to it.
type link struct {
	id       string
	conn     Conn
	out      *outbox
	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool
	done     chan struct{}
}

func newLink(conn Conn) *link {
	ctx, cancel := context.WithCancel(context.Background())
	return &link{
		id:     uuid.NewString(),
		conn:   conn,
		out:    newOutbox(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// stop cancels every task of the link and waits for them to exit.
func (l *link) stop() {
	l.stopping.Store(true)
	l.cancel()
	<-l.done
}

// supervise runs the link to completion and reports the outcome to the manager.
func (m *Manager) supervise(l *link) {
	err := m.runLink(l)
	l.out.close(ErrNotConnected)
	m.linkDown(l, err)
	close(l.done)
}

// runLink runs the read, write and keepalive loops until one fails or the link is stopped.
func (m *Manager) runLink(l *link) error {
	g, ctx := errgroup.WithContext(l.ctx)
	g.Go(func() error { return m.readLoop(ctx, l) })
	g.Go(func() error { return m.writeLoop(ctx, l) })
	g.Go(func() error { return m.keepaliveLoop(ctx, l) })
	g.Go(func() error {
		<-ctx.Done()
		if l.stopping.Load() {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect")
			_ = l.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		}
		_ = l.conn.Close()
		return nil
	})

	err := g.Wait()
	if l.stopping.Load() {
		return nil
	}
	return err
}

// readLoop publishes inbound frames until the connection ends. Any frame or
// pong pushes the read deadline out, so a peer that stops answering keepalive
// probes ends the connection after two intervals.
func (m *Manager) readLoop(ctx context.Context, l *link) error {
	idle := 2 * m.opts.keepalive
	extend := func() error {
		return l.conn.SetReadDeadline(time.Now().Add(idle))
	}
	l.conn.SetPongHandler(func(string) error { return extend() })
	if err := extend(); err != nil {
		return &Fault{Kind: FaultClosedByPeer, ConnID: l.id, Err: err}
	}

	for {
		mt, data, err := l.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				err = fmt.Errorf("no reply from peer in %s: %w", idle, err)
			}
			return &Fault{Kind: FaultClosedByPeer, ConnID: l.id, Err: err}
		}
		_ = extend()
		if mt != websocket.TextMessage {
			m.logger.Debug("session: ignoring non-text frame", "conn", l.id, "type", mt)
			continue
		}
		in, err := protocol.DecodeInbound(data)
		if err != nil {
			m.publishFault(l, &Fault{Kind: FaultMalformedFrame, ConnID: l.id, Err: err})
			continue
		}
		m.publishMessage(l, in)
	}
}

// writeLoop is the only writer of data frames on the connection.
func (m *Manager) writeLoop(ctx context.Context, l *link) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.out.wake:
		}
		items := l.out.drain()
		for i, it := range items {
			err := m.writeFrame(l, it.frame)
			it.finish(err)
			if err == nil {
				m.sent.Add(1)
				continue
			}
			for _, rest := range items[i+1:] {
				rest.finish(ErrNotConnected)
			}
			m.failed.Add(uint64(len(items) - i))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &Fault{Kind: FaultSend, ConnID: l.id, Err: err}
		}
	}
}

// writeFrame writes one text frame under the write deadline.
func (m *Manager) writeFrame(l *link, frame []byte) error {
	if err := l.conn.SetWriteDeadline(time.Now().Add(m.opts.writeTimeout)); err != nil {
		return err
	}
	return l.conn.WriteMessage(websocket.TextMessage, frame)
}

// keepaliveLoop probes the peer periodically.
func (m *Manager) keepaliveLoop(ctx context.Context, l *link) error {
	ticker := time.NewTicker(m.opts.keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := l.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(m.opts.writeTimeout))
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return &Fault{Kind: FaultSend, ConnID: l.id, Err: fmt.Errorf("keepalive: %w", err)}
			}
			m.logger.Debug("session: keepalive sent", "conn", l.id)
		}
	}
}

// linkDown tears down manager state after a link ended on its own.
func (m *Manager) linkDown(l *link, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.link != l {
		return
	}
	m.link = nil

	var f *Fault
	if !errors.As(err, &f) {
		f = &Fault{Kind: FaultClosedByPeer, ConnID: l.id, Err: err}
	}
	m.logger.Warn("session: connection lost", "conn", l.id, "kind", f.Kind.String(), "error", f.Err)
	m.faults.publish(f)
	m.setStateLocked(Error)
	m.setStateLocked(Disconnected)
}
