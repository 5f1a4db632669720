package session_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/frudas24/touchlink/internal/protocol"
	"github.com/frudas24/touchlink/internal/session"
	"github.com/frudas24/touchlink/internal/testutil"
	"github.com/gorilla/websocket"
)

const waitTimeout = 2 * time.Second

func newManager(d session.Dialer, opts ...session.Option) *session.Manager {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return session.NewManager(d, append([]session.Option{session.WithLogger(logger)}, opts...)...)
}

func expectStates(t *testing.T, ch <-chan session.State, want ...session.State) {
	t.Helper()
	for i, w := range want {
		select {
		case got := <-ch:
			if got != w {
				t.Fatalf("expected state %d to be %v, got %v", i, w, got)
			}
		case <-time.After(waitTimeout):
			t.Fatalf("timed out waiting for state %v", w)
		}
	}
}

func expectFault(t *testing.T, ch <-chan *session.Fault, kind session.FaultKind) *session.Fault {
	t.Helper()
	select {
	case f := <-ch:
		if f.Kind != kind {
			t.Fatalf("expected fault %v, got %v", kind, f.Kind)
		}
		return f
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for fault %v", kind)
	}
	return nil
}

func connect(t *testing.T, m *session.Manager) {
	t.Helper()
	if err := m.Connect(context.Background(), "pc.local", 8080); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
}

func typeMsg(text string) protocol.Envelope {
	return protocol.Envelope{Type: protocol.TypeKeyboard, Action: protocol.ActType, Data: protocol.TextData{Text: text}}
}

func moveMsg(dx float32) protocol.Envelope {
	return protocol.Envelope{Type: protocol.TypeMouse, Action: protocol.ActMove, Data: protocol.DeltaData{DeltaX: dx}}
}

// TestConnect_States verifies a successful connect publishes Connecting then Connected.
func TestConnect_States(t *testing.T) {
	d := &testutil.FakeDialer{}
	m := newManager(d)
	defer m.Close()
	states, cancel := m.SubscribeStates()
	defer cancel()

	connect(t, m)
	expectStates(t, states, session.Disconnected, session.Connecting, session.Connected)
	if st := m.Stats(); st.State != session.Connected || st.ConnID == "" {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

// TestConnect_DefaultPort verifies port 0 dials 8080.
func TestConnect_DefaultPort(t *testing.T) {
	d := &testutil.FakeDialer{}
	m := newManager(d)
	defer m.Close()

	if err := m.Connect(context.Background(), "pc.local", 0); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	host, port, err := d.Target()
	if err != nil || host != "pc.local" || port != session.DefaultPort {
		t.Fatalf("expected pc.local:%d, got %s:%d (%v)", session.DefaultPort, host, port, err)
	}
}

// TestConnect_EmptyHost verifies an empty host is rejected without a dial.
func TestConnect_EmptyHost(t *testing.T) {
	d := &testutil.FakeDialer{}
	m := newManager(d)
	defer m.Close()

	if err := m.Connect(context.Background(), "", 8080); err == nil {
		t.Fatalf("expected error for empty host")
	}
	if _, _, err := d.Target(); err == nil {
		t.Fatalf("expected no dial")
	}
}

// TestConnect_Failure verifies a failed dial reports a connect fault and ends Disconnected.
func TestConnect_Failure(t *testing.T) {
	d := &testutil.FakeDialer{}
	d.FailWith(errors.New("connection refused"))
	m := newManager(d)
	defer m.Close()
	states, cancelStates := m.SubscribeStates()
	defer cancelStates()
	faults, cancelFaults := m.SubscribeErrors()
	defer cancelFaults()

	err := m.Connect(context.Background(), "pc.local", 8080)
	var f *session.Fault
	if !errors.As(err, &f) || f.Kind != session.FaultConnect {
		t.Fatalf("expected connect fault, got %v", err)
	}
	expectStates(t, states, session.Disconnected, session.Connecting, session.Error, session.Disconnected)
	expectFault(t, faults, session.FaultConnect)
}

// TestConnect_Pending verifies Connect returns ErrConnectPending while the dial continues.
func TestConnect_Pending(t *testing.T) {
	d := &testutil.FakeDialer{}
	d.Hold()
	m := newManager(d, session.WithConnectWait(20*time.Millisecond))
	defer m.Close()
	states, cancel := m.SubscribeStates()
	defer cancel()

	err := m.Connect(context.Background(), "pc.local", 8080)
	if !errors.Is(err, session.ErrConnectPending) {
		t.Fatalf("expected ErrConnectPending, got %v", err)
	}
	if m.State() != session.Connecting {
		t.Fatalf("expected Connecting, got %v", m.State())
	}
	d.Release()
	expectStates(t, states, session.Disconnected, session.Connecting, session.Connected)
}

// TestConnect_PendingDisconnect verifies Disconnect cancels an in-flight dial.
func TestConnect_PendingDisconnect(t *testing.T) {
	d := &testutil.FakeDialer{}
	d.Hold()
	m := newManager(d, session.WithConnectWait(10*time.Millisecond))
	defer m.Close()

	if err := m.Connect(context.Background(), "pc.local", 8080); !errors.Is(err, session.ErrConnectPending) {
		t.Fatalf("expected ErrConnectPending, got %v", err)
	}
	m.Disconnect()
	if m.State() != session.Disconnected {
		t.Fatalf("expected Disconnected, got %v", m.State())
	}
	if len(d.Conns()) != 0 {
		t.Fatalf("expected no connection to be established")
	}
}

// TestConnect_Exclusive verifies a second connect closes the first connection.
func TestConnect_Exclusive(t *testing.T) {
	d := &testutil.FakeDialer{}
	m := newManager(d)
	defer m.Close()
	states, cancel := m.SubscribeStates()
	defer cancel()

	connect(t, m)
	first := d.Last()
	firstID := m.Stats().ConnID
	connect(t, m)

	expectStates(t, states,
		session.Disconnected, session.Connecting, session.Connected,
		session.Disconnected, session.Connecting, session.Connected)
	if !first.Closed() {
		t.Fatalf("expected first connection closed")
	}
	if len(d.Conns()) != 2 {
		t.Fatalf("expected 2 dials, got %d", len(d.Conns()))
	}
	if id := m.Stats().ConnID; id == firstID {
		t.Fatalf("expected a new connection id, got %s", id)
	}
}

// overlapDialer counts dials that start while an earlier connection is still open.
type overlapDialer struct {
	mu       sync.Mutex
	conns    []*testutil.FakeConn
	overlaps int
}

func (d *overlapDialer) Dial(ctx context.Context, host string, port int) (session.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.conns {
		if !c.Closed() {
			d.overlaps++
		}
	}
	c := testutil.NewFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

// TestConnect_ConcurrentNeverOverlaps verifies racing connects never dial while another connection is open.
func TestConnect_ConcurrentNeverOverlaps(t *testing.T) {
	d := &overlapDialer{}
	m := newManager(d)
	defer m.Close()

	for i := 0; i < 200; i++ {
		var wg sync.WaitGroup
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = m.Connect(context.Background(), "pc.local", 8080)
			}()
		}
		wg.Wait()
	}
	m.Disconnect()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.overlaps != 0 {
		t.Fatalf("expected no overlapping dials, got %d of %d", d.overlaps, len(d.conns))
	}
	for i, c := range d.conns {
		if !c.Closed() {
			t.Fatalf("expected connection %d closed after disconnect", i)
		}
	}
}

// TestDisconnect_Idempotent verifies repeated disconnects are harmless.
func TestDisconnect_Idempotent(t *testing.T) {
	d := &testutil.FakeDialer{}
	m := newManager(d)
	defer m.Close()
	connect(t, m)
	states, cancel := m.SubscribeStates()
	defer cancel()

	m.Disconnect()
	m.Disconnect()
	expectStates(t, states, session.Connected, session.Disconnected)
	select {
	case s := <-states:
		t.Fatalf("unexpected extra state %v", s)
	case <-time.After(50 * time.Millisecond):
	}

	conn := d.Last()
	if !conn.Closed() {
		t.Fatalf("expected connection closed")
	}
	controls := conn.Controls()
	if len(controls) == 0 || controls[len(controls)-1] != websocket.CloseMessage {
		t.Fatalf("expected a close frame, got %v", controls)
	}
}

// TestSend_NotConnected verifies sends without a connection.
func TestSend_NotConnected(t *testing.T) {
	m := newManager(&testutil.FakeDialer{})
	defer m.Close()

	if err := m.Send(context.Background(), typeMsg("a"), true); !errors.Is(err, session.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := m.Post(typeMsg("a")); !errors.Is(err, session.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected from post, got %v", err)
	}
	if err := m.Send(context.Background(), moveMsg(1), false); err != nil {
		t.Fatalf("expected move to be dropped silently, got %v", err)
	}
	if st := m.Stats(); st.Dropped != 1 {
		t.Fatalf("expected 1 dropped, got %d", st.Dropped)
	}
}

// TestSend_ReliableOrder verifies reliable messages are written in submission order.
func TestSend_ReliableOrder(t *testing.T) {
	d := &testutil.FakeDialer{}
	m := newManager(d)
	defer m.Close()
	connect(t, m)

	texts := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, s := range texts[:len(texts)-1] {
		if err := m.Post(typeMsg(s)); err != nil {
			t.Fatalf("post failed: %v", err)
		}
	}
	if err := m.Send(context.Background(), typeMsg(texts[len(texts)-1]), true); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	writes := d.Last().Writes()
	if len(writes) != len(texts) {
		t.Fatalf("expected %d writes, got %d", len(texts), len(writes))
	}
	for i, w := range writes {
		want, _ := protocol.Encode(typeMsg(texts[i]))
		if string(w) != string(want) {
			t.Fatalf("expected %s at %d, got %s", want, i, w)
		}
	}
	if st := m.Stats(); st.Sent != uint64(len(texts)) {
		t.Fatalf("expected %d sent, got %d", len(texts), st.Sent)
	}
}

// TestSend_ThrottleBound verifies at most one move per 8 ms is accepted.
func TestSend_ThrottleBound(t *testing.T) {
	now := time.Unix(1700000000, 0)
	d := &testutil.FakeDialer{}
	m := newManager(d, session.WithClock(func() time.Time { return now }))
	defer m.Close()
	connect(t, m)

	const sends = 100
	for i := 0; i < sends; i++ {
		if err := m.Send(context.Background(), moveMsg(float32(i)), false); err != nil {
			t.Fatalf("move send failed: %v", err)
		}
		now = now.Add(time.Millisecond)
	}

	accepted := sends - int(m.Stats().Throttled)
	if accepted < 12 || accepted > 13 {
		t.Fatalf("expected 12-13 accepted moves over 100ms, got %d", accepted)
	}
}

// TestSend_ThrottleIsolatedFromReliable verifies clicks are never throttled.
func TestSend_ThrottleIsolatedFromReliable(t *testing.T) {
	d := &testutil.FakeDialer{}
	m := newManager(d, session.WithClock(func() time.Time { return time.Unix(0, 0) }))
	defer m.Close()
	connect(t, m)

	_ = m.Send(context.Background(), moveMsg(1), false)
	_ = m.Send(context.Background(), moveMsg(2), false)
	click := protocol.Envelope{Type: protocol.TypeMouse, Action: protocol.ActLeftClick, Data: protocol.PointData{}}
	for i := 0; i < 3; i++ {
		if err := m.Send(context.Background(), click, true); err != nil {
			t.Fatalf("click send failed: %v", err)
		}
	}
	if st := m.Stats(); st.Throttled != 1 {
		t.Fatalf("expected 1 throttled move, got %d", st.Throttled)
	}
}

// TestSend_WriteFailure verifies a failed write surfaces and ends the connection.
func TestSend_WriteFailure(t *testing.T) {
	d := &testutil.FakeDialer{}
	m := newManager(d)
	defer m.Close()
	connect(t, m)
	states, cancel := m.SubscribeStates()
	defer cancel()
	faults, cancelFaults := m.SubscribeErrors()
	defer cancelFaults()

	d.Last().FailWrites(errors.New("broken pipe"))
	if err := m.Send(context.Background(), typeMsg("x"), true); err == nil {
		t.Fatalf("expected write error")
	}
	expectStates(t, states, session.Connected, session.Error, session.Disconnected)
	expectFault(t, faults, session.FaultSend)
}

// TestInbound_Messages verifies decoded frames reach message subscribers.
func TestInbound_Messages(t *testing.T) {
	d := &testutil.FakeDialer{}
	m := newManager(d)
	defer m.Close()
	msgs, cancel := m.SubscribeMessages()
	defer cancel()
	connect(t, m)

	d.Last().Deliver(websocket.BinaryMessage, []byte{1, 2, 3})
	d.Last().DeliverText(`{"type":"mouse_ack","action":"move","status":"success"}`)
	select {
	case in := <-msgs:
		if in.Type != "mouse_ack" || in.Status != "success" {
			t.Fatalf("unexpected inbound: %+v", in)
		}
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for inbound message")
	}
}

// TestInbound_Malformed verifies malformed frames are reported without dropping the connection.
func TestInbound_Malformed(t *testing.T) {
	d := &testutil.FakeDialer{}
	m := newManager(d)
	defer m.Close()
	faults, cancelFaults := m.SubscribeErrors()
	defer cancelFaults()
	msgs, cancelMsgs := m.SubscribeMessages()
	defer cancelMsgs()
	connect(t, m)

	d.Last().DeliverText("not json")
	expectFault(t, faults, session.FaultMalformedFrame)

	d.Last().DeliverText(`{"type":"pong"}`)
	select {
	case in := <-msgs:
		if in.Type != "pong" {
			t.Fatalf("unexpected inbound: %+v", in)
		}
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for inbound message")
	}
	if m.State() != session.Connected {
		t.Fatalf("expected Connected, got %v", m.State())
	}
}

// TestInbound_PeerClose verifies a peer close moves through Error to Disconnected.
func TestInbound_PeerClose(t *testing.T) {
	d := &testutil.FakeDialer{}
	m := newManager(d)
	defer m.Close()
	connect(t, m)
	states, cancel := m.SubscribeStates()
	defer cancel()
	faults, cancelFaults := m.SubscribeErrors()
	defer cancelFaults()

	d.Last().PeerClose()
	expectStates(t, states, session.Connected, session.Error, session.Disconnected)
	expectFault(t, faults, session.FaultClosedByPeer)
	if err := m.Send(context.Background(), typeMsg("x"), true); !errors.Is(err, session.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected after peer close, got %v", err)
	}
	if !d.Last().Closed() {
		t.Fatalf("expected socket closed")
	}
}

// TestSend_ExpiredContextNotWritten verifies a reliable send abandoned by its caller is never written.
func TestSend_ExpiredContextNotWritten(t *testing.T) {
	d := &testutil.FakeDialer{}
	m := newManager(d)
	defer m.Close()
	connect(t, m)
	conn := d.Last()

	conn.HoldWrites()
	if err := m.Post(typeMsg("a")); err != nil {
		t.Fatalf("post failed: %v", err)
	}
	deadline := time.Now().Add(waitTimeout)
	for m.Stats().QueueDepth != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for the writer to take the first frame")
		}
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := m.Send(ctx, typeMsg("b"), true); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	conn.ReleaseWrites()
	if err := m.Send(context.Background(), typeMsg("c"), true); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	writes := conn.Writes()
	if len(writes) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(writes))
	}
	for i, text := range []string{"a", "c"} {
		want, _ := protocol.Encode(typeMsg(text))
		if string(writes[i]) != string(want) {
			t.Fatalf("expected %s at %d, got %s", want, i, writes[i])
		}
	}
}

// TestKeepalive_SilentPeer verifies a peer that stops answering pings is dropped.
func TestKeepalive_SilentPeer(t *testing.T) {
	d := &testutil.FakeDialer{}
	m := newManager(d, session.WithKeepalive(20*time.Millisecond))
	defer m.Close()
	states, cancel := m.SubscribeStates()
	defer cancel()
	faults, cancelFaults := m.SubscribeErrors()
	defer cancelFaults()
	connect(t, m)
	d.Last().Silence()

	expectStates(t, states, session.Disconnected, session.Connecting, session.Connected, session.Error, session.Disconnected)
	expectFault(t, faults, session.FaultClosedByPeer)
	if !d.Last().Closed() {
		t.Fatalf("expected socket closed")
	}
}

// TestKeepalive_PongsKeepAlive verifies an answering peer stays connected past the idle limit.
func TestKeepalive_PongsKeepAlive(t *testing.T) {
	d := &testutil.FakeDialer{}
	m := newManager(d, session.WithKeepalive(10*time.Millisecond))
	defer m.Close()
	connect(t, m)

	time.Sleep(150 * time.Millisecond)
	if m.State() != session.Connected {
		t.Fatalf("expected Connected, got %v", m.State())
	}
}

// TestKeepalive_Failure verifies a failed ping ends the connection.
func TestKeepalive_Failure(t *testing.T) {
	d := &testutil.FakeDialer{}
	m := newManager(d, session.WithKeepalive(10*time.Millisecond))
	defer m.Close()
	connect(t, m)
	states, cancel := m.SubscribeStates()
	defer cancel()
	faults, cancelFaults := m.SubscribeErrors()
	defer cancelFaults()

	d.Last().FailPings(errors.New("timeout"))
	expectStates(t, states, session.Connected, session.Error, session.Disconnected)
	expectFault(t, faults, session.FaultSend)
}

// TestKeepalive_Pings verifies pings are sent on schedule.
func TestKeepalive_Pings(t *testing.T) {
	d := &testutil.FakeDialer{}
	m := newManager(d, session.WithKeepalive(5*time.Millisecond))
	defer m.Close()
	connect(t, m)

	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		for _, mt := range d.Last().Controls() {
			if mt == websocket.PingMessage {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected a keepalive ping")
}

// TestClose_ClosesStreams verifies Close ends every subscription.
func TestClose_ClosesStreams(t *testing.T) {
	m := newManager(&testutil.FakeDialer{})
	states, _ := m.SubscribeStates()
	m.Close()
	for range states {
	}
}
