// Package session owns the realtime connection to the PC peer.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/frudas24/touchlink/internal/protocol"
	"golang.org/x/time/rate"
)

// Stats is a snapshot of the manager counters.
type Stats struct {
	State      State
	ConnID     string
	QueueDepth int
	Sent       uint64
	Failed     uint64
	Throttled  uint64
	Coalesced  uint64
	Dropped    uint64
	// Lagged counts stream values lost to subscribers that fell behind.
	Lagged uint64
}

// attempt is one in-flight dial.
type attempt struct {
	cancel context.CancelFunc
	result chan error
	done   chan struct{}
}

// finish reports the dial outcome once.
func (a *attempt) finish(err error) {
	a.result <- err
	close(a.done)
}

// Manager owns at most one connection to the PC peer. All methods are safe for
// concurrent use.
type Manager struct {
	dialer Dialer
	opts   options
	logger Logger

	// connMu serializes teardown and attempt install so dials never overlap.
	connMu sync.Mutex

	mu       sync.Mutex
	state    State
	link     *link
	attempt  *attempt
	limiters map[string]*rate.Limiter

	states   *feed[State]
	messages *feed[protocol.Inbound]
	faults   *feed[*Fault]

	sent      atomic.Uint64
	failed    atomic.Uint64
	throttled atomic.Uint64
	coalesced atomic.Uint64
	dropped   atomic.Uint64
}

// NewManager returns a disconnected manager that dials through dialer.
func NewManager(dialer Dialer, opt ...Option) *Manager {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	applyDefaults(&opts)
	return &Manager{
		dialer:   dialer,
		opts:     opts,
		logger:   opts.logger,
		state:    Disconnected,
		limiters: make(map[string]*rate.Limiter),
		states:   newFeed[State](opts.streamBuffer),
		messages: newFeed[protocol.Inbound](opts.streamBuffer),
		faults:   newFeed[*Fault](opts.streamBuffer),
	}
}

// Connect replaces any existing connection with a new one to host:port. It waits
// up to the connect wait for the dial: nil means connected, ErrConnectPending
// means the dial is still running, any other error is the connect failure.
// ctx bounds the wait only; the dial itself is bounded by the dial timeout.
func (m *Manager) Connect(ctx context.Context, host string, port int) error {
	if host == "" {
		return errors.New("host is required")
	}
	if port == 0 {
		port = DefaultPort
	}

	m.connMu.Lock()
	m.teardown()
	dialCtx, cancel := context.WithTimeout(context.Background(), m.opts.dialTimeout)
	att := &attempt{cancel: cancel, result: make(chan error, 1), done: make(chan struct{})}
	m.mu.Lock()
	m.attempt = att
	m.setStateLocked(Connecting)
	m.mu.Unlock()
	m.logger.Info("session: connecting", "host", host, "port", port)
	go m.dial(dialCtx, att, host, port)
	m.connMu.Unlock()

	timer := time.NewTimer(m.opts.connectWait)
	defer timer.Stop()
	select {
	case err := <-att.result:
		return err
	case <-timer.C:
		return ErrConnectPending
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dial runs one connect attempt and installs the link on success.
func (m *Manager) dial(ctx context.Context, att *attempt, host string, port int) {
	conn, err := m.dialer.Dial(ctx, host, port)
	att.cancel()

	m.mu.Lock()
	if m.attempt != att {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		att.finish(ErrSuperseded)
		return
	}
	m.attempt = nil

	if err != nil {
		f := &Fault{Kind: FaultConnect, Err: fmt.Errorf("dial %s:%d: %w", host, port, err)}
		m.logger.Warn("session: connect failed", "host", host, "port", port, "error", err)
		m.faults.publish(f)
		m.setStateLocked(Error)
		m.setStateLocked(Disconnected)
		m.mu.Unlock()
		att.finish(f)
		return
	}

	l := newLink(conn)
	m.link = l
	m.setStateLocked(Connected)
	m.mu.Unlock()

	m.logger.Info("session: connected", "host", host, "port", port, "conn", l.id)
	go m.supervise(l)
	att.finish(nil)
}

// Disconnect tears down the connection and any in-flight dial. It is idempotent
// and returns once every connection task has exited.
func (m *Manager) Disconnect() {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	m.teardown()
}

// teardown cancels the attempt, stops the link and waits for both. Caller holds m.connMu.
func (m *Manager) teardown() {
	m.mu.Lock()
	att := m.attempt
	l := m.link
	m.attempt = nil
	m.link = nil
	m.mu.Unlock()

	if att != nil {
		att.cancel()
		<-att.done
	}
	if l != nil {
		l.stop()
		m.logger.Info("session: disconnected", "conn", l.id)
	}

	m.mu.Lock()
	m.setStateLocked(Disconnected)
	m.mu.Unlock()
}

// Close disconnects and closes every subscriber channel.
func (m *Manager) Close() {
	m.Disconnect()
	m.states.closeAll()
	m.messages.closeAll()
	m.faults.closeAll()
}

// Send delivers env. Reliable messages are queued in order and Send waits for
// the write result or ctx. When ctx ends first a still-queued message is
// withdrawn and never written; one already being written reports its result. Other messages are throttled per type, never block,
// and are dropped silently when throttled or disconnected.
func (m *Manager) Send(ctx context.Context, env protocol.Envelope, reliable bool) error {
	if !reliable {
		m.sendDroppable(env)
		return nil
	}
	it, box, err := m.enqueue(env)
	if err != nil {
		return err
	}
	select {
	case err := <-it.result:
		return err
	case <-ctx.Done():
		if box.withdraw(it) {
			return ctx.Err()
		}
		// Already handed to the writer; its outcome is the answer.
		return <-it.result
	}
}

// Post queues a reliable message without waiting for the write.
func (m *Manager) Post(env protocol.Envelope) error {
	frame, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	_, err = m.push(&outItem{frame: frame})
	return err
}

// enqueue queues a reliable message with a result channel.
func (m *Manager) enqueue(env protocol.Envelope) (*outItem, *outbox, error) {
	frame, err := protocol.Encode(env)
	if err != nil {
		return nil, nil, err
	}
	it := &outItem{frame: frame, result: make(chan error, 1)}
	box, err := m.push(it)
	if err != nil {
		return nil, nil, err
	}
	return it, box, nil
}

// push hands an item to the live link and returns the outbox holding it.
func (m *Manager) push(it *outItem) (*outbox, error) {
	m.mu.Lock()
	l := m.link
	m.mu.Unlock()
	if l == nil {
		return nil, ErrNotConnected
	}
	depth, coalesced, err := l.out.push(it)
	if err != nil {
		return nil, err
	}
	if coalesced {
		m.coalesced.Add(1)
	}
	if depth == m.opts.highWater {
		m.logger.Warn("session: outbound backlog", "conn", l.id, "depth", depth)
	}
	return l.out, nil
}

// sendDroppable applies the per-type throttle and queues fire-and-forget.
func (m *Manager) sendDroppable(env protocol.Envelope) bool {
	m.mu.Lock()
	l := m.link
	lim := m.limiterLocked(env.Type)
	m.mu.Unlock()

	if l == nil {
		m.dropped.Add(1)
		return false
	}
	if !lim.AllowN(m.opts.now(), 1) {
		m.throttled.Add(1)
		return false
	}
	frame, err := protocol.Encode(env)
	if err != nil {
		m.logger.Debug("session: dropping unencodable message", "error", err)
		m.dropped.Add(1)
		return false
	}
	if _, err := m.push(&outItem{frame: frame, droppable: true}); err != nil {
		m.dropped.Add(1)
		return false
	}
	return true
}

// limiterLocked returns the throttle for a message type.
func (m *Manager) limiterLocked(msgType string) *rate.Limiter {
	lim, ok := m.limiters[msgType]
	if !ok {
		lim = rate.NewLimiter(rate.Every(m.opts.moveInterval), 1)
		m.limiters[msgType] = lim
	}
	return lim
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats returns a snapshot of the counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	st := Stats{State: m.state}
	if m.link != nil {
		st.ConnID = m.link.id
		st.QueueDepth = m.link.out.depth()
	}
	m.mu.Unlock()
	st.Sent = m.sent.Load()
	st.Failed = m.failed.Load()
	st.Throttled = m.throttled.Load()
	st.Coalesced = m.coalesced.Load()
	st.Dropped = m.dropped.Load()
	st.Lagged = m.states.lost() + m.messages.lost() + m.faults.lost()
	return st
}

// SubscribeStates streams state transitions, starting with the current state.
func (m *Manager) SubscribeStates() (<-chan State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current := m.state
	return m.states.subscribe(&current)
}

// SubscribeMessages streams inbound application messages.
func (m *Manager) SubscribeMessages() (<-chan protocol.Inbound, func()) {
	return m.messages.subscribe(nil)
}

// SubscribeErrors streams transport faults.
func (m *Manager) SubscribeErrors() (<-chan *Fault, func()) {
	return m.faults.subscribe(nil)
}

// setStateLocked records and publishes a transition. Caller holds m.mu.
func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.state = s
	m.states.publish(s)
}

// publishMessage forwards an inbound message if the link is still current.
func (m *Manager) publishMessage(l *link, in protocol.Inbound) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.link != l {
		return
	}
	m.messages.publish(in)
}

// publishFault forwards a non-fatal fault if the link is still current.
func (m *Manager) publishFault(l *link, f *Fault) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.link != l {
		return
	}
	m.logger.Warn("session: inbound fault", "conn", l.id, "kind", f.Kind.String(), "error", f.Err)
	m.faults.publish(f)
}
