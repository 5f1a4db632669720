// Package session owns the realtime connection to the PC peer.
package session

import "sync"

// outItem is one queued frame. result is nil for fire-and-forget items.
type outItem struct {
	frame     []byte
	droppable bool
	result    chan error
}

// finish reports the write result to a waiting sender.
func (it *outItem) finish(err error) {
	if it.result != nil {
		it.result <- err
	}
}

// outbox is the FIFO drained by a connection's write loop. A droppable item
// still waiting at the tail is replaced by the next droppable push.
type outbox struct {
	mu     sync.Mutex
	items  []*outItem
	closed bool
	wake   chan struct{}
}

func newOutbox() *outbox {
	return &outbox{wake: make(chan struct{}, 1)}
}

// push appends an item and returns the resulting depth. coalesced is true when
// the item overwrote a pending droppable tail instead of growing the queue.
func (o *outbox) push(it *outItem) (depth int, coalesced bool, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return 0, false, ErrNotConnected
	}
	if it.droppable && len(o.items) > 0 {
		if tail := o.items[len(o.items)-1]; tail.droppable {
			tail.frame = it.frame
			return len(o.items), true, nil
		}
	}
	o.items = append(o.items, it)
	o.signal()
	return len(o.items), false, nil
}

// drain removes and returns every queued item.
func (o *outbox) drain() []*outItem {
	o.mu.Lock()
	defer o.mu.Unlock()
	items := o.items
	o.items = nil
	return items
}

// withdraw removes a still-queued item. It reports false once the writer has
// taken the item or the outbox has failed it.
func (o *outbox) withdraw(it *outItem) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, q := range o.items {
		if q == it {
			o.items = append(o.items[:i], o.items[i+1:]...)
			return true
		}
	}
	return false
}

// depth returns the number of queued items.
func (o *outbox) depth() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

// close rejects further pushes and fails everything still queued.
func (o *outbox) close(err error) {
	o.mu.Lock()
	o.closed = true
	items := o.items
	o.items = nil
	o.mu.Unlock()
	for _, it := range items {
		it.finish(err)
	}
}

func (o *outbox) signal() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}
