// Package session owns the realtime connection to the PC peer.
package session

import "sync"

// feed fans values out to subscribers. Slow subscribers lose values instead of
// blocking the publisher.
type feed[T any] struct {
	mu      sync.Mutex
	subs    map[int]chan T
	next    int
	size    int
	dropped uint64
}

func newFeed[T any](size int) *feed[T] {
	return &feed[T]{subs: make(map[int]chan T), size: size}
}

// subscribe registers a channel, optionally primed with an initial value.
func (f *feed[T]) subscribe(initial *T) (<-chan T, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan T, f.size)
	if initial != nil {
		ch <- *initial
	}
	id := f.next
	f.next++
	f.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if c, ok := f.subs[id]; ok {
				delete(f.subs, id)
				close(c)
			}
		})
	}
}

// publish delivers v to every subscriber without blocking.
func (f *feed[T]) publish(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- v:
		default:
			f.dropped++
		}
	}
}

// lost returns how many values slow subscribers missed.
func (f *feed[T]) lost() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// closeAll closes every subscriber channel.
func (f *feed[T]) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}
