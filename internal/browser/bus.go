package browser

import (
	"context"
	"sync"
)

// Bus fans one event stream out to several subscribers. Every subscriber
// sees every event in source order. Delivery blocks on slow subscribers so
// that ordering is never traded for throughput.
type Bus struct {
	mu   sync.Mutex
	subs []chan Event
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe returns a channel receiving every event published after the
// call. The channel is closed when Run returns.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Run forwards events from src until src is closed or ctx is done.
func (b *Bus) Run(ctx context.Context, src <-chan Event) {
	defer b.close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-src:
			if !ok {
				return
			}
			b.publish(ctx, ev)
		}
	}
}

func (b *Bus) publish(ctx context.Context, ev Event) {
	b.mu.Lock()
	subs := append([]chan Event(nil), b.subs...)
	b.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (b *Bus) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
