// ABOUTME: In-process notification bus that fans song updates out to subscribers
// ABOUTME: Sends never block the publisher; a full subscriber misses that message
package bus

import (
	"sync"
	"sync/atomic"

	"github.com/harper/nowplaying/internal/domain/song"
)

const DefaultBuffer = 16

type Message struct {
	Topic string
	Song  song.Info
}

type Subscription struct {
	ch      chan Message
	dropped atomic.Uint64
}

// C delivers messages in publish order. It is closed by Unsubscribe or Close.
func (s *Subscription) C() <-chan Message {
	return s.ch
}

// Dropped counts messages skipped because the buffer was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

type Bus struct {
	subs   map[*Subscription]struct{}
	mu     sync.Mutex
	closed bool

	published atomic.Uint64
}

func New() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Publish hands the message to every subscriber. Safe for concurrent use,
// but the stream client is the only caller and publishes in arrival order.
func (b *Bus) Publish(topic string, info song.Info) {
	msg := Message{Topic: topic, Song: info}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.published.Add(1)

	for sub := range b.subs {
		select {
		case sub.ch <- msg:
		default:
			sub.dropped.Add(1)
		}
	}
}

func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	sub := &Subscription{ch: make(chan Message, buffer)}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Published counts messages accepted by Publish.
func (b *Bus) Published() uint64 {
	return b.published.Load()
}

// Close ends every subscription. Later publishes are discarded.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
}
