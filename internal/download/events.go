package download

import (
	"sync"

	"github.com/mediadrop/mediadrop/internal/model"
)

// DefaultSubscriberBuffer is the event channel capacity handed to
// subscribers that pass a non-positive buffer size.
const DefaultSubscriberBuffer = 64

// subscriber is one registered event consumer. done is closed on
// unsubscribe so in-flight publishes stop targeting the channel.
type subscriber struct {
	ch   chan model.Event
	done chan struct{}
}

// broadcaster fans engine events out to subscribers. Each subscriber owns a
// buffered channel; a slow subscriber loses progress events once its buffer
// is full, but terminal events are always delivered, so the per-job causal
// order (started, progress..., exactly one terminal) survives backpressure.
type broadcaster struct {
	mu       sync.Mutex
	subs     map[int]*subscriber
	nextID   int
	closed   bool
	inflight sync.WaitGroup
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]*subscriber)}
}

// subscribe registers a consumer and returns its channel plus an
// unsubscribe function. The channel is closed when the engine shuts down.
func (b *broadcaster) subscribe(buffer int) (<-chan model.Event, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan model.Event)
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	sub := &subscriber{
		ch:   make(chan model.Event, buffer),
		done: make(chan struct{}),
	}
	b.subs[id] = sub

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.done)
		}
	}
	return sub.ch, unsubscribe
}

// publish delivers an event to every subscriber. Terminal events block
// until delivered (or the subscriber leaves); others are dropped when the
// subscriber's buffer is full. Publishing on a closed broadcaster is a
// no-op.
func (b *broadcaster) publish(ev model.Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.inflight.Add(1)
	targets := make([]*subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		targets = append(targets, sub)
	}
	b.mu.Unlock()
	defer b.inflight.Done()

	for _, sub := range targets {
		if ev.Terminal() {
			select {
			case sub.ch <- ev:
			case <-sub.done:
			}
			continue
		}
		select {
		case sub.ch <- ev:
		case <-sub.done:
		default:
		}
	}
}

// close shuts the broadcaster down and closes all subscriber channels.
// Concurrent publishes are safe: closing the done channels first unblocks
// any in-flight terminal send, and subscriber channels are closed only
// after every in-flight publish has drained.
func (b *broadcaster) close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	targets := make([]*subscriber, 0, len(b.subs))
	for id, sub := range b.subs {
		delete(b.subs, id)
		targets = append(targets, sub)
	}
	b.mu.Unlock()

	for _, sub := range targets {
		close(sub.done)
	}
	b.inflight.Wait()
	for _, sub := range targets {
		close(sub.ch)
	}
}
