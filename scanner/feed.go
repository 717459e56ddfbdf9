package scanner

import (
	"sync"

	"github.com/Kaladum/simple-wc3/protocol/w3disc"
)

// Feed fans lobby events out to any number of subscribers. Publishing never
// blocks: a subscriber whose buffer is full loses the event. That is safe
// here because the scanner republishes the lobby on every tick, so a
// dropped event is healed within one scan interval.
type Feed struct {
	mu       sync.Mutex
	subs     map[*Subscription]struct{}
	capacity int
}

// NewFeed creates a feed whose subscribers buffer up to capacity events.
func NewFeed(capacity int) *Feed {
	if capacity < 1 {
		capacity = 1
	}

	return &Feed{
		subs:     make(map[*Subscription]struct{}),
		capacity: capacity,
	}
}

// Subscribe registers a new subscriber. The caller must Close it when done.
func (f *Feed) Subscribe() *Subscription {
	sub := &Subscription{
		feed: f,
		ch:   make(chan w3disc.Packet, f.capacity),
	}

	f.mu.Lock()
	f.subs[sub] = struct{}{}
	f.mu.Unlock()

	return sub
}

// Publish delivers pkt to every subscriber with buffer room.
func (f *Feed) Publish(pkt w3disc.Packet) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for sub := range f.subs {
		select {
		case sub.ch <- pkt:
		default:
			// Subscriber is lagging, drop the event for it.
		}
	}
}

// Subscription is one subscriber's view of the feed.
type Subscription struct {
	feed *Feed
	ch   chan w3disc.Packet
	once sync.Once
}

// Events returns the channel lobby events arrive on. It is closed when the
// subscription is closed.
func (s *Subscription) Events() <-chan w3disc.Packet {
	return s.ch
}

// Close unregisters the subscriber and closes its event channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs, s)
		close(s.ch)
		s.feed.mu.Unlock()
	})
}
