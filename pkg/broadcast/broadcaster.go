package broadcast

import (
	"sync"

	"go.uber.org/zap"
)

// subscriberBuffer bounds how many tick notifications may queue per
// subscriber before it is considered too slow and dropped.
const subscriberBuffer = 8

// Subscriber is a handle for one live realtime connection. Notifications are
// payload-free: receivers are expected to re-query a price snapshot.
type Subscriber struct {
	ch chan struct{}
}

// Notify returns the notification channel. It is closed when the subscriber
// is dropped or unsubscribed; receivers must check the second return value.
func (s *Subscriber) Notify() <-chan struct{} { return s.ch }

// Broadcaster fans a "prices changed" signal out to every live subscriber
// once per feed tick. Sends are non-blocking: a subscriber whose buffer is
// full is dropped silently, so no consumer can slow the feed down.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[*Subscriber]struct{}
	closed bool

	logger *zap.SugaredLogger
}

func New(logger *zap.SugaredLogger) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[*Subscriber]struct{}),
		logger: logger,
	}
}

// Subscribe registers a new subscriber. Subscribing after a tick has started
// does not deliver that tick's notification.
func (b *Broadcaster) Subscribe() *Subscriber {
	sub := &Subscriber{ch: make(chan struct{}, subscriberBuffer)}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(sub.ch)
		return sub
	}

	b.subs[sub] = struct{}{}
	b.logger.Infow("subscriber_added", "total", len(b.subs))
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Idempotent.
func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
	b.logger.Infow("subscriber_removed", "total", len(b.subs))
}

// Publish delivers one notification to every live subscriber. Delivery is
// at-most-once and best-effort: a subscriber that cannot accept the send
// without blocking is dropped. Per subscriber, delivered notifications are
// observed in publish order.
func (b *Broadcaster) Publish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		select {
		case sub.ch <- struct{}{}:
		default:
			delete(b.subs, sub)
			close(sub.ch)
			b.logger.Warnw("slow_subscriber_dropped", "total", len(b.subs))
		}
	}
}

// Len returns the number of live subscribers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close drops every subscriber and rejects future subscriptions. Used at
// shutdown, after the feed loop has stopped.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.ch)
	}
	b.logger.Info("broadcaster_closed")
}
