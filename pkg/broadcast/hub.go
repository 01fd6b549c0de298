// Package broadcast fans change events out to subscribers by topic.
//
// Hub implements watcher.Sink. Publish never blocks: a subscriber whose
// buffer is full misses the message and the drop is counted.
package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/0xmhha/browsersync/pkg/logger"
	"github.com/0xmhha/browsersync/pkg/watcher"
)

const defaultBufferSize = 64

// Message is a change event tagged with the topic it was published on.
type Message struct {
	Topic string
	Event watcher.ChangeEvent
}

// Options configures a Hub.
type Options struct {
	// BufferSize is the per-subscriber queue length. Default: 64.
	BufferSize int

	// MaxSubscribers caps concurrent subscriptions. Zero means unlimited.
	MaxSubscribers int
}

// Stats is a snapshot of hub counters.
type Stats struct {
	Subscribers int   `json:"subscribers"`
	Published   int64 `json:"published"`
	Dropped     int64 `json:"dropped"`
}

// Hub is a topic-based publish/subscribe broadcaster.
type Hub struct {
	opts   Options
	logger logger.Logger

	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool

	published atomic.Int64
	dropped   atomic.Int64
}

// Subscription receives the messages of the topics it was created for.
type Subscription struct {
	id     uint64
	hub    *Hub
	topics map[string]struct{}
	ch     chan Message
	once   sync.Once
}

// New creates an empty hub.
func New(opts Options, log logger.Logger) *Hub {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if log == nil {
		log = logger.Noop()
	}

	return &Hub{
		opts:   opts,
		logger: log.With("component", "broadcast"),
		subs:   make(map[uint64]*Subscription),
	}
}

// Subscribe registers a subscriber for topics. No topics means all topics.
// When the hub is closed or full the returned subscription is already
// closed, with ErrHubClosed or ErrTooManySubscribers.
func (h *Hub) Subscribe(topics ...string) (*Subscription, error) {
	sub := &Subscription{
		hub:    h,
		topics: make(map[string]struct{}, len(topics)),
		ch:     make(chan Message, h.opts.BufferSize),
	}
	for _, t := range topics {
		if t != "" {
			sub.topics[t] = struct{}{}
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(sub.ch)
		return sub, ErrHubClosed
	}
	if h.opts.MaxSubscribers > 0 && len(h.subs) >= h.opts.MaxSubscribers {
		close(sub.ch)
		return sub, ErrTooManySubscribers
	}

	h.nextID++
	sub.id = h.nextID
	h.subs[sub.id] = sub

	h.logger.Debug("subscriber added", "id", sub.id, "topics", topics, "total", len(h.subs))
	return sub, nil
}

// Publish implements watcher.Sink.
func (h *Hub) Publish(topic string, event watcher.ChangeEvent) {
	msg := Message{Topic: topic, Event: event}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}
	h.published.Add(1)

	for _, sub := range h.subs {
		if !sub.wants(topic) {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			h.dropped.Add(1)
			h.logger.Debug("subscriber buffer full, message dropped",
				"id", sub.id, "filename", event.Filename)
		}
	}
}

// Stats returns the current counters.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	n := len(h.subs)
	h.mu.RUnlock()

	return Stats{
		Subscribers: n,
		Published:   h.published.Load(),
		Dropped:     h.dropped.Load(),
	}
}

// Close closes every subscription. Later publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[uint64]*Subscription)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.closeChan()
	}
	h.logger.Debug("hub closed", "subscribers", len(subs))
}

func (h *Hub) remove(id uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[id]; !ok {
		return false
	}
	delete(h.subs, id)
	return true
}

// C returns the message channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan Message {
	return s.ch
}

// Close ends the subscription.
func (s *Subscription) Close() {
	if s.hub.remove(s.id) {
		s.closeChan()
	}
}

func (s *Subscription) closeChan() {
	s.once.Do(func() { close(s.ch) })
}

func (s *Subscription) wants(topic string) bool {
	if len(s.topics) == 0 {
		return true
	}
	_, ok := s.topics[topic]
	return ok
}
