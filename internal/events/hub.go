// Package events is the in-process publish/subscribe hub that fans state
// changes out to SSE streams, the CLI and tests.
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Topic names one stream of events.
type Topic string

const (
	TopicStage               Topic = "stage"
	TopicNotification        Topic = "notification"
	TopicNotificationRemoved Topic = "notification_removed"
	TopicSound               Topic = "sound"
	TopicChat                Topic = "chat"
	TopicGame                Topic = "game"
	TopicUser                Topic = "user"
	TopicLeaderboard         Topic = "leaderboard"
	TopicContract            Topic = "contract"
)

// Event is one published message.
type Event struct {
	Topic     Topic     `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

type subscription struct {
	ch     chan Event
	topics map[Topic]struct{} // empty = every topic
}

func (s *subscription) wants(t Topic) bool {
	if len(s.topics) == 0 {
		return true
	}
	_, ok := s.topics[t]
	return ok
}

// Hub is a non-blocking fan-out. A subscriber whose buffer is full misses
// the event; publishers never block.
type Hub struct {
	mu         sync.RWMutex
	subs       map[*subscription]struct{}
	bufferSize int
	closed     bool
	dropped    atomic.Uint64
	now        func() time.Time
}

// NewHub creates a hub with the given per-subscriber buffer.
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Hub{
		subs:       make(map[*subscription]struct{}),
		bufferSize: bufferSize,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe returns a channel receiving events for topics (all topics when
// none are given) and a cancel function. Cancel is safe to call twice.
func (h *Hub) Subscribe(topics ...Topic) (<-chan Event, func()) {
	sub := &subscription{
		ch:     make(chan Event, h.bufferSize),
		topics: make(map[Topic]struct{}, len(topics)),
	}
	for _, t := range topics {
		sub.topics[t] = struct{}{}
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[sub]; ok {
				delete(h.subs, sub)
				close(sub.ch)
			}
		})
	}
}

// Publish delivers data on topic to every interested subscriber.
func (h *Hub) Publish(topic Topic, data any) {
	if h == nil {
		return
	}
	ev := Event{Topic: topic, Timestamp: h.now(), Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if !sub.wants(topic) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
}

// Dropped returns how many deliveries were skipped because a subscriber was
// full.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every subscriber channel. Later subscriptions receive a
// closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		close(sub.ch)
		delete(h.subs, sub)
	}
}
