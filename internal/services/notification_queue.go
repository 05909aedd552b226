package services

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/punkhunt/internal/domain"
	"github.com/tbourn/punkhunt/internal/events"
)

// Queue defaults.
const (
	DefaultNotificationExpiry = 5 * time.Second
	DefaultNotificationMax    = 10
)

// QueueOptions configures a NotificationQueue. Zero values take defaults.
type QueueOptions struct {
	Expiry time.Duration
	MaxLen int
	Clock  Clock
	Hub    *events.Hub
	Sound  SoundSink
}

// NotificationQueue is the ordered, oldest-first collection of outcome
// messages shown to the user. Entries leave on expiry, on dismiss, or when
// the cap evicts them.
type NotificationQueue struct {
	expiry time.Duration
	maxLen int
	clock  Clock
	hub    *events.Hub
	sound  SoundSink
	newID  func() string

	mu     sync.Mutex
	items  []domain.Notification
	timers map[string]Timer
}

// NewNotificationQueue creates an empty queue.
func NewNotificationQueue(opts QueueOptions) *NotificationQueue {
	if opts.Expiry <= 0 {
		opts.Expiry = DefaultNotificationExpiry
	}
	if opts.MaxLen <= 0 {
		opts.MaxLen = DefaultNotificationMax
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Hub == nil {
		opts.Hub = events.NewHub(0)
	}
	return &NotificationQueue{
		expiry: opts.Expiry,
		maxLen: opts.MaxLen,
		clock:  opts.Clock,
		hub:    opts.Hub,
		sound:  opts.Sound,
		newID:  uuid.NewString,
		timers: map[string]Timer{},
	}
}

// Push appends n, assigning a fresh id and timestamp, schedules its expiry
// and evicts the oldest entries beyond the cap. It returns the stored copy.
func (q *NotificationQueue) Push(n domain.Notification) domain.Notification {
	n.ID = q.newID()
	n.CreatedAt = q.clock.Now()
	if n.Style == "" {
		n.Style = domain.StyleInfo
	}

	q.mu.Lock()
	q.items = append(q.items, n)
	id := n.ID
	q.timers[id] = q.clock.AfterFunc(q.expiry, func() { q.expire(id) })

	var evicted []domain.Notification
	for len(q.items) > q.maxLen {
		old := q.items[0]
		q.items = q.items[1:]
		if t, ok := q.timers[old.ID]; ok {
			t.Stop()
			delete(q.timers, old.ID)
		}
		evicted = append(evicted, old)
	}
	q.mu.Unlock()

	notificationsPushed.WithLabelValues(string(n.Style)).Inc()
	q.hub.Publish(events.TopicNotification, n)
	for _, old := range evicted {
		q.hub.Publish(events.TopicNotificationRemoved, old.ID)
	}
	if q.sound != nil {
		q.sound.Play(styleCue(n.Style))
	}
	return n
}

// Dismiss removes id immediately. It reports whether the id was present.
func (q *NotificationQueue) Dismiss(id string) bool {
	if !q.remove(id) {
		return false
	}
	q.hub.Publish(events.TopicNotificationRemoved, id)
	return true
}

func (q *NotificationQueue) expire(id string) {
	// A timer firing for an id that was already dismissed or evicted finds
	// nothing to remove.
	if q.remove(id) {
		q.hub.Publish(events.TopicNotificationRemoved, id)
	}
}

func (q *NotificationQueue) remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, it := range q.items {
		if it.ID != id {
			continue
		}
		q.items = append(q.items[:i], q.items[i+1:]...)
		if t, ok := q.timers[id]; ok {
			t.Stop()
			delete(q.timers, id)
		}
		return true
	}
	return false
}

// List returns a copy of the queue, oldest first.
func (q *NotificationQueue) List() []domain.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.Notification, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the number of queued notifications.
func (q *NotificationQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Subscribe streams pushes and removals.
func (q *NotificationQueue) Subscribe() (<-chan events.Event, func()) {
	return q.hub.Subscribe(events.TopicNotification, events.TopicNotificationRemoved)
}
