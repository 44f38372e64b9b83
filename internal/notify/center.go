package notify

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"facemark/internal/observability"
)

// Kind is the notification severity.
type Kind string

const (
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// Message is an ephemeral UI notification.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// Sink receives every notification as it is appended. Delivery is
// fire-and-forget; a sink must never fail the caller.
type Sink interface {
	Publish(Message)
}

// maxMessages bounds retention: the most recent 50 are kept, oldest evicted.
const maxMessages = 50

// Center keeps a bounded, newest-first list of notifications and fans each
// one out to the configured sinks.
type Center struct {
	mu       sync.Mutex
	messages []Message // newest first
	sinks    []Sink
	fanout   bool
	logAll   bool
}

// NewCenter creates a center delivering to the given sinks. Both delivery
// channels start enabled.
func NewCenter(sinks ...Sink) *Center {
	return &Center{sinks: sinks, fanout: true, logAll: true}
}

// SetChannels toggles sink fanout and process-log mirroring. Retention is
// unaffected; disabled channels only suppress delivery.
func (c *Center) SetChannels(sinkDelivery, logMirror bool) {
	c.mu.Lock()
	c.fanout = sinkDelivery
	c.logAll = logMirror
	c.mu.Unlock()
}

// Notify appends a notification, evicting the oldest entry once the bound is
// reached, and publishes it to all sinks. It never fails the caller.
func (c *Center) Notify(kind, title, body string) {
	msg := Message{
		ID:        uuid.New(),
		Kind:      Kind(kind),
		Title:     title,
		Body:      body,
		Timestamp: time.Now(),
	}

	c.mu.Lock()
	c.messages = append([]Message{msg}, c.messages...)
	if len(c.messages) > maxMessages {
		c.messages = c.messages[:maxMessages]
		observability.NotificationsEvicted.Inc()
	}
	sinks := c.sinks
	fanout := c.fanout
	logAll := c.logAll
	c.mu.Unlock()

	if logAll {
		log.Printf("notify [%s] %s: %s", kind, title, body)
	}
	if fanout {
		for _, s := range sinks {
			s.Publish(msg)
		}
	}
}

// List returns a copy of the retained notifications, newest first.
func (c *Center) List() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// MarkRead flags a notification as read. Returns false when the id is gone
// (already evicted or never existed).
func (c *Center) MarkRead(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.messages {
		if c.messages[i].ID == id {
			c.messages[i].Read = true
			return true
		}
	}
	return false
}

// Clear drops all retained notifications.
func (c *Center) Clear() {
	c.mu.Lock()
	c.messages = nil
	c.mu.Unlock()
}
