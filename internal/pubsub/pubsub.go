package pubsub

import (
	"sync"

	"github.com/cubedraft/cubedraft/internal/logger"
)

// Event types published by the draft service.
const (
	EventDraftStart  = "draft:start"
	EventDraftPick   = "draft:pick"
	EventDraftFinish = "draft:finish"
)

// Event represents a pubsub event
type Event struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Upstream is an interface for upstream publishers (e.g., NATS)
type Upstream interface {
	Publish(Event)
	Subscribe() chan Event
	Unsubscribe(chan Event)
}

// PubSub fans draft events out to local subscribers, optionally bridged
// through an upstream broker so every service instance sees every pick.
type PubSub struct {
	mu          sync.RWMutex
	subscribers []chan Event
	upstream    Upstream
}

// New creates a new PubSub instance with local delivery only
func New() *PubSub {
	return &PubSub{
		subscribers: []chan Event{},
	}
}

// NewWithUpstream creates a PubSub bridged to an upstream publisher.
// Publishes go to the upstream; events arriving from the upstream are
// forwarded to local subscribers.
func NewWithUpstream(upstream Upstream) *PubSub {
	ps := &PubSub{
		subscribers: []chan Event{},
		upstream:    upstream,
	}

	go func() {
		ch := upstream.Subscribe()
		for event := range ch {
			ps.publishLocal(event)
		}
		logger.Debug("PubSub: upstream channel closed")
	}()

	return ps
}

// Subscribe adds a new subscriber and returns a channel for receiving events
func (ps *PubSub) Subscribe() chan Event {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ch := make(chan Event, 10)
	ps.subscribers = append(ps.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber and closes its channel
func (ps *PubSub) Unsubscribe(ch chan Event) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	for i, sub := range ps.subscribers {
		if sub == ch {
			close(ch)
			ps.subscribers = append(ps.subscribers[:i], ps.subscribers[i+1:]...)
			break
		}
	}
}

// Publish sends an event to all subscribers, through the upstream when one
// is configured.
func (ps *PubSub) Publish(event Event) {
	if ps.upstream != nil {
		ps.upstream.Publish(event)
	} else {
		ps.publishLocal(event)
	}
}

func (ps *PubSub) publishLocal(event Event) {
	ps.mu.RLock()
	subs := make([]chan Event, len(ps.subscribers))
	copy(subs, ps.subscribers)
	ps.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			// Slow subscriber, drop rather than block the draft flow
		}
	}
}
