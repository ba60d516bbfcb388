package pubsub

import (
	"encoding/json"
	"sync"

	"github.com/cubedraft/cubedraft/internal/logger"
)

// MockNATSPubSub provides the NATSPubSub surface without a broker. Local
// development and tests can swap it in where the deployment has no NATS.
type MockNATSPubSub struct {
	subject     string
	mu          sync.RWMutex
	subscribers []chan Event
	messages    []Event // Retained for replay, standing in for JetStream storage
	maxMessages int
}

// NewMockNATSPubSub creates a new in-memory stand-in for NATS JetStream.
func NewMockNATSPubSub(subject string) (*MockNATSPubSub, error) {
	logger.Info("Using mock NATS pub/sub", "subject", subject)

	return &MockNATSPubSub{
		subject:     subject,
		subscribers: make([]chan Event, 0),
		messages:    make([]Event, 0),
		maxMessages: 1000,
	}, nil
}

// Publish retains the event and delivers it to all subscribers.
func (p *MockNATSPubSub) Publish(event Event) {
	p.mu.Lock()
	p.messages = append(p.messages, event)
	if len(p.messages) > p.maxMessages {
		p.messages = p.messages[len(p.messages)-p.maxMessages:]
	}
	subs := make([]chan Event, len(p.subscribers))
	copy(subs, p.subscribers)
	p.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub <- event:
		default:
			logger.Warn("Mock NATS: skipping slow subscriber", "event_type", event.Type)
		}
	}

	data, _ := json.Marshal(event)
	logger.Debug("Mock NATS: published event", "event_type", event.Type, "data", string(data))
}

// Subscribe creates a subscription channel for events.
func (p *MockNATSPubSub) Subscribe() chan Event {
	ch := make(chan Event, 100)

	p.mu.Lock()
	p.subscribers = append(p.subscribers, ch)
	p.mu.Unlock()

	return ch
}

// Unsubscribe removes a subscription channel and closes it.
func (p *MockNATSPubSub) Unsubscribe(ch chan Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, sub := range p.subscribers {
		if sub == ch {
			p.subscribers = append(p.subscribers[:i], p.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// SubscribeDurable simulates a durable consumer; the consumer name only
// shows up in logs.
func (p *MockNATSPubSub) SubscribeDurable(consumerName string, handler func(Event)) error {
	logger.Debug("Mock NATS: creating durable subscription (simulated)", "consumer_name", consumerName)

	ch := p.Subscribe()

	go func() {
		for event := range ch {
			handler(event)
		}
	}()

	return nil
}

// ReplayMessages sends up to count of the most recent retained events to ch.
func (p *MockNATSPubSub) ReplayMessages(ch chan Event, count int) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	start := len(p.messages) - count
	if start < 0 {
		start = 0
	}

	for _, event := range p.messages[start:] {
		select {
		case ch <- event:
		default:
			logger.Warn("Mock NATS: channel full during replay, skipping event")
		}
	}
}

// MessageCount returns the number of retained events.
func (p *MockNATSPubSub) MessageCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.messages)
}

// SubscriberCount returns the number of active subscribers.
func (p *MockNATSPubSub) SubscriberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscribers)
}

// Close closes all subscriber channels.
func (p *MockNATSPubSub) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, sub := range p.subscribers {
		close(sub)
	}
	p.subscribers = nil
}
