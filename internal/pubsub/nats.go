package pubsub

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/cubedraft/cubedraft/internal/logger"
)

// NATSPubSub bridges draft events through a NATS JetStream broker so that
// picks made against one service instance reach subscribers on all of them.
type NATSPubSub struct {
	nc          *nats.Conn
	js          nats.JetStreamContext
	subject     string
	stream      string
	mu          sync.RWMutex
	subscribers []chan Event
}

// NATSOptions configures the connection to an external NATS server.
type NATSOptions struct {
	URL     string
	Subject string
	Stream  string
}

// DefaultNATSOptions returns the production defaults.
func DefaultNATSOptions(url string) NATSOptions {
	return NATSOptions{
		URL:     url,
		Subject: "draft.picks",
		Stream:  "DRAFT_PICKS",
	}
}

// NewNATSPubSub connects to NATS, ensures the draft event stream exists and
// starts forwarding incoming events to local subscribers.
func NewNATSPubSub(opts NATSOptions) (*NATSPubSub, error) {
	nc, err := nats.Connect(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if _, err := js.StreamInfo(opts.Stream); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     opts.Stream,
			Subjects: []string{opts.Subject},
			Storage:  nats.FileStorage,
			MaxAge:   0, // Retain draft history for replay
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to create stream %s: %w", opts.Stream, err)
		}
	}

	p := &NATSPubSub{
		nc:          nc,
		js:          js,
		subject:     opts.Subject,
		stream:      opts.Stream,
		subscribers: make([]chan Event, 0),
	}

	go p.consume()

	return p, nil
}

// consume reads draft events off the stream and broadcasts them locally.
func (p *NATSPubSub) consume() {
	_, err := p.js.Subscribe(p.subject, func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logger.Error("Failed to unmarshal draft event", "error", err)
			msg.Nak()
			return
		}

		p.broadcast(event)
		msg.Ack()
	}, nats.ManualAck(), nats.DeliverNew())

	if err != nil {
		logger.Error("Failed to subscribe to JetStream", "error", err, "subject", p.subject)
		return
	}

	logger.Debug("Subscribed to JetStream", "subject", p.subject)
}

// Publish sends a draft event to JetStream. Failures are logged; a lost
// notification never fails the pick that produced it.
func (p *NATSPubSub) Publish(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal draft event", "error", err, "event_type", event.Type)
		return
	}

	if _, err := p.js.Publish(p.subject, data); err != nil {
		logger.Error("Failed to publish to NATS", "error", err, "subject", p.subject, "event_type", event.Type)
	}
}

// Subscribe creates a subscription channel for draft events.
func (p *NATSPubSub) Subscribe() chan Event {
	ch := make(chan Event, 100)

	p.mu.Lock()
	p.subscribers = append(p.subscribers, ch)
	p.mu.Unlock()

	return ch
}

// Unsubscribe removes a subscription channel and closes it.
func (p *NATSPubSub) Unsubscribe(ch chan Event) {
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

func (p *NATSPubSub) broadcast(event Event) {
	p.mu.RLock()
	subs := make([]chan Event, len(p.subscribers))
	copy(subs, p.subscribers)
	p.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub <- event:
		default:
			logger.Warn("NATS: skipping slow subscriber", "event_type", event.Type)
		}
	}
}

// SubscribeDurable creates a durable JetStream consumer so multiple service
// instances can share the event workload.
func (p *NATSPubSub) SubscribeDurable(consumerName string, handler func(Event)) error {
	_, err := p.js.Subscribe(p.subject, func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logger.Error("Failed to unmarshal draft event", "error", err)
			msg.Nak()
			return
		}

		handler(event)
		msg.Ack()
	}, nats.Durable(consumerName), nats.ManualAck())

	return err
}

// Close closes all subscriber channels and the NATS connection.
func (p *NATSPubSub) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, sub := range p.subscribers {
		close(sub)
	}
	p.subscribers = nil

	if p.nc != nil {
		p.nc.Close()
	}
}
