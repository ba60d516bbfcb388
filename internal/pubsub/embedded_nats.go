package pubsub

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/cubedraft/cubedraft/internal/logger"
)

// EmbeddedNATSPubSub runs a NATS server in-process. Development setups get
// real JetStream semantics without external infrastructure, and tests can
// exercise the full publish path.
type EmbeddedNATSPubSub struct {
	server      *server.Server
	nc          *nats.Conn
	js          nats.JetStreamContext
	subject     string
	mu          sync.RWMutex
	subscribers []chan Event
}

// EmbeddedNATSOptions configures the embedded NATS server.
type EmbeddedNATSOptions struct {
	Port       int    // Port to listen on (-1 = random available port)
	Subject    string // Subject to publish/subscribe to
	StreamName string // JetStream stream name
	StoreDir   string // Directory for JetStream storage (empty = in-memory)
}

// DefaultEmbeddedNATSOptions returns defaults suitable for development.
func DefaultEmbeddedNATSOptions() EmbeddedNATSOptions {
	return EmbeddedNATSOptions{
		Port:       -1,
		Subject:    "draft.picks",
		StreamName: "DRAFT_PICKS",
		StoreDir:   "",
	}
}

// NewEmbeddedNATSPubSub starts an embedded NATS server, creates the draft
// event stream and begins forwarding events to local subscribers.
func NewEmbeddedNATSPubSub(opts EmbeddedNATSOptions) (*EmbeddedNATSPubSub, error) {
	port := opts.Port
	if port == 0 {
		port = -1 // 0 would mean the NATS default 4222
	}

	serverOpts := &server.Options{
		Port:      port,
		JetStream: true,
		NoLog:     false,
		NoSigs:    true, // The host process owns signal handling
	}
	if opts.StoreDir != "" {
		serverOpts.StoreDir = opts.StoreDir
	}

	ns, err := server.NewServer(serverOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedded NATS server: %w", err)
	}

	ns.SetLogger(&natsLogger{}, false, false)

	go ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS server failed to start within timeout")
	}

	clientURL := ns.ClientURL()
	logger.Info("Embedded NATS server started", "url", clientURL)

	nc, err := nats.Connect(clientURL)
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("failed to connect to embedded NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		ns.Shutdown()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	streamName := opts.StreamName
	if streamName == "" {
		streamName = "DRAFT_PICKS"
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{opts.Subject},
		Storage:  nats.MemoryStorage,
		MaxAge:   time.Hour,
	})
	if err != nil {
		nc.Close()
		ns.Shutdown()
		return nil, fmt.Errorf("failed to create JetStream stream: %w", err)
	}

	logger.Info("JetStream stream created", "stream", streamName, "subject", opts.Subject)

	p := &EmbeddedNATSPubSub{
		server:      ns,
		nc:          nc,
		js:          js,
		subject:     opts.Subject,
		subscribers: make([]chan Event, 0),
	}

	go p.consume()

	return p, nil
}

func (p *EmbeddedNATSPubSub) consume() {
	_, err := p.js.Subscribe(p.subject, func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logger.Error("Failed to unmarshal draft event", "error", err)
			msg.Nak()
			return
		}

		p.mu.RLock()
		subs := make([]chan Event, len(p.subscribers))
		copy(subs, p.subscribers)
		p.mu.RUnlock()

		for _, sub := range subs {
			select {
			case sub <- event:
			default:
				logger.Warn("Embedded NATS: skipping slow subscriber", "event_type", event.Type)
			}
		}

		msg.Ack()
	}, nats.ManualAck(), nats.DeliverNew())

	if err != nil {
		logger.Error("Failed to subscribe to JetStream", "error", err, "subject", p.subject)
		return
	}

	logger.Debug("Subscribed to JetStream", "subject", p.subject)
}

// Publish publishes a draft event to the embedded JetStream.
func (p *EmbeddedNATSPubSub) Publish(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal draft event", "error", err, "event_type", event.Type)
		return
	}

	if _, err := p.js.Publish(p.subject, data); err != nil {
		logger.Error("Failed to publish to embedded NATS", "error", err, "subject", p.subject, "event_type", event.Type)
		return
	}

	logger.Debug("Published draft event", "event_type", event.Type, "subject", p.subject)
}

// Subscribe creates a subscription channel for draft events.
func (p *EmbeddedNATSPubSub) Subscribe() chan Event {
	ch := make(chan Event, 100)

	p.mu.Lock()
	p.subscribers = append(p.subscribers, ch)
	p.mu.Unlock()

	return ch
}

// Unsubscribe removes a subscription channel and closes it.
func (p *EmbeddedNATSPubSub) Unsubscribe(ch chan Event) {
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

// Close shuts down the embedded NATS server.
func (p *EmbeddedNATSPubSub) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	logger.Info("Shutting down embedded NATS server")

	for _, sub := range p.subscribers {
		close(sub)
	}
	p.subscribers = nil

	if p.nc != nil {
		p.nc.Close()
	}

	if p.server != nil {
		p.server.Shutdown()
		p.server.WaitForShutdown()
	}
}

// ServerURL returns the client URL of the embedded server, useful for
// attaching additional clients while debugging.
func (p *EmbeddedNATSPubSub) ServerURL() string {
	return p.server.ClientURL()
}

// SubscriberCount returns the number of active local subscribers.
func (p *EmbeddedNATSPubSub) SubscriberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscribers)
}

// natsLogger adapts the service logger to the NATS server logger interface.
type natsLogger struct{}

func (l *natsLogger) Noticef(format string, v ...interface{}) {
	logger.Info(fmt.Sprintf("[NATS] "+format, v...))
}

func (l *natsLogger) Warnf(format string, v ...interface{}) {
	logger.Warn(fmt.Sprintf("[NATS] "+format, v...))
}

func (l *natsLogger) Fatalf(format string, v ...interface{}) {
	logger.Error(fmt.Sprintf("[NATS] "+format, v...))
}

func (l *natsLogger) Errorf(format string, v ...interface{}) {
	logger.Error(fmt.Sprintf("[NATS] "+format, v...))
}

func (l *natsLogger) Debugf(format string, v ...interface{}) {
	logger.Debug(fmt.Sprintf("[NATS] "+format, v...))
}

func (l *natsLogger) Tracef(format string, v ...interface{}) {
	logger.Debug(fmt.Sprintf("[NATS TRACE] "+format, v...))
}
