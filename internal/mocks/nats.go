package mocks

import (
	"github.com/cubedraft/cubedraft/internal/logger"
	"github.com/cubedraft/cubedraft/internal/pubsub"
)

// MockNATSPubSub provides the NATS pub/sub surface over the in-memory
// implementation for local development.
type MockNATSPubSub struct {
	*pubsub.PubSub
}

// NewMockNATSPubSub creates an in-memory stand-in for NATS.
func NewMockNATSPubSub() *MockNATSPubSub {
	logger.Info("Using MOCK NATS/JetStream (in-memory pub/sub) for local development")

	return &MockNATSPubSub{
		PubSub: pubsub.New(),
	}
}

// Close is a no-op, nothing to tear down in memory.
func (m *MockNATSPubSub) Close() {
}
