package mq

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MessageQueue defines the unified interface for message queue operations.
// This abstraction allows switching between different MQ implementations
// without changing business logic.
type MessageQueue interface {
	Producer
	Consumer

	// Ping verifies the message queue connection is alive
	Ping(ctx context.Context) error

	// Close closes the message queue connection
	Close() error
}

// Producer defines the interface for publishing messages
type Producer interface {
	// Publish publishes a message to the specified topic
	Publish(ctx context.Context, topic string, message *Message) error
}

// Consumer defines the interface for consuming messages
type Consumer interface {
	// Subscribe subscribes to a topic as part of the given consumer group
	// and processes each message with the handler. The handler should
	// return nil on success; a failed message is not committed and will be
	// redelivered.
	Subscribe(ctx context.Context, topic, group string, handler HandlerFunc) error

	// Stop gracefully stops all subscriptions
	Stop() error
}

// HandlerFunc processes a single consumed message.
type HandlerFunc func(ctx context.Context, message *Message) error

// Message represents a message in the queue
type Message struct {
	// ID is the unique identifier for the message
	ID string `json:"id"`

	// Body is the message payload
	Body []byte `json:"body"`

	// Headers contains metadata about the message
	Headers map[string]string `json:"headers"`

	// Timestamp is when the message was created
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a message with a generated id and current timestamp.
func NewMessage(body []byte) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Body:      body,
		Headers:   make(map[string]string),
		Timestamp: time.Now().UTC(),
	}
}
