package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	headerID        = "x-message-id"
	headerTimestamp = "x-message-ts"
)

// KafkaConfig defines configuration for the Kafka implementation.
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	ClientID string   `yaml:"clientId"`

	// Producer settings
	BatchTimeout time.Duration `yaml:"batchTimeout"`

	// Consumer settings
	MinBytes int           `yaml:"minBytes"`
	MaxBytes int           `yaml:"maxBytes"`
	MaxWait  time.Duration `yaml:"maxWait"`

	// Dialer settings
	DialTimeout time.Duration `yaml:"dialTimeout"`
}

// KafkaQueue implements MessageQueue using Kafka.
type KafkaQueue struct {
	config KafkaConfig
	writer *kafka.Writer

	mu      sync.Mutex
	readers []*kafkaSubscription
	closed  bool
}

type kafkaSubscription struct {
	reader *kafka.Reader
	cancel context.CancelFunc
	done   chan struct{}
}

// NewKafkaQueue creates a Kafka-backed message queue.
func NewKafkaQueue(cfg KafkaConfig) (*KafkaQueue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("brokers are required")
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 50 * time.Millisecond
	}
	if cfg.MinBytes == 0 {
		cfg.MinBytes = 1
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 10 * 1024 * 1024
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = 500 * time.Millisecond
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireAll,
	}

	return &KafkaQueue{config: cfg, writer: writer}, nil
}

// Publish publishes a message to the specified topic
func (q *KafkaQueue) Publish(ctx context.Context, topic string, message *Message) error {
	if topic == "" {
		return errors.New("topic is required")
	}
	if message == nil {
		return errors.New("message is nil")
	}

	headers := make([]kafka.Header, 0, len(message.Headers)+2)
	headers = append(headers,
		kafka.Header{Key: headerID, Value: []byte(message.ID)},
		kafka.Header{Key: headerTimestamp, Value: []byte(message.Timestamp.UTC().Format(time.RFC3339Nano))},
	)
	for key, value := range message.Headers {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
	}

	err := q.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte(message.ID),
		Value:   message.Body,
		Headers: headers,
	})
	if err != nil {
		return fmt.Errorf("write message failed: %w", err)
	}
	return nil
}

// Subscribe subscribes to a topic and processes messages with the handler
func (q *KafkaQueue) Subscribe(ctx context.Context, topic, group string, handler HandlerFunc) error {
	if topic == "" {
		return errors.New("topic is required")
	}
	if group == "" {
		return errors.New("consumer group is required")
	}
	if handler == nil {
		return errors.New("handler is nil")
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errors.New("queue is closed")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  q.config.Brokers,
		GroupID:  group,
		Topic:    topic,
		MinBytes: q.config.MinBytes,
		MaxBytes: q.config.MaxBytes,
		MaxWait:  q.config.MaxWait,
	})

	loopCtx, cancel := context.WithCancel(ctx)
	sub := &kafkaSubscription{reader: reader, cancel: cancel, done: make(chan struct{})}
	q.readers = append(q.readers, sub)

	go q.consumeLoop(loopCtx, sub, handler)
	return nil
}

func (q *KafkaQueue) consumeLoop(ctx context.Context, sub *kafkaSubscription, handler HandlerFunc) {
	defer close(sub.done)
	for {
		fetched, err := sub.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			// transient fetch error, back off briefly
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		message := fromKafkaMessage(fetched)
		if err := handler(ctx, message); err != nil {
			// leave uncommitted so the message is redelivered
			continue
		}
		_ = sub.reader.CommitMessages(ctx, fetched)
	}
}

func fromKafkaMessage(m kafka.Message) *Message {
	message := &Message{
		Body:      m.Value,
		Headers:   make(map[string]string, len(m.Headers)),
		Timestamp: m.Time,
	}
	for _, header := range m.Headers {
		switch header.Key {
		case headerID:
			message.ID = string(header.Value)
		case headerTimestamp:
			if ts, err := time.Parse(time.RFC3339Nano, string(header.Value)); err == nil {
				message.Timestamp = ts
			}
		default:
			message.Headers[header.Key] = string(header.Value)
		}
	}
	if message.ID == "" {
		message.ID = string(m.Key)
	}
	return message
}

// Ping verifies the message queue connection is alive
func (q *KafkaQueue) Ping(ctx context.Context) error {
	dialer := &kafka.Dialer{Timeout: q.config.DialTimeout, ClientID: q.config.ClientID}
	conn, err := dialer.DialContext(ctx, "tcp", q.config.Brokers[0])
	if err != nil {
		return fmt.Errorf("dial broker failed: %w", err)
	}
	return conn.Close()
}

// Stop gracefully stops all subscriptions
func (q *KafkaQueue) Stop() error {
	q.mu.Lock()
	readers := q.readers
	q.readers = nil
	q.mu.Unlock()

	for _, sub := range readers {
		sub.cancel()
		<-sub.done
		_ = sub.reader.Close()
	}
	return nil
}

// Close closes the message queue connection
func (q *KafkaQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	_ = q.Stop()
	return q.writer.Close()
}
