package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"riddlehub/internal/common/mq"
	"riddlehub/internal/problem/model"
	"riddlehub/internal/problem/repository"
	"riddlehub/pkg/utils/logger"

	"go.uber.org/zap"
)

// ProblemCleanupConsumer consumes cleanup events and prunes the answered
// records of deleted problems.
type ProblemCleanupConsumer struct {
	queue   mq.MessageQueue
	answers repository.AnswerRepository
}

// NewProblemCleanupConsumer creates a new cleanup event consumer.
func NewProblemCleanupConsumer(queue mq.MessageQueue, answers repository.AnswerRepository) *ProblemCleanupConsumer {
	return &ProblemCleanupConsumer{queue: queue, answers: answers}
}

// Subscribe starts consuming cleanup events from the given topic.
func (c *ProblemCleanupConsumer) Subscribe(ctx context.Context, topic, group string) error {
	if c.queue == nil {
		return errors.New("cleanup queue is nil")
	}
	return c.queue.Subscribe(ctx, topic, group, c.HandleEvent)
}

// HandleEvent processes a single cleanup event. Unknown event types are
// skipped; a failed delete returns an error so the message is redelivered.
func (c *ProblemCleanupConsumer) HandleEvent(ctx context.Context, message *mq.Message) error {
	if message == nil {
		return errors.New("message is nil")
	}

	var event model.ProblemCleanupEvent
	if err := json.Unmarshal(message.Body, &event); err != nil {
		logger.Warn(ctx, "skip malformed cleanup event",
			zap.String("message_id", message.ID), zap.Error(err))
		return nil
	}
	if event.EventType != model.ProblemCleanupEventDeleted {
		logger.Warn(ctx, "skip unknown cleanup event type",
			zap.String("event_type", event.EventType), zap.String("message_id", message.ID))
		return nil
	}
	if event.ProblemID <= 0 {
		logger.Warn(ctx, "skip cleanup event without problem id",
			zap.String("message_id", message.ID))
		return nil
	}

	deleted, err := c.answers.DeleteByProblem(ctx, event.ProblemID)
	if err != nil {
		return fmt.Errorf("delete answered records failed: %w", err)
	}

	logger.Info(ctx, "pruned answered records for deleted problem",
		zap.Int64("problem_id", event.ProblemID),
		zap.Int64("deleted", deleted),
	)
	return nil
}
