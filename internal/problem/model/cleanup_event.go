package model

import "time"

// ProblemCleanupEventDeleted marks a cleanup event emitted after a problem
// was removed.
const ProblemCleanupEventDeleted = "problem.deleted"

// ProblemCleanupEvent is the payload published when a problem is deleted so
// its answered records can be pruned asynchronously.
type ProblemCleanupEvent struct {
	EventType   string    `json:"event_type"`
	ProblemID   int64     `json:"problem_id"`
	RequestedAt time.Time `json:"requested_at"`
}
