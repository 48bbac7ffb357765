package repository

import "time"

const (
	ProblemTypeExpression = "expression"
	ProblemTypeRiddle     = "riddle"
)

// Problem represents an authored question of type expression or riddle.
type Problem struct {
	ID        int64
	Type      string
	AuthorID  string
	Question  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProblemWithAnswered is a problem joined with the requester's answered flag.
type ProblemWithAnswered struct {
	Problem
	Answered bool
}

// ListFilter holds the optional list predicates. A zero value means no
// filtering; both predicates are ANDed when present.
type ListFilter struct {
	Type     string
	Answered *bool
}
