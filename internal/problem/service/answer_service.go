package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"riddlehub/internal/problem/eval"
	"riddlehub/internal/problem/repository"
	pkgerrors "riddlehub/pkg/errors"
	"riddlehub/pkg/utils/logger"

	"go.uber.org/zap"
)

// Answer outcome messages. The wording is part of the API contract.
const (
	MsgCorrect          = "Correct answer."
	MsgAlreadyCorrect   = "Already answered. Current answer is correct."
	MsgIncorrect        = "Answer incorrect. Try again."
	MsgAlreadyIncorrect = "Already correctly answered. Current answer incorrect."
)

// AnswerService classifies a submitted answer and idempotently records the
// user's first correct answer per problem.
type AnswerService struct {
	problems     repository.ProblemRepository
	answers      repository.AnswerRepository
	riddleAnswer string
}

// NewAnswerService creates a new AnswerService. riddleAnswer is the single
// canonical answer shared by all riddle-type problems.
func NewAnswerService(problems repository.ProblemRepository, answers repository.AnswerRepository, riddleAnswer string) *AnswerService {
	return &AnswerService{problems: problems, answers: answers, riddleAnswer: riddleAnswer}
}

// SubmitResult is the outcome of an answer submission.
type SubmitResult struct {
	Message         string
	Correct         bool
	AlreadyAnswered bool
}

// SubmitAnswer resolves a submitted answer for the given problem and user.
// At most one answered record per (problem, user) can ever exist: the prior
// existence check plus the unique key on insert guarantee this even when
// duplicate submissions race.
func (s *AnswerService) SubmitAnswer(ctx context.Context, userID string, problemID int64, rawAnswer string) (SubmitResult, error) {
	count, err := s.answers.CountByProblemAndUser(ctx, nil, problemID, userID)
	if err != nil {
		return SubmitResult{}, pkgerrors.Wrap(fmt.Errorf("check answered record failed: %w", err), pkgerrors.DatabaseError)
	}
	alreadyAnswered := count > 0

	problem, err := resolveProblemForUser(ctx, s.problems, problemID, userID)
	if err != nil {
		return SubmitResult{}, err
	}

	correct, err := s.isCorrect(ctx, problem, rawAnswer)
	if err != nil {
		return SubmitResult{}, err
	}

	switch {
	case correct && !alreadyAnswered:
		if err := s.answers.Create(ctx, nil, problemID, userID); err != nil {
			if errors.Is(err, repository.ErrAnswerExists) {
				// lost a race against a duplicate submission
				return SubmitResult{Message: MsgAlreadyCorrect, Correct: true, AlreadyAnswered: true}, nil
			}
			return SubmitResult{}, pkgerrors.Wrap(fmt.Errorf("record answer failed: %w", err), pkgerrors.AnswerRecordFailed)
		}
		return SubmitResult{Message: MsgCorrect, Correct: true}, nil
	case correct && alreadyAnswered:
		return SubmitResult{Message: MsgAlreadyCorrect, Correct: true, AlreadyAnswered: true}, nil
	case !correct && alreadyAnswered:
		return SubmitResult{Message: MsgAlreadyIncorrect, AlreadyAnswered: true}, nil
	default:
		return SubmitResult{Message: MsgIncorrect}, nil
	}
}

// isCorrect classifies the raw answer against the problem. An expression
// problem whose stored question no longer evaluates was corrupted after
// creation-time validation, so that is an internal error, not user input.
func (s *AnswerService) isCorrect(ctx context.Context, problem repository.Problem, rawAnswer string) (bool, error) {
	if problem.Type == repository.ProblemTypeExpression {
		expected, err := eval.Evaluate(problem.Question)
		if err != nil {
			logger.Error(ctx, "stored expression failed to evaluate",
				zap.Int64("problem_id", problem.ID),
				zap.String("question", problem.Question),
				zap.Error(err),
			)
			return false, pkgerrors.Wrap(
				fmt.Errorf("stored expression %q failed to evaluate: %w", problem.Question, err),
				pkgerrors.InternalServerError,
			)
		}

		submitted, parseErr := strconv.ParseFloat(strings.TrimSpace(rawAnswer), 64)
		if parseErr != nil {
			// a non-numeric answer to an expression problem is just wrong
			return false, nil
		}
		return submitted == expected, nil
	}

	return rawAnswer == s.riddleAnswer, nil
}
