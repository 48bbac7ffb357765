package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"riddlehub/internal/problem/eval"
	"riddlehub/internal/problem/repository"
	pkgerrors "riddlehub/pkg/errors"
	"riddlehub/pkg/utils/logger"

	"go.uber.org/zap"
)

// ProblemService handles the problem lifecycle: create, update, get, delete
// and list, with ownership and duplicate-question enforcement.
type ProblemService struct {
	problems         repository.ProblemRepository
	cleanupPublisher *ProblemCleanupPublisher
}

// NewProblemService creates a new ProblemService.
func NewProblemService(problems repository.ProblemRepository, cleanupPublisher *ProblemCleanupPublisher) *ProblemService {
	return &ProblemService{problems: problems, cleanupPublisher: cleanupPublisher}
}

// ProblemInput represents input for problem creation and update.
type ProblemInput struct {
	AuthorID string
	Type     string
	Question string
}

// CreateProblem validates and persists a new problem, returning it with its
// assigned id. Duplicate (question, type) pairs are rejected: first by an
// advisory count, then by the unique key should two creates race.
func (s *ProblemService) CreateProblem(ctx context.Context, input ProblemInput) (repository.Problem, error) {
	if err := validateProblemInput(input); err != nil {
		return repository.Problem{}, err
	}

	count, err := s.problems.CountByQuestionAndType(ctx, nil, input.Question, input.Type)
	if err != nil {
		return repository.Problem{}, pkgerrors.Wrap(fmt.Errorf("count question failed: %w", err), pkgerrors.DatabaseError)
	}
	if count > 0 {
		return repository.Problem{}, duplicateQuestionError(input.Question)
	}

	problem := &repository.Problem{
		Type:     input.Type,
		AuthorID: input.AuthorID,
		Question: input.Question,
	}
	id, err := s.problems.Create(ctx, nil, problem)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateQuestion) {
			return repository.Problem{}, duplicateQuestionError(input.Question)
		}
		return repository.Problem{}, pkgerrors.Wrap(fmt.Errorf("create problem failed: %w", err), pkgerrors.ProblemCreateFailed)
	}

	created, err := s.problems.GetByID(ctx, nil, id)
	if err != nil {
		return repository.Problem{}, pkgerrors.Wrap(fmt.Errorf("read created problem failed: %w", err), pkgerrors.DatabaseError)
	}
	return created, nil
}

// UpdateProblem validates input and applies the update to a problem owned by
// the caller. The write runs first and ownership is verified by re-reading:
// a no-op update on a non-owned or missing id still surfaces not-found.
func (s *ProblemService) UpdateProblem(ctx context.Context, problemID int64, input ProblemInput) (repository.Problem, error) {
	if err := validateProblemInput(input); err != nil {
		return repository.Problem{}, err
	}

	if _, err := s.problems.Update(ctx, nil, problemID, input.AuthorID, input.Type, input.Question); err != nil {
		if errors.Is(err, repository.ErrDuplicateQuestion) {
			return repository.Problem{}, duplicateQuestionError(input.Question)
		}
		return repository.Problem{}, pkgerrors.Wrap(fmt.Errorf("update problem failed: %w", err), pkgerrors.ProblemUpdateFailed)
	}

	return resolveProblemForUser(ctx, s.problems, problemID, input.AuthorID)
}

// GetProblem returns the problem with the requester's answered flag. A
// missing problem yields an empty value, not an error.
func (s *ProblemService) GetProblem(ctx context.Context, requesterID string, problemID int64) (repository.ProblemWithAnswered, error) {
	item, found, err := s.problems.GetWithAnswered(ctx, requesterID, problemID)
	if err != nil {
		return repository.ProblemWithAnswered{}, pkgerrors.Wrap(fmt.Errorf("get problem failed: %w", err), pkgerrors.DatabaseError)
	}
	if !found {
		return repository.ProblemWithAnswered{}, nil
	}
	return item, nil
}

// DeleteProblem removes a problem owned by the caller and publishes a
// cleanup event so the problem's answered records are pruned.
func (s *ProblemService) DeleteProblem(ctx context.Context, ownerID string, problemID int64) error {
	if _, err := resolveProblemForUser(ctx, s.problems, problemID, ownerID); err != nil {
		return err
	}

	affected, err := s.problems.Delete(ctx, nil, problemID, ownerID)
	if err != nil {
		return pkgerrors.Wrap(fmt.Errorf("delete problem failed: %w", err), pkgerrors.ProblemDeleteFailed)
	}
	if affected == 0 {
		// deleted concurrently between the ownership check and the delete
		return problemNotFoundError()
	}

	if s.cleanupPublisher != nil {
		if err := s.cleanupPublisher.PublishProblemDeleted(ctx, problemID); err != nil {
			logger.Warn(ctx, "publish cleanup event failed", zap.Int64("problem_id", problemID), zap.Error(err))
		}
	}
	return nil
}

// ListProblems returns problems with the requester's answered flag, filtered
// by the optional type and answered predicates. Order is unspecified.
func (s *ProblemService) ListProblems(ctx context.Context, requesterID string, filter repository.ListFilter) ([]repository.ProblemWithAnswered, error) {
	if filter.Type != "" && !isValidProblemType(filter.Type) {
		return nil, invalidTypeError()
	}

	items, err := s.problems.ListWithAnswered(ctx, requesterID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(fmt.Errorf("list problems failed: %w", err), pkgerrors.DatabaseError)
	}
	return items, nil
}

func validateProblemInput(input ProblemInput) error {
	if strings.TrimSpace(input.Type) == "" || len(input.Question) < 1 {
		return pkgerrors.New(pkgerrors.RequiredFieldEmpty).
			WithMessage("Type and question must be entered and not empty.")
	}
	if !isValidProblemType(input.Type) {
		return invalidTypeError()
	}
	if input.Type == repository.ProblemTypeExpression {
		if _, err := eval.Evaluate(input.Question); err != nil {
			return pkgerrors.New(pkgerrors.InvalidExpression).WithDetail("reason", err.Error())
		}
	}
	return nil
}

func isValidProblemType(problemType string) bool {
	return problemType == repository.ProblemTypeExpression || problemType == repository.ProblemTypeRiddle
}

func invalidTypeError() *pkgerrors.Error {
	return pkgerrors.Newf(pkgerrors.InvalidProblemType,
		"Invalid problem type - the only allowed ones are: [%s, %s].",
		repository.ProblemTypeExpression, repository.ProblemTypeRiddle)
}

func duplicateQuestionError(question string) *pkgerrors.Error {
	return pkgerrors.Newf(pkgerrors.QuestionAlreadyExists, "Question already exists - %s.", question)
}

func problemNotFoundError() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.ProblemNotFound).
		WithMessage("Problem not found for current user.")
}

// resolveProblemForUser loads a problem and enforces the ownership rule
// shared by update, delete and answer submission: a problem that does not
// exist or belongs to another author is reported the same way.
func resolveProblemForUser(ctx context.Context, problems repository.ProblemRepository, problemID int64, userID string) (repository.Problem, error) {
	problem, err := problems.GetByID(ctx, nil, problemID)
	if err != nil {
		if errors.Is(err, repository.ErrProblemNotFound) {
			return repository.Problem{}, problemNotFoundError()
		}
		return repository.Problem{}, pkgerrors.Wrap(fmt.Errorf("get problem failed: %w", err), pkgerrors.DatabaseError)
	}
	if problem.AuthorID != userID {
		return repository.Problem{}, problemNotFoundError()
	}
	return problem, nil
}
