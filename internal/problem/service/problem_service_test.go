package service_test

import (
	"context"
	"testing"

	"riddlehub/internal/problem/repository"
	"riddlehub/internal/problem/service"
	pkgerrors "riddlehub/pkg/errors"
)

func mustCreate(t *testing.T, deps *testDeps, authorID, problemType, question string) repository.Problem {
	t.Helper()
	created, err := deps.problemService.CreateProblem(context.Background(), service.ProblemInput{
		AuthorID: authorID,
		Type:     problemType,
		Question: question,
	})
	if err != nil {
		t.Fatalf("CreateProblem(%q, %q) failed: %v", problemType, question, err)
	}
	return created
}

func assertCode(t *testing.T, err error, code pkgerrors.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %d, got nil", code)
	}
	if got := pkgerrors.GetCode(err); got != code {
		t.Fatalf("error code = %d (%v), want %d", got, err, code)
	}
}

func TestCreateProblem(t *testing.T) {
	deps := newTestDeps()

	created := mustCreate(t, deps, "alice", repository.ProblemTypeExpression, "5+1")
	if created.ID == 0 {
		t.Fatal("created problem has no id")
	}
	if created.AuthorID != "alice" || created.Type != repository.ProblemTypeExpression || created.Question != "5+1" {
		t.Fatalf("created problem = %+v", created)
	}
	if created.CreatedAt.IsZero() {
		t.Fatal("created problem has zero created_at")
	}

	riddle := mustCreate(t, deps, "alice", repository.ProblemTypeRiddle, "What is the answer to everything?")
	if riddle.ID == created.ID {
		t.Fatalf("riddle reused id %d", created.ID)
	}
}

func TestCreateProblemValidation(t *testing.T) {
	cases := []struct {
		name     string
		input    service.ProblemInput
		wantCode pkgerrors.ErrorCode
	}{
		{
			name:     "empty type",
			input:    service.ProblemInput{AuthorID: "alice", Type: "", Question: "5+1"},
			wantCode: pkgerrors.RequiredFieldEmpty,
		},
		{
			name:     "blank type",
			input:    service.ProblemInput{AuthorID: "alice", Type: "   ", Question: "5+1"},
			wantCode: pkgerrors.RequiredFieldEmpty,
		},
		{
			name:     "empty question",
			input:    service.ProblemInput{AuthorID: "alice", Type: repository.ProblemTypeRiddle, Question: ""},
			wantCode: pkgerrors.RequiredFieldEmpty,
		},
		{
			name:     "unknown type",
			input:    service.ProblemInput{AuthorID: "alice", Type: "puzzle", Question: "5+1"},
			wantCode: pkgerrors.InvalidProblemType,
		},
		{
			name:     "uppercase type",
			input:    service.ProblemInput{AuthorID: "alice", Type: "Expression", Question: "5+1"},
			wantCode: pkgerrors.InvalidProblemType,
		},
		{
			name:     "malformed expression",
			input:    service.ProblemInput{AuthorID: "alice", Type: repository.ProblemTypeExpression, Question: "5 +"},
			wantCode: pkgerrors.InvalidExpression,
		},
		{
			name:     "expression dividing by zero",
			input:    service.ProblemInput{AuthorID: "alice", Type: repository.ProblemTypeExpression, Question: "1/0"},
			wantCode: pkgerrors.InvalidExpression,
		},
		{
			name:     "expression with identifiers",
			input:    service.ProblemInput{AuthorID: "alice", Type: repository.ProblemTypeExpression, Question: "__import__('os')"},
			wantCode: pkgerrors.InvalidExpression,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			deps := newTestDeps()
			_, err := deps.problemService.CreateProblem(context.Background(), tc.input)
			assertCode(t, err, tc.wantCode)
		})
	}
}

func TestCreateProblemDuplicateQuestion(t *testing.T) {
	deps := newTestDeps()
	mustCreate(t, deps, "alice", repository.ProblemTypeExpression, "5+1")

	_, err := deps.problemService.CreateProblem(context.Background(), service.ProblemInput{
		AuthorID: "bob",
		Type:     repository.ProblemTypeExpression,
		Question: "5+1",
	})
	assertCode(t, err, pkgerrors.QuestionAlreadyExists)
	if got := err.Error(); got != "Question already exists - 5+1." {
		t.Fatalf("duplicate message = %q", got)
	}

	// same question under the other type is a different identity
	if _, err := deps.problemService.CreateProblem(context.Background(), service.ProblemInput{
		AuthorID: "bob",
		Type:     repository.ProblemTypeRiddle,
		Question: "5+1",
	}); err != nil {
		t.Fatalf("create same question with different type failed: %v", err)
	}
}

func TestCreateProblemDuplicateRace(t *testing.T) {
	// the advisory count sees no duplicate but a concurrent create wins the
	// unique key; the insert failure must still surface as a duplicate
	deps := newTestDeps()
	deps.problems.createErr = repository.ErrDuplicateQuestion

	_, err := deps.problemService.CreateProblem(context.Background(), service.ProblemInput{
		AuthorID: "alice",
		Type:     repository.ProblemTypeExpression,
		Question: "5+1",
	})
	assertCode(t, err, pkgerrors.QuestionAlreadyExists)
	if got := err.Error(); got != "Question already exists - 5+1." {
		t.Fatalf("duplicate message = %q", got)
	}
}

func TestUpdateProblem(t *testing.T) {
	deps := newTestDeps()
	created := mustCreate(t, deps, "alice", repository.ProblemTypeExpression, "5+1")

	updated, err := deps.problemService.UpdateProblem(context.Background(), created.ID, service.ProblemInput{
		AuthorID: "alice",
		Type:     repository.ProblemTypeRiddle,
		Question: "What walks on four legs in the morning?",
	})
	if err != nil {
		t.Fatalf("UpdateProblem failed: %v", err)
	}
	if updated.Type != repository.ProblemTypeRiddle || updated.Question != "What walks on four legs in the morning?" {
		t.Fatalf("updated problem = %+v", updated)
	}
	if updated.ID != created.ID {
		t.Fatalf("update changed id from %d to %d", created.ID, updated.ID)
	}
}

func TestUpdateProblemOwnership(t *testing.T) {
	deps := newTestDeps()
	created := mustCreate(t, deps, "alice", repository.ProblemTypeExpression, "5+1")

	input := service.ProblemInput{AuthorID: "bob", Type: repository.ProblemTypeExpression, Question: "7*3"}
	_, err := deps.problemService.UpdateProblem(context.Background(), created.ID, input)
	assertCode(t, err, pkgerrors.ProblemNotFound)

	// the write must not have gone through
	current, getErr := deps.problems.GetByID(context.Background(), nil, created.ID)
	if getErr != nil {
		t.Fatalf("GetByID failed: %v", getErr)
	}
	if current.Question != "5+1" {
		t.Fatalf("non-owner update modified question to %q", current.Question)
	}

	input.AuthorID = "alice"
	_, err = deps.problemService.UpdateProblem(context.Background(), created.ID+100, input)
	assertCode(t, err, pkgerrors.ProblemNotFound)
}

func TestUpdateProblemValidation(t *testing.T) {
	deps := newTestDeps()
	created := mustCreate(t, deps, "alice", repository.ProblemTypeExpression, "5+1")

	_, err := deps.problemService.UpdateProblem(context.Background(), created.ID, service.ProblemInput{
		AuthorID: "alice",
		Type:     repository.ProblemTypeExpression,
		Question: "2 ** 2",
	})
	assertCode(t, err, pkgerrors.InvalidExpression)
}

func TestGetProblem(t *testing.T) {
	deps := newTestDeps()
	created := mustCreate(t, deps, "alice", repository.ProblemTypeExpression, "5+1")

	item, err := deps.problemService.GetProblem(context.Background(), "alice", created.ID)
	if err != nil {
		t.Fatalf("GetProblem failed: %v", err)
	}
	if item.ID != created.ID || item.Answered {
		t.Fatalf("got %+v, want unanswered problem %d", item, created.ID)
	}

	// a missing problem is an empty value, not an error
	missing, err := deps.problemService.GetProblem(context.Background(), "alice", created.ID+100)
	if err != nil {
		t.Fatalf("GetProblem for missing id failed: %v", err)
	}
	if missing.ID != 0 {
		t.Fatalf("missing problem returned %+v", missing)
	}
}

func TestGetProblemAnsweredFlagPerUser(t *testing.T) {
	deps := newTestDeps()
	created := mustCreate(t, deps, "alice", repository.ProblemTypeExpression, "5+1")

	if _, err := deps.answerService.SubmitAnswer(context.Background(), "alice", created.ID, "6"); err != nil {
		t.Fatalf("SubmitAnswer failed: %v", err)
	}

	item, err := deps.problemService.GetProblem(context.Background(), "alice", created.ID)
	if err != nil {
		t.Fatalf("GetProblem failed: %v", err)
	}
	if !item.Answered {
		t.Fatal("answered flag not set for the answering user")
	}

	other, err := deps.problemService.GetProblem(context.Background(), "bob", created.ID)
	if err != nil {
		t.Fatalf("GetProblem for other user failed: %v", err)
	}
	if other.Answered {
		t.Fatal("answered flag leaked to another user")
	}
}

func TestDeleteProblem(t *testing.T) {
	deps := newTestDeps()
	created := mustCreate(t, deps, "alice", repository.ProblemTypeExpression, "5+1")

	if err := deps.problemService.DeleteProblem(context.Background(), "alice", created.ID); err != nil {
		t.Fatalf("DeleteProblem failed: %v", err)
	}
	if _, err := deps.problems.GetByID(context.Background(), nil, created.ID); err != repository.ErrProblemNotFound {
		t.Fatalf("problem still present after delete, err = %v", err)
	}

	published := deps.queue.publishedMessages()
	if len(published) != 1 {
		t.Fatalf("published %d cleanup events, want 1", len(published))
	}
	if published[0].topic != "problem.cleanup" {
		t.Fatalf("cleanup topic = %q", published[0].topic)
	}

	// deleting again reports not found
	err := deps.problemService.DeleteProblem(context.Background(), "alice", created.ID)
	assertCode(t, err, pkgerrors.ProblemNotFound)
}

func TestDeleteProblemOwnership(t *testing.T) {
	deps := newTestDeps()
	created := mustCreate(t, deps, "alice", repository.ProblemTypeExpression, "5+1")

	err := deps.problemService.DeleteProblem(context.Background(), "bob", created.ID)
	assertCode(t, err, pkgerrors.ProblemNotFound)

	if _, getErr := deps.problems.GetByID(context.Background(), nil, created.ID); getErr != nil {
		t.Fatalf("problem vanished after denied delete: %v", getErr)
	}
}

func TestDeleteProblemPublishFailureIsNotFatal(t *testing.T) {
	deps := newTestDeps()
	created := mustCreate(t, deps, "alice", repository.ProblemTypeExpression, "5+1")
	deps.queue.publishErr = errBroken

	if err := deps.problemService.DeleteProblem(context.Background(), "alice", created.ID); err != nil {
		t.Fatalf("DeleteProblem failed on publish error: %v", err)
	}
	if _, err := deps.problems.GetByID(context.Background(), nil, created.ID); err != repository.ErrProblemNotFound {
		t.Fatalf("problem still present after delete, err = %v", err)
	}
}

func TestListProblems(t *testing.T) {
	deps := newTestDeps()
	expr := mustCreate(t, deps, "alice", repository.ProblemTypeExpression, "5+1")
	mustCreate(t, deps, "alice", repository.ProblemTypeExpression, "2*3")
	riddle := mustCreate(t, deps, "bob", repository.ProblemTypeRiddle, "What has keys but no locks?")

	if _, err := deps.answerService.SubmitAnswer(context.Background(), "alice", expr.ID, "6"); err != nil {
		t.Fatalf("SubmitAnswer failed: %v", err)
	}

	all, err := deps.problemService.ListProblems(context.Background(), "alice", repository.ListFilter{})
	if err != nil {
		t.Fatalf("ListProblems failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("listed %d problems, want 3", len(all))
	}

	expressions, err := deps.problemService.ListProblems(context.Background(), "alice", repository.ListFilter{
		Type: repository.ProblemTypeExpression,
	})
	if err != nil {
		t.Fatalf("ListProblems by type failed: %v", err)
	}
	if len(expressions) != 2 {
		t.Fatalf("listed %d expressions, want 2", len(expressions))
	}
	for _, item := range expressions {
		if item.ID == riddle.ID {
			t.Fatalf("type filter leaked riddle %d", riddle.ID)
		}
	}

	answered := true
	answeredItems, err := deps.problemService.ListProblems(context.Background(), "alice", repository.ListFilter{
		Answered: &answered,
	})
	if err != nil {
		t.Fatalf("ListProblems answered failed: %v", err)
	}
	if len(answeredItems) != 1 || answeredItems[0].ID != expr.ID {
		t.Fatalf("answered filter returned %+v, want only %d", answeredItems, expr.ID)
	}

	unanswered := false
	unansweredItems, err := deps.problemService.ListProblems(context.Background(), "alice", repository.ListFilter{
		Answered: &unanswered,
	})
	if err != nil {
		t.Fatalf("ListProblems unanswered failed: %v", err)
	}
	if len(unansweredItems) != 2 {
		t.Fatalf("listed %d unanswered problems, want 2", len(unansweredItems))
	}

	// filters compose
	combined, err := deps.problemService.ListProblems(context.Background(), "alice", repository.ListFilter{
		Type:     repository.ProblemTypeExpression,
		Answered: &unanswered,
	})
	if err != nil {
		t.Fatalf("ListProblems combined failed: %v", err)
	}
	if len(combined) != 1 {
		t.Fatalf("combined filter returned %d items, want 1", len(combined))
	}
}

func TestListProblemsInvalidTypeFilter(t *testing.T) {
	deps := newTestDeps()
	_, err := deps.problemService.ListProblems(context.Background(), "alice", repository.ListFilter{Type: "puzzle"})
	assertCode(t, err, pkgerrors.InvalidProblemType)
}
