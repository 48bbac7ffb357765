package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"riddlehub/internal/common/db"
	"riddlehub/internal/common/mq"
	"riddlehub/internal/problem/repository"
	"riddlehub/internal/problem/service"
)

type answeredKey struct {
	problemID int64
	userID    string
}

type fakeAnswerRepo struct {
	mu      sync.Mutex
	records map[answeredKey]struct{}

	countErr  error
	createErr error
	deleteErr error
}

func newFakeAnswerRepo() *fakeAnswerRepo {
	return &fakeAnswerRepo{records: make(map[answeredKey]struct{})}
}

func (r *fakeAnswerRepo) CountByProblemAndUser(ctx context.Context, tx db.Transaction, problemID int64, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.countErr != nil {
		return 0, r.countErr
	}
	if _, ok := r.records[answeredKey{problemID, userID}]; ok {
		return 1, nil
	}
	return 0, nil
}

func (r *fakeAnswerRepo) Create(ctx context.Context, tx db.Transaction, problemID int64, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	key := answeredKey{problemID, userID}
	if _, ok := r.records[key]; ok {
		return repository.ErrAnswerExists
	}
	r.records[key] = struct{}{}
	return nil
}

func (r *fakeAnswerRepo) DeleteByProblem(ctx context.Context, problemID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return 0, r.deleteErr
	}
	var deleted int64
	for key := range r.records {
		if key.problemID == problemID {
			delete(r.records, key)
			deleted++
		}
	}
	return deleted, nil
}

func (r *fakeAnswerRepo) recordCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

type fakeProblemRepo struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]repository.Problem
	answers *fakeAnswerRepo

	createErr error
	getErr    error
	listErr   error
}

func newFakeProblemRepo(answers *fakeAnswerRepo) *fakeProblemRepo {
	return &fakeProblemRepo{
		nextID:  1,
		byID:    make(map[int64]repository.Problem),
		answers: answers,
	}
}

func (r *fakeProblemRepo) Create(ctx context.Context, tx db.Transaction, problem *repository.Problem) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if problem == nil {
		return 0, errors.New("problem is nil")
	}
	if r.createErr != nil {
		return 0, r.createErr
	}
	for _, existing := range r.byID {
		if existing.Question == problem.Question && existing.Type == problem.Type {
			return 0, repository.ErrDuplicateQuestion
		}
	}
	stored := *problem
	stored.ID = r.nextID
	stored.CreatedAt = time.Now().UTC()
	stored.UpdatedAt = stored.CreatedAt
	r.nextID++
	r.byID[stored.ID] = stored
	problem.ID = stored.ID
	return stored.ID, nil
}

func (r *fakeProblemRepo) GetByID(ctx context.Context, tx db.Transaction, problemID int64) (repository.Problem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return repository.Problem{}, r.getErr
	}
	problem, ok := r.byID[problemID]
	if !ok {
		return repository.Problem{}, repository.ErrProblemNotFound
	}
	return problem, nil
}

func (r *fakeProblemRepo) Update(ctx context.Context, tx db.Transaction, problemID int64, authorID, problemType, question string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	problem, ok := r.byID[problemID]
	if !ok || problem.AuthorID != authorID {
		return 0, nil
	}
	for id, existing := range r.byID {
		if id != problemID && existing.Question == question && existing.Type == problemType {
			return 0, repository.ErrDuplicateQuestion
		}
	}
	problem.Type = problemType
	problem.Question = question
	problem.UpdatedAt = time.Now().UTC()
	r.byID[problemID] = problem
	return 1, nil
}

func (r *fakeProblemRepo) Delete(ctx context.Context, tx db.Transaction, problemID int64, authorID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	problem, ok := r.byID[problemID]
	if !ok || problem.AuthorID != authorID {
		return 0, nil
	}
	delete(r.byID, problemID)
	return 1, nil
}

func (r *fakeProblemRepo) CountByQuestionAndType(ctx context.Context, tx db.Transaction, question, problemType string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, existing := range r.byID {
		if existing.Question == question && existing.Type == problemType {
			count++
		}
	}
	return count, nil
}

func (r *fakeProblemRepo) GetWithAnswered(ctx context.Context, requesterID string, problemID int64) (repository.ProblemWithAnswered, bool, error) {
	r.mu.Lock()
	problem, ok := r.byID[problemID]
	r.mu.Unlock()
	if !ok {
		return repository.ProblemWithAnswered{}, false, nil
	}
	return repository.ProblemWithAnswered{
		Problem:  problem,
		Answered: r.isAnswered(problemID, requesterID),
	}, true, nil
}

func (r *fakeProblemRepo) ListWithAnswered(ctx context.Context, requesterID string, filter repository.ListFilter) ([]repository.ProblemWithAnswered, error) {
	r.mu.Lock()
	problems := make([]repository.Problem, 0, len(r.byID))
	for _, problem := range r.byID {
		problems = append(problems, problem)
	}
	listErr := r.listErr
	r.mu.Unlock()
	if listErr != nil {
		return nil, listErr
	}

	var items []repository.ProblemWithAnswered
	for _, problem := range problems {
		if filter.Type != "" && problem.Type != filter.Type {
			continue
		}
		answered := r.isAnswered(problem.ID, requesterID)
		if filter.Answered != nil && *filter.Answered != answered {
			continue
		}
		items = append(items, repository.ProblemWithAnswered{Problem: problem, Answered: answered})
	}
	return items, nil
}

func (r *fakeProblemRepo) isAnswered(problemID int64, userID string) bool {
	if r.answers == nil {
		return false
	}
	r.answers.mu.Lock()
	defer r.answers.mu.Unlock()
	_, ok := r.answers.records[answeredKey{problemID, userID}]
	return ok
}

type publishedMessage struct {
	topic   string
	message *mq.Message
}

type fakeQueue struct {
	mu        sync.Mutex
	published []publishedMessage
	handler   mq.HandlerFunc

	publishErr error
}

func (q *fakeQueue) Publish(ctx context.Context, topic string, message *mq.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publishErr != nil {
		return q.publishErr
	}
	q.published = append(q.published, publishedMessage{topic: topic, message: message})
	return nil
}

func (q *fakeQueue) Subscribe(ctx context.Context, topic, group string, handler mq.HandlerFunc) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handler = handler
	return nil
}

func (q *fakeQueue) Stop() error { return nil }

func (q *fakeQueue) Ping(ctx context.Context) error { return nil }

func (q *fakeQueue) Close() error { return nil }

func (q *fakeQueue) publishedMessages() []publishedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]publishedMessage, len(q.published))
	copy(out, q.published)
	return out
}

var errBroken = errors.New("broken")

const testRiddleAnswer = "It is 42"

type testDeps struct {
	problems *fakeProblemRepo
	answers  *fakeAnswerRepo
	queue    *fakeQueue

	problemService *service.ProblemService
	answerService  *service.AnswerService
}

func newTestDeps() *testDeps {
	answers := newFakeAnswerRepo()
	problems := newFakeProblemRepo(answers)
	queue := &fakeQueue{}
	publisher := service.NewProblemCleanupPublisher(queue, "problem.cleanup")
	return &testDeps{
		problems:       problems,
		answers:        answers,
		queue:          queue,
		problemService: service.NewProblemService(problems, publisher),
		answerService:  service.NewAnswerService(problems, answers, testRiddleAnswer),
	}
}

var (
	_ repository.ProblemRepository = (*fakeProblemRepo)(nil)
	_ repository.AnswerRepository  = (*fakeAnswerRepo)(nil)
	_ mq.MessageQueue              = (*fakeQueue)(nil)
)
