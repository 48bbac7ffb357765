package repository

import (
	"context"
	"errors"

	"riddlehub/internal/common/db"
)

// ErrAnswerExists signals that the (problem, user) pair already has a record.
// The unique key on problem_answered makes concurrent duplicate inserts fail
// with this error instead of producing two records.
var ErrAnswerExists = errors.New("answer record already exists")

// AnswerRepository persists one record per (problem, user) pair denoting
// that the user answered the problem correctly.
type AnswerRepository interface {
	CountByProblemAndUser(ctx context.Context, tx db.Transaction, problemID int64, userID string) (int64, error)
	Create(ctx context.Context, tx db.Transaction, problemID int64, userID string) error
	DeleteByProblem(ctx context.Context, problemID int64) (int64, error)
}

// SQLAnswerRepository implements AnswerRepository over internal/common/db.
type SQLAnswerRepository struct {
	db db.Provider
}

func NewAnswerRepository(provider db.Provider) AnswerRepository {
	return &SQLAnswerRepository{db: provider}
}

func (r *SQLAnswerRepository) querier(tx db.Transaction) (db.Querier, error) {
	database, err := db.CurrentDatabase(r.db)
	if err != nil {
		return nil, err
	}
	return db.GetQuerier(database, tx), nil
}

func (r *SQLAnswerRepository) CountByProblemAndUser(ctx context.Context, tx db.Transaction, problemID int64, userID string) (int64, error) {
	q, err := r.querier(tx)
	if err != nil {
		return 0, err
	}

	query := "SELECT COUNT(*) FROM problem_answered WHERE problem_id = ? AND user_id = ?"
	var count int64
	if err := q.QueryRow(ctx, query, problemID, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SQLAnswerRepository) Create(ctx context.Context, tx db.Transaction, problemID int64, userID string) error {
	q, err := r.querier(tx)
	if err != nil {
		return err
	}

	query := "INSERT INTO problem_answered (problem_id, user_id) VALUES (?, ?)"
	if _, err := q.Exec(ctx, query, problemID, userID); err != nil {
		if _, ok := db.UniqueViolation(err); ok {
			return ErrAnswerExists
		}
		return err
	}
	return nil
}

// DeleteByProblem removes all answered records for a deleted problem.
func (r *SQLAnswerRepository) DeleteByProblem(ctx context.Context, problemID int64) (int64, error) {
	q, err := r.querier(nil)
	if err != nil {
		return 0, err
	}

	query := "DELETE FROM problem_answered WHERE problem_id = ?"
	result, err := q.Exec(ctx, query, problemID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
