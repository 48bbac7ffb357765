package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"riddlehub/internal/common/cache"
	"riddlehub/internal/common/db"
)

const (
	defaultProblemTTL      = 30 * time.Minute
	defaultProblemEmptyTTL = 5 * time.Minute
	problemKeyPrefix       = "problem:id:"
)

var (
	ErrProblemNotFound   = errors.New("problem not found")
	ErrDuplicateQuestion = errors.New("question already exists")
)

// ProblemRepository persists Problem records.
type ProblemRepository interface {
	Create(ctx context.Context, tx db.Transaction, problem *Problem) (int64, error)
	GetByID(ctx context.Context, tx db.Transaction, problemID int64) (Problem, error)
	Update(ctx context.Context, tx db.Transaction, problemID int64, authorID, problemType, question string) (int64, error)
	Delete(ctx context.Context, tx db.Transaction, problemID int64, authorID string) (int64, error)
	CountByQuestionAndType(ctx context.Context, tx db.Transaction, question, problemType string) (int64, error)
	GetWithAnswered(ctx context.Context, requesterID string, problemID int64) (ProblemWithAnswered, bool, error)
	ListWithAnswered(ctx context.Context, requesterID string, filter ListFilter) ([]ProblemWithAnswered, error)
}

// SQLProblemRepository implements ProblemRepository over internal/common/db
// with an optional read-through cache for by-id lookups.
type SQLProblemRepository struct {
	db       db.Provider
	cache    cache.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

func NewProblemRepository(provider db.Provider, cacheClient cache.Cache) ProblemRepository {
	return NewProblemRepositoryWithTTL(provider, cacheClient, defaultProblemTTL, defaultProblemEmptyTTL)
}

func NewProblemRepositoryWithTTL(provider db.Provider, cacheClient cache.Cache, ttl, emptyTTL time.Duration) ProblemRepository {
	if ttl <= 0 {
		ttl = defaultProblemTTL
	}
	if emptyTTL <= 0 {
		emptyTTL = defaultProblemEmptyTTL
	}
	return &SQLProblemRepository{
		db:       provider,
		cache:    cacheClient,
		ttl:      ttl,
		emptyTTL: emptyTTL,
	}
}

func (r *SQLProblemRepository) querier(tx db.Transaction) (db.Querier, error) {
	database, err := db.CurrentDatabase(r.db)
	if err != nil {
		return nil, err
	}
	return db.GetQuerier(database, tx), nil
}

func (r *SQLProblemRepository) Create(ctx context.Context, tx db.Transaction, problem *Problem) (int64, error) {
	if problem == nil {
		return 0, errors.New("problem is nil")
	}

	q, err := r.querier(tx)
	if err != nil {
		return 0, err
	}

	query := "INSERT INTO problem (type, author_id, question) VALUES (?, ?, ?)"
	result, err := q.Exec(ctx, query, problem.Type, problem.AuthorID, problem.Question)
	if err != nil {
		if _, ok := db.UniqueViolation(err); ok {
			return 0, ErrDuplicateQuestion
		}
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	problem.ID = id
	if r.cache != nil {
		// a lookup before this insert may have cached the id as absent
		_ = r.cache.Del(ctx, problemKey(id))
	}
	return id, nil
}

func (r *SQLProblemRepository) GetByID(ctx context.Context, tx db.Transaction, problemID int64) (Problem, error) {
	if r.cache != nil && tx == nil {
		problem, err := cache.GetWithCached[Problem](
			ctx,
			r.cache,
			problemKey(problemID),
			cache.JitterTTL(r.ttl),
			cache.JitterTTL(r.emptyTTL),
			func(p Problem) bool { return p.ID == 0 },
			marshalProblem,
			unmarshalProblem,
			func(ctx context.Context) (Problem, error) {
				p, err := r.getByIDFromDB(ctx, nil, problemID)
				if err != nil {
					if errors.Is(err, ErrProblemNotFound) {
						return Problem{}, nil
					}
					return Problem{}, err
				}
				return p, nil
			},
		)
		if err != nil {
			return Problem{}, err
		}
		if problem.ID == 0 {
			return Problem{}, ErrProblemNotFound
		}
		return problem, nil
	}
	return r.getByIDFromDB(ctx, tx, problemID)
}

func (r *SQLProblemRepository) getByIDFromDB(ctx context.Context, tx db.Transaction, problemID int64) (Problem, error) {
	q, err := r.querier(tx)
	if err != nil {
		return Problem{}, err
	}

	query := "SELECT id, type, author_id, question, created_at, updated_at FROM problem WHERE id = ?"
	row := q.QueryRow(ctx, query, problemID)
	problem, err := scanProblem(row)
	if err != nil {
		if db.IsNoRows(err) {
			return Problem{}, ErrProblemNotFound
		}
		return Problem{}, err
	}
	return problem, nil
}

func (r *SQLProblemRepository) Update(ctx context.Context, tx db.Transaction, problemID int64, authorID, problemType, question string) (int64, error) {
	var affected int64
	write := func(ctx context.Context) error {
		q, err := r.querier(tx)
		if err != nil {
			return err
		}
		query := "UPDATE problem SET type = ?, question = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND author_id = ?"
		result, err := q.Exec(ctx, query, problemType, question, problemID, authorID)
		if err != nil {
			if _, ok := db.UniqueViolation(err); ok {
				return ErrDuplicateQuestion
			}
			return err
		}
		affected, err = result.RowsAffected()
		return err
	}

	if err := r.writeThrough(ctx, tx, problemID, write); err != nil {
		return 0, err
	}
	return affected, nil
}

func (r *SQLProblemRepository) Delete(ctx context.Context, tx db.Transaction, problemID int64, authorID string) (int64, error) {
	var affected int64
	write := func(ctx context.Context) error {
		q, err := r.querier(tx)
		if err != nil {
			return err
		}
		result, err := q.Exec(ctx, "DELETE FROM problem WHERE id = ? AND author_id = ?", problemID, authorID)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	}

	if err := r.writeThrough(ctx, tx, problemID, write); err != nil {
		return 0, err
	}
	return affected, nil
}

// writeThrough runs the write and drops the cached by-id entry afterwards so
// the next read refreshes from the database. Writes inside a transaction
// skip invalidation; nothing is visible to readers before commit.
func (r *SQLProblemRepository) writeThrough(ctx context.Context, tx db.Transaction, problemID int64, write func(context.Context) error) error {
	if r.cache != nil && tx == nil {
		return cache.UpdateCached(ctx, r.cache, problemKey(problemID), write)
	}
	return write(ctx)
}

func (r *SQLProblemRepository) CountByQuestionAndType(ctx context.Context, tx db.Transaction, question, problemType string) (int64, error) {
	q, err := r.querier(tx)
	if err != nil {
		return 0, err
	}

	query := "SELECT COUNT(*) FROM problem WHERE question = ? AND type = ?"
	var count int64
	if err := q.QueryRow(ctx, query, question, problemType).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

const problemWithAnsweredSelect = `
	SELECT p.id, p.type, p.author_id, p.question, p.created_at, p.updated_at,
	       CASE WHEN a.problem_id IS NULL THEN 0 ELSE 1 END AS answered
	FROM problem AS p
	LEFT JOIN problem_answered AS a ON a.problem_id = p.id AND a.user_id = ?`

func (r *SQLProblemRepository) GetWithAnswered(ctx context.Context, requesterID string, problemID int64) (ProblemWithAnswered, bool, error) {
	q, err := r.querier(nil)
	if err != nil {
		return ProblemWithAnswered{}, false, err
	}

	row := q.QueryRow(ctx, problemWithAnsweredSelect+" WHERE p.id = ?", requesterID, problemID)
	item, err := scanProblemWithAnswered(row)
	if err != nil {
		if db.IsNoRows(err) {
			return ProblemWithAnswered{}, false, nil
		}
		return ProblemWithAnswered{}, false, err
	}
	return item, true, nil
}

func (r *SQLProblemRepository) ListWithAnswered(ctx context.Context, requesterID string, filter ListFilter) ([]ProblemWithAnswered, error) {
	q, err := r.querier(nil)
	if err != nil {
		return nil, err
	}

	query := problemWithAnsweredSelect
	args := []interface{}{requesterID}

	var predicates []string
	if filter.Answered != nil {
		if *filter.Answered {
			predicates = append(predicates, "a.problem_id IS NOT NULL")
		} else {
			predicates = append(predicates, "a.problem_id IS NULL")
		}
	}
	if filter.Type != "" {
		predicates = append(predicates, "p.type = ?")
		args = append(args, filter.Type)
	}
	for i, predicate := range predicates {
		if i == 0 {
			query += " WHERE " + predicate
		} else {
			query += " AND " + predicate
		}
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var items []ProblemWithAnswered
	for rows.Next() {
		item, err := scanProblemWithAnswered(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func problemKey(problemID int64) string {
	return problemKeyPrefix + strconv.FormatInt(problemID, 10)
}

func marshalProblem(problem Problem) string {
	payload, err := json.Marshal(problem)
	if err != nil {
		return ""
	}
	return string(payload)
}

func unmarshalProblem(data string) (Problem, error) {
	if data == "" {
		return Problem{}, nil
	}
	var problem Problem
	if err := json.Unmarshal([]byte(data), &problem); err != nil {
		return Problem{}, err
	}
	return problem, nil
}

func scanProblem(scanner db.Scanner) (Problem, error) {
	var problem Problem
	err := scanner.Scan(
		&problem.ID,
		&problem.Type,
		&problem.AuthorID,
		&problem.Question,
		&problem.CreatedAt,
		&problem.UpdatedAt,
	)
	if err != nil {
		return Problem{}, err
	}
	return problem, nil
}

func scanProblemWithAnswered(scanner db.Scanner) (ProblemWithAnswered, error) {
	var item ProblemWithAnswered
	var answered int
	err := scanner.Scan(
		&item.ID,
		&item.Type,
		&item.AuthorID,
		&item.Question,
		&item.CreatedAt,
		&item.UpdatedAt,
		&answered,
	)
	if err != nil {
		return ProblemWithAnswered{}, err
	}
	item.Answered = answered != 0
	return item, nil
}
