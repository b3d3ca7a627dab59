package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuotaRepository owns the per-user page balance. Each method is a single
// statement so concurrent callers serialize on the user row.
type QuotaRepository interface {
	// DeductQuota subtracts pages when the balance covers them. ok reports
	// whether the deduction happened; balance is the new balance when ok and
	// the current balance otherwise. Returns ErrNotFound for unknown users.
	DeductQuota(ctx context.Context, userID int64, pages int) (balance int, ok bool, err error)
	// AddQuota increments the balance and returns the new value.
	AddQuota(ctx context.Context, userID int64, pages int) (int, error)
	GetQuota(ctx context.Context, userID int64) (int, error)
}

type quotaRepo struct {
	pool *pgxpool.Pool
}

func NewQuotaRepo(pool *pgxpool.Pool) QuotaRepository {
	return &quotaRepo{pool: pool}
}

func (r *quotaRepo) DeductQuota(ctx context.Context, userID int64, pages int) (int, bool, error) {
	const q = `
		UPDATE users
		SET quota = quota - $2, updated_at = NOW()
		WHERE uid = $1
		  AND quota >= $2
		RETURNING quota
	`
	var balance int
	err := r.pool.QueryRow(ctx, q, userID, pages).Scan(&balance)
	if err == nil {
		return balance, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, fmt.Errorf("deducting %d pages for user %d: %w", pages, userID, err)
	}
	current, err := r.GetQuota(ctx, userID)
	if err != nil {
		return 0, false, err
	}
	return current, false, nil
}

func (r *quotaRepo) AddQuota(ctx context.Context, userID int64, pages int) (int, error) {
	return addQuota(ctx, r.pool, userID, pages)
}

func (r *quotaRepo) GetQuota(ctx context.Context, userID int64) (int, error) {
	var quota int
	err := r.pool.QueryRow(ctx, `SELECT quota FROM users WHERE uid = $1`, userID).Scan(&quota)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("fetching quota for user %d: %w", userID, err)
	}
	return quota, nil
}

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func addQuota(ctx context.Context, q querier, userID int64, pages int) (int, error) {
	const stmt = `
		UPDATE users
		SET quota = quota + $2, updated_at = NOW()
		WHERE uid = $1
		RETURNING quota
	`
	var balance int
	if err := q.QueryRow(ctx, stmt, userID, pages).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("adding %d pages for user %d: %w", pages, userID, err)
	}
	return balance, nil
}
