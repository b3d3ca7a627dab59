package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/samuelysliu/pdf-editor/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository interface {
	// CreateUser inserts u and fills its id, quota and timestamps. Returns
	// ErrDuplicate when the username or email is taken.
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
}

type userRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepo{pool: pool}
}

const userColumns = `uid, username, email, password_hash, quota, created_at, updated_at`

func (r *userRepo) CreateUser(ctx context.Context, u *model.User) error {
	const q = `INSERT INTO users (username, email, password_hash, quota)
              VALUES ($1, $2, $3, $4) RETURNING ` + userColumns
	err := scanUser(r.pool.QueryRow(ctx, q, u.Username, u.Email, u.PasswordHash, u.Quota), u)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("creating user %s: %w", u.Username, err)
	}
	return nil
}

func (r *userRepo) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE uid = $1`
	var u model.User
	if err := scanUser(r.pool.QueryRow(ctx, q, id), &u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetching user %d: %w", id, err)
	}
	return &u, nil
}

func (r *userRepo) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	var u model.User
	if err := scanUser(r.pool.QueryRow(ctx, q, username), &u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetching user %s: %w", username, err)
	}
	return &u, nil
}

func scanUser(row pgx.Row, u *model.User) error {
	return row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Quota, &u.CreatedAt, &u.UpdatedAt)
}
