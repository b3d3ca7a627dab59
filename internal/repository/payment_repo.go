package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/samuelysliu/pdf-editor/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentRepository interface {
	GetTransactionByExternalID(ctx context.Context, externalID string) (*model.Transaction, error)
	// CreditTransaction inserts t and adds t.QuotaAdded to the user's balance
	// in one database transaction. Returns ErrDuplicate when t.TransactionID
	// was already recorded, in which case nothing changes.
	CreditTransaction(ctx context.Context, t *model.Transaction) (balance int, err error)
	// ListTransactions returns the newest transactions first.
	ListTransactions(ctx context.Context, userID int64, limit int) ([]model.Transaction, error)
}

type paymentRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) PaymentRepository {
	return &paymentRepo{pool: pool}
}

const transactionColumns = `id, user_id, transaction_id, product_id, amount, quota_added, status, COALESCE(receipt_data, ''), created_at`

func (r *paymentRepo) GetTransactionByExternalID(ctx context.Context, externalID string) (*model.Transaction, error) {
	const q = `SELECT ` + transactionColumns + ` FROM transactions WHERE transaction_id = $1`
	var t model.Transaction
	if err := scanTransaction(r.pool.QueryRow(ctx, q, externalID), &t); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetching transaction %s: %w", externalID, err)
	}
	return &t, nil
}

func (r *paymentRepo) CreditTransaction(ctx context.Context, t *model.Transaction) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("starting transaction for credit %s: %w", t.TransactionID, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := insertTransaction(ctx, tx, t); err != nil {
		return 0, err
	}
	balance, err := addQuota(ctx, tx, t.UserID, t.QuotaAdded)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, fmt.Errorf("committing credit %s: %w", t.TransactionID, err)
	}
	return balance, nil
}

func (r *paymentRepo) ListTransactions(ctx context.Context, userID int64, limit int) ([]model.Transaction, error) {
	const q = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing transactions for user %d: %w", userID, err)
	}
	defer rows.Close()

	txs := []model.Transaction{}
	for rows.Next() {
		var t model.Transaction
		if err := scanTransaction(rows, &t); err != nil {
			return nil, fmt.Errorf("scanning transaction row: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transaction rows: %w", err)
	}
	return txs, nil
}

func insertTransaction(ctx context.Context, q querier, t *model.Transaction) error {
	const stmt = `
		INSERT INTO transactions (user_id, transaction_id, product_id, amount, quota_added, status, receipt_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + transactionColumns
	row := q.QueryRow(ctx, stmt, t.UserID, t.TransactionID, t.ProductID, t.Amount, t.QuotaAdded, string(t.Status), t.ReceiptData)
	if err := scanTransaction(row, t); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("recording transaction %s: %w", t.TransactionID, err)
	}
	return nil
}

func scanTransaction(row pgx.Row, t *model.Transaction) error {
	var status string
	if err := row.Scan(&t.ID, &t.UserID, &t.TransactionID, &t.ProductID, &t.Amount, &t.QuotaAdded, &status, &t.ReceiptData, &t.CreatedAt); err != nil {
		return err
	}
	t.Status = model.TransactionStatus(status)
	return nil
}
