package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samuelysliu/pdf-editor/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriptionGrant describes one verified subscription purchase.
type SubscriptionGrant struct {
	UserID        int64
	ProductID     string
	TransactionID string
	Receipt       string
	Now           time.Time
	Duration      time.Duration
	// ExpiresAt, when set, is the store-reported end date and wins over
	// Duration.
	ExpiresAt time.Time
}

// End computes the end date of a grant applied on top of an active
// subscription ending at current (zero when there is none).
func (g SubscriptionGrant) End(current time.Time) time.Time {
	if !g.ExpiresAt.IsZero() {
		return g.ExpiresAt
	}
	base := g.Now
	if current.After(base) {
		base = current
	}
	return base.Add(g.Duration)
}

// SubscriptionRepository defines methods for accessing subscription data.
type SubscriptionRepository interface {
	GetSubscription(ctx context.Context, id int64) (*model.Subscription, error)
	GetActiveSubscription(ctx context.Context, userID int64) (*model.Subscription, error)
	ListSubscriptions(ctx context.Context, userID int64) ([]model.Subscription, error)
	// GetTransactionByExternalID looks the store transaction id up in the
	// ledger shared with one-time purchases.
	GetTransactionByExternalID(ctx context.Context, externalID string) (*model.Transaction, error)
	// GrantSubscription records the purchase in the transaction ledger and
	// extends the user's active subscription, or starts one. Returns
	// ErrDuplicate when the transaction id was already recorded.
	GrantSubscription(ctx context.Context, g SubscriptionGrant) (*model.Subscription, error)
	// ExpireSubscriptions moves the user's active subscriptions that ended at
	// or before now to expired.
	ExpireSubscriptions(ctx context.Context, userID int64, now time.Time) (int64, error)
	SetSubscriptionStatus(ctx context.Context, id int64, status model.SubscriptionStatus) error
}

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepo creates a new SubscriptionRepository.
func NewSubscriptionRepo(pool *pgxpool.Pool) SubscriptionRepository {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, user_id, product_id, transaction_id, COALESCE(receipt_data, ''), start_date, end_date, status, created_at, updated_at`

func (r *subscriptionRepo) GetSubscription(ctx context.Context, id int64) (*model.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	var s model.Subscription
	if err := scanSubscription(r.pool.QueryRow(ctx, q, id), &s); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch subscription %d: %w", id, err)
	}
	return &s, nil
}

// GetActiveSubscription returns the latest active subscription for a user.
func (r *subscriptionRepo) GetActiveSubscription(ctx context.Context, userID int64) (*model.Subscription, error) {
	const q = `
        SELECT ` + subscriptionColumns + `
        FROM subscriptions
        WHERE user_id = $1
          AND status = 'active'
        ORDER BY end_date DESC
        LIMIT 1
    `
	var s model.Subscription
	if err := scanSubscription(r.pool.QueryRow(ctx, q, userID), &s); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch active subscription for user %d: %w", userID, err)
	}
	return &s, nil
}

func (r *subscriptionRepo) ListSubscriptions(ctx context.Context, userID int64) ([]model.Subscription, error) {
	const q = `
        SELECT ` + subscriptionColumns + `
        FROM subscriptions
        WHERE user_id = $1
        ORDER BY created_at DESC, id DESC
    `
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions for user %d: %w", userID, err)
	}
	defer rows.Close()

	subs := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		if err := scanSubscription(rows, &s); err != nil {
			return nil, fmt.Errorf("scanning subscription row: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating subscription rows: %w", err)
	}
	return subs, nil
}

func (r *subscriptionRepo) GetTransactionByExternalID(ctx context.Context, externalID string) (*model.Transaction, error) {
	return (&paymentRepo{pool: r.pool}).GetTransactionByExternalID(ctx, externalID)
}

func (r *subscriptionRepo) GrantSubscription(ctx context.Context, g SubscriptionGrant) (*model.Subscription, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("starting transaction for subscription %s: %w", g.TransactionID, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ledger := &model.Transaction{
		UserID:        g.UserID,
		TransactionID: g.TransactionID,
		ProductID:     g.ProductID,
		Status:        model.TransactionCompleted,
		ReceiptData:   g.Receipt,
	}
	if err := insertTransaction(ctx, tx, ledger); err != nil {
		return nil, err
	}

	const activeQ = `
        SELECT ` + subscriptionColumns + `
        FROM subscriptions
        WHERE user_id = $1
          AND status = 'active'
        ORDER BY end_date DESC
        LIMIT 1
        FOR UPDATE
    `
	var s model.Subscription
	err = scanSubscription(tx.QueryRow(ctx, activeQ, g.UserID), &s)
	switch {
	case err == nil:
		const extendQ = `
            UPDATE subscriptions
            SET end_date = $2, transaction_id = $3, receipt_data = $4, product_id = $5, updated_at = NOW()
            WHERE id = $1
            RETURNING ` + subscriptionColumns
		row := tx.QueryRow(ctx, extendQ, s.ID, g.End(s.EndDate), g.TransactionID, g.Receipt, g.ProductID)
		if err := scanSubscription(row, &s); err != nil {
			return nil, fmt.Errorf("extending subscription %d: %w", s.ID, err)
		}
	case errors.Is(err, pgx.ErrNoRows):
		const createQ = `
            INSERT INTO subscriptions (user_id, product_id, transaction_id, receipt_data, start_date, end_date, status)
            VALUES ($1, $2, $3, $4, $5, $6, 'active')
            RETURNING ` + subscriptionColumns
		row := tx.QueryRow(ctx, createQ, g.UserID, g.ProductID, g.TransactionID, g.Receipt, g.Now, g.End(time.Time{}))
		if err := scanSubscription(row, &s); err != nil {
			return nil, fmt.Errorf("creating subscription for user %d: %w", g.UserID, err)
		}
	default:
		return nil, fmt.Errorf("fetch active subscription for user %d: %w", g.UserID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing subscription %s: %w", g.TransactionID, err)
	}
	return &s, nil
}

func (r *subscriptionRepo) ExpireSubscriptions(ctx context.Context, userID int64, now time.Time) (int64, error) {
	const q = `
        UPDATE subscriptions
        SET status = 'expired', updated_at = NOW()
        WHERE user_id = $1
          AND status = 'active'
          AND end_date <= $2
    `
	tag, err := r.pool.Exec(ctx, q, userID, now)
	if err != nil {
		return 0, fmt.Errorf("expiring subscriptions for user %d: %w", userID, err)
	}
	return tag.RowsAffected(), nil
}

func (r *subscriptionRepo) SetSubscriptionStatus(ctx context.Context, id int64, status model.SubscriptionStatus) error {
	const q = `UPDATE subscriptions SET status = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id, string(status))
	if err != nil {
		return fmt.Errorf("updating subscription %d to %s: %w", id, status, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSubscription(row pgx.Row, s *model.Subscription) error {
	var status string
	if err := row.Scan(&s.ID, &s.UserID, &s.ProductID, &s.TransactionID, &s.ReceiptData, &s.StartDate, &s.EndDate, &status, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return err
	}
	s.Status = model.SubscriptionStatus(status)
	return nil
}
