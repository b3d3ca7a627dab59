package model

import "time"

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// Transaction records one quota purchase, keyed by the store's transaction id.
type Transaction struct {
	ID            int64             `db:"id" json:"id"`
	UserID        int64             `db:"user_id" json:"user_id"`
	TransactionID string            `db:"transaction_id" json:"transaction_id"`
	ProductID     string            `db:"product_id" json:"product_id"`
	Amount        int               `db:"amount" json:"amount"`
	QuotaAdded    int               `db:"quota_added" json:"quota_added"`
	Status        TransactionStatus `db:"status" json:"status"`
	ReceiptData   string            `db:"receipt_data" json:"-"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
}

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

type Subscription struct {
	ID            int64              `db:"id" json:"id"`
	UserID        int64              `db:"user_id" json:"user_id"`
	ProductID     string             `db:"product_id" json:"product_id"`
	TransactionID string             `db:"transaction_id" json:"transaction_id"`
	ReceiptData   string             `db:"receipt_data" json:"-"`
	StartDate     time.Time          `db:"start_date" json:"start_date"`
	EndDate       time.Time          `db:"end_date" json:"end_date"`
	Status        SubscriptionStatus `db:"status" json:"status"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `db:"updated_at" json:"updated_at"`
}
