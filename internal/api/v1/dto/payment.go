package dto

import (
	"time"

	"github.com/samuelysliu/pdf-editor/internal/model"
)

// GooglePlayValidationRequestDTO is the body of POST /payment/google-play/validate
type GooglePlayValidationRequestDTO struct {
	TransactionID string `json:"transaction_id" validate:"required,max=255"`
	ProductID     string `json:"product_id" validate:"required,max=100"`
	ReceiptData   string `json:"receipt_data" validate:"required"`
}

type MockPurchaseRequestDTO struct {
	ProductID string `json:"product_id" validate:"required"`
}

type PaymentResponseDTO struct {
	TransactionID    string `json:"transaction_id"`
	ProductID        string `json:"product_id"`
	QuotaAdded       int    `json:"quota_added"`
	QuotaRemaining   int    `json:"quota_remaining,omitempty"`
	AlreadyProcessed bool   `json:"already_processed,omitempty"`
}

type TransactionDTO struct {
	TransactionID string                  `json:"transaction_id"`
	ProductID     string                  `json:"product_id"`
	Amount        int                     `json:"amount"`
	QuotaAdded    int                     `json:"quota_added"`
	Status        model.TransactionStatus `json:"status"`
	CreatedAt     time.Time               `json:"created_at"`
}

type TransactionListDTO struct {
	Transactions []TransactionDTO `json:"transactions"`
	Total        int              `json:"total"`
}

// SubscriptionActivateRequestDTO is the body of POST /payment/subscription/activate
type SubscriptionActivateRequestDTO struct {
	ProductID     string `json:"product_id" validate:"required,max=100"`
	TransactionID string `json:"transaction_id" validate:"required,max=255"`
	ReceiptData   string `json:"receipt_data" validate:"required"`
	DurationDays  int    `json:"duration_days" validate:"gte=0,lte=3660"`
}

type SubscriptionDTO struct {
	ID            int64                    `json:"id"`
	ProductID     string                   `json:"product_id"`
	TransactionID string                   `json:"transaction_id"`
	StartDate     time.Time                `json:"start_date"`
	EndDate       time.Time                `json:"end_date"`
	Status        model.SubscriptionStatus `json:"status"`
}

type SubscriptionStatusDTO struct {
	Active  *SubscriptionDTO  `json:"active"`
	History []SubscriptionDTO `json:"history"`
}

func NewSubscriptionDTO(s *model.Subscription) SubscriptionDTO {
	return SubscriptionDTO{
		ID:            s.ID,
		ProductID:     s.ProductID,
		TransactionID: s.TransactionID,
		StartDate:     s.StartDate,
		EndDate:       s.EndDate,
		Status:        s.Status,
	}
}
