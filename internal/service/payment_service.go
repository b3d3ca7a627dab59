package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/samuelysliu/pdf-editor/internal/config"
	"github.com/samuelysliu/pdf-editor/internal/model"
	"github.com/samuelysliu/pdf-editor/internal/pubsub"
	"github.com/samuelysliu/pdf-editor/internal/repository"

	"github.com/rs/zerolog"
)

const MockReceipt = "MOCK_RECEIPT"

// PaymentResult is either PaymentCompleted or PaymentAlreadyProcessed.
type PaymentResult interface {
	isPaymentResult()
}

type PaymentCompleted struct {
	Transaction    *model.Transaction
	QuotaAdded     int
	QuotaRemaining int
}

// PaymentAlreadyProcessed is returned for a replayed transaction id. The
// ledger is unchanged.
type PaymentAlreadyProcessed struct {
	Transaction *model.Transaction
}

func (PaymentCompleted) isPaymentResult()        {}
func (PaymentAlreadyProcessed) isPaymentResult() {}

// Purchase is one store purchase to record.
type Purchase struct {
	TransactionID string
	ProductID     string
	Amount        int
	Quota         int
	Receipt       string
}

// ProductView is a catalog entry as shown to clients.
type ProductView struct {
	ProductID       string `json:"product_id"`
	Name            string `json:"name"`
	Amount          int    `json:"amount"`
	AmountFormatted string `json:"amount_formatted"`
	Quota           int    `json:"quota"`
	Currency        string `json:"currency"`
}

type PaymentService interface {
	ProcessPayment(ctx context.Context, userID int64, p Purchase) (PaymentResult, error)
	ValidatePurchase(ctx context.Context, userID int64, transactionID, productID, receipt string) (PaymentResult, error)
	MockPurchase(ctx context.Context, userID int64, productID string) (PaymentResult, error)
	Products() []ProductView
	TransactionHistory(ctx context.Context, userID int64, limit int) ([]model.Transaction, error)
}

type PaymentOptions struct {
	AllowUnverifiedReceipts bool
	EnableMockPurchase      bool
	EventsTopic             string
}

type paymentService struct {
	repo      repository.PaymentRepository
	catalog   config.Catalog
	verifier  ReceiptVerifier
	publisher pubsub.Publisher
	opts      PaymentOptions
	logger    zerolog.Logger
}

func NewPaymentService(
	repo repository.PaymentRepository,
	catalog config.Catalog,
	verifier ReceiptVerifier,
	publisher pubsub.Publisher,
	opts PaymentOptions,
	logger zerolog.Logger,
) PaymentService {
	if verifier == nil {
		verifier = UnverifiedReceipts{}
	}
	if publisher == nil {
		publisher = pubsub.Noop{}
	}
	return &paymentService{
		repo:      repo,
		catalog:   catalog,
		verifier:  verifier,
		publisher: publisher,
		opts:      opts,
		logger:    logger.With().Str("service", "PaymentService").Logger(),
	}
}

func (s *paymentService) ProcessPayment(ctx context.Context, userID int64, p Purchase) (PaymentResult, error) {
	p.TransactionID = strings.TrimSpace(p.TransactionID)
	if p.TransactionID == "" {
		return nil, invalidArgument("transaction id is required")
	}
	if p.Quota <= 0 {
		return nil, invalidArgument("quota to add must be positive")
	}

	if done, err := s.processed(ctx, userID, p.TransactionID); done != nil || err != nil {
		return done, err
	}

	t := &model.Transaction{
		UserID:        userID,
		TransactionID: p.TransactionID,
		ProductID:     p.ProductID,
		Amount:        p.Amount,
		QuotaAdded:    p.Quota,
		Status:        model.TransactionCompleted,
		ReceiptData:   p.Receipt,
	}
	balance, err := s.repo.CreditTransaction(ctx, t)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			// Lost a race with a concurrent request for the same id.
			if done, err := s.processed(ctx, userID, p.TransactionID); done != nil || err != nil {
				return done, err
			}
			return nil, ErrAlreadyProcessed
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("user_id", userID).Str("transaction_id", p.TransactionID).Msg("Failed to credit transaction")
		return nil, err
	}

	s.logger.Info().Int64("user_id", userID).Str("transaction_id", p.TransactionID).Int("quota_added", p.Quota).Int("quota_remaining", balance).Msg("Payment completed")
	if s.opts.EventsTopic != "" {
		if _, err := pubsub.PublishEvent(ctx, s.publisher, s.opts.EventsTopic, pubsub.Event{
			Type:   pubsub.EventPaymentCompleted,
			UserID: userID,
			Data:   map[string]any{"transaction_id": t.TransactionID, "product_id": t.ProductID, "quota_added": t.QuotaAdded},
		}); err != nil {
			s.logger.Warn().Err(err).Int64("user_id", userID).Str("event", pubsub.EventPaymentCompleted).Msg("Failed to publish event")
		}
	}
	return PaymentCompleted{Transaction: t, QuotaAdded: p.Quota, QuotaRemaining: balance}, nil
}

// processed reports a replay of transactionID. A transaction id recorded for
// a different user is rejected outright.
func (s *paymentService) processed(ctx context.Context, userID int64, transactionID string) (PaymentResult, error) {
	existing, err := s.repo.GetTransactionByExternalID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if existing.UserID != userID {
		s.logger.Warn().Int64("user_id", userID).Str("transaction_id", transactionID).Msg("Transaction id belongs to another user")
		return nil, ErrAlreadyProcessed
	}
	return PaymentAlreadyProcessed{Transaction: existing}, nil
}

func (s *paymentService) ValidatePurchase(ctx context.Context, userID int64, transactionID, productID, receipt string) (PaymentResult, error) {
	product, ok := s.catalog.Lookup(productID)
	if !ok {
		return nil, invalidArgument("unknown product %q", productID)
	}
	if err := s.verifyOneTime(ctx, productID, receipt); err != nil {
		return nil, err
	}
	return s.ProcessPayment(ctx, userID, Purchase{
		TransactionID: transactionID,
		ProductID:     product.ID,
		Amount:        product.AmountCents,
		Quota:         product.Quota,
		Receipt:       receipt,
	})
}

func (s *paymentService) verifyOneTime(ctx context.Context, productID, receipt string) error {
	if strings.TrimSpace(receipt) == "" {
		return fmt.Errorf("%w: receipt is empty", ErrVerificationFailed)
	}
	verifier := s.verifier
	if !verifier.IsConfigured() {
		if !s.opts.AllowUnverifiedReceipts {
			return fmt.Errorf("%w: receipt verification is not configured", ErrVerificationFailed)
		}
		verifier = UnverifiedReceipts{}
	}
	v, err := verifier.VerifyOneTime(ctx, productID, receipt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	if !v.Valid {
		return ErrVerificationFailed
	}
	return nil
}

func (s *paymentService) MockPurchase(ctx context.Context, userID int64, productID string) (PaymentResult, error) {
	if !s.opts.EnableMockPurchase {
		return nil, ErrMockPurchaseDisabled
	}
	product, ok := s.catalog.Lookup(productID)
	if !ok {
		return nil, invalidArgument("unknown product %q", productID)
	}
	txID, err := mockTransactionID()
	if err != nil {
		return nil, err
	}
	return s.ProcessPayment(ctx, userID, Purchase{
		TransactionID: txID,
		ProductID:     product.ID,
		Amount:        product.AmountCents,
		Quota:         product.Quota,
		Receipt:       MockReceipt,
	})
}

// mockTransactionID returns MOCK- followed by 16 upper-case hex digits.
func mockTransactionID() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generating mock transaction id: %w", err)
	}
	return "MOCK-" + strings.ToUpper(hex.EncodeToString(b[:])), nil
}

func (s *paymentService) Products() []ProductView {
	products := s.catalog.Products()
	out := make([]ProductView, len(products))
	for i, p := range products {
		currency := p.Currency
		if currency == "" {
			currency = "USD"
		}
		out[i] = ProductView{
			ProductID:       p.ID,
			Name:            p.Name,
			Amount:          p.AmountCents,
			AmountFormatted: FormatAmount(p.AmountCents),
			Quota:           p.Quota,
			Currency:        currency,
		}
	}
	return out
}

// FormatAmount renders minor units as dollars, e.g. 100 as "$1.00".
func FormatAmount(cents int) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

func (s *paymentService) TransactionHistory(ctx context.Context, userID int64, limit int) ([]model.Transaction, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	txs, err := s.repo.ListTransactions(ctx, userID, limit)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to list transactions")
		return nil, err
	}
	return txs, nil
}
