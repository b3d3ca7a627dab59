package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samuelysliu/pdf-editor/internal/model"
	"github.com/samuelysliu/pdf-editor/internal/repository"

	"github.com/rs/zerolog"
)

// Activation is the outcome of ActivateSubscription. AlreadyProcessed is set
// when the transaction id was seen before; Subscription is then the user's
// current subscription and nothing was extended.
type Activation struct {
	Subscription     *model.Subscription
	AlreadyProcessed bool
}

// SubscriptionOverview is the active subscription, if any, and the history.
type SubscriptionOverview struct {
	Active  *model.Subscription
	History []model.Subscription
}

// SubscriptionActivation carries the purchase to activate. DurationDays of 0
// takes the configured default.
type SubscriptionActivation struct {
	ProductID     string
	TransactionID string
	Receipt       string
	DurationDays  int
}

// SubscriptionService defines business logic methods for subscriptions.
type SubscriptionService interface {
	ActivateSubscription(ctx context.Context, userID int64, a SubscriptionActivation) (*Activation, error)
	// CheckAndExpire moves ended active subscriptions to expired.
	CheckAndExpire(ctx context.Context, userID int64) (int64, error)
	Status(ctx context.Context, userID int64) (*SubscriptionOverview, error)
	Cancel(ctx context.Context, userID, subscriptionID int64) (*model.Subscription, error)
}

type SubscriptionOptions struct {
	DefaultDays             int
	AllowUnverifiedReceipts bool
	// Now defaults to time.Now.
	Now func() time.Time
}

type subscriptionService struct {
	repo     repository.SubscriptionRepository
	verifier ReceiptVerifier
	opts     SubscriptionOptions
	now      func() time.Time
	logger   zerolog.Logger
}

// NewSubscriptionService creates a new SubscriptionService with a scoped logger.
func NewSubscriptionService(repo repository.SubscriptionRepository, verifier ReceiptVerifier, opts SubscriptionOptions, logger zerolog.Logger) SubscriptionService {
	if verifier == nil {
		verifier = UnverifiedReceipts{}
	}
	if opts.DefaultDays <= 0 {
		opts.DefaultDays = 30
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &subscriptionService{
		repo:     repo,
		verifier: verifier,
		opts:     opts,
		now:      now,
		logger:   logger.With().Str("service", "SubscriptionService").Logger(),
	}
}

func (s *subscriptionService) verify(ctx context.Context, productID, receipt string) (Verification, error) {
	if strings.TrimSpace(receipt) == "" {
		return Verification{}, fmt.Errorf("%w: receipt is empty", ErrVerificationFailed)
	}
	verifier := s.verifier
	if !verifier.IsConfigured() {
		if !s.opts.AllowUnverifiedReceipts {
			return Verification{}, fmt.Errorf("%w: receipt verification is not configured", ErrVerificationFailed)
		}
		verifier = UnverifiedReceipts{}
	}
	v, err := verifier.VerifySubscription(ctx, productID, receipt)
	if err != nil {
		return Verification{}, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	if !v.Valid {
		return Verification{}, ErrVerificationFailed
	}
	return v, nil
}

func (s *subscriptionService) ActivateSubscription(ctx context.Context, userID int64, a SubscriptionActivation) (*Activation, error) {
	a.TransactionID = strings.TrimSpace(a.TransactionID)
	if a.TransactionID == "" || a.ProductID == "" {
		return nil, invalidArgument("product id and transaction id are required")
	}
	if a.DurationDays < 0 {
		return nil, invalidArgument("duration must not be negative")
	}
	days := a.DurationDays
	if days == 0 {
		days = s.opts.DefaultDays
	}

	v, err := s.verify(ctx, a.ProductID, a.Receipt)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if _, err := s.repo.ExpireSubscriptions(ctx, userID, now); err != nil {
		return nil, err
	}
	sub, err := s.repo.GrantSubscription(ctx, repository.SubscriptionGrant{
		UserID:        userID,
		ProductID:     a.ProductID,
		TransactionID: a.TransactionID,
		Receipt:       a.Receipt,
		Now:           now,
		Duration:      time.Duration(days) * 24 * time.Hour,
		ExpiresAt:     v.ExpiresAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return s.replayed(ctx, userID, a.TransactionID)
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("user_id", userID).Str("transaction_id", a.TransactionID).Msg("Failed to grant subscription")
		return nil, err
	}
	s.logger.Info().Int64("user_id", userID).Int64("subscription_id", sub.ID).Time("end_date", sub.EndDate).Msg("Subscription activated")
	return &Activation{Subscription: sub}, nil
}

// replayed resolves the subscription a repeated transaction id refers to. An
// id recorded for another user is rejected outright.
func (s *subscriptionService) replayed(ctx context.Context, userID int64, transactionID string) (*Activation, error) {
	ledger, err := s.repo.GetTransactionByExternalID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAlreadyProcessed
		}
		return nil, err
	}
	if ledger.UserID != userID {
		s.logger.Warn().Int64("user_id", userID).Str("transaction_id", transactionID).Msg("Transaction id belongs to another user")
		return nil, ErrAlreadyProcessed
	}

	subs, err := s.repo.ListSubscriptions(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		if subs[i].TransactionID == transactionID {
			return &Activation{Subscription: &subs[i], AlreadyProcessed: true}, nil
		}
	}
	// The subscription was extended by a later purchase since.
	active, err := s.repo.GetActiveSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAlreadyProcessed
		}
		return nil, err
	}
	return &Activation{Subscription: active, AlreadyProcessed: true}, nil
}

func (s *subscriptionService) CheckAndExpire(ctx context.Context, userID int64) (int64, error) {
	n, err := s.repo.ExpireSubscriptions(ctx, userID, s.now().UTC())
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to expire subscriptions")
		return 0, err
	}
	if n > 0 {
		s.logger.Info().Int64("user_id", userID).Int64("expired", n).Msg("Subscriptions expired")
	}
	return n, nil
}

func (s *subscriptionService) Status(ctx context.Context, userID int64) (*SubscriptionOverview, error) {
	if _, err := s.CheckAndExpire(ctx, userID); err != nil {
		return nil, err
	}
	history, err := s.repo.ListSubscriptions(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &SubscriptionOverview{History: history}
	active, err := s.repo.GetActiveSubscription(ctx, userID)
	switch {
	case err == nil:
		out.Active = active
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}
	return out, nil
}

func (s *subscriptionService) Cancel(ctx context.Context, userID, subscriptionID int64) (*model.Subscription, error) {
	if _, err := s.CheckAndExpire(ctx, userID); err != nil {
		return nil, err
	}
	sub, err := s.repo.GetSubscription(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("subscription %d: %w", subscriptionID, ErrNotFound)
		}
		return nil, err
	}
	if sub.UserID != userID {
		return nil, fmt.Errorf("subscription %d: %w", subscriptionID, ErrNotFound)
	}
	if sub.Status != model.SubscriptionActive {
		return nil, invalidArgument("subscription %d is %s", subscriptionID, sub.Status)
	}
	if err := s.repo.SetSubscriptionStatus(ctx, subscriptionID, model.SubscriptionCancelled); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Int64("subscription_id", subscriptionID).Msg("Failed to cancel subscription")
		return nil, err
	}
	sub.Status = model.SubscriptionCancelled
	s.logger.Info().Int64("user_id", userID).Int64("subscription_id", subscriptionID).Msg("Subscription cancelled")
	return sub, nil
}
