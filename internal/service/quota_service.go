package service

import (
	"context"
	"errors"

	"github.com/samuelysliu/pdf-editor/internal/repository"

	"github.com/rs/zerolog"
)

// DeductResult reports a quota check. When OK is false nothing was deducted
// and Available is the untouched balance.
type DeductResult struct {
	OK        bool
	Needed    int
	Available int
	Remaining int
}

type QuotaStatus struct {
	UserID int64 `json:"user_id"`
	Quota  int   `json:"quota"`
}

// QuotaService is the page-quota ledger.
type QuotaService interface {
	CheckAndDeduct(ctx context.Context, userID int64, pages int) (DeductResult, error)
	Add(ctx context.Context, userID int64, pages int) (int, error)
	Status(ctx context.Context, userID int64) (QuotaStatus, error)
}

type quotaService struct {
	repo   repository.QuotaRepository
	logger zerolog.Logger
}

func NewQuotaService(repo repository.QuotaRepository, logger zerolog.Logger) QuotaService {
	return &quotaService{
		repo:   repo,
		logger: logger.With().Str("service", "QuotaService").Logger(),
	}
}

func (s *quotaService) CheckAndDeduct(ctx context.Context, userID int64, pages int) (DeductResult, error) {
	if pages <= 0 {
		return DeductResult{}, invalidArgument("pages must be positive, got %d", pages)
	}
	balance, ok, err := s.repo.DeductQuota(ctx, userID, pages)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return DeductResult{}, ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("user_id", userID).Int("pages", pages).Msg("Failed to deduct quota")
		return DeductResult{}, err
	}
	if !ok {
		s.logger.Info().Int64("user_id", userID).Int("needed", pages).Int("available", balance).Msg("Insufficient quota")
		return DeductResult{OK: false, Needed: pages, Available: balance, Remaining: balance}, nil
	}
	return DeductResult{OK: true, Needed: pages, Available: balance + pages, Remaining: balance}, nil
}

func (s *quotaService) Add(ctx context.Context, userID int64, pages int) (int, error) {
	if pages <= 0 {
		return 0, invalidArgument("pages must be positive, got %d", pages)
	}
	balance, err := s.repo.AddQuota(ctx, userID, pages)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("user_id", userID).Int("pages", pages).Msg("Failed to add quota")
		return 0, err
	}
	return balance, nil
}

func (s *quotaService) Status(ctx context.Context, userID int64) (QuotaStatus, error) {
	balance, err := s.repo.GetQuota(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return QuotaStatus{}, ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to fetch quota")
		return QuotaStatus{}, err
	}
	return QuotaStatus{UserID: userID, Quota: balance}, nil
}
