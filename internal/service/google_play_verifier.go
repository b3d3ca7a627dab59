package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/option"
)

const purchaseStatePurchased = 0

type googlePlayVerifier struct {
	svc         *androidpublisher.Service
	packageName string
	now         func() time.Time
	logger      zerolog.Logger
}

// NewGooglePlayVerifier builds a verifier on the Android Publisher API. The
// service-account key is given as raw JSON.
func NewGooglePlayVerifier(ctx context.Context, packageName string, credentialsJSON []byte, logger zerolog.Logger, opts ...option.ClientOption) (ReceiptVerifier, error) {
	if packageName == "" {
		return nil, fmt.Errorf("google play package name is required")
	}
	if len(credentialsJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(credentialsJSON))
	}
	opts = append(opts, option.WithScopes(androidpublisher.AndroidpublisherScope))
	svc, err := androidpublisher.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create android publisher client: %w", err)
	}
	return &googlePlayVerifier{
		svc:         svc,
		packageName: packageName,
		now:         time.Now,
		logger:      logger.With().Str("service", "GooglePlayVerifier").Logger(),
	}, nil
}

func (v *googlePlayVerifier) IsConfigured() bool { return true }

func (v *googlePlayVerifier) VerifyOneTime(ctx context.Context, productID, token string) (Verification, error) {
	p, err := v.svc.Purchases.Products.Get(v.packageName, productID, token).Context(ctx).Do()
	if err != nil {
		v.logger.Error().Err(err).Str("product_id", productID).Msg("One-time purchase verification failed")
		return Verification{}, fmt.Errorf("verifying purchase of %s: %w", productID, err)
	}
	valid := p.PurchaseState == purchaseStatePurchased
	v.logger.Info().Str("product_id", productID).Bool("valid", valid).Int64("purchase_state", p.PurchaseState).Msg("One-time purchase verified")
	return Verification{Valid: valid, OrderID: p.OrderId}, nil
}

func (v *googlePlayVerifier) VerifySubscription(ctx context.Context, subscriptionID, token string) (Verification, error) {
	p, err := v.svc.Purchases.Subscriptions.Get(v.packageName, subscriptionID, token).Context(ctx).Do()
	if err != nil {
		v.logger.Error().Err(err).Str("subscription_id", subscriptionID).Msg("Subscription verification failed")
		return Verification{}, fmt.Errorf("verifying subscription %s: %w", subscriptionID, err)
	}
	expires := time.UnixMilli(p.ExpiryTimeMillis).UTC()
	valid := expires.After(v.now())
	v.logger.Info().Str("subscription_id", subscriptionID).Bool("valid", valid).Time("expires_at", expires).Msg("Subscription verified")
	return Verification{Valid: valid, OrderID: p.OrderId, ExpiresAt: expires}, nil
}
