package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/samuelysliu/pdf-editor/internal/model"
	"github.com/samuelysliu/pdf-editor/internal/repository/memory"
	"github.com/samuelysliu/pdf-editor/internal/service"
	"github.com/samuelysliu/pdf-editor/internal/service/mocks"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newSubscriptionFixture(t *testing.T, verifier service.ReceiptVerifier) (*memory.Store, *clock, *model.User, service.SubscriptionService) {
	t.Helper()
	c := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := memory.NewWithClock(c.now)
	u := newUser(t, store, "alice", 0)
	svc := service.NewSubscriptionService(store, verifier, service.SubscriptionOptions{
		DefaultDays:             30,
		AllowUnverifiedReceipts: true,
		Now:                     c.now,
	}, zerolog.Nop())
	return store, c, u, svc
}

func activation(tx string, days int) service.SubscriptionActivation {
	return service.SubscriptionActivation{ProductID: "pdf_editor_monthly", TransactionID: tx, Receipt: "token", DurationDays: days}
}

func TestActivateCreatesThenExtends(t *testing.T) {
	_, c, u, svc := newSubscriptionFixture(t, nil)
	ctx := context.Background()

	first, err := svc.ActivateSubscription(ctx, u.ID, activation("SUB-1", 30))
	require.NoError(t, err)
	assert.False(t, first.AlreadyProcessed)
	assert.Equal(t, model.SubscriptionActive, first.Subscription.Status)
	assert.Equal(t, c.t.AddDate(0, 0, 30), first.Subscription.EndDate)

	c.t = c.t.AddDate(0, 0, 10)
	second, err := svc.ActivateSubscription(ctx, u.ID, activation("SUB-2", 30))
	require.NoError(t, err)
	assert.Equal(t, first.Subscription.ID, second.Subscription.ID)
	assert.Equal(t, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), second.Subscription.EndDate)
}

func TestActivateReplayDoesNotExtend(t *testing.T) {
	_, _, u, svc := newSubscriptionFixture(t, nil)
	ctx := context.Background()

	first, err := svc.ActivateSubscription(ctx, u.ID, activation("SUB-1", 30))
	require.NoError(t, err)
	again, err := svc.ActivateSubscription(ctx, u.ID, activation("SUB-1", 30))
	require.NoError(t, err)
	assert.True(t, again.AlreadyProcessed)
	assert.Equal(t, first.Subscription.EndDate, again.Subscription.EndDate)
}

func TestActivateReplayOfForeignTransactionRejected(t *testing.T) {
	store, _, alice, svc := newSubscriptionFixture(t, nil)
	bob := newUser(t, store, "bob", 0)
	ctx := context.Background()

	_, err := svc.ActivateSubscription(ctx, alice.ID, activation("SUB-1", 30))
	require.NoError(t, err)
	_, err = svc.ActivateSubscription(ctx, bob.ID, activation("SUB-2", 30))
	require.NoError(t, err)

	_, err = svc.ActivateSubscription(ctx, bob.ID, activation("SUB-1", 30))
	assert.ErrorIs(t, err, service.ErrAlreadyProcessed)
}

func TestActivateReplayAfterExtension(t *testing.T) {
	_, _, u, svc := newSubscriptionFixture(t, nil)
	ctx := context.Background()

	_, err := svc.ActivateSubscription(ctx, u.ID, activation("SUB-1", 30))
	require.NoError(t, err)
	extended, err := svc.ActivateSubscription(ctx, u.ID, activation("SUB-2", 30))
	require.NoError(t, err)

	again, err := svc.ActivateSubscription(ctx, u.ID, activation("SUB-1", 30))
	require.NoError(t, err)
	assert.True(t, again.AlreadyProcessed)
	assert.Equal(t, extended.Subscription.EndDate, again.Subscription.EndDate)
}

func TestActivateVerifierExpiryWins(t *testing.T) {
	expires := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	verifier := new(mocks.MockReceiptVerifier)
	verifier.On("IsConfigured").Return(true)
	verifier.On("VerifySubscription", mock.Anything, "pdf_editor_monthly", "token").
		Return(service.Verification{Valid: true, ExpiresAt: expires}, nil)
	_, _, u, svc := newSubscriptionFixture(t, verifier)

	act, err := svc.ActivateSubscription(context.Background(), u.ID, activation("SUB-1", 30))
	require.NoError(t, err)
	assert.Equal(t, expires, act.Subscription.EndDate)
}

func TestActivateRejectsInvalidReceipt(t *testing.T) {
	verifier := new(mocks.MockReceiptVerifier)
	verifier.On("IsConfigured").Return(true)
	verifier.On("VerifySubscription", mock.Anything, mock.Anything, mock.Anything).Return(service.Verification{}, nil)
	_, _, u, svc := newSubscriptionFixture(t, verifier)

	_, err := svc.ActivateSubscription(context.Background(), u.ID, activation("SUB-1", 30))
	assert.ErrorIs(t, err, service.ErrVerificationFailed)
}

func TestStatusExpiresLazily(t *testing.T) {
	_, c, u, svc := newSubscriptionFixture(t, nil)
	ctx := context.Background()

	_, err := svc.ActivateSubscription(ctx, u.ID, activation("SUB-1", 1))
	require.NoError(t, err)

	st, err := svc.Status(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, st.Active)

	c.t = c.t.Add(24 * time.Hour)
	st, err = svc.Status(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, st.Active)
	require.Len(t, st.History, 1)
	assert.Equal(t, model.SubscriptionExpired, st.History[0].Status)
}

func TestCancel(t *testing.T) {
	store, _, u, svc := newSubscriptionFixture(t, nil)
	other := newUser(t, store, "bob", 0)
	ctx := context.Background()

	act, err := svc.ActivateSubscription(ctx, u.ID, activation("SUB-1", 30))
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, other.ID, act.Subscription.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)

	sub, err := svc.Cancel(ctx, u.ID, act.Subscription.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionCancelled, sub.Status)

	_, err = svc.Cancel(ctx, u.ID, act.Subscription.ID)
	assert.ErrorIs(t, err, service.ErrInvalidArgument)
}
