package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/samuelysliu/pdf-editor/internal/repository/memory"
	"github.com/samuelysliu/pdf-editor/internal/service"
	"github.com/samuelysliu/pdf-editor/internal/util"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(store *memory.Store) service.UserService {
	return service.NewUserService(store, service.AuthConfig{
		JWTSecret:    "test-secret",
		TokenTTL:     time.Hour,
		DefaultQuota: 5,
	}, zerolog.Nop())
}

func TestRegisterAndLogin(t *testing.T) {
	store := memory.New()
	svc := newUserService(store)
	ctx := context.Background()

	u, err := svc.Register(ctx, " alice ", "Alice@Example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, 5, u.Quota)
	assert.NotEqual(t, "hunter22", u.PasswordHash)

	sess, err := svc.Login(ctx, "alice", "hunter22")
	require.NoError(t, err)
	claims, err := util.ValidateJWT(sess.Token, "test-secret")
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	got, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
}

func TestRegisterDuplicate(t *testing.T) {
	svc := newUserService(memory.New())
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "a@example.com", "hunter22")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "alice", "b@example.com", "hunter22")
	assert.ErrorIs(t, err, service.ErrUsernameTaken)
}

func TestRegisterShortPassword(t *testing.T) {
	svc := newUserService(memory.New())
	_, err := svc.Register(context.Background(), "alice", "a@example.com", "123")
	assert.ErrorIs(t, err, service.ErrInvalidArgument)
}

func TestLoginFailures(t *testing.T) {
	svc := newUserService(memory.New())
	ctx := context.Background()
	_, err := svc.Register(ctx, "alice", "a@example.com", "hunter22")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	_, err = svc.Login(ctx, "bob", "hunter22")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestGetUnknownUser(t *testing.T) {
	_, err := newUserService(memory.New()).Get(context.Background(), 42)
	assert.ErrorIs(t, err, service.ErrUserNotFound)
}
