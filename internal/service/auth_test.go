package service_test

import (
	"context"
	"testing"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"
	"github.com/dubbletrubble/TsukiNijiLabsA/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(env *testEnv) *service.AuthService {
	return service.NewAuthService(env.store.Accounts, env.store.Sessions, "test-secret")
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	auth := newAuthService(env)
	ctx := context.Background()

	resp, err := auth.Register(ctx, &model.RegisterRequest{
		Username: "alice",
		Email:    "Alice@Example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "alice@example.com", resp.Account.Email)

	accountID, username, err := auth.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.Account.ID, accountID)
	assert.Equal(t, "alice", username)

	login, err := auth.Login(ctx, &model.LoginRequest{Username: "alice", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, resp.Account.ID, login.Account.ID)

	_, err = auth.Login(ctx, &model.LoginRequest{Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, err = auth.Login(ctx, &model.LoginRequest{Username: "nobody", Password: "whatever"})
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	auth := newAuthService(env)
	ctx := context.Background()

	_, err := auth.Register(ctx, &model.RegisterRequest{Username: "al", Email: "a@b.c", Password: "longenough"})
	assert.ErrorIs(t, err, service.ErrInvalidUsername)

	_, err = auth.Register(ctx, &model.RegisterRequest{Username: "alice", Email: "a@b.c", Password: "short"})
	assert.ErrorIs(t, err, service.ErrWeakPassword)

	_, err = auth.Register(ctx, &model.RegisterRequest{Username: "alice", Email: "a@b.c", Password: "longenough"})
	require.NoError(t, err)

	_, err = auth.Register(ctx, &model.RegisterRequest{Username: "alice", Email: "other@b.c", Password: "longenough"})
	assert.ErrorIs(t, err, service.ErrUserExists)
}

func TestRefreshRotation(t *testing.T) {
	env := newTestEnv(t)
	auth := newAuthService(env)
	ctx := context.Background()

	resp, err := auth.Register(ctx, &model.RegisterRequest{Username: "alice", Email: "a@b.c", Password: "longenough"})
	require.NoError(t, err)

	pair, err := auth.Refresh(ctx, resp.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, resp.RefreshToken, pair.RefreshToken)

	// Refresh tokens are single use.
	_, err = auth.Refresh(ctx, resp.RefreshToken)
	assert.ErrorIs(t, err, service.ErrInvalidToken)

	require.NoError(t, auth.Logout(ctx, pair.RefreshToken))
	_, err = auth.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, service.ErrInvalidToken)
}

func TestSystemAccountsCannotLogIn(t *testing.T) {
	env := newTestEnv(t)
	auth := newAuthService(env)
	ctx := context.Background()

	_, err := auth.Login(ctx, &model.LoginRequest{Username: model.SystemTreasury, Password: ""})
	assert.ErrorIs(t, err, service.ErrBanned)
}

func TestValidateAccessTokenRejectsGarbage(t *testing.T) {
	env := newTestEnv(t)
	auth := newAuthService(env)

	_, _, err := auth.ValidateAccessToken("not.a.jwt")
	assert.ErrorIs(t, err, service.ErrInvalidToken)

	// A token signed under a different secret must not validate.
	other := service.NewAuthService(env.store.Accounts, env.store.Sessions, "other-secret")
	resp, err := other.Register(context.Background(), &model.RegisterRequest{Username: "mallory", Email: "m@b.c", Password: "longenough"})
	require.NoError(t, err)

	_, _, err = auth.ValidateAccessToken(resp.AccessToken)
	assert.ErrorIs(t, err, service.ErrInvalidToken)
}

func TestRegistryProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	registry := service.NewRegistryService(env.store.Tokens, env.store.Ledger, env.store.Admins, env.store.Accounts)

	alice := env.newAccount(t, "alice", 1234)
	env.makeAdmin(t, alice)
	env.mintToken(t, 1, alice)

	profile, err := registry.Profile(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, int64(1234), profile.Balance)
	assert.True(t, profile.IsAdmin)

	ownerID, err := registry.OwnerOf(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, ownerID)

	_, err = registry.OwnerOf(ctx, 99)
	assert.ErrorIs(t, err, model.ErrUnknownToken)

	balance, err := registry.BalanceOf(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), balance)
}
