package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvshvl/platform-core/internal/domain"
	"github.com/kvshvl/platform-core/pkg/clock"
)

var authT0 = time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)

func newAuthFixture(t *testing.T) (*AuthService, *fakeUserStore, *clock.Fake) {
	t.Helper()
	users := newFakeUserStore()
	clk := clock.NewFake(authT0)
	svc := NewAuthService(NewTokenVerifier(secretA, secretB), users, clk, 7*24*time.Hour, discardLogger())
	return svc, users, clk
}

func validBearer(t *testing.T, email string) string {
	return signToken(t, secretA, jwt.MapClaims{
		"sub":   "sub-1",
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
}

func TestAuthenticateCreatesTrialUser(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	user, err := svc.Authenticate(context.Background(), validBearer(t, "alice@example.com"))
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, domain.TierTrial, user.SubscriptionTier)
	assert.Equal(t, domain.StatusActive, user.SubscriptionStatus)
	require.NotNil(t, user.SubscriptionExpiresAt)
	assert.Equal(t, authT0.Add(7*24*time.Hour), *user.SubscriptionExpiresAt)
	assert.True(t, user.IsActive)
}

func TestAuthenticateIdempotentIdentity(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	first, err := svc.Authenticate(ctx, validBearer(t, "alice@example.com"))
	require.NoError(t, err)
	second, err := svc.Authenticate(ctx, validBearer(t, "alice@example.com"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestAuthenticateBadToken(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	_, err := svc.Authenticate(context.Background(), "garbage")
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, appErr.Code)
	assert.Equal(t, domain.ReasonUnauthenticated, appErr.Reason)
}

func TestAuthenticateInactiveUser(t *testing.T) {
	svc, users, _ := newAuthFixture(t)
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, validBearer(t, "alice@example.com"))
	require.NoError(t, err)
	require.NoError(t, users.SetActive(ctx, user.ID, false))

	_, err = svc.Authenticate(ctx, validBearer(t, "alice@example.com"))
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, appErr.Code)
	assert.Equal(t, domain.ReasonInactiveUser, appErr.Reason)
}

func TestAuthenticateDowngradesExpiredTrial(t *testing.T) {
	svc, users, clk := newAuthFixture(t)
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, validBearer(t, "alice@example.com"))
	require.NoError(t, err)

	clk.Advance(8 * 24 * time.Hour)
	user, err = svc.Authenticate(ctx, validBearer(t, "alice@example.com"))
	require.NoError(t, err)
	assert.Equal(t, domain.TierExpired, user.SubscriptionTier)
	assert.Equal(t, domain.StatusExpired, user.SubscriptionStatus)

	// The downgrade is persisted, not just applied to the in-flight copy.
	stored := users.get(user.ID)
	require.NotNil(t, stored)
	assert.Equal(t, domain.TierExpired, stored.SubscriptionTier)
}

func TestAuthenticateRefusesCorruptState(t *testing.T) {
	svc, users, _ := newAuthFixture(t)
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, validBearer(t, "alice@example.com"))
	require.NoError(t, err)

	// A row no code path can produce: auto-renew with no provider
	// subscription. The gate must refuse, not guess at a repair.
	user.SubscriptionAutoRenew = true
	user.ProviderSubscriptionID = ""
	users.add(user)

	_, err = svc.Authenticate(ctx, validBearer(t, "alice@example.com"))
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, appErr.Code)

	// The corrupt row is left untouched for investigation.
	stored := users.get(user.ID)
	assert.True(t, stored.SubscriptionAutoRenew)
	assert.Equal(t, domain.TierTrial, stored.SubscriptionTier)
}

func TestAuthenticateOptional(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	user, err := svc.AuthenticateOptional(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestRequireSubscription(t *testing.T) {
	svc, _, clk := newAuthFixture(t)
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, validBearer(t, "alice@example.com"))
	require.NoError(t, err)
	assert.NoError(t, svc.RequireSubscription(user))

	clk.Advance(8 * 24 * time.Hour)
	user, err = svc.Authenticate(ctx, validBearer(t, "alice@example.com"))
	require.NoError(t, err)

	err = svc.RequireSubscription(user)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusPaymentRequired, appErr.Code)
	assert.Equal(t, domain.ReasonUpgradeRequired, appErr.Reason)
}

func TestSetUserActive(t *testing.T) {
	svc, users, _ := newAuthFixture(t)
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, validBearer(t, "alice@example.com"))
	require.NoError(t, err)

	require.NoError(t, svc.SetUserActive(ctx, user.ID, false))
	stored := users.get(user.ID)
	assert.False(t, stored.IsActive)

	err = svc.SetUserActive(ctx, "missing-id", false)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, appErr.Code)
}
