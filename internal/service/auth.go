package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/kvshvl/platform-core/internal/domain"
	"github.com/kvshvl/platform-core/pkg/clock"
)

// AuthService is the request gate: it turns a bearer string into an
// authorized platform user, materializing the user on first contact and
// keeping the subscription status honest on every request.
type AuthService struct {
	verifier      *TokenVerifier
	users         UserStore
	clock         clock.Clock
	trialDuration time.Duration
	log           *slog.Logger
}

func NewAuthService(verifier *TokenVerifier, users UserStore, clk clock.Clock, trialDuration time.Duration, log *slog.Logger) *AuthService {
	return &AuthService{
		verifier:      verifier,
		users:         users,
		clock:         clk,
		trialDuration: trialDuration,
		log:           log,
	}
}

// Authenticate verifies the bearer, gets or creates the user, applies the
// expiry downgrade, and enforces the soft-disable flag. Verification
// failures come back as a single undifferentiated 401: the caller learns
// nothing about which check failed.
func (s *AuthService) Authenticate(ctx context.Context, bearer string) (*domain.User, error) {
	claims, err := s.verifier.Verify(bearer)
	if err != nil {
		// Expected traffic, not an operational error.
		s.log.Debug("token rejected", "reason", err.Error())
		return nil, domain.ErrUnauthorized("invalid or expired token")
	}

	now := s.clock.Now()
	user, err := s.users.GetOrCreate(ctx, claims, now, s.trialDuration)
	if err != nil {
		return nil, domain.ErrInternal("failed to load user", err)
	}

	if err := domain.CheckStoredState(user); err != nil {
		s.log.Error("corrupt subscription state",
			"user_id", user.ID,
			"tier", user.SubscriptionTier,
			"status", user.SubscriptionStatus,
			"error", err,
		)
		return nil, domain.ErrInternal("corrupt subscription state", err)
	}

	if before := user.SubscriptionTier; domain.EnsureStatus(user, now) {
		if err := s.users.Update(ctx, user); err != nil {
			return nil, domain.ErrInternal("failed to persist downgrade", err)
		}
		s.log.Info("subscription downgraded",
			"event", "subscription.downgraded",
			"user_id", user.ID,
			"before_state", before,
			"after_state", user.SubscriptionTier,
		)
	}

	if !user.IsActive {
		return nil, domain.ErrInactiveUser()
	}
	return user, nil
}

// AuthenticateOptional behaves like Authenticate but yields (nil, nil)
// when no bearer is present at all.
func (s *AuthService) AuthenticateOptional(ctx context.Context, bearer string) (*domain.User, error) {
	if bearer == "" {
		return nil, nil
	}
	return s.Authenticate(ctx, bearer)
}

// RequireSubscription is the strict gate variant: the user must also hold
// an active trial or paid subscription.
func (s *AuthService) RequireSubscription(user *domain.User) error {
	if !domain.HasActiveSubscription(user, s.clock.Now()) {
		return domain.ErrUpgradeRequired()
	}
	return nil
}

// GetUser returns a user profile by ID.
func (s *AuthService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, domain.ErrInternal("failed to find user", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound("user not found")
	}
	return user, nil
}

// ListUsers returns all users (admin only).
func (s *AuthService) ListUsers(ctx context.Context) ([]*domain.UserResponse, error) {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to list users", err)
	}
	out := make([]*domain.UserResponse, len(users))
	for i, u := range users {
		out[i] = &domain.UserResponse{
			ID:                    u.ID,
			Email:                 u.Email,
			SubscriptionTier:      u.SubscriptionTier,
			SubscriptionStatus:    u.SubscriptionStatus,
			SubscriptionExpiresAt: u.SubscriptionExpiresAt,
			IsActive:              u.IsActive,
			CreatedAt:             u.CreatedAt,
			LastLoginAt:           u.LastLoginAt,
		}
	}
	return out, nil
}

// SetUserActive toggles the soft-disable flag (admin only). Disabled
// users keep their rows; nothing is ever destroyed.
func (s *AuthService) SetUserActive(ctx context.Context, id string, active bool) error {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return domain.ErrInternal("failed to find user", err)
	}
	if user == nil {
		return domain.ErrNotFound("user not found")
	}
	if err := s.users.SetActive(ctx, id, active); err != nil {
		return domain.ErrInternal("failed to update user", err)
	}
	s.log.Info("user active flag changed",
		"event", "user.active_changed",
		"user_id", id,
		"before_state", user.IsActive,
		"after_state", active,
	)
	return nil
}
