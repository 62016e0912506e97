package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kvshvl/platform-core/internal/domain"
)

const userColumns = `id, email, external_subject, display_name,
	subscription_tier, subscription_status, subscription_expires_at,
	subscription_auto_renew, provider_customer_id, provider_subscription_id,
	is_active, created_at, updated_at, last_login_at`

// UserRepository handles database operations for users.
type UserRepository struct {
	db Querier
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var subject, name, customerID, subscriptionID *string
	err := row.Scan(
		&u.ID, &u.Email, &subject, &name,
		&u.SubscriptionTier, &u.SubscriptionStatus, &u.SubscriptionExpiresAt,
		&u.SubscriptionAutoRenew, &customerID, &subscriptionID,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	if subject != nil {
		u.ExternalSubject = *subject
	}
	if name != nil {
		u.DisplayName = *name
	}
	if customerID != nil {
		u.ProviderCustomerID = *customerID
	}
	if subscriptionID != nil {
		u.ProviderSubscriptionID = *subscriptionID
	}
	return &u, nil
}

// nullable maps "" to SQL NULL so the partial unique indexes only cover
// rows that actually carry a provider id.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// GetOrCreate returns the user for the given normalized email, creating a
// trial user on first contact. Existing users get their last login stamped.
// Concurrent first logins are resolved by the unique email constraint: the
// insert uses ON CONFLICT DO NOTHING and the loser re-reads the winner's row.
func (r *UserRepository) GetOrCreate(ctx context.Context, claims domain.Claims, now time.Time, trialDuration time.Duration) (*domain.User, error) {
	user, err := r.FindByEmail(ctx, claims.Email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		if err := r.touchLastLogin(ctx, user.ID, now); err != nil {
			return nil, err
		}
		user.LastLoginAt = &now
		return user, nil
	}

	expiresAt := now.Add(trialDuration)
	u := &domain.User{
		ID:                    domain.NewUserID(),
		Email:                 claims.Email,
		ExternalSubject:       claims.Subject,
		DisplayName:           claims.DisplayName,
		SubscriptionTier:      domain.TierTrial,
		SubscriptionStatus:    domain.StatusActive,
		SubscriptionExpiresAt: &expiresAt,
		IsActive:              true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	query := `
		INSERT INTO users (id, email, external_subject, display_name,
			subscription_tier, subscription_status, subscription_expires_at,
			subscription_auto_renew, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (email) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query,
		u.ID, u.Email, nullable(u.ExternalSubject), nullable(u.DisplayName),
		u.SubscriptionTier, u.SubscriptionStatus, u.SubscriptionExpiresAt,
		u.SubscriptionAutoRenew, u.IsActive, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Lost the race to a concurrent first login.
		winner, err := r.FindByEmail(ctx, claims.Email)
		if err != nil {
			return nil, err
		}
		if winner == nil {
			return nil, fmt.Errorf("user %s vanished after insert conflict", claims.Email)
		}
		return winner, nil
	}
	return u, nil
}

func (r *UserRepository) touchLastLogin(ctx context.Context, id string, now time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET last_login_at = $1, updated_at = $1 WHERE id = $2`, now, id)
	if err != nil {
		return fmt.Errorf("failed to stamp last login: %w", err)
	}
	return nil
}

// FindByEmail returns a user by email address, or nil when absent.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return u, nil
}

// FindByID returns a user by ID.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return u, nil
}

// FindByProviderCustomerID locates a user by the payment provider's
// customer handle.
func (r *UserRepository) FindByProviderCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE provider_customer_id = $1`, customerID)
	u, err := scanUser(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return u, nil
}

// FindByProviderSubscriptionID locates a user by the provider subscription
// handle, used by renewal and cancellation webhooks.
func (r *UserRepository) FindByProviderSubscriptionID(ctx context.Context, subscriptionID string) (*domain.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE provider_subscription_id = $1`, subscriptionID)
	u, err := scanUser(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return u, nil
}

// Update writes the subscription-related fields of the given row verbatim.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	query := `
		UPDATE users SET
			display_name = $2,
			subscription_tier = $3,
			subscription_status = $4,
			subscription_expires_at = $5,
			subscription_auto_renew = $6,
			provider_customer_id = $7,
			provider_subscription_id = $8,
			is_active = $9,
			updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query,
		u.ID, nullable(u.DisplayName),
		u.SubscriptionTier, u.SubscriptionStatus, u.SubscriptionExpiresAt,
		u.SubscriptionAutoRenew, nullable(u.ProviderCustomerID),
		nullable(u.ProviderSubscriptionID), u.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// ListAll returns all users ordered by creation date.
func (r *UserRepository) ListAll(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetActive toggles the soft-disable flag.
func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("failed to set user active flag: %w", err)
	}
	return nil
}
