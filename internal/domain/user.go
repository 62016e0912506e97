package domain

import (
	"time"

	"github.com/google/uuid"
)

// Subscription tiers. "expired" is a terminal tier the downgrade path
// assigns once a non-renewing subscription runs out.
const (
	TierTrial   = "trial"
	TierWeek    = "week"
	TierMonth   = "month"
	TierYear    = "year"
	TierExpired = "expired"
)

// Subscription statuses.
const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusExpired   = "expired"
	StatusCancelled = "cancelled"
)

// User is a platform user. A row is created on first successful token
// verification and never deleted; soft-disable via IsActive.
type User struct {
	ID                     string     `json:"id"`
	Email                  string     `json:"email"`
	ExternalSubject        string     `json:"-"`
	DisplayName            string     `json:"displayName,omitempty"`
	SubscriptionTier       string     `json:"subscriptionTier"`
	SubscriptionStatus     string     `json:"subscriptionStatus"`
	SubscriptionExpiresAt  *time.Time `json:"subscriptionExpiresAt,omitempty"`
	SubscriptionAutoRenew  bool       `json:"subscriptionAutoRenew"`
	ProviderCustomerID     string     `json:"-"`
	ProviderSubscriptionID string     `json:"-"`
	IsActive               bool       `json:"isActive"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
	LastLoginAt            *time.Time `json:"lastLoginAt,omitempty"`
}

// Claims is the normalized record extracted from a verified bearer token.
type Claims struct {
	Email       string
	Subject     string
	DisplayName string
}

// UserResponse is the safe API shape for a user in admin listings.
type UserResponse struct {
	ID                    string     `json:"id"`
	Email                 string     `json:"email"`
	SubscriptionTier      string     `json:"subscriptionTier"`
	SubscriptionStatus    string     `json:"subscriptionStatus"`
	SubscriptionExpiresAt *time.Time `json:"subscriptionExpiresAt,omitempty"`
	IsActive              bool       `json:"isActive"`
	CreatedAt             time.Time  `json:"createdAt"`
	LastLoginAt           *time.Time `json:"lastLoginAt,omitempty"`
}

// NewUserID generates a new UUID for a user.
func NewUserID() string {
	return uuid.New().String()
}
