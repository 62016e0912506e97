package domain

import (
	"fmt"
	"time"
)

// Subscription policy: pure functions over a User and an instant.
// Nothing in here touches the database; callers persist the result.

// TierDuration returns the access period granted by a tier, or false for
// tiers that carry no time bound.
func TierDuration(tier string, trialDuration time.Duration) (time.Duration, bool) {
	switch tier {
	case TierTrial:
		return trialDuration, true
	case TierWeek:
		return 7 * 24 * time.Hour, true
	case TierMonth:
		return 30 * 24 * time.Hour, true
	case TierYear:
		return 365 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// ExpiryFor computes the expiry instant for a tier starting at reference.
// Returns nil for tiers without a duration.
func ExpiryFor(tier string, reference time.Time, trialDuration time.Duration) *time.Time {
	d, ok := TierDuration(tier, trialDuration)
	if !ok {
		return nil
	}
	t := reference.Add(d)
	return &t
}

// IsPaidTier reports whether the tier was bought rather than granted.
func IsPaidTier(tier string) bool {
	return tier == TierWeek || tier == TierMonth || tier == TierYear
}

// IsActiveTrial reports whether the user is inside an unexpired trial.
func IsActiveTrial(u *User, now time.Time) bool {
	if u.SubscriptionTier != TierTrial {
		return false
	}
	if u.SubscriptionStatus != StatusActive {
		return false
	}
	if u.SubscriptionExpiresAt == nil {
		return false
	}
	return u.SubscriptionExpiresAt.After(now)
}

// HasActiveSubscription is the single access predicate every gated route
// consults: active trial, or active unexpired paid tier.
func HasActiveSubscription(u *User, now time.Time) bool {
	if IsActiveTrial(u, now) {
		return true
	}
	if !IsPaidTier(u.SubscriptionTier) {
		return false
	}
	if u.SubscriptionStatus != StatusActive {
		return false
	}
	if u.SubscriptionExpiresAt == nil {
		return false
	}
	return u.SubscriptionExpiresAt.After(now)
}

// CheckStoredState reports stored subscription state no code path can
// legitimately produce. Such a row is corruption, not expiry: callers
// must refuse the request rather than guess at a repair.
func CheckStoredState(u *User) error {
	if u.SubscriptionAutoRenew && u.ProviderSubscriptionID == "" {
		return fmt.Errorf("auto-renew set with no provider subscription")
	}
	if IsPaidTier(u.SubscriptionTier) && u.SubscriptionStatus == StatusActive && u.SubscriptionExpiresAt == nil {
		return fmt.Errorf("active paid tier %q with no expiry", u.SubscriptionTier)
	}
	if u.SubscriptionTier == TierExpired && u.SubscriptionStatus == StatusActive {
		return fmt.Errorf("expired tier marked active")
	}
	return nil
}

// EnsureStatus downgrades a user whose subscription has run out. Users with
// auto-renew and a provider subscription id are left alone: the renewal
// webhook may still be in flight, and downgrading here would race it.
// Returns true when the user was mutated and needs persisting.
func EnsureStatus(u *User, now time.Time) bool {
	if u.SubscriptionExpiresAt == nil || !now.After(*u.SubscriptionExpiresAt) {
		return false
	}
	if u.SubscriptionAutoRenew && u.ProviderSubscriptionID != "" {
		return false
	}
	u.SubscriptionTier = TierExpired
	u.SubscriptionStatus = StatusExpired
	u.SubscriptionExpiresAt = nil
	u.ProviderSubscriptionID = ""
	u.SubscriptionAutoRenew = false
	return true
}
