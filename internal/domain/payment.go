package domain

import (
	"time"

	"github.com/google/uuid"
)

// Payment statuses.
const (
	PaymentPending   = "pending"
	PaymentSucceeded = "succeeded"
	PaymentFailed    = "failed"
)

// Product types. They mirror tiers plus "one_time" for payments whose
// amount matched no configured tier.
const (
	ProductOneTime = "one_time"
)

// ProcessingFeePercent is the provider's cut, applied to the amount in
// minor units when a payment is captured.
const ProcessingFeePercent = 2

// Payment records one payment attempt and its outcome. ProviderPaymentID
// is the idempotency key: a payment reaches a terminal state at most once.
type Payment struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"userId"`
	ProviderPaymentID  string     `json:"providerPaymentId"`
	ProviderOrderID    string     `json:"providerOrderId,omitempty"`
	AmountMinor        int64      `json:"amountMinor"`
	Currency           string     `json:"currency"`
	Status             string     `json:"status"`
	ProductType        string     `json:"productType"`
	ProcessingFeeMinor int64      `json:"processingFeeMinor"`
	CreatedAt          time.Time  `json:"createdAt"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
}

// ProcessingFee computes the provider fee for an amount in minor units.
func ProcessingFee(amountMinor int64) int64 {
	return amountMinor * ProcessingFeePercent / 100
}

// WebhookEvent is the dedup record for provider webhook deliveries.
// A provider event id is processed at most once.
type WebhookEvent struct {
	ProviderEventID string
	EventKind       string
	ReceivedAt      time.Time
	Processed       bool
}

// Recognized webhook event kinds from the payment provider.
const (
	EventPaymentCaptured       = "payment.captured"
	EventPaymentFailed         = "payment.failed"
	EventSubscriptionActivated = "subscription.activated"
	EventSubscriptionCharged   = "subscription.charged"
	EventSubscriptionCancelled = "subscription.cancelled"
	EventSubscriptionCompleted = "subscription.completed"
	EventSubscriptionExpired   = "subscription.expired"
)

// NewPaymentID generates a new UUID for a payment row.
func NewPaymentID() string {
	return uuid.New().String()
}

// CheckoutRequest is the validated input for starting a checkout.
type CheckoutRequest struct {
	Tier string `json:"tier" validate:"required,oneof=week month year"`
	Mode string `json:"mode" validate:"required,oneof=one_time subscription"`
}

// CheckoutResponse describes the provider order or subscription the client
// completes on the hosted checkout.
type CheckoutResponse struct {
	OrderID        string `json:"orderId,omitempty"`
	SubscriptionID string `json:"subscriptionId,omitempty"`
	PlanID         string `json:"planId,omitempty"`
	AmountMinor    int64  `json:"amountMinor"`
	Currency       string `json:"currency"`
	KeyID          string `json:"keyId"`
	Mode           string `json:"mode"`
}
