package payment

import (
	"context"
	"time"
)

// Order is a provider-side one-time payment order.
type Order struct {
	ID          string
	AmountMinor int64
	Currency    string
}

// Subscription is a provider-side recurring subscription.
type Subscription struct {
	ID         string
	PlanID     string
	CurrentEnd time.Time
}

// PaymentGateway defines the interface to the payment provider. Network
// errors are retryable; a false signature verdict is definitive.
type PaymentGateway interface {
	// CreateOrder creates a one-time order. Notes travel to the capture
	// webhook verbatim and carry the user correlation.
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*Order, error)
	// CreateCustomer registers a customer and returns the provider handle.
	CreateCustomer(ctx context.Context, name, email string) (string, error)
	// CreateSubscription starts a recurring subscription on a plan.
	CreateSubscription(ctx context.Context, planID, customerID string, notes map[string]string) (*Subscription, error)
	// CancelSubscription cancels at cycle end so paid-for access continues.
	CancelSubscription(ctx context.Context, subscriptionID string) error
	// VerifyWebhook checks the provider signature over the exact body bytes.
	VerifyWebhook(payload []byte, signature string) bool
}

// MockGateway is an in-memory implementation for tests and local runs.
type MockGateway struct {
	Secret string

	Orders        []*Order
	Subscriptions []*Subscription
	Cancelled     []string

	FailNext error
}

func NewMockGateway(secret string) *MockGateway {
	return &MockGateway{Secret: secret}
}

func (g *MockGateway) takeErr() error {
	err := g.FailNext
	g.FailNext = nil
	return err
}

func (g *MockGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*Order, error) {
	if err := g.takeErr(); err != nil {
		return nil, err
	}
	o := &Order{
		ID:          "order_mock_" + receipt,
		AmountMinor: amountMinor,
		Currency:    currency,
	}
	g.Orders = append(g.Orders, o)
	return o, nil
}

func (g *MockGateway) CreateCustomer(ctx context.Context, name, email string) (string, error) {
	if err := g.takeErr(); err != nil {
		return "", err
	}
	return "cust_mock_" + email, nil
}

func (g *MockGateway) CreateSubscription(ctx context.Context, planID, customerID string, notes map[string]string) (*Subscription, error) {
	if err := g.takeErr(); err != nil {
		return nil, err
	}
	s := &Subscription{ID: "sub_mock_" + customerID, PlanID: planID}
	g.Subscriptions = append(g.Subscriptions, s)
	return s, nil
}

func (g *MockGateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if err := g.takeErr(); err != nil {
		return err
	}
	g.Cancelled = append(g.Cancelled, subscriptionID)
	return nil
}

func (g *MockGateway) VerifyWebhook(payload []byte, signature string) bool {
	return VerifySignature(g.Secret, payload, signature)
}
