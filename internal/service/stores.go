package service

import (
	"context"
	"time"

	"github.com/kvshvl/platform-core/internal/domain"
	"github.com/kvshvl/platform-core/internal/repository"
)

// UserStore is the persistence surface the services need for users.
// Implemented by repository.UserRepository; tests substitute in-memory fakes.
type UserStore interface {
	GetOrCreate(ctx context.Context, claims domain.Claims, now time.Time, trialDuration time.Duration) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByProviderCustomerID(ctx context.Context, customerID string) (*domain.User, error)
	FindByProviderSubscriptionID(ctx context.Context, subscriptionID string) (*domain.User, error)
	Update(ctx context.Context, u *domain.User) error
	ListAll(ctx context.Context) ([]*domain.User, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// TxRunner executes fn with stores bound to one database transaction.
// The writes fn makes are committed only when fn returns nil; on error
// everything rolls back together. Tests substitute a snapshot-restoring
// fake.
type TxRunner func(ctx context.Context, fn func(users UserStore, payments PaymentStore) error) error

// PaymentStore is the persistence surface for payments and webhook dedup.
type PaymentStore interface {
	RecordAttempt(ctx context.Context, p *domain.Payment) (*domain.Payment, error)
	Record(ctx context.Context, p *domain.Payment) (*domain.Payment, error)
	FindPendingByOrderID(ctx context.Context, orderID string) (*domain.Payment, error)
	FinalizeOrder(ctx context.Context, orderID, providerPaymentID, status string, feeMinor int64, completedAt time.Time) (*domain.Payment, error)
	FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*domain.Payment, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Payment, error)
	MarkEventProcessed(ctx context.Context, providerEventID, eventKind string, receivedAt time.Time) (bool, error)
	SummarizeFees(ctx context.Context, since time.Time, days int) (*repository.FeeSummary, error)
}
