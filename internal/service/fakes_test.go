package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/kvshvl/platform-core/internal/domain"
	"github.com/kvshvl/platform-core/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeUserStore keeps users in memory. It hands out copies so that a
// service mutation is only visible after an explicit Update, mirroring
// how the SQL-backed store behaves.
type fakeUserStore struct {
	mu      sync.Mutex
	users   map[string]*domain.User
	updates int

	failNextUpdate error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*domain.User)}
}

func (f *fakeUserStore) add(u *domain.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	f.users[u.ID] = &cp
}

func (f *fakeUserStore) get(id string) *domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func (f *fakeUserStore) GetOrCreate(ctx context.Context, claims domain.Claims, now time.Time, trialDuration time.Duration) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == claims.Email {
			u.LastLoginAt = &now
			cp := *u
			return &cp, nil
		}
	}
	exp := now.Add(trialDuration)
	u := &domain.User{
		ID:                    domain.NewUserID(),
		Email:                 claims.Email,
		ExternalSubject:       claims.Subject,
		DisplayName:           claims.DisplayName,
		SubscriptionTier:      domain.TierTrial,
		SubscriptionStatus:    domain.StatusActive,
		SubscriptionExpiresAt: &exp,
		IsActive:              true,
		CreatedAt:             now,
		UpdatedAt:             now,
		LastLoginAt:           &now,
	}
	f.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return f.get(id), nil
}

func (f *fakeUserStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUserStore) FindByProviderCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if customerID != "" && u.ProviderCustomerID == customerID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUserStore) FindByProviderSubscriptionID(ctx context.Context, subscriptionID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if subscriptionID != "" && u.ProviderSubscriptionID == subscriptionID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUserStore) Update(ctx context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failNextUpdate; err != nil {
		f.failNextUpdate = nil
		return err
	}
	cp := *u
	f.users[u.ID] = &cp
	f.updates++
	return nil
}

func (f *fakeUserStore) snapshot() map[string]*domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := make(map[string]*domain.User, len(f.users))
	for id, u := range f.users {
		cp := *u
		snap[id] = &cp
	}
	return snap
}

func (f *fakeUserStore) restore(snap map[string]*domain.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = snap
}

func (f *fakeUserStore) ListAll(ctx context.Context) ([]*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.User, 0, len(f.users))
	for _, u := range f.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeUserStore) SetActive(ctx context.Context, id string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.IsActive = active
	}
	return nil
}

// fakePaymentStore keeps payments and webhook dedup records in memory with
// the same idempotency rules the SQL store enforces via partial unique
// indexes.
type fakePaymentStore struct {
	mu       sync.Mutex
	payments []*domain.Payment
	events   map[string]string
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{events: make(map[string]string)}
}

func (f *fakePaymentStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payments)
}

func (f *fakePaymentStore) byIndex(i int) domain.Payment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.payments[i]
}

func (f *fakePaymentStore) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakePaymentStore) RecordAttempt(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.payments {
		if p.ProviderOrderID != "" && existing.ProviderOrderID == p.ProviderOrderID {
			cp := *existing
			return &cp, nil
		}
	}
	cp := *p
	f.payments = append(f.payments, &cp)
	out := cp
	return &out, nil
}

func (f *fakePaymentStore) Record(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.payments {
		if p.ProviderPaymentID != "" && existing.ProviderPaymentID == p.ProviderPaymentID {
			cp := *existing
			return &cp, nil
		}
	}
	cp := *p
	f.payments = append(f.payments, &cp)
	out := cp
	return &out, nil
}

func (f *fakePaymentStore) FindPendingByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.ProviderOrderID == orderID && p.Status == domain.PaymentPending {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakePaymentStore) FinalizeOrder(ctx context.Context, orderID, providerPaymentID, status string, feeMinor int64, completedAt time.Time) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.ProviderOrderID != orderID {
			continue
		}
		if p.CompletedAt == nil {
			p.ProviderPaymentID = providerPaymentID
			p.Status = status
			p.ProcessingFeeMinor = feeMinor
			at := completedAt
			p.CompletedAt = &at
		}
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (f *fakePaymentStore) FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if providerPaymentID != "" && p.ProviderPaymentID == providerPaymentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakePaymentStore) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Payment
	for i := len(f.payments) - 1; i >= 0 && len(out) < limit; i-- {
		if f.payments[i].UserID == userID {
			cp := *f.payments[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakePaymentStore) MarkEventProcessed(ctx context.Context, providerEventID, eventKind string, receivedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, seen := f.events[providerEventID]; seen {
		return false, nil
	}
	f.events[providerEventID] = eventKind
	return true, nil
}

func (f *fakePaymentStore) snapshot() ([]*domain.Payment, map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	payments := make([]*domain.Payment, len(f.payments))
	for i, p := range f.payments {
		cp := *p
		payments[i] = &cp
	}
	events := make(map[string]string, len(f.events))
	for id, kind := range f.events {
		events[id] = kind
	}
	return payments, events
}

func (f *fakePaymentStore) restore(payments []*domain.Payment, events map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments = payments
	f.events = events
}

// fakeTx mimics the transactional runner: on error every store write made
// inside fn is rolled back, dedup rows included.
func fakeTx(users *fakeUserStore, pays *fakePaymentStore) TxRunner {
	return func(ctx context.Context, fn func(users UserStore, payments PaymentStore) error) error {
		userSnap := users.snapshot()
		paySnap, eventSnap := pays.snapshot()
		if err := fn(users, pays); err != nil {
			users.restore(userSnap)
			pays.restore(paySnap, eventSnap)
			return err
		}
		return nil
	}
}

func (f *fakePaymentStore) SummarizeFees(ctx context.Context, since time.Time, days int) (*repository.FeeSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	summary := &repository.FeeSummary{
		Days:          days,
		DailyFeeMinor: make(map[string]int64),
	}
	for _, p := range f.payments {
		if p.Status != domain.PaymentSucceeded || p.CreatedAt.Before(since) {
			continue
		}
		summary.PaymentCount++
		summary.RevenueMinor += p.AmountMinor
		summary.FeesMinor += p.ProcessingFeeMinor
		summary.DailyFeeMinor[p.CreatedAt.Format("2006-01-02")] += p.ProcessingFeeMinor
	}
	return summary, nil
}
