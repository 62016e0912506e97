package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kvshvl/platform-core/internal/domain"
	"github.com/kvshvl/platform-core/internal/repository"
	"github.com/kvshvl/platform-core/pkg/clock"
	"github.com/kvshvl/platform-core/pkg/payment"
)

// SubscriptionService owns checkout, subscription lifecycle, and the
// payment read views. Webhook handling lives in reconciler.go.
type SubscriptionService struct {
	users         UserStore
	payments      PaymentStore
	tx            TxRunner
	gateway       payment.PaymentGateway
	catalog       *domain.PlanCatalog
	clock         clock.Clock
	trialDuration time.Duration
	keyID         string
	validate      *validator.Validate
	log           *slog.Logger
}

func NewSubscriptionService(
	users UserStore,
	payments PaymentStore,
	tx TxRunner,
	gateway payment.PaymentGateway,
	catalog *domain.PlanCatalog,
	clk clock.Clock,
	trialDuration time.Duration,
	keyID string,
	log *slog.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		users:         users,
		payments:      payments,
		tx:            tx,
		gateway:       gateway,
		catalog:       catalog,
		clock:         clk,
		trialDuration: trialDuration,
		keyID:         keyID,
		validate:      validator.New(),
		log:           log,
	}
}

// Checkout creates a provider order (one-time) or subscription (recurring)
// for the requested tier. The order notes carry the user correlation the
// capture webhook resolves later.
func (s *SubscriptionService) Checkout(ctx context.Context, user *domain.User, req *domain.CheckoutRequest) (*domain.CheckoutResponse, error) {
	if s.gateway == nil {
		return nil, domain.ErrUnavailable("payment provider not configured")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}

	plan, ok := s.catalog.ByTier(req.Tier)
	if !ok {
		return nil, domain.ErrBadRequest("unknown tier: " + req.Tier)
	}

	now := s.clock.Now()
	notes := map[string]string{
		"user_id":    user.ID,
		"user_email": user.Email,
		"tier":       req.Tier,
	}

	if req.Mode == "subscription" {
		if plan.ProviderPlanID == "" {
			return nil, domain.ErrBadRequest("no recurring plan configured for tier: " + req.Tier)
		}

		customerID := user.ProviderCustomerID
		if customerID == "" {
			name := user.DisplayName
			if name == "" {
				name = strings.SplitN(user.Email, "@", 2)[0]
			}
			id, err := s.gateway.CreateCustomer(ctx, name, user.Email)
			if err != nil {
				return nil, domain.ErrInternal("failed to create provider customer", err)
			}
			customerID = id
			user.ProviderCustomerID = customerID
			if err := s.users.Update(ctx, user); err != nil {
				return nil, domain.ErrInternal("failed to persist customer id", err)
			}
		}

		sub, err := s.gateway.CreateSubscription(ctx, plan.ProviderPlanID, customerID, notes)
		if err != nil {
			return nil, domain.ErrInternal("failed to create provider subscription", err)
		}

		return &domain.CheckoutResponse{
			SubscriptionID: sub.ID,
			PlanID:         plan.ProviderPlanID,
			AmountMinor:    plan.AmountMinor,
			Currency:       plan.Currency,
			KeyID:          s.keyID,
			Mode:           req.Mode,
		}, nil
	}

	notes["payment_type"] = domain.ProductOneTime
	receipt := fmt.Sprintf("order_%s_%d", user.ID, now.Unix())
	order, err := s.gateway.CreateOrder(ctx, plan.AmountMinor, plan.Currency, receipt, notes)
	if err != nil {
		return nil, domain.ErrInternal("failed to create provider order", err)
	}

	attempt := &domain.Payment{
		ID:              domain.NewPaymentID(),
		UserID:          user.ID,
		ProviderOrderID: order.ID,
		AmountMinor:     plan.AmountMinor,
		Currency:        plan.Currency,
		Status:          domain.PaymentPending,
		ProductType:     req.Tier,
		CreatedAt:       now,
	}
	if _, err := s.payments.RecordAttempt(ctx, attempt); err != nil {
		return nil, domain.ErrInternal("failed to record payment attempt", err)
	}

	return &domain.CheckoutResponse{
		OrderID:     order.ID,
		AmountMinor: plan.AmountMinor,
		Currency:    plan.Currency,
		KeyID:       s.keyID,
		Mode:        req.Mode,
	}, nil
}

// CancelSubscription asks the provider to cancel at cycle end. Access
// continues until the period runs out; the cancellation webhook confirms
// the state change.
func (s *SubscriptionService) CancelSubscription(ctx context.Context, user *domain.User) error {
	if s.gateway == nil {
		return domain.ErrUnavailable("payment provider not configured")
	}
	if user.ProviderSubscriptionID == "" {
		return domain.ErrBadRequest("no recurring subscription to cancel")
	}
	if err := s.gateway.CancelSubscription(ctx, user.ProviderSubscriptionID); err != nil {
		return domain.ErrInternal("failed to cancel provider subscription", err)
	}

	user.SubscriptionAutoRenew = false
	if err := s.users.Update(ctx, user); err != nil {
		return domain.ErrInternal("failed to persist cancellation", err)
	}
	s.log.Info("subscription cancel requested",
		"event", "subscription.cancel_requested",
		"user_id", user.ID,
	)
	return nil
}

// SubscriptionView is the per-user subscription snapshot.
type SubscriptionView struct {
	Tier      string     `json:"tier"`
	Status    string     `json:"status"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	AutoRenew bool       `json:"autoRenew"`
	Active    bool       `json:"active"`
}

// Snapshot returns the caller's subscription state plus the live access
// verdict every gated route uses.
func (s *SubscriptionService) Snapshot(user *domain.User) *SubscriptionView {
	return &SubscriptionView{
		Tier:      user.SubscriptionTier,
		Status:    user.SubscriptionStatus,
		ExpiresAt: user.SubscriptionExpiresAt,
		AutoRenew: user.SubscriptionAutoRenew,
		Active:    domain.HasActiveSubscription(user, s.clock.Now()),
	}
}

// History returns the caller's payments, newest first.
func (s *SubscriptionService) History(ctx context.Context, user *domain.User, limit int) ([]*domain.Payment, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	payments, err := s.payments.ListByUser(ctx, user.ID, limit)
	if err != nil {
		return nil, domain.ErrInternal("failed to list payments", err)
	}
	return payments, nil
}

// Fees aggregates revenue and processing fees over the trailing window.
func (s *SubscriptionService) Fees(ctx context.Context, days int) (*repository.FeeSummary, error) {
	if days <= 0 {
		days = 30
	}
	since := s.clock.Now().AddDate(0, 0, -days)
	summary, err := s.payments.SummarizeFees(ctx, since, days)
	if err != nil {
		return nil, domain.ErrInternal("failed to summarize fees", err)
	}
	return summary, nil
}

// Daily processing-fee level above which the alert endpoint flags a day,
// in minor units.
const dailyFeeAlertMinor int64 = 100000

// CostAlert flags a day whose processing fees crossed the threshold.
type CostAlert struct {
	Level          string `json:"level"`
	Date           string `json:"date"`
	Message        string `json:"message"`
	CurrentMinor   int64  `json:"currentMinor"`
	ThresholdMinor int64  `json:"thresholdMinor"`
}

// Alerts scans the daily fee breakdown for threshold breaches.
func (s *SubscriptionService) Alerts(ctx context.Context, days int) ([]CostAlert, error) {
	summary, err := s.Fees(ctx, days)
	if err != nil {
		return nil, err
	}

	var alerts []CostAlert
	for day, fees := range summary.DailyFeeMinor {
		if fees <= dailyFeeAlertMinor {
			continue
		}
		level := "warning"
		if fees > 2*dailyFeeAlertMinor {
			level = "critical"
		}
		alerts = append(alerts, CostAlert{
			Level:          level,
			Date:           day,
			Message:        fmt.Sprintf("processing fees on %s exceeded threshold", day),
			CurrentMinor:   fees,
			ThresholdMinor: dailyFeeAlertMinor,
		})
	}
	return alerts, nil
}

func formatValidationErrors(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return "invalid request"
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", e.Field(), e.Tag()))
	}
	return strings.Join(msgs, "; ")
}
