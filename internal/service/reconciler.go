package service

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/kvshvl/platform-core/internal/domain"
)

// Webhook reconciliation: the sole writer of subscription state in
// response to provider events. Every handler is idempotent; events may
// arrive out of order and may be delivered more than once.

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
		Subscription struct {
			Entity subscriptionEntity `json:"entity"`
		} `json:"subscription"`
	} `json:"payload"`
}

type paymentEntity struct {
	ID       string       `json:"id"`
	OrderID  string       `json:"order_id"`
	Amount   int64        `json:"amount"`
	Currency string       `json:"currency"`
	Email    string       `json:"email"`
	Notes    webhookNotes `json:"notes"`
}

type subscriptionEntity struct {
	ID         string       `json:"id"`
	CustomerID string       `json:"customer_id"`
	PlanID     string       `json:"plan_id"`
	CurrentEnd int64        `json:"current_end"`
	Notes      webhookNotes `json:"notes"`
}

// webhookNotes tolerates the provider sending [] instead of {} when a
// payment carries no notes.
type webhookNotes map[string]string

func (n *webhookNotes) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] == '[' || string(b) == "null" {
		*n = nil
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	m := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			m[k] = s
		}
	}
	*n = m
	return nil
}

// HandleWebhookEvent consumes one verified provider event. Dedup by the
// provider event id happens first; a replay short-circuits. The dedup row
// and the state change commit in one transaction, so a storage failure
// mid-event rolls back the dedup row too and the provider's redelivery
// gets a clean retry instead of hitting the replay short-circuit.
func (s *SubscriptionService) HandleWebhookEvent(ctx context.Context, providerEventID string, body []byte) error {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return domain.ErrBadRequest("invalid webhook payload")
	}

	return s.tx(ctx, func(users UserStore, payments PaymentStore) error {
		scoped := *s
		scoped.users = users
		scoped.payments = payments
		return scoped.processEvent(ctx, providerEventID, &env)
	})
}

func (s *SubscriptionService) processEvent(ctx context.Context, providerEventID string, env *webhookEnvelope) error {
	if providerEventID != "" {
		newly, err := s.payments.MarkEventProcessed(ctx, providerEventID, env.Event, s.clock.Now())
		if err != nil {
			return domain.ErrInternal("failed to record webhook event", err)
		}
		if !newly {
			s.log.Info("webhook replay ignored",
				"event", env.Event, "provider_event_id", providerEventID)
			return nil
		}
	}

	switch env.Event {
	case domain.EventPaymentCaptured:
		return s.handlePaymentCaptured(ctx, providerEventID, env.Payload.Payment.Entity)
	case domain.EventPaymentFailed:
		return s.handlePaymentFailed(ctx, env.Payload.Payment.Entity)
	case domain.EventSubscriptionActivated:
		return s.handleSubscriptionActivated(ctx, providerEventID, env.Payload.Subscription.Entity)
	case domain.EventSubscriptionCharged:
		return s.handleSubscriptionCharged(ctx, providerEventID, env.Payload.Subscription.Entity, env.Payload.Payment.Entity)
	case domain.EventSubscriptionCancelled:
		return s.handleSubscriptionCancelled(ctx, providerEventID, env.Payload.Subscription.Entity)
	case domain.EventSubscriptionCompleted, domain.EventSubscriptionExpired:
		return s.handleSubscriptionEnded(ctx, providerEventID, env.Payload.Subscription.Entity)
	default:
		// Unknown kinds are accepted, otherwise the provider retries forever.
		s.log.Info("unhandled webhook event", "event", env.Event)
		return nil
	}
}

// resolvePaymentUser locates the user a payment belongs to: the required
// notes.user_id correlation first, then the payer email as a fallback.
func (s *SubscriptionService) resolvePaymentUser(ctx context.Context, ent paymentEntity) (*domain.User, error) {
	if id := ent.Notes["user_id"]; id != "" {
		user, err := s.users.FindByID(ctx, id)
		if err != nil {
			return nil, domain.ErrInternal("failed to resolve payment user", err)
		}
		if user != nil {
			return user, nil
		}
	}
	if ent.Email != "" {
		user, err := s.users.FindByEmail(ctx, ent.Email)
		if err != nil {
			return nil, domain.ErrInternal("failed to resolve payment user", err)
		}
		if user != nil {
			return user, nil
		}
	}
	return nil, domain.ErrWebhookCorrelation()
}

func (s *SubscriptionService) handlePaymentCaptured(ctx context.Context, eventID string, ent paymentEntity) error {
	user, err := s.resolvePaymentUser(ctx, ent)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	fee := domain.ProcessingFee(ent.Amount)

	// Tier from the order notes, falling back to the configured amount
	// table for payments whose notes were stripped.
	tier := ent.Notes["tier"]
	if !domain.IsPaidTier(tier) {
		tier, _ = s.catalog.TierForAmount(ent.Amount)
	}
	productType := tier
	if productType == "" {
		productType = domain.ProductOneTime
	}

	if err := s.finalizeCapture(ctx, user, ent, productType, fee, now); err != nil {
		return err
	}

	// Renewal charges fire their own subscription.charged event; only a
	// one-time purchase changes the tier here.
	if pt, ok := ent.Notes["payment_type"]; ok && pt != domain.ProductOneTime {
		return nil
	}
	if tier == "" {
		s.log.Warn("captured payment matched no tier",
			"event", domain.EventPaymentCaptured,
			"user_id", user.ID,
			"provider_event_id", eventID,
			"amount_minor", ent.Amount,
		)
		return nil
	}

	before := user.SubscriptionTier
	domain.EnsureStatus(user, now)
	user.SubscriptionTier = tier
	user.SubscriptionStatus = domain.StatusActive
	user.SubscriptionExpiresAt = domain.ExpiryFor(tier, now, s.trialDuration)
	user.SubscriptionAutoRenew = false
	if err := s.users.Update(ctx, user); err != nil {
		return domain.ErrInternal("failed to persist upgrade", err)
	}

	s.log.Info("one-time payment captured",
		"event", domain.EventPaymentCaptured,
		"user_id", user.ID,
		"provider_event_id", eventID,
		"before_state", before,
		"after_state", tier,
	)
	return nil
}

// finalizeCapture moves the pending attempt for the order to succeeded,
// or records the payment directly when checkout never wrote an attempt.
func (s *SubscriptionService) finalizeCapture(ctx context.Context, user *domain.User, ent paymentEntity, productType string, fee int64, now time.Time) error {
	if ent.OrderID != "" {
		pending, err := s.payments.FindPendingByOrderID(ctx, ent.OrderID)
		if err != nil {
			return domain.ErrInternal("failed to look up payment attempt", err)
		}
		if pending != nil {
			if _, err := s.payments.FinalizeOrder(ctx, ent.OrderID, ent.ID, domain.PaymentSucceeded, fee, now); err != nil {
				return domain.ErrInternal("failed to finalize payment", err)
			}
			return nil
		}
	}

	currency := ent.Currency
	if currency == "" {
		currency = "INR"
	}
	_, err := s.payments.Record(ctx, &domain.Payment{
		ID:                 domain.NewPaymentID(),
		UserID:             user.ID,
		ProviderPaymentID:  ent.ID,
		ProviderOrderID:    ent.OrderID,
		AmountMinor:        ent.Amount,
		Currency:           currency,
		Status:             domain.PaymentSucceeded,
		ProductType:        productType,
		ProcessingFeeMinor: fee,
		CreatedAt:          now,
		CompletedAt:        &now,
	})
	if err != nil {
		return domain.ErrInternal("failed to record payment", err)
	}
	return nil
}

func (s *SubscriptionService) handlePaymentFailed(ctx context.Context, ent paymentEntity) error {
	now := s.clock.Now()

	if ent.OrderID != "" {
		pending, err := s.payments.FindPendingByOrderID(ctx, ent.OrderID)
		if err != nil {
			return domain.ErrInternal("failed to look up payment attempt", err)
		}
		if pending != nil {
			if _, err := s.payments.FinalizeOrder(ctx, ent.OrderID, ent.ID, domain.PaymentFailed, 0, now); err != nil {
				return domain.ErrInternal("failed to finalize payment", err)
			}
			return nil
		}
	}

	// No attempt to finalize; keep the failure if we can attribute it.
	user, err := s.resolvePaymentUser(ctx, ent)
	if err != nil {
		if appErr, ok := domain.AsAppError(err); ok && appErr.Reason == domain.ReasonWebhookMissingCorrelation {
			s.log.Warn("unattributable failed payment", "provider_payment_id", ent.ID)
			return nil
		}
		return err
	}
	currency := ent.Currency
	if currency == "" {
		currency = "INR"
	}
	_, err = s.payments.Record(ctx, &domain.Payment{
		ID:                domain.NewPaymentID(),
		UserID:            user.ID,
		ProviderPaymentID: ent.ID,
		ProviderOrderID:   ent.OrderID,
		AmountMinor:       ent.Amount,
		Currency:          currency,
		Status:            domain.PaymentFailed,
		ProductType:       domain.ProductOneTime,
		CreatedAt:         now,
		CompletedAt:       &now,
	})
	if err != nil {
		return domain.ErrInternal("failed to record payment", err)
	}
	return nil
}

func (s *SubscriptionService) resolveSubscriptionUser(ctx context.Context, ent subscriptionEntity) (*domain.User, error) {
	if ent.ID != "" {
		user, err := s.users.FindByProviderSubscriptionID(ctx, ent.ID)
		if err != nil {
			return nil, domain.ErrInternal("failed to resolve subscription user", err)
		}
		if user != nil {
			return user, nil
		}
	}
	if id := ent.Notes["user_id"]; id != "" {
		user, err := s.users.FindByID(ctx, id)
		if err != nil {
			return nil, domain.ErrInternal("failed to resolve subscription user", err)
		}
		if user != nil {
			return user, nil
		}
	}
	if ent.CustomerID != "" {
		user, err := s.users.FindByProviderCustomerID(ctx, ent.CustomerID)
		if err != nil {
			return nil, domain.ErrInternal("failed to resolve subscription user", err)
		}
		if user != nil {
			return user, nil
		}
	}
	return nil, domain.ErrWebhookCorrelation()
}

func (s *SubscriptionService) handleSubscriptionActivated(ctx context.Context, eventID string, ent subscriptionEntity) error {
	user, err := s.resolveSubscriptionUser(ctx, ent)
	if err != nil {
		return err
	}

	tier, ok := s.catalog.TierForProviderPlan(ent.PlanID)
	if !ok {
		s.log.Warn("subscription activated on unknown plan",
			"event", domain.EventSubscriptionActivated,
			"user_id", user.ID,
			"plan_id", ent.PlanID,
		)
		return nil
	}

	now := s.clock.Now()
	before := user.SubscriptionTier
	user.ProviderSubscriptionID = ent.ID
	if user.ProviderCustomerID == "" {
		user.ProviderCustomerID = ent.CustomerID
	}
	user.SubscriptionTier = tier
	user.SubscriptionStatus = domain.StatusActive
	user.SubscriptionAutoRenew = true
	if ent.CurrentEnd > 0 {
		end := time.Unix(ent.CurrentEnd, 0).UTC()
		user.SubscriptionExpiresAt = &end
	} else {
		user.SubscriptionExpiresAt = domain.ExpiryFor(tier, now, s.trialDuration)
	}
	if err := s.users.Update(ctx, user); err != nil {
		return domain.ErrInternal("failed to persist activation", err)
	}

	s.log.Info("subscription activated",
		"event", domain.EventSubscriptionActivated,
		"user_id", user.ID,
		"provider_event_id", eventID,
		"before_state", before,
		"after_state", tier,
	)
	return nil
}

func (s *SubscriptionService) handleSubscriptionCharged(ctx context.Context, eventID string, ent subscriptionEntity, pay paymentEntity) error {
	user, err := s.users.FindByProviderSubscriptionID(ctx, ent.ID)
	if err != nil {
		return domain.ErrInternal("failed to resolve subscription user", err)
	}
	if user == nil {
		// Charge arrived before activation; the provider retries nothing
		// on 2xx, so log it loudly for investigation.
		s.log.Warn("charge for unknown subscription",
			"event", domain.EventSubscriptionCharged,
			"provider_subscription_id", ent.ID,
			"provider_event_id", eventID,
		)
		return nil
	}

	now := s.clock.Now()
	before := formatExpiry(user.SubscriptionExpiresAt)

	// Renewals may be re-delivered or reordered: only ever move the
	// expiry forward.
	if ent.CurrentEnd > 0 {
		end := time.Unix(ent.CurrentEnd, 0).UTC()
		if user.SubscriptionExpiresAt == nil || end.After(*user.SubscriptionExpiresAt) {
			user.SubscriptionExpiresAt = &end
		}
	}
	user.SubscriptionStatus = domain.StatusActive
	if err := s.users.Update(ctx, user); err != nil {
		return domain.ErrInternal("failed to persist renewal", err)
	}

	if pay.ID != "" {
		currency := pay.Currency
		if currency == "" {
			currency = "INR"
		}
		_, err := s.payments.Record(ctx, &domain.Payment{
			ID:                 domain.NewPaymentID(),
			UserID:             user.ID,
			ProviderPaymentID:  pay.ID,
			AmountMinor:        pay.Amount,
			Currency:           currency,
			Status:             domain.PaymentSucceeded,
			ProductType:        user.SubscriptionTier,
			ProcessingFeeMinor: domain.ProcessingFee(pay.Amount),
			CreatedAt:          now,
			CompletedAt:        &now,
		})
		if err != nil {
			return domain.ErrInternal("failed to record renewal payment", err)
		}
	}

	s.log.Info("subscription charged",
		"event", domain.EventSubscriptionCharged,
		"user_id", user.ID,
		"provider_event_id", eventID,
		"before_state", before,
		"after_state", formatExpiry(user.SubscriptionExpiresAt),
	)
	return nil
}

func (s *SubscriptionService) handleSubscriptionCancelled(ctx context.Context, eventID string, ent subscriptionEntity) error {
	user, err := s.resolveSubscriptionUser(ctx, ent)
	if err != nil {
		return err
	}

	// Access continues until the paid-for period ends; EnsureStatus
	// downgrades once the expiry passes.
	user.SubscriptionAutoRenew = false
	if err := s.users.Update(ctx, user); err != nil {
		return domain.ErrInternal("failed to persist cancellation", err)
	}

	s.log.Info("subscription cancelled",
		"event", domain.EventSubscriptionCancelled,
		"user_id", user.ID,
		"provider_event_id", eventID,
		"before_state", "auto_renew",
		"after_state", "cancel_at_period_end",
	)
	return nil
}

func (s *SubscriptionService) handleSubscriptionEnded(ctx context.Context, eventID string, ent subscriptionEntity) error {
	user, err := s.resolveSubscriptionUser(ctx, ent)
	if err != nil {
		return err
	}

	before := user.SubscriptionTier
	user.SubscriptionTier = domain.TierExpired
	user.SubscriptionStatus = domain.StatusExpired
	user.SubscriptionExpiresAt = nil
	user.ProviderSubscriptionID = ""
	user.SubscriptionAutoRenew = false
	if err := s.users.Update(ctx, user); err != nil {
		return domain.ErrInternal("failed to persist expiry", err)
	}

	s.log.Info("subscription ended",
		"event", domain.EventSubscriptionExpired,
		"user_id", user.ID,
		"provider_event_id", eventID,
		"before_state", before,
		"after_state", domain.TierExpired,
	)
	return nil
}

func formatExpiry(t *time.Time) string {
	if t == nil {
		return "none"
	}
	return t.Format(time.RFC3339)
}
