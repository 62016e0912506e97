package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kvshvl/platform-core/internal/domain"
)

const paymentColumns = `id, user_id, provider_payment_id, provider_order_id,
	amount_minor, currency, status, product_type, processing_fee_minor,
	created_at, completed_at`

// PaymentRepository handles payment and webhook-event rows.
type PaymentRepository struct {
	db Querier
}

func NewPaymentRepository(db *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	var paymentID, orderID *string
	err := row.Scan(
		&p.ID, &p.UserID, &paymentID, &orderID,
		&p.AmountMinor, &p.Currency, &p.Status, &p.ProductType,
		&p.ProcessingFeeMinor, &p.CreatedAt, &p.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if paymentID != nil {
		p.ProviderPaymentID = *paymentID
	}
	if orderID != nil {
		p.ProviderOrderID = *orderID
	}
	return &p, nil
}

// RecordAttempt inserts a pending payment keyed by the provider order id.
// The provider payment id is unknown until the capture webhook arrives.
// A duplicate order id is a no-op returning the stored row.
func (r *PaymentRepository) RecordAttempt(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	query := `
		INSERT INTO payments (id, user_id, provider_order_id, amount_minor,
			currency, status, product_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (provider_order_id) WHERE provider_order_id IS NOT NULL DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query,
		p.ID, p.UserID, nullable(p.ProviderOrderID),
		p.AmountMinor, p.Currency, domain.PaymentPending, p.ProductType, p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record payment attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.FindPendingByOrderID(ctx, p.ProviderOrderID)
	}
	return p, nil
}

// Record inserts a terminal payment row keyed by the provider payment id,
// used for captures and renewal charges that had no pending attempt.
// A duplicate payment id is a no-op returning the stored row.
func (r *PaymentRepository) Record(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	query := `
		INSERT INTO payments (id, user_id, provider_payment_id, provider_order_id,
			amount_minor, currency, status, product_type, processing_fee_minor,
			created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (provider_payment_id) WHERE provider_payment_id IS NOT NULL DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query,
		p.ID, p.UserID, nullable(p.ProviderPaymentID), nullable(p.ProviderOrderID),
		p.AmountMinor, p.Currency, p.Status, p.ProductType, p.ProcessingFeeMinor,
		p.CreatedAt, p.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.FindByProviderPaymentID(ctx, p.ProviderPaymentID)
	}
	return p, nil
}

// FinalizeOrder moves the pending payment for an order to a terminal
// state. The first terminal state wins: the completed_at guard makes
// replayed webhooks no-ops that return the row as stored.
func (r *PaymentRepository) FinalizeOrder(ctx context.Context, orderID, providerPaymentID, status string, feeMinor int64, completedAt time.Time) (*domain.Payment, error) {
	query := `
		UPDATE payments
		SET provider_payment_id = $2, status = $3,
			processing_fee_minor = $4, completed_at = $5
		WHERE provider_order_id = $1 AND completed_at IS NULL
	`
	_, err := r.db.Exec(ctx, query,
		orderID, providerPaymentID, status, feeMinor, completedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to finalize payment: %w", err)
	}
	row := r.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE provider_order_id = $1`, orderID)
	p, err := scanPayment(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read finalized payment: %w", err)
	}
	return p, nil
}

// FindPendingByOrderID returns the pending attempt for an order, or nil.
func (r *PaymentRepository) FindPendingByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE provider_order_id = $1 AND completed_at IS NULL`, orderID)
	p, err := scanPayment(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find payment by order: %w", err)
	}
	return p, nil
}

// FindByProviderPaymentID returns a payment by the provider's payment id.
func (r *PaymentRepository) FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*domain.Payment, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE provider_payment_id = $1`,
		providerPaymentID)
	p, err := scanPayment(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}
	return p, nil
}

// ListByUser returns a user's payments, newest first.
func (r *PaymentRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Payment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// MarkEventProcessed records a webhook delivery. Returns true when the
// event id was newly recorded, false when it was already processed. The
// primary key on provider_event_id serializes duplicate deliveries.
func (r *PaymentRepository) MarkEventProcessed(ctx context.Context, providerEventID, eventKind string, receivedAt time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO webhook_events (provider_event_id, event_kind, received_at, processed)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (provider_event_id) DO NOTHING
	`, providerEventID, eventKind, receivedAt)
	if err != nil {
		return false, fmt.Errorf("failed to record webhook event: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// FeeSummary aggregates revenue and processing fees over a trailing
// window. Read-only; feeds the admin cost endpoints.
type FeeSummary struct {
	Days          int              `json:"days"`
	PaymentCount  int64            `json:"paymentCount"`
	RevenueMinor  int64            `json:"revenueMinor"`
	FeesMinor     int64            `json:"feesMinor"`
	DailyFeeMinor map[string]int64 `json:"dailyFeeMinor"`
}

// SummarizeFees computes revenue and fee totals for succeeded payments in
// the window, with a per-day breakdown.
func (r *PaymentRepository) SummarizeFees(ctx context.Context, since time.Time, days int) (*FeeSummary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT created_at::date, COUNT(*), COALESCE(SUM(amount_minor), 0),
			COALESCE(SUM(processing_fee_minor), 0)
		FROM payments
		WHERE status = $1 AND created_at >= $2
		GROUP BY created_at::date
	`, domain.PaymentSucceeded, since)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize fees: %w", err)
	}
	defer rows.Close()

	summary := &FeeSummary{Days: days, DailyFeeMinor: map[string]int64{}}
	for rows.Next() {
		var day time.Time
		var count, revenue, fees int64
		if err := rows.Scan(&day, &count, &revenue, &fees); err != nil {
			return nil, fmt.Errorf("failed to scan fee summary: %w", err)
		}
		summary.PaymentCount += count
		summary.RevenueMinor += revenue
		summary.FeesMinor += fees
		summary.DailyFeeMinor[day.Format("2006-01-02")] = fees
	}
	return summary, rows.Err()
}
