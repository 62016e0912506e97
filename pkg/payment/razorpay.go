package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.razorpay.com/v1"

// RazorpayGateway talks to the Razorpay REST API with basic auth.
// Amounts are minor units (paise for INR).
type RazorpayGateway struct {
	keyID         string
	keySecret     string
	webhookSecret string
	baseURL       string
	client        *http.Client
}

// NewRazorpayGateway creates a gateway with the given credentials.
func NewRazorpayGateway(keyID, keySecret, webhookSecret string) *RazorpayGateway {
	return &RazorpayGateway{
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		baseURL:       defaultBaseURL,
		client:        &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL overrides the API endpoint, used by tests against httptest.
func (g *RazorpayGateway) WithBaseURL(url string) *RazorpayGateway {
	g.baseURL = url
	return g
}

func (g *RazorpayGateway) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read provider response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode provider response: %w", err)
		}
	}
	return nil
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*Order, error) {
	var resp struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	err := g.post(ctx, "/orders", map[string]any{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  receipt,
		"notes":    notes,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &Order{ID: resp.ID, AmountMinor: resp.Amount, Currency: resp.Currency}, nil
}

func (g *RazorpayGateway) CreateCustomer(ctx context.Context, name, email string) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	err := g.post(ctx, "/customers", map[string]any{
		"name":          name,
		"email":         email,
		"fail_existing": "0",
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (g *RazorpayGateway) CreateSubscription(ctx context.Context, planID, customerID string, notes map[string]string) (*Subscription, error) {
	var resp struct {
		ID         string `json:"id"`
		PlanID     string `json:"plan_id"`
		CurrentEnd int64  `json:"current_end"`
	}
	err := g.post(ctx, "/subscriptions", map[string]any{
		"plan_id":         planID,
		"customer_id":     customerID,
		"customer_notify": 1,
		// 0 periods means the subscription recurs until cancelled.
		"total_count": 0,
		"notes":       notes,
	}, &resp)
	if err != nil {
		return nil, err
	}
	sub := &Subscription{ID: resp.ID, PlanID: resp.PlanID}
	if resp.CurrentEnd > 0 {
		sub.CurrentEnd = time.Unix(resp.CurrentEnd, 0).UTC()
	}
	return sub, nil
}

func (g *RazorpayGateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return g.post(ctx, "/subscriptions/"+subscriptionID+"/cancel", map[string]any{
		"cancel_at_cycle_end": 1,
	}, nil)
}

func (g *RazorpayGateway) VerifyWebhook(payload []byte, signature string) bool {
	return VerifySignature(g.webhookSecret, payload, signature)
}
