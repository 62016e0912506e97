package handler

import (
	"io"
	"net/http"

	"github.com/kvshvl/platform-core/internal/domain"
	"github.com/kvshvl/platform-core/internal/service"
	"github.com/kvshvl/platform-core/pkg/payment"
)

// Provider webhook headers.
const (
	signatureHeader = "X-Razorpay-Signature"
	eventIDHeader   = "X-Razorpay-Event-Id"
)

// Body cap for webhook payloads.
const maxWebhookBody = 1 << 20

// WebhookHandler ingests signed payment-provider callbacks.
type WebhookHandler struct {
	gateway payment.PaymentGateway
	svc     *service.SubscriptionService
}

func NewWebhookHandler(gateway payment.PaymentGateway, svc *service.SubscriptionService) *WebhookHandler {
	return &WebhookHandler{gateway: gateway, svc: svc}
}

// HandleProvider handles POST /api/payments/webhook. The signature is
// verified over the exact received bytes before any JSON parsing; a
// mismatch writes nothing anywhere.
func (h *WebhookHandler) HandleProvider(w http.ResponseWriter, r *http.Request) {
	if h.gateway == nil {
		// No webhook secret to verify against; 503 makes the provider
		// redeliver once credentials are configured.
		Error(w, domain.ErrUnavailable("payment provider not configured"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		Error(w, domain.ErrBadRequest("failed to read body"))
		return
	}

	signature := r.Header.Get(signatureHeader)
	if signature == "" || !h.gateway.VerifyWebhook(body, signature) {
		Error(w, domain.ErrWebhookSignature())
		return
	}

	eventID := r.Header.Get(eventIDHeader)
	if err := h.svc.HandleWebhookEvent(r.Context(), eventID, body); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
