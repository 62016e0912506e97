package handler

import (
	"net/http"
	"strconv"

	"github.com/kvshvl/platform-core/internal/contextkeys"
	"github.com/kvshvl/platform-core/internal/domain"
	"github.com/kvshvl/platform-core/internal/service"
)

// PaymentHandler exposes checkout, subscription state, and payment history.
type PaymentHandler struct {
	svc *service.SubscriptionService
}

func NewPaymentHandler(svc *service.SubscriptionService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

func currentUser(r *http.Request) (*domain.User, bool) {
	user, ok := r.Context().Value(contextkeys.User).(*domain.User)
	return user, ok && user != nil
}

// Checkout handles POST /api/payments/checkout.
func (h *PaymentHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		Error(w, domain.ErrUnauthorized("not authenticated"))
		return
	}

	var req domain.CheckoutRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	resp, err := h.svc.Checkout(r.Context(), user, &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, resp)
}

// GetSubscription handles GET /api/subscription.
func (h *PaymentHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		Error(w, domain.ErrUnauthorized("not authenticated"))
		return
	}
	JSON(w, http.StatusOK, h.svc.Snapshot(user))
}

// CancelSubscription handles POST /api/payments/subscription/cancel.
func (h *PaymentHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		Error(w, domain.ErrUnauthorized("not authenticated"))
		return
	}
	if err := h.svc.CancelSubscription(r.Context(), user); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "cancel_requested"})
}

// History handles GET /api/payments/history.
func (h *PaymentHandler) History(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		Error(w, domain.ErrUnauthorized("not authenticated"))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	payments, err := h.svc.History(r.Context(), user, limit)
	if err != nil {
		Error(w, err)
		return
	}
	if payments == nil {
		payments = []*domain.Payment{}
	}
	JSON(w, http.StatusOK, payments)
}
