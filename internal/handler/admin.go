package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kvshvl/platform-core/internal/service"
)

// AdminHandler exposes the allow-list-gated admin surface: user listing,
// soft-disable, and the read-only cost views.
type AdminHandler struct {
	authSvc *service.AuthService
	subSvc  *service.SubscriptionService
}

func NewAdminHandler(authSvc *service.AuthService, subSvc *service.SubscriptionService) *AdminHandler {
	return &AdminHandler{authSvc: authSvc, subSvc: subSvc}
}

// ListUsers handles GET /api/admin/users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.authSvc.ListUsers(r.Context())
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, users)
}

// DeactivateUser handles POST /api/admin/users/{id}/deactivate.
func (h *AdminHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

// ActivateUser handles POST /api/admin/users/{id}/activate.
func (h *AdminHandler) ActivateUser(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *AdminHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id := chi.URLParam(r, "id")
	if err := h.authSvc.SetUserActive(r.Context(), id, active); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"isActive": active})
}

func daysParam(r *http.Request) int {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days <= 0 {
		days = 30
	}
	return days
}

// Fees handles GET /api/admin/fees.
func (h *AdminHandler) Fees(w http.ResponseWriter, r *http.Request) {
	summary, err := h.subSvc.Fees(r.Context(), daysParam(r))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, summary)
}

// Alerts handles GET /api/admin/alerts.
func (h *AdminHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.subSvc.Alerts(r.Context(), daysParam(r))
	if err != nil {
		Error(w, err)
		return
	}
	if alerts == nil {
		alerts = []service.CostAlert{}
	}
	JSON(w, http.StatusOK, alerts)
}
