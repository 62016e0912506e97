package handler

import (
	"net/http"

	"github.com/kvshvl/platform-core/internal/domain"
)

// PlansHandler serves the public pricing catalog.
type PlansHandler struct {
	catalog *domain.PlanCatalog
}

func NewPlansHandler(catalog *domain.PlanCatalog) *PlansHandler {
	return &PlansHandler{catalog: catalog}
}

// List handles GET /api/plans.
func (h *PlansHandler) List(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.catalog.List())
}
