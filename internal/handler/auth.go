package handler

import (
	"net/http"

	"github.com/kvshvl/platform-core/internal/contextkeys"
	"github.com/kvshvl/platform-core/internal/domain"
)

// AuthHandler exposes the authenticated user's own profile.
type AuthHandler struct{}

func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(contextkeys.User).(*domain.User)
	if !ok || user == nil {
		Error(w, domain.ErrUnauthorized("not authenticated"))
		return
	}
	JSON(w, http.StatusOK, user)
}

// Access handles GET /api/access. The subscription gate in front of it
// does the actual check; reaching this handler means access is granted.
func (h *AuthHandler) Access(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]any{"access": true})
}
