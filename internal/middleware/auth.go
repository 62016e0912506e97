package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/kvshvl/platform-core/internal/contextkeys"
	"github.com/kvshvl/platform-core/internal/domain"
	"github.com/kvshvl/platform-core/internal/handler"
)

// Authenticator is the request-gate surface the middleware needs.
// Implemented by service.AuthService.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (*domain.User, error)
	RequireSubscription(user *domain.User) error
}

// bearerFrom extracts the token from the Authorization header, returning
// "" when the header is absent or not a Bearer scheme.
func bearerFrom(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// Auth gates a route on a valid bearer: 401 on any verification failure,
// 403 when the user is soft-disabled. The authorized user lands in the
// request context.
func Auth(gate Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearer := bearerFrom(r)
			if bearer == "" {
				handler.Error(w, domain.ErrUnauthorized("missing bearer token"))
				return
			}

			user, err := gate.Authenticate(r.Context(), bearer)
			if err != nil {
				handler.Error(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), contextkeys.User, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSubscription is the strict gate variant: on top of Auth, the user
// must hold an active trial or paid subscription. Must be used after Auth.
func RequireSubscription(gate Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFrom(r.Context())
			if user == nil {
				handler.Error(w, domain.ErrUnauthorized("missing bearer token"))
				return
			}
			if err := gate.RequireSubscription(user); err != nil {
				handler.Error(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// OptionalAuth lets anonymous requests through with no user in context.
// A bearer that is present must still verify: an expired or forged token
// is refused exactly as the required gate refuses it.
func OptionalAuth(gate Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearer := bearerFrom(r)
			if bearer == "" {
				next.ServeHTTP(w, r)
				return
			}
			user, err := gate.Authenticate(r.Context(), bearer)
			if err != nil {
				handler.Error(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), contextkeys.User, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminChecker resolves the admin allow-list. Implemented by config.Config.
type AdminChecker interface {
	IsAdmin(email string) bool
}

// AdminOnly restricts a route to the configured allow-list. An empty
// allow-list denies everyone. Must be used after Auth.
func AdminOnly(admins AdminChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFrom(r.Context())
			if user == nil || !admins.IsAdmin(user.Email) {
				handler.Error(w, domain.ErrForbiddenAdmin())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserFrom returns the authenticated user from the request context, or nil.
func UserFrom(ctx context.Context) *domain.User {
	user, _ := ctx.Value(contextkeys.User).(*domain.User)
	return user
}
