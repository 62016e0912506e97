package service

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kvshvl/platform-core/internal/domain"
)

// Token verification failures. All of them are refusals: callers surface
// them as 401 and never retry.
var (
	ErrTokenMalformed   = errors.New("token malformed")
	ErrUnknownIssuer    = errors.New("token issuer unknown")
	ErrSignatureInvalid = errors.New("token signature invalid")
	ErrTokenExpired     = errors.New("token expired")
	ErrMissingEmail     = errors.New("token carries no email")
)

// TokenVerifier validates bearer tokens from two issuers: the hosted auth
// provider (issuer A) and the legacy self-issued one (issuer B). Issuer A
// is tried first; a signature mismatch falls through to issuer B, but an
// expired token is a definitive refusal with no fallback.
type TokenVerifier struct {
	secretA string
	secretB string
}

func NewTokenVerifier(secretA, secretB string) *TokenVerifier {
	return &TokenVerifier{secretA: secretA, secretB: secretB}
}

// Verify turns a bearer string into normalized claims or a typed failure.
func (v *TokenVerifier) Verify(bearer string) (domain.Claims, error) {
	if bearer == "" {
		return domain.Claims{}, ErrTokenMalformed
	}

	var lastErr error
	for _, secret := range []string{v.secretA, v.secretB} {
		if secret == "" {
			continue
		}
		claims, err := decodeHS256(bearer, secret)
		if err == nil {
			return normalizeClaims(claims)
		}
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return domain.Claims{}, ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenExpired):
			return domain.Claims{}, ErrTokenExpired
		default:
			// Wrong secret or unrecognized issuer: try the next one.
			lastErr = ErrSignatureInvalid
		}
	}

	if lastErr == nil {
		lastErr = ErrUnknownIssuer
	}
	return domain.Claims{}, lastErr
}

func decodeHS256(bearer, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(bearer, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// normalizeClaims extracts the identity fields. Email comes from the
// top-level claim with a fallback to the hosted provider's nested
// user_metadata, and is lowercased and trimmed before use.
func normalizeClaims(claims jwt.MapClaims) (domain.Claims, error) {
	email := getClaimString(claims, "email")
	if email == "" {
		if meta, ok := claims["user_metadata"].(map[string]interface{}); ok {
			if v, ok := meta["email"].(string); ok {
				email = v
			}
		}
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return domain.Claims{}, ErrMissingEmail
	}

	return domain.Claims{
		Email:       email,
		Subject:     getClaimString(claims, "sub"),
		DisplayName: getClaimString(claims, "name"),
	}, nil
}

func getClaimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
