package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const merchantContextKey = contextKey("merchant")

// MerchantFromContext returns the merchant id set by MerchantJWT.
func MerchantFromContext(ctx context.Context) (string, bool) {
	m, ok := ctx.Value(merchantContextKey).(string)
	return m, ok && m != ""
}

// WithMerchant is used by tests and by in-process callers that already know
// the merchant.
func WithMerchant(ctx context.Context, merchantID string) context.Context {
	return context.WithValue(ctx, merchantContextKey, merchantID)
}

// IssueMerchantToken signs an HS256 token for merchantID.
func IssueMerchantToken(secret, issuer, merchantID string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   merchantID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseMerchantToken validates signature, expiry and issuer and returns the
// subject.
func ParseMerchantToken(secret, issuer, tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", authErr("invalid or expired token")
	}
	if claims.Subject == "" {
		return "", authErr("token has no subject")
	}
	return claims.Subject, nil
}

// MerchantJWT guards merchant endpoints with a Bearer token.
func MerchantJWT(secret, issuer string, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.WarnContext(r.Context(), "Authorization header missing", "path", r.URL.Path)
				writeUnauthorized(w, "Authorization header required")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.WarnContext(r.Context(), "Unsupported Authorization scheme")
				writeUnauthorized(w, "Bearer token required")
				return
			}
			merchantID, err := ParseMerchantToken(secret, issuer, strings.TrimSpace(parts[1]))
			if err != nil {
				logger.WarnContext(r.Context(), "Token validation failed", "error", err)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithMerchant(r.Context(), merchantID)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"error":"unauthorized","message":%q}`, msg)
}
