package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"lendgate/pkg/requestcontext"
)

// Identity is the verified caller identity produced by a TokenVerifier.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

// TokenVerifier turns a raw token into a verified identity. The service
// trusts the returned identity unconditionally.
type TokenVerifier interface {
	Verify(token string) (*Identity, error)
}

// RequireAuth extracts the token from the session cookie or the
// Authorization header, verifies it, and stores the identity in context.
func RequireAuth(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				writeUnauthorized(w)
				return
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w)
				return
			}

			ctx := requestcontext.WithUserID(r.Context(), identity.UserID)
			ctx = requestcontext.WithEmail(ctx, identity.Email)
			ctx = requestcontext.WithRole(ctx, identity.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken prefers the session cookie; the Authorization header is the
// fallback for API clients.
func extractToken(r *http.Request) string {
	if cookie, err := r.Cookie("token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	authHeader := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return after
	}
	return ""
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
