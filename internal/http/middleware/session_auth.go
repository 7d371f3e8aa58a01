package middleware

import (
	"context"
	"net/http"

	"go-report-access-service/internal/http/response"
	"go-report-access-service/internal/security"
)

type claimsContextKey struct{}

// RequireSession rejects requests without a valid session cookie and
// stashes the parsed claims for downstream handlers.
func RequireSession(jwtMgr *security.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := security.GetCookie(r, security.SessionCookieName)
			if raw == "" {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing session", nil)
				return
			}
			claims, err := jwtMgr.ParseSessionToken(raw)
			if err != nil {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid session", nil)
				return
			}
			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*security.SessionClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*security.SessionClaims)
	return claims, ok
}
