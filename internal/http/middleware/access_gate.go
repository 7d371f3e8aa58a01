package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"go-report-access-service/internal/observability"
	"go-report-access-service/internal/service"
)

const gateDenialMessage = "Access denied: a valid report key is required.\n"

// AccessGate guards every path that is not on the allow-list. A request
// passes only when its `key` query parameter resolves to an unused,
// unexpired token. The gate never consumes the token; consumption is the
// finalise endpoint's job, so a report page survives reloads until the
// client explicitly completes the flow.
type AccessGate struct {
	tokens        service.TokenServiceInterface
	allowPrefixes []string
	logger        *slog.Logger
}

func NewAccessGate(tokens service.TokenServiceInterface, allowPrefixes []string, logger *slog.Logger) *AccessGate {
	prefixes := make([]string, 0, len(allowPrefixes))
	for _, p := range allowPrefixes {
		v := strings.TrimSpace(p)
		if v != "" {
			prefixes = append(prefixes, v)
		}
	}
	return &AccessGate{tokens: tokens, allowPrefixes: prefixes, logger: logger}
}

func (g *AccessGate) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if g.allowlisted(r.URL.Path) {
				observability.RecordGateDecision(r.Context(), "allowlisted")
				next.ServeHTTP(w, r)
				return
			}

			key := r.URL.Query().Get("key")
			if key == "" {
				observability.RecordGateDecision(r.Context(), "missing_key")
				g.deny(w, r, "missing_key")
				return
			}

			// Validity is evaluated fresh on every request; a concurrent
			// finalise call must invalidate the key mid-session.
			check, err := g.tokens.Check(r.Context(), key)
			if err != nil {
				observability.RecordGateDecision(r.Context(), "error")
				g.logger.Error("gate token check failed", "path", r.URL.Path, "error", err.Error())
				http.Error(w, "Service temporarily unavailable.", http.StatusInternalServerError)
				return
			}
			if check.Status != service.TokenStatusValid {
				observability.RecordGateDecision(r.Context(), "invalid")
				g.deny(w, r, string(check.Status))
				return
			}

			observability.RecordGateDecision(r.Context(), "valid")
			next.ServeHTTP(w, r)
		})
	}
}

func (g *AccessGate) allowlisted(path string) bool {
	for _, prefix := range g.allowPrefixes {
		if strings.HasSuffix(prefix, "/") {
			if strings.HasPrefix(path, prefix) {
				return true
			}
			continue
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

func (g *AccessGate) deny(w http.ResponseWriter, r *http.Request, reason string) {
	g.logger.Info("gate denied request", "path", r.URL.Path, "reason", reason)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(gateDenialMessage))
}
