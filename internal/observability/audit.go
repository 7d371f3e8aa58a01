package observability

import (
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

type AuditInput struct {
	EventName  string
	Actor      string
	TargetType string
	TargetID   string
	Action     string
	Outcome    string
	Reason     string
}

// EmitAudit writes a structured audit line for state-changing operations.
// Extra key/value pairs are appended verbatim.
func EmitAudit(r *http.Request, in AuditInput, kv ...any) {
	args := []any{
		"event", in.EventName,
		"actor", in.Actor,
		"target_type", in.TargetType,
		"target_id", in.TargetID,
		"action", in.Action,
		"outcome", in.Outcome,
		"reason", in.Reason,
		"request_id", chimiddleware.GetReqID(r.Context()),
	}
	args = append(args, kv...)
	slog.Default().InfoContext(r.Context(), "audit", args...)
}
