package response

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Titles for the error codes this service emits; anything else falls back
// to the standard status text.
var problemTitles = map[string]string{
	"BAD_REQUEST":      "Bad Request",
	"UNAUTHORIZED":     "Unauthorized",
	"FORBIDDEN":        "Forbidden",
	"NOT_FOUND":        "Not Found",
	"CONFLICT":         "Conflict",
	"GONE":             "Gone",
	"PAYMENT_REQUIRED": "Payment Required",
	"INTERNAL":         "Internal Server Error",
	"RATE_LIMITED":     "Too Many Requests",
	"BAD_GATEWAY":      "Bad Gateway",
	"INVALID_TOKEN":    "Invalid or Already Used Token",
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
	Meta    meta        `json:"meta"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type meta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

type problemDetails struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail"`
	Instance  string `json:"instance"`
	Code      string `json:"code"`
	RequestID string `json:"request_id"`
}

func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeAs(w, "application/json", status, envelope{
		Success: true,
		Data:    data,
		Meta:    meta{RequestID: requestID(r), Timestamp: time.Now().UTC()},
	})
}

func Error(w http.ResponseWriter, r *http.Request, status int, code, message string, details interface{}) {
	if acceptsProblemJSON(r) {
		writeAs(w, "application/problem+json", status, problemDetails{
			Type:      problemType(code),
			Title:     problemTitle(code, status),
			Status:    status,
			Detail:    message,
			Instance:  r.URL.Path,
			Code:      code,
			RequestID: requestID(r),
		})
		return
	}

	writeAs(w, "application/json", status, envelope{
		Success: false,
		Error:   &apiError{Code: code, Message: message, Details: details},
		Meta:    meta{RequestID: requestID(r), Timestamp: time.Now().UTC()},
	})
}

func writeAs(w http.ResponseWriter, contentType string, status int, body interface{}) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func requestID(r *http.Request) string {
	if id := chimiddleware.GetReqID(r.Context()); id != "" {
		return id
	}
	if id := r.Header.Get("X-Request-Id"); id != "" {
		return id
	}
	return "req-unknown"
}

// acceptsProblemJSON reports whether the Accept header lists
// application/problem+json with a non-zero quality.
func acceptsProblemJSON(r *http.Request) bool {
	for _, clause := range strings.Split(r.Header.Get("Accept"), ",") {
		fields := strings.Split(clause, ";")
		if !strings.EqualFold(strings.TrimSpace(fields[0]), "application/problem+json") {
			continue
		}
		q := 1.0
		for _, param := range fields[1:] {
			if v, ok := strings.CutPrefix(strings.TrimSpace(param), "q="); ok {
				if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
					q = parsed
				}
			}
		}
		if q > 0 {
			return true
		}
	}
	return false
}

func problemType(code string) string {
	slug := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(code)), "_", "-")
	if slug == "" {
		slug = "unknown"
	}
	return "urn:problem:report-access:" + slug
}

func problemTitle(code string, status int) string {
	if title, ok := problemTitles[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return title
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "Error"
}
