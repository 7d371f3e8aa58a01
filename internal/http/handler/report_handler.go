package handler

import (
	"errors"
	"html"
	"net/http"
	"strings"

	"go-report-access-service/internal/http/response"
	"go-report-access-service/internal/service"
)

const defaultReportObjectKey = "report.pdf"

// ReportHandler sits behind the access gate; by the time a request gets
// here the key has already been validated.
type ReportHandler struct {
	storage service.ReportStorage
}

func NewReportHandler(storage service.ReportStorage) *ReportHandler {
	return &ReportHandler{storage: storage}
}

// Page is the gated report landing page. The real artifact comes from
// Download; this just confirms the key worked and links the artifact.
func (h *ReportHandler) Page(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("<!doctype html><title>Report</title><h1>Your report</h1><p><a href=\"/report/download?key=" +
		html.EscapeString(r.URL.Query().Get("key")) + "\">Download report</a></p>\n"))
}

func (h *ReportHandler) Download(w http.ResponseWriter, r *http.Request) {
	if h.storage == nil {
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "report storage is not configured", nil)
		return
	}
	objectKey := strings.TrimSpace(r.URL.Query().Get("object"))
	if objectKey == "" {
		objectKey = defaultReportObjectKey
	}

	presigned, err := h.storage.PresignedReportURL(r.Context(), objectKey)
	if err != nil {
		if errors.Is(err, service.ErrReportNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "report not found", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to generate download link", nil)
		return
	}
	http.Redirect(w, r, presigned, http.StatusFound)
}
