package handler

import (
	"net/http"
	"strings"

	"go-report-access-service/internal/http/response"
	"go-report-access-service/internal/service"
)

type AddressHandler struct {
	addresses *service.AddressSearchService
}

func NewAddressHandler(addresses *service.AddressSearchService) *AddressHandler {
	return &AddressHandler{addresses: addresses}
}

func (h *AddressHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "q is required", nil)
		return
	}

	matches, err := h.addresses.Search(r.Context(), query)
	if err != nil {
		response.Error(w, r, http.StatusBadGateway, "BAD_GATEWAY", "address lookup unavailable", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, matches)
}
