// internal/handler/campaign_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/activity-sim/internal/errors"
	"github.com/unclebandit/activity-sim/internal/logging"
	"github.com/unclebandit/activity-sim/internal/service"
)

// CampaignHandler serves the read-only campaign views: the status snapshot
// and the activity audit log.
type CampaignHandler struct {
	Service *service.CampaignService
	Logger  *zap.Logger
}

// GetCampaignStatus returns the live snapshot of one campaign.
func (h *CampaignHandler) GetCampaignStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	status, err := h.Service.GetCampaignStatus(r.Context(), id)
	if err != nil {
		WriteError(w, logging.OrNop(h.Logger), err)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// ListActivities returns a page of the campaign's activity records.
func (h *CampaignHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	page, pageSize := PageParams(r)

	records, pagination, err := h.Service.ListActivities(r.Context(), id, page, pageSize)
	if err != nil {
		WriteError(w, logging.OrNop(h.Logger), err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data":       records,
		"pagination": pagination,
	})
}

// PageParams reads page and page_size; bad or missing values become 0 and
// are defaulted by the service.
func PageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	return page, pageSize
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// WriteError maps err to a status code and writes {success:false, message}.
func WriteError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
	}
	WriteJSON(w, status, map[string]interface{}{
		"success": false,
		"message": err.Error(),
	})
}

func StatusFor(err error) int {
	if errors.Is(err, service.ErrShuttingDown) {
		return http.StatusServiceUnavailable
	}
	switch appErrors.KindOf(err) {
	case appErrors.KindValidation:
		return http.StatusBadRequest
	case appErrors.KindNotFound:
		return http.StatusNotFound
	case appErrors.KindDuplicate:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
