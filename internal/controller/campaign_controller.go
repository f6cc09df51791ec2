// internal/controller/campaign_controller.go
package controller

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/unclebandit/activity-sim/internal/handler"
	"github.com/unclebandit/activity-sim/internal/logging"
	"github.com/unclebandit/activity-sim/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
	Logger          *zap.Logger
}

// Routes mounts the campaign control plane.
func Routes(ctrl *CampaignController, h *handler.CampaignHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/campaigns", ctrl.CreateCampaign)
	r.Post("/campaigns/recurring", ctrl.CreateRecurringCampaign)
	r.Get("/campaigns", ctrl.ListCampaigns)
	r.Get("/campaigns/{id}", h.GetCampaignStatus)
	r.Get("/campaigns/{id}/activities", h.ListActivities)
	r.Post("/campaigns/{id}/cancel", ctrl.CancelCampaign)
	r.Post("/campaigns/{id}/stop-recurring", ctrl.StopRecurringCampaign)
	return r
}

func (c *CampaignController) logger() *zap.Logger { return logging.OrNop(c.Logger) }

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	c.create(w, r, c.CampaignService.CreateCampaign)
}

func (c *CampaignController) CreateRecurringCampaign(w http.ResponseWriter, r *http.Request) {
	c.create(w, r, c.CampaignService.CreateRecurringCampaign)
}

type createFunc func(ctx context.Context, req service.CampaignRequest) (string, error)

func (c *CampaignController) create(w http.ResponseWriter, r *http.Request, create createFunc) {
	var body service.CampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		handler.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"message": "invalid body: " + err.Error(),
		})
		return
	}

	id, err := create(r.Context(), body)
	if err != nil {
		handler.WriteError(w, c.logger(), err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success":    true,
		"campaignId": id,
	})
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, pageSize := handler.PageParams(r)
	q := r.URL.Query()

	campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), service.ListParams{
		Page:         page,
		PageSize:     pageSize,
		Status:       q.Get("status"),
		FamilyID:     q.Get("family_id"),
		ActivityType: q.Get("activity_type"),
	})
	if err != nil {
		handler.WriteError(w, c.logger(), err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination, // page, page_size, total_count, total_pages
	})
}

func (c *CampaignController) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	c.command(w, r, c.CampaignService.CancelCampaign)
}

func (c *CampaignController) StopRecurringCampaign(w http.ResponseWriter, r *http.Request) {
	c.command(w, r, c.CampaignService.StopRecurringCampaign)
}

func (c *CampaignController) command(w http.ResponseWriter, r *http.Request, run func(context.Context, string) (string, error)) {
	msg, err := run(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handler.WriteError(w, c.logger(), err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": msg,
	})
}
