package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/notifyhub/tenant-dispatch/internal/domain"
	"github.com/notifyhub/tenant-dispatch/internal/optout"
)

// OptOutHandler exposes administrative suppression management.
// Keyword-driven opt-outs arrive through the inbound webhook instead.
type OptOutHandler struct {
	registry *optout.Registry
	logger   *zap.Logger
}

func NewOptOutHandler(registry *optout.Registry, logger *zap.Logger) *OptOutHandler {
	return &OptOutHandler{registry: registry, logger: logger}
}

type optOutRequest struct {
	Destination string `json:"destination"`
}

// Create handles POST /api/v1/tenants/{tenantID}/optouts
// An admin opt-out also cancels queued sends, same as a STOP keyword.
//
// @Summary  Suppress a destination
// @Tags     optouts
// @Accept   json
// @Param    tenantID  path  string         true  "Tenant ID"
// @Param    body      body  optOutRequest  true  "Destination to suppress"
// @Success  204
// @Router   /api/v1/tenants/{tenantID}/optouts [post]
func (h *OptOutHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	var req optOutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Destination == "" {
		respondError(w, http.StatusBadRequest, "destination is required")
		return
	}

	if err := h.registry.Suppress(r.Context(), tenantID, req.Destination, domain.OptOutMethodAdmin, ""); err != nil {
		h.logger.Error("admin opt-out failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to record opt-out")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/v1/tenants/{tenantID}/optouts/{destination}
//
// @Summary  Remove a suppression
// @Tags     optouts
// @Param    tenantID     path  string  true  "Tenant ID"
// @Param    destination  path  string  true  "Suppressed destination"
// @Success  204
// @Router   /api/v1/tenants/{tenantID}/optouts/{destination} [delete]
func (h *OptOutHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	destination := chi.URLParam(r, "destination")

	if err := h.registry.Remove(r.Context(), tenantID, destination); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to remove opt-out")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /api/v1/tenants/{tenantID}/optouts
//
// @Summary  List suppressed destinations
// @Tags     optouts
// @Produce  json
// @Param    tenantID  path      string  true  "Tenant ID"
// @Success  200       {object}  map[string]any
// @Router   /api/v1/tenants/{tenantID}/optouts [get]
func (h *OptOutHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	records, err := h.registry.List(r.Context(), tenantID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list opt-outs")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": records, "total": len(records)})
}
