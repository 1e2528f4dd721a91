package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/notifyhub/tenant-dispatch/internal/api/middleware"
	"github.com/notifyhub/tenant-dispatch/internal/domain"
	"github.com/notifyhub/tenant-dispatch/internal/service"
)

// EntryHandler handles the tenant-scoped producer endpoints.
type EntryHandler struct {
	svc    *service.EntryService
	logger *zap.Logger
}

func NewEntryHandler(svc *service.EntryService, logger *zap.Logger) *EntryHandler {
	return &EntryHandler{svc: svc, logger: logger}
}

// Create handles POST /api/v1/tenants/{tenantID}/entries
//
// @Summary     Enqueue a notification entry
// @Tags        entries
// @Accept      json
// @Produce     json
// @Param       tenantID           path      string                     true   "Tenant ID"
// @Param       X-Idempotency-Key  header    string                     false  "Idempotency key"
// @Param       body               body      domain.CreateEntryRequest  true   "Entry payload"
// @Success     201                {object}  domain.QueueEntry
// @Success     200                {object}  domain.QueueEntry  "Duplicate: returned existing entry"
// @Failure     422                {object}  map[string]string
// @Router      /api/v1/tenants/{tenantID}/entries [post]
func (h *EntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	var req domain.CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	idempotencyKey := r.Header.Get("X-Idempotency-Key")
	e, isDuplicate, err := h.svc.Create(r.Context(), tenantID, req, idempotencyKey)
	if err != nil {
		h.logger.Warn("create entry failed",
			zap.String("tenant_id", tenantID),
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	status := http.StatusCreated
	if isDuplicate {
		status = http.StatusOK
	}
	respondJSON(w, status, e)
}

// Schedule handles POST /api/v1/tenants/{tenantID}/entries/{id}/schedule
//
// Body: {"at": "<RFC3339>"}; omitted means now. Moving a non-pending entry
// is a silent no-op, mirroring the storage contract.
//
// @Summary     Schedule a pending entry for delivery
// @Tags        entries
// @Accept      json
// @Param       tenantID  path  string  true  "Tenant ID"
// @Param       id        path  string  true  "Entry ID"
// @Success     204
// @Failure     404  {object}  map[string]string
// @Router      /api/v1/tenants/{tenantID}/entries/{id}/schedule [post]
func (h *EntryHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	id := chi.URLParam(r, "id")

	var body struct {
		At *time.Time `json:"at,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	if err := h.svc.Schedule(r.Context(), tenantID, id, body.At); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetByID handles GET /api/v1/tenants/{tenantID}/entries/{id}
//
// @Summary  Get one entry
// @Tags     entries
// @Produce  json
// @Param    tenantID  path      string  true  "Tenant ID"
// @Param    id        path      string  true  "Entry ID"
// @Success  200       {object}  domain.QueueEntry
// @Failure  404       {object}  map[string]string
// @Router   /api/v1/tenants/{tenantID}/entries/{id} [get]
func (h *EntryHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	id := chi.URLParam(r, "id")

	e, err := h.svc.GetByID(r.Context(), tenantID, id)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, e)
}

// List handles GET /api/v1/tenants/{tenantID}/entries
//
// @Summary  List entries
// @Tags     entries
// @Produce  json
// @Param    tenantID     path      string  true   "Tenant ID"
// @Param    status       query     string  false  "Filter by status"
// @Param    channel      query     string  false  "Filter by channel"
// @Param    destination  query     string  false  "Filter by destination"
// @Param    page         query     int     false  "Page number"
// @Param    limit        query     int     false  "Page size (max 100)"
// @Success  200          {object}  map[string]any
// @Router   /api/v1/tenants/{tenantID}/entries [get]
func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	filter := parseListFilter(r)

	entries, total, err := h.svc.List(r.Context(), tenantID, filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list entries")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"data":  entries,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

// Stats handles GET /api/v1/tenants/{tenantID}/stats
//
// @Summary  Queue statistics for a tenant
// @Tags     entries
// @Produce  json
// @Param    tenantID  path      string  true  "Tenant ID"
// @Success  200       {object}  domain.QueueStats
// @Router   /api/v1/tenants/{tenantID}/stats [get]
func (h *EntryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	stats, err := h.svc.Stats(r.Context(), tenantID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func parseListFilter(r *http.Request) domain.ListFilter {
	q := r.URL.Query()
	filter := domain.ListFilter{Page: 1, Limit: 20}

	if v := q.Get("status"); v != "" {
		s := domain.Status(v)
		if s.IsValid() {
			filter.Status = &s
		}
	}
	if v := q.Get("channel"); v != "" {
		c := domain.Channel(v)
		if c.IsValid() {
			filter.Channel = &c
		}
	}
	if v := q.Get("destination"); v != "" {
		filter.Destination = &v
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.From = &t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.To = &t
		}
	}
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		filter.Page = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 && v <= 100 {
		filter.Limit = v
	}
	return filter
}
