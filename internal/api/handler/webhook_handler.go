package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/notifyhub/tenant-dispatch/internal/ingest"
)

// WebhookHandler receives provider callbacks: delivery status reports and
// inbound recipient messages.
type WebhookHandler struct {
	ingestor *ingest.Ingestor
	logger   *zap.Logger
}

func NewWebhookHandler(ingestor *ingest.Ingestor, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{ingestor: ingestor, logger: logger}
}

// Status handles POST /webhooks/status
//
// @Summary  Provider delivery status callback
// @Tags     webhooks
// @Accept   json
// @Param    body  body  ingest.StatusCallback  true  "Status callback"
// @Success  204
// @Router   /webhooks/status [post]
func (h *WebhookHandler) Status(w http.ResponseWriter, r *http.Request) {
	var cb ingest.StatusCallback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if cb.ProviderMessageID == "" {
		respondError(w, http.StatusBadRequest, "provider_message_id is required")
		return
	}

	if err := h.ingestor.HandleStatus(r.Context(), cb); err != nil {
		h.logger.Error("status callback failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to apply status callback")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Inbound handles POST /webhooks/inbound
//
// @Summary  Inbound recipient message (STOP/START keywords)
// @Tags     webhooks
// @Accept   json
// @Param    body  body  ingest.InboundMessage  true  "Inbound message"
// @Success  204
// @Router   /webhooks/inbound [post]
func (h *WebhookHandler) Inbound(w http.ResponseWriter, r *http.Request) {
	var msg ingest.InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if msg.From == "" || msg.To == "" {
		respondError(w, http.StatusBadRequest, "from and to are required")
		return
	}

	if err := h.ingestor.HandleInbound(r.Context(), msg); err != nil {
		h.logger.Warn("inbound message not applied",
			zap.String("to", msg.To), zap.Error(err))
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
