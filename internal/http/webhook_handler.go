package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/mailcannon/mailcannon/internal/domain"
	"github.com/mailcannon/mailcannon/internal/service"
	"github.com/mailcannon/mailcannon/pkg/logger"
)

// maxWebhookBodyBytes bounds how large a callback payload is accepted.
const maxWebhookBodyBytes = 1 << 20

// webhookProcessTimeout bounds verify-store-link for one callback, so the
// provider never has to wait on a slow database before retrying.
const webhookProcessTimeout = 2 * time.Second

// WebhookHandler exposes the provider callback endpoint plus event and stats
// introspection.
type WebhookHandler struct {
	webhookService *service.WebhookService
	events         domain.EventRepository
	deliveries     domain.DeliveryRepository
	logger         logger.Logger
	version        string
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(
	webhookService *service.WebhookService,
	events domain.EventRepository,
	deliveries domain.DeliveryRepository,
	log logger.Logger,
	version string,
) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
		events:         events,
		deliveries:     deliveries,
		logger:         log,
		version:        version,
	}
}

// RegisterRoutes registers the webhook HTTP endpoints.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/webhooks/resend", h.handleResendWebhook)
	mux.HandleFunc("/events", h.handleEvents)
	mux.HandleFunc("/stats", h.handleStats)
	mux.HandleFunc("/health", h.handleHealth)
}

func (h *WebhookHandler) handleResendWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes+1))
	if err != nil {
		WriteJSONError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	if len(payload) > maxWebhookBodyBytes {
		WriteJSONError(w, "Payload too large", http.StatusRequestEntityTooLarge)
		return
	}
	if len(payload) == 0 {
		WriteJSONError(w, "Empty payload", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), webhookProcessTimeout)
	defer cancel()

	event, err := h.webhookService.HandleEvent(ctx, payload, r.Header)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSignature) {
			WriteJSONError(w, "Invalid signature", http.StatusUnauthorized)
			return
		}
		h.logger.WithField("error", err.Error()).Error("Webhook processing failed")
		WriteJSONError(w, "Failed to process event", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "accepted",
		"event_id": event.ID,
	})
}

func (h *WebhookHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			WriteJSONError(w, "limit must be an integer in 1..1000", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	events, err := h.events.Recent(r.Context(), limit)
	if err != nil {
		h.logger.WithField("error", err.Error()).Error("Failed to list events")
		WriteJSONError(w, "Failed to list events", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []*domain.Event{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
	})
}

func (h *WebhookHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := h.deliveries.Stats(r.Context(), r.URL.Query().Get("campaign_id"))
	if err != nil {
		h.logger.WithField("error", err.Error()).Error("Failed to compute stats")
		WriteJSONError(w, "Failed to compute stats", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *WebhookHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}
