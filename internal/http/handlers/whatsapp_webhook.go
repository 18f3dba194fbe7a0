package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reislab/travel-platform/internal/observability/metrics"
	"github.com/reislab/travel-platform/pkg/logging"
)

// InteractionRecorder is what the webhook needs to open the 24-hour
// customer service window for a traveler.
type InteractionRecorder interface {
	Touch(ctx context.Context, tripID uuid.UUID, phone string, at time.Time) error
	TripsByPhone(ctx context.Context, phone string) ([]uuid.UUID, error)
}

// WhatsAppWebhookHandler receives Twilio's inbound message callbacks and
// records the interaction for every trip the sender belongs to.
type WhatsAppWebhookHandler struct {
	interactions InteractionRecorder
	logger       *logging.Logger
	metrics      *metrics.PlatformMetrics
	now          func() time.Time
}

func NewWhatsAppWebhookHandler(interactions InteractionRecorder, logger *logging.Logger) *WhatsAppWebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WhatsAppWebhookHandler{interactions: interactions, logger: logger, now: time.Now}
}

func (h *WhatsAppWebhookHandler) WithMetrics(m *metrics.PlatformMetrics) *WhatsAppWebhookHandler {
	h.metrics = m
	return h
}

func (h *WhatsAppWebhookHandler) WithClock(now func() time.Time) *WhatsAppWebhookHandler {
	if now != nil {
		h.now = now
	}
	return h
}

// HandleInbound processes one inbound WhatsApp message. Twilio retries
// on non-2xx, so the reply is an empty TwiML document even when the
// sender matches no trip.
func (h *WhatsAppWebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.observe("rejected")
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	phone := strings.TrimPrefix(strings.TrimSpace(r.PostForm.Get("From")), "whatsapp:")
	if phone == "" {
		h.observe("rejected")
		http.Error(w, "missing From", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	now := h.now().UTC()

	trips, err := h.interactions.TripsByPhone(ctx, phone)
	if err != nil {
		h.logger.Error("inbound webhook: trips lookup failed", "error", err)
		h.observe("error")
		writeTwiML(w)
		return
	}

	for _, tripID := range trips {
		if err := h.interactions.Touch(ctx, tripID, phone, now); err != nil {
			h.logger.Error("inbound webhook: record interaction failed",
				"trip_id", tripID, "error", err)
		}
	}

	h.logger.Info("inbound whatsapp message",
		"trips", len(trips), "message_sid", r.PostForm.Get("MessageSid"))
	h.observe("accepted")
	writeTwiML(w)
}

func (h *WhatsAppWebhookHandler) observe(status string) {
	h.metrics.ObserveInbound(status)
}

func writeTwiML(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Response></Response>`))
}
