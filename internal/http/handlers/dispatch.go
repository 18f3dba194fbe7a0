package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/reislab/travel-platform/internal/dispatch"
	"github.com/reislab/travel-platform/pkg/logging"
)

// DispatchRunner runs one dispatch pass.
type DispatchRunner interface {
	ProcessDue(ctx context.Context) (*dispatch.Report, error)
}

// MessageLister reads already-sent scheduled messages.
type MessageLister interface {
	ListSent(ctx context.Context, brandID uuid.UUID, limit int) ([]dispatch.ScheduledMessage, error)
}

// DispatchHandler exposes a manual trigger for the scheduled message
// dispatcher, next to the cron-style worker.
type DispatchHandler struct {
	runner DispatchRunner
	lister MessageLister
	logger *logging.Logger
}

func NewDispatchHandler(runner DispatchRunner, logger *logging.Logger) *DispatchHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &DispatchHandler{runner: runner, logger: logger}
}

// WithLister enables the sent-history endpoint.
func (h *DispatchHandler) WithLister(l MessageLister) *DispatchHandler {
	h.lister = l
	return h
}

// Run processes all currently due messages and returns the per-message
// results.
func (h *DispatchHandler) Run(w http.ResponseWriter, r *http.Request) {
	report, err := h.runner.ProcessDue(r.Context())
	if err != nil {
		h.logger.Error("manual dispatch failed", "error", err)
		jsonError(w, "dispatch failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// History returns recently sent messages for a brand, newest first.
func (h *DispatchHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.lister == nil {
		jsonError(w, "sent message history not available", http.StatusNotFound)
		return
	}
	brandID, err := uuid.Parse(strings.TrimSpace(r.URL.Query().Get("brand_id")))
	if err != nil {
		jsonError(w, "brand_id must be a UUID", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	msgs, err := h.lister.ListSent(r.Context(), brandID, limit)
	if err != nil {
		h.logger.Error("sent message listing failed", "error", err, "brand_id", brandID)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []dispatch.ScheduledMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs, "count": len(msgs)})
}
