package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/reislab/travel-platform/internal/messaging"
	"github.com/reislab/travel-platform/pkg/logging"
)

// SettingsWriter persists brand WhatsApp credentials.
type SettingsWriter interface {
	Upsert(ctx context.Context, brandID *uuid.UUID, bs *messaging.BrandSettings) error
}

// SettingsCache drops cached credentials after a write.
type SettingsCache interface {
	Invalidate(ctx context.Context, brandID uuid.UUID) error
}

// SettingsHandler manages brand WhatsApp credentials. Admin-only.
type SettingsHandler struct {
	store  SettingsWriter
	cache  SettingsCache
	logger *logging.Logger
}

func NewSettingsHandler(store SettingsWriter, cache SettingsCache, logger *logging.Logger) *SettingsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SettingsHandler{store: store, cache: cache, logger: logger}
}

type settingsRequest struct {
	BrandID        string `json:"brand_id,omitempty"`
	AccountSID     string `json:"account_sid"`
	AuthToken      string `json:"auth_token"`
	WhatsAppNumber string `json:"whatsapp_number"`
}

// Upsert writes credentials for a brand. An empty brand_id writes the
// shared system fallback row.
func (h *SettingsHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	req.AccountSID = strings.TrimSpace(req.AccountSID)
	if req.AccountSID == "" || req.AuthToken == "" {
		jsonError(w, "account_sid and auth_token are required", http.StatusBadRequest)
		return
	}

	var brandID *uuid.UUID
	if req.BrandID != "" {
		parsed, err := uuid.Parse(req.BrandID)
		if err != nil {
			jsonError(w, "brand_id must be a UUID", http.StatusBadRequest)
			return
		}
		brandID = &parsed
	}

	bs := &messaging.BrandSettings{
		AccountSID:     req.AccountSID,
		AuthToken:      req.AuthToken,
		WhatsAppNumber: req.WhatsAppNumber,
	}
	if err := h.store.Upsert(r.Context(), brandID, bs); err != nil {
		h.logger.Error("settings upsert failed", "brand_id", req.BrandID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if h.cache != nil && brandID != nil {
		if err := h.cache.Invalidate(r.Context(), *brandID); err != nil {
			h.logger.Warn("settings cache invalidation failed", "brand_id", req.BrandID, "error", err)
		}
	}

	h.logger.Info("whatsapp settings updated", "brand_id", req.BrandID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
