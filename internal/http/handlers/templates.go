package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/reislab/travel-platform/internal/templates"
	"github.com/reislab/travel-platform/pkg/logging"
)

// TemplateWriter persists template definitions.
type TemplateWriter interface {
	Upsert(ctx context.Context, def *templates.Definition) error
}

// TemplateCache drops cached lookups after a write.
type TemplateCache interface {
	Invalidate(ctx context.Context, name string, brandID uuid.UUID) error
}

// TemplatesHandler registers approved WhatsApp templates. Admin-only.
type TemplatesHandler struct {
	store  TemplateWriter
	cache  TemplateCache
	logger *logging.Logger
}

func NewTemplatesHandler(store TemplateWriter, cache TemplateCache, logger *logging.Logger) *TemplatesHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &TemplatesHandler{store: store, cache: cache, logger: logger}
}

type templateRequest struct {
	BrandID       string   `json:"brand_id,omitempty"`
	Name          string   `json:"name"`
	TemplateSID   string   `json:"template_sid"`
	VariableSlots []string `json:"variable_slots,omitempty"`
	IsActive      *bool    `json:"is_active,omitempty"`
}

// Register upserts a template definition. An empty brand_id registers a
// global template every brand can fall back to.
func (h *TemplatesHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.TemplateSID = strings.TrimSpace(req.TemplateSID)
	if req.Name == "" || req.TemplateSID == "" {
		jsonError(w, "name and template_sid are required", http.StatusBadRequest)
		return
	}

	def := &templates.Definition{
		Name:          req.Name,
		TemplateSID:   req.TemplateSID,
		VariableSlots: req.VariableSlots,
		IsActive:      true,
	}
	if req.IsActive != nil {
		def.IsActive = *req.IsActive
	}

	cacheKey := uuid.Nil
	if req.BrandID != "" {
		brandID, err := uuid.Parse(req.BrandID)
		if err != nil {
			jsonError(w, "brand_id must be a UUID", http.StatusBadRequest)
			return
		}
		def.BrandID = &brandID
		cacheKey = brandID
	}

	if err := h.store.Upsert(r.Context(), def); err != nil {
		h.logger.Error("template upsert failed", "template", def.Name, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if h.cache != nil {
		if err := h.cache.Invalidate(r.Context(), def.Name, cacheKey); err != nil {
			h.logger.Warn("template cache invalidation failed", "template", def.Name, "error", err)
		}
	}

	h.logger.Info("template registered", "template", def.Name, "brand_id", req.BrandID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": def.ID})
}
