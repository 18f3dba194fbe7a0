package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/reislab/travel-platform/internal/builder"
	"github.com/reislab/travel-platform/internal/observability/metrics"
	"github.com/reislab/travel-platform/pkg/logging"
)

// BuilderTokensHandler mints builder invites and exchanges their tokens.
type BuilderTokensHandler struct {
	exchanger *builder.Exchanger
	logger    *logging.Logger
	metrics   *metrics.PlatformMetrics
	baseURL   string
}

func NewBuilderTokensHandler(exchanger *builder.Exchanger, logger *logging.Logger) *BuilderTokensHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &BuilderTokensHandler{exchanger: exchanger, logger: logger}
}

func (h *BuilderTokensHandler) WithMetrics(m *metrics.PlatformMetrics) *BuilderTokensHandler {
	h.metrics = m
	return h
}

// WithPublicBaseURL enables the invite deeplink in mint responses.
func (h *BuilderTokensHandler) WithPublicBaseURL(u string) *BuilderTokensHandler {
	h.baseURL = strings.TrimRight(u, "/")
	return h
}

type mintRequest struct {
	BrandID string   `json:"brand_id"`
	UserID  string   `json:"user_id"`
	Scopes  []string `json:"scopes,omitempty"`
}

// Mint creates a builder session and returns the single-use initial
// token for the invite URL. Admin-only.
func (h *BuilderTokensHandler) Mint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	brandID, err := uuid.Parse(strings.TrimSpace(req.BrandID))
	if err != nil {
		jsonError(w, "brand_id must be a UUID", http.StatusBadRequest)
		return
	}
	userID, err := uuid.Parse(strings.TrimSpace(req.UserID))
	if err != nil {
		jsonError(w, "user_id must be a UUID", http.StatusBadRequest)
		return
	}

	sess, token, err := h.exchanger.Mint(r.Context(), brandID, userID, req.Scopes)
	if err != nil {
		h.logger.Error("builder token mint failed", "error", err, "brand_id", brandID)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	response := map[string]any{
		"session_id": sess.ID,
		"token":      token,
		"expires_at": sess.ExpiresAt,
	}
	if h.baseURL != "" {
		params := url.Values{}
		params.Set("brand_id", brandID.String())
		params.Set("token", token)
		response["url"] = h.baseURL + "/builder?" + params.Encode()
	}
	writeJSON(w, http.StatusCreated, response)
}

// Exchange trades the bearer token for builder access: an initial token
// is consumed and answered with a session token, a session token is
// re-validated.
func (h *BuilderTokensHandler) Exchange(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
		h.observe("unknown", "missing_header")
		jsonError(w, "missing or invalid Authorization header", http.StatusBadRequest)
		return
	}

	res, err := h.exchanger.Exchange(r.Context(), strings.TrimPrefix(auth, "Bearer "))
	if err != nil {
		status, message := exchangeError(err)
		h.observe("unknown", errorCode(err))
		writeJSON(w, status, map[string]string{
			"error": message,
			"code":  errorCode(err),
		})
		return
	}

	h.observe(res.Claims.TokenType, "success")

	response := map[string]any{
		"success":    true,
		"brand_id":   res.Claims.BrandID,
		"user_id":    res.Claims.UserID,
		"session_id": res.Claims.SessionID,
	}
	if res.SessionToken != "" {
		response["session_token"] = res.SessionToken
		response["message"] = "Initial token consumed. Use session_token for subsequent requests."
	} else {
		response["message"] = "Session token validated."
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *BuilderTokensHandler) observe(kind, outcome string) {
	h.metrics.ObserveExchange(kind, outcome)
}

// exchangeError maps exchange failures onto HTTP statuses: a burnt
// initial token is forbidden, an expired session unauthorized, a missing
// session not found, everything else a plain bad request.
func exchangeError(err error) (int, string) {
	switch {
	case errors.Is(err, builder.ErrInitialTokenAlreadyUsed):
		return http.StatusForbidden, "This URL has already been used and is no longer valid. Please request a new editor link."
	case errors.Is(err, builder.ErrSessionExpired):
		return http.StatusUnauthorized, "This session has expired. Please request a new editor link."
	case errors.Is(err, builder.ErrSessionNotFound):
		return http.StatusNotFound, "Session not found. Please request a new editor link."
	default:
		return http.StatusBadRequest, err.Error()
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, builder.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, builder.ErrMissingSessionReference):
		return "missing_session_reference"
	case errors.Is(err, builder.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, builder.ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, builder.ErrInitialTokenAlreadyUsed):
		return "initial_token_already_used"
	case errors.Is(err, builder.ErrInvalidSessionToken):
		return "invalid_session_token"
	case errors.Is(err, builder.ErrInvalidTokenType):
		return "invalid_token_type"
	default:
		return "exchange_failed"
	}
}
