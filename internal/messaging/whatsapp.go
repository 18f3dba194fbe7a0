// Package messaging sends WhatsApp messages through Twilio.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/reislab/travel-platform/pkg/logging"
)

var whatsappTracer = otel.Tracer("reislab.internal.messaging.whatsapp")

const twilioAPIBase = "https://api.twilio.com"

// WhatsAppSender posts WhatsApp messages through Twilio's REST API with
// per-brand credentials. Each send is a single attempt; delivery policy
// lives in the dispatcher, not here.
type WhatsAppSender struct {
	settings   *SettingsResolver
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

func NewWhatsAppSender(settings *SettingsResolver, logger *logging.Logger) *WhatsAppSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &WhatsAppSender{
		settings: settings,
		baseURL:  twilioAPIBase,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// WithBaseURL points the sender at a different API host. Tests use this
// with httptest.
func (s *WhatsAppSender) WithBaseURL(u string) *WhatsAppSender {
	if u != "" {
		s.baseURL = strings.TrimRight(u, "/")
	}
	return s
}

func (s *WhatsAppSender) WithHTTPClient(c *http.Client) *WhatsAppSender {
	if c != nil {
		s.httpClient = c
	}
	return s
}

// SendFreeform sends a plain-text message. Twilio only accepts these
// inside the 24-hour customer service window.
func (s *WhatsAppSender) SendFreeform(ctx context.Context, brandID uuid.UUID, to, body string) error {
	if strings.TrimSpace(body) == "" {
		return errors.New("messaging: body required")
	}
	payload := url.Values{}
	payload.Set("Body", body)
	return s.send(ctx, brandID, to, payload, "freeform")
}

// SendTemplate sends an approved content template with its variables.
func (s *WhatsAppSender) SendTemplate(ctx context.Context, brandID uuid.UUID, to, templateSID string, variables map[string]string) error {
	if templateSID == "" {
		return errors.New("messaging: template sid required")
	}
	payload := url.Values{}
	payload.Set("ContentSid", templateSID)
	if len(variables) > 0 {
		vars, err := json.Marshal(variables)
		if err != nil {
			return fmt.Errorf("messaging: marshal content variables: %w", err)
		}
		payload.Set("ContentVariables", string(vars))
	}
	return s.send(ctx, brandID, to, payload, "template")
}

func (s *WhatsAppSender) send(ctx context.Context, brandID uuid.UUID, to string, payload url.Values, kind string) error {
	if to == "" {
		return errors.New("messaging: to required")
	}

	creds, err := s.settings.Resolve(ctx, brandID)
	if err != nil {
		return err
	}
	if creds.WhatsAppNumber == "" {
		return fmt.Errorf("messaging: no whatsapp number for brand %s", brandID)
	}

	ctx, span := whatsappTracer.Start(ctx, "messaging.whatsapp.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("reislab.brand_id", brandID.String()),
		attribute.String("reislab.kind", kind),
	)

	payload.Set("To", whatsappAddress(to))
	payload.Set("From", whatsappAddress(creds.WhatsAppNumber))

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, creds.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
	if err != nil {
		return fmt.Errorf("messaging: build request: %w", err)
	}
	req.SetBasicAuth(creds.AccountSID, creds.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("messaging: whatsapp send: %w", err)
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("messaging: whatsapp send failed: %s", formatTwilioError(resp.StatusCode, body))
		span.RecordError(err)
		return err
	}

	var parsed struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.SID != "" {
		span.SetAttributes(attribute.String("reislab.message_sid", parsed.SID))
	}
	s.logger.Info("whatsapp message sent", "brand_id", brandID, "kind", kind, "sid", parsed.SID)
	return nil
}

// whatsappAddress prefixes a phone number with the whatsapp: scheme
// Twilio expects, leaving already-prefixed values alone.
func whatsappAddress(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}

type twilioAPIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}
