package dispatch

import (
	"time"

	"github.com/google/uuid"
)

// FailureReason classifies why a message could not be delivered.
type FailureReason string

const (
	FailureMissingRecipient FailureReason = "missing_recipient"
	FailureTemplateMissing  FailureReason = "template_required_but_missing"
	FailureGatewaySend      FailureReason = "gateway_send_failed"
	FailureLookup           FailureReason = "lookup_failed"
)

// ScheduledMessage is a WhatsApp message queued for future delivery.
// The scheduled date and time-of-day are interpreted as UTC.
type ScheduledMessage struct {
	ID                uuid.UUID         `json:"id"`
	BrandID           uuid.UUID         `json:"brand_id"`
	TripID            uuid.UUID         `json:"trip_id"`
	RecipientPhone    string            `json:"recipient_phone"`
	TripPhone         *string           `json:"trip_phone,omitempty"`
	TemplateName      *string           `json:"template_name,omitempty"`
	TemplateVariables map[string]string `json:"template_variables,omitempty"`
	Body              string            `json:"body"`
	ScheduledDate     time.Time         `json:"scheduled_date"`
	ScheduledTime     time.Time         `json:"scheduled_time"`
	IsSent            bool              `json:"is_sent"`
	SentAt            *time.Time        `json:"sent_at,omitempty"`
	FailureReason     *string           `json:"failure_reason,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// DueAt combines the scheduled date and time-of-day into a single UTC instant.
func (m *ScheduledMessage) DueAt() time.Time {
	d := m.ScheduledDate.UTC()
	t := m.ScheduledTime.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// Recipient resolves the delivery address: the explicit per-message phone
// wins, otherwise the phone attached to the trip.
func (m *ScheduledMessage) Recipient() string {
	if m.RecipientPhone != "" {
		return m.RecipientPhone
	}
	if m.TripPhone != nil {
		return *m.TripPhone
	}
	return ""
}

// Result reports the outcome for a single processed message.
type Result struct {
	ID      uuid.UUID `json:"id"`
	Success bool      `json:"success"`
	Error   string    `json:"error,omitempty"`
}

// Report aggregates the outcome of one dispatch pass. Success means the
// pass itself ran to completion; individual messages may still have failed.
type Report struct {
	Success    bool     `json:"success"`
	Processed  int      `json:"processed"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Results    []Result `json:"results"`
}
