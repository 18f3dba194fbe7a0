// Package dispatch sends scheduled WhatsApp messages once they come due.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/reislab/travel-platform/internal/observability/metrics"
	"github.com/reislab/travel-platform/internal/templates"
	"github.com/reislab/travel-platform/pkg/logging"
)

// MessageStore abstracts scheduled message persistence.
type MessageStore interface {
	ListDue(ctx context.Context, asOf time.Time, limit int) ([]ScheduledMessage, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	MarkSentFailed(ctx context.Context, id uuid.UUID, sentAt time.Time, reason FailureReason) error
	RecordFailure(ctx context.Context, id uuid.UUID, reason FailureReason) error
}

// Gateway delivers WhatsApp messages. Freeform sends are only allowed
// inside the 24-hour customer service window; everything else goes out
// as an approved template.
type Gateway interface {
	SendFreeform(ctx context.Context, brandID uuid.UUID, to, body string) error
	SendTemplate(ctx context.Context, brandID uuid.UUID, to, templateSID string, variables map[string]string) error
}

// TemplateRegistry resolves approved templates by name and brand.
type TemplateRegistry interface {
	Lookup(ctx context.Context, name string, brandID uuid.UUID) (*templates.Definition, error)
}

// InteractionStore reports when a traveler last wrote in.
type InteractionStore interface {
	LastInteraction(ctx context.Context, tripID uuid.UUID, phone string) (*time.Time, error)
}

// Dispatcher processes due scheduled messages. Delivery is at-most-once:
// a message leaves the queue after its first processing attempt, whether
// or not the gateway accepted it.
type Dispatcher struct {
	store        MessageStore
	gateway      Gateway
	templates    TemplateRegistry
	interactions InteractionStore
	logger       *logging.Logger
	metrics      *metrics.PlatformMetrics

	batchSize        int
	window           time.Duration
	defaultTemplate  string
	markFailedAsSent bool
	now              func() time.Time
}

func NewDispatcher(store MessageStore, gateway Gateway, registry TemplateRegistry, interactions InteractionStore, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		store:            store,
		gateway:          gateway,
		templates:        registry,
		interactions:     interactions,
		logger:           logger,
		batchSize:        50,
		window:           24 * time.Hour,
		defaultTemplate:  "travelbro",
		markFailedAsSent: true,
		now:              time.Now,
	}
}

func (d *Dispatcher) WithBatchSize(n int) *Dispatcher {
	if n > 0 {
		d.batchSize = n
	}
	return d
}

func (d *Dispatcher) WithInteractionWindow(w time.Duration) *Dispatcher {
	if w > 0 {
		d.window = w
	}
	return d
}

func (d *Dispatcher) WithDefaultTemplate(name string) *Dispatcher {
	if name != "" {
		d.defaultTemplate = name
	}
	return d
}

// WithMarkFailedAsSent controls what happens to a message the gateway
// rejected: true consumes it anyway, false leaves it queued for the next
// pass. Failures before the gateway (no recipient, no template) always
// consume the message.
func (d *Dispatcher) WithMarkFailedAsSent(v bool) *Dispatcher {
	d.markFailedAsSent = v
	return d
}

func (d *Dispatcher) WithMetrics(m *metrics.PlatformMetrics) *Dispatcher {
	d.metrics = m
	return d
}

func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	if now != nil {
		d.now = now
	}
	return d
}

// ProcessDue runs one dispatch pass: fetch the oldest due unsent
// messages, attempt each, and report per-message outcomes. A failing
// message never stops the batch.
func (d *Dispatcher) ProcessDue(ctx context.Context) (*Report, error) {
	started := d.now()
	now := started.UTC()

	msgs, err := d.store.ListDue(ctx, now, d.batchSize)
	if err != nil {
		return nil, fmt.Errorf("dispatch: list due: %w", err)
	}

	report := &Report{Success: true, Results: []Result{}}
	for i := range msgs {
		m := &msgs[i]
		// The batch query and the clock can disagree; trust the clock.
		if m.DueAt().After(now) {
			continue
		}

		report.Processed++
		reason, err := d.processOne(ctx, m, now)
		if err == nil {
			report.Successful++
			report.Results = append(report.Results, Result{ID: m.ID, Success: true})
			d.metrics.ObserveDispatchMessage(true, "")
			continue
		}

		report.Failed++
		report.Results = append(report.Results, Result{ID: m.ID, Success: false, Error: err.Error()})
		d.metrics.ObserveDispatchMessage(false, string(reason))
		d.logger.Error("scheduled message failed", "id", m.ID, "reason", string(reason), "error", err)

		d.settleFailure(ctx, m, now, reason)
	}

	if report.Processed > 0 {
		d.logger.Info("dispatch pass complete",
			"processed", report.Processed, "successful", report.Successful, "failed", report.Failed)
	}
	d.metrics.ObserveDispatchRun(d.now().Sub(started).Seconds())
	return report, nil
}

// processOne attempts delivery of a single due message and marks it sent
// on success. The returned reason classifies any failure.
func (d *Dispatcher) processOne(ctx context.Context, m *ScheduledMessage, now time.Time) (FailureReason, error) {
	to := m.Recipient()
	if to == "" {
		return FailureMissingRecipient, fmt.Errorf("no recipient phone for message %s", m.ID)
	}

	// A message that names a template always goes out as that template.
	// The interaction window only decides the fate of unnamed messages.
	name := ""
	if m.TemplateName != nil && *m.TemplateName != "" {
		name = *m.TemplateName
	}

	useTemplate := name != ""
	if !useTemplate {
		withinWindow, err := d.withinWindow(ctx, m, to, now)
		if err != nil {
			return FailureLookup, err
		}
		useTemplate = !withinWindow
	}

	if !useTemplate {
		if err := d.gateway.SendFreeform(ctx, m.BrandID, to, m.Body); err != nil {
			return FailureGatewaySend, fmt.Errorf("send freeform: %w", err)
		}
	} else {
		if name == "" {
			name = d.defaultTemplate
		}
		def, err := d.templates.Lookup(ctx, name, m.BrandID)
		if err != nil {
			return FailureLookup, fmt.Errorf("lookup template %q: %w", name, err)
		}
		if def == nil {
			return FailureTemplateMissing, fmt.Errorf("no active template %q for brand %s", name, m.BrandID)
		}
		vars := SanitizeVariables(m.TemplateVariables)
		if err := d.gateway.SendTemplate(ctx, m.BrandID, to, def.TemplateSID, vars); err != nil {
			return FailureGatewaySend, fmt.Errorf("send template %q: %w", name, err)
		}
	}

	if err := d.store.MarkSent(ctx, m.ID, now); err != nil {
		d.logger.Error("mark sent failed after delivery", "id", m.ID, "error", err)
	}
	return "", nil
}

// withinWindow reports whether the recipient wrote in on this trip within
// the customer service window. Messages without a trip always fall back
// to a template.
func (d *Dispatcher) withinWindow(ctx context.Context, m *ScheduledMessage, to string, now time.Time) (bool, error) {
	if m.TripID == uuid.Nil {
		return false, nil
	}
	last, err := d.interactions.LastInteraction(ctx, m.TripID, to)
	if err != nil {
		return false, fmt.Errorf("lookup last interaction: %w", err)
	}
	return last != nil && now.Sub(last.UTC()) < d.window, nil
}

// settleFailure decides what happens to a message that failed. With
// markFailedAsSent every failure consumes the message; otherwise only
// pre-gateway failures do, and gateway rejections stay queued.
func (d *Dispatcher) settleFailure(ctx context.Context, m *ScheduledMessage, now time.Time, reason FailureReason) {
	if !d.markFailedAsSent && reason == FailureGatewaySend {
		if err := d.store.RecordFailure(ctx, m.ID, reason); err != nil {
			d.logger.Error("record failure failed", "id", m.ID, "error", err)
		}
		return
	}
	if err := d.store.MarkSentFailed(ctx, m.ID, now, reason); err != nil {
		d.logger.Error("mark sent failed", "id", m.ID, "error", err)
	}
}
