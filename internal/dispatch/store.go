package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides access to scheduled_messages.
type Store struct {
	db DB
}

// NewStore creates a scheduled message store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const scheduledColumns = `
		m.id, m.brand_id, m.trip_id, m.recipient_phone, t.phone_number,
		m.template_name, m.template_variables, m.body,
		m.scheduled_date, m.scheduled_time, m.is_sent, m.sent_at,
		m.failure_reason, m.created_at, m.updated_at`

// ListDue returns unsent messages whose scheduled instant is at or before
// asOf, oldest first, capped at limit. The schedule columns hold naive
// UTC values, so asOf is converted to a UTC timestamp before comparing
// regardless of the session time zone.
func (s *Store) ListDue(ctx context.Context, asOf time.Time, limit int) ([]ScheduledMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT`+scheduledColumns+`
		FROM scheduled_messages m
		LEFT JOIN trips t ON t.id = m.trip_id
		WHERE m.is_sent = FALSE
		  AND (m.scheduled_date + m.scheduled_time) <= ($1 AT TIME ZONE 'UTC')
		ORDER BY m.scheduled_date ASC, m.scheduled_time ASC
		LIMIT $2`, asOf.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("dispatch: list due: %w", err)
	}
	defer rows.Close()
	return scanScheduledMessages(rows)
}

// Create inserts a new scheduled message.
func (s *Store) Create(ctx context.Context, m *ScheduledMessage) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	var vars []byte
	if m.TemplateVariables != nil {
		b, err := json.Marshal(m.TemplateVariables)
		if err != nil {
			return fmt.Errorf("dispatch: marshal template variables: %w", err)
		}
		vars = b
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO scheduled_messages (id, brand_id, trip_id, recipient_phone, template_name, template_variables, body, scheduled_date, scheduled_time, is_sent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10, $11)`,
		m.ID, m.BrandID, m.TripID, m.RecipientPhone, m.TemplateName, vars,
		m.Body, m.ScheduledDate, m.ScheduledTime, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("dispatch: create scheduled message: %w", err)
	}
	return nil
}

// MarkSent transitions a message to sent. The is_sent guard keeps a
// double-processed row from being marked twice.
func (s *Store) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE scheduled_messages
		SET is_sent = TRUE, sent_at = $1, failure_reason = NULL, updated_at = $1
		WHERE id = $2 AND is_sent = FALSE`, sentAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("dispatch: mark sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("dispatch: mark sent: no unsent message with id %s", id)
	}
	return nil
}

// MarkSentFailed marks a message as sent while recording why delivery
// failed. This is the at-most-once policy: a failed message is terminal
// and is never retried by a later pass.
func (s *Store) MarkSentFailed(ctx context.Context, id uuid.UUID, sentAt time.Time, reason FailureReason) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE scheduled_messages
		SET is_sent = TRUE, sent_at = $1, failure_reason = $2, updated_at = $1
		WHERE id = $3 AND is_sent = FALSE`, sentAt.UTC(), string(reason), id)
	if err != nil {
		return fmt.Errorf("dispatch: mark sent failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("dispatch: mark sent failed: no unsent message with id %s", id)
	}
	return nil
}

// RecordFailure stores a failure reason without consuming the message, so
// a later pass retries it. Used when MarkFailedAsSent is disabled.
func (s *Store) RecordFailure(ctx context.Context, id uuid.UUID, reason FailureReason) error {
	_, err := s.db.Exec(ctx, `
		UPDATE scheduled_messages
		SET failure_reason = $1, updated_at = now()
		WHERE id = $2 AND is_sent = FALSE`, string(reason), id)
	if err != nil {
		return fmt.Errorf("dispatch: record failure: %w", err)
	}
	return nil
}

// ListSent returns sent messages for a brand, newest first.
func (s *Store) ListSent(ctx context.Context, brandID uuid.UUID, limit int) ([]ScheduledMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT`+scheduledColumns+`
		FROM scheduled_messages m
		LEFT JOIN trips t ON t.id = m.trip_id
		WHERE m.brand_id = $1 AND m.is_sent = TRUE
		ORDER BY m.sent_at DESC
		LIMIT $2`, brandID, limit)
	if err != nil {
		return nil, fmt.Errorf("dispatch: list sent: %w", err)
	}
	defer rows.Close()
	return scanScheduledMessages(rows)
}

func scanScheduledMessages(rows pgx.Rows) ([]ScheduledMessage, error) {
	var result []ScheduledMessage
	for rows.Next() {
		var m ScheduledMessage
		var vars []byte
		err := rows.Scan(
			&m.ID, &m.BrandID, &m.TripID, &m.RecipientPhone, &m.TripPhone,
			&m.TemplateName, &vars, &m.Body,
			&m.ScheduledDate, &m.ScheduledTime, &m.IsSent, &m.SentAt,
			&m.FailureReason, &m.CreatedAt, &m.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("dispatch: scan scheduled message: %w", err)
		}
		if len(vars) > 0 {
			if err := json.Unmarshal(vars, &m.TemplateVariables); err != nil {
				return nil, fmt.Errorf("dispatch: decode template variables: %w", err)
			}
		}
		result = append(result, m)
	}
	return result, rows.Err()
}
