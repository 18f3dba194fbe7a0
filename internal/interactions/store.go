// Package interactions tracks when a traveler last wrote in over
// WhatsApp. The last interaction instant decides whether an outbound
// message may be freeform or must use an approved template.
package interactions

import (
	"context"
	"errors"
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

// Store persists per-trip, per-phone interaction timestamps.
type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	return &Store{db: db}
}

// LastInteraction returns when the phone last wrote in on the trip, or
// (nil, nil) when it never has.
func (s *Store) LastInteraction(ctx context.Context, tripID uuid.UUID, phone string) (*time.Time, error) {
	var last time.Time
	err := s.db.QueryRow(ctx, `
		SELECT last_interaction_at
		FROM whatsapp_interactions
		WHERE trip_id = $1 AND phone_number = $2`, tripID, phone).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("interactions: last interaction: %w", err)
	}
	return &last, nil
}

// Touch records an inbound message at the given instant. The timestamp
// only moves forward; replayed webhooks cannot rewind it.
func (s *Store) Touch(ctx context.Context, tripID uuid.UUID, phone string, at time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO whatsapp_interactions (trip_id, phone_number, last_interaction_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (trip_id, phone_number)
		DO UPDATE SET last_interaction_at = GREATEST(whatsapp_interactions.last_interaction_at, EXCLUDED.last_interaction_at)`,
		tripID, phone, at.UTC())
	if err != nil {
		return fmt.Errorf("interactions: touch: %w", err)
	}
	return nil
}

// TripsByPhone returns the trips a phone number belongs to, newest first.
// Used by the inbound webhook to attribute a message to trips.
func (s *Store) TripsByPhone(ctx context.Context, phone string) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id FROM trips
		WHERE phone_number = $1
		ORDER BY created_at DESC`, phone)
	if err != nil {
		return nil, fmt.Errorf("interactions: trips by phone: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("interactions: scan trip id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
