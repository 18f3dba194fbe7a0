package templates

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Definition describes an approved WhatsApp template. BrandID nil means
// the definition is global; a brand-scoped row with the same name wins.
type Definition struct {
	ID            uuid.UUID  `json:"id"`
	BrandID       *uuid.UUID `json:"brand_id,omitempty"`
	Name          string     `json:"name"`
	TemplateSID   string     `json:"template_sid"`
	VariableSlots []string   `json:"variable_slots"`
	IsActive      bool       `json:"is_active"`
}

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads template definitions from Postgres.
type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Lookup resolves an active template by name for a brand. Brand-scoped
// definitions take precedence over global ones; (nil, nil) means no match.
func (s *Store) Lookup(ctx context.Context, name string, brandID uuid.UUID) (*Definition, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, brand_id, name, template_sid, variable_slots, is_active
		FROM whatsapp_templates
		WHERE name = $1 AND is_active = TRUE
		  AND (brand_id = $2 OR brand_id IS NULL)
		ORDER BY brand_id NULLS LAST
		LIMIT 1`, name, brandID)

	var def Definition
	err := row.Scan(&def.ID, &def.BrandID, &def.Name, &def.TemplateSID, &def.VariableSlots, &def.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("templates: lookup %q: %w", name, err)
	}
	return &def, nil
}

// Upsert writes a template definition, keyed by (name, brand scope).
func (s *Store) Upsert(ctx context.Context, def *Definition) error {
	if def.ID == uuid.Nil {
		def.ID = uuid.New()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO whatsapp_templates (id, brand_id, name, template_sid, variable_slots, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (name, COALESCE(brand_id, '00000000-0000-0000-0000-000000000000'::uuid))
		DO UPDATE SET template_sid = EXCLUDED.template_sid,
			variable_slots = EXCLUDED.variable_slots,
			is_active = EXCLUDED.is_active,
			updated_at = now()`,
		def.ID, def.BrandID, def.Name, def.TemplateSID, def.VariableSlots, def.IsActive)
	if err != nil {
		return fmt.Errorf("templates: upsert %q: %w", def.Name, err)
	}
	return nil
}
