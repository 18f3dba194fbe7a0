package builder

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

// Session is a server-side builder session row.
type Session struct {
	ID               uuid.UUID `json:"id"`
	BrandID          uuid.UUID `json:"brand_id"`
	UserID           uuid.UUID `json:"user_id"`
	ExpiresAt        time.Time `json:"expires_at"`
	InitialTokenUsed bool      `json:"initial_token_used"`
	SessionSecret    *string   `json:"-"`
	LastActivityAt   time.Time `json:"last_activity_at"`
	CreatedAt        time.Time `json:"created_at"`
}

// Store persists builder sessions.
type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Create inserts a new session row.
func (s *Store) Create(ctx context.Context, sess *Session) error {
	if sess.ID == uuid.Nil {
		sess.ID = uuid.New()
	}
	now := time.Now().UTC()
	sess.LastActivityAt = now
	sess.CreatedAt = now

	_, err := s.db.Exec(ctx, `
		INSERT INTO builder_sessions (id, brand_id, user_id, expires_at, initial_token_used, last_activity_at, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, $6)`,
		sess.ID, sess.BrandID, sess.UserID, sess.ExpiresAt.UTC(), sess.LastActivityAt, sess.CreatedAt)
	if err != nil {
		return fmt.Errorf("builder: create session: %w", err)
	}
	return nil
}

// Get returns a session by id, or (nil, nil) when it does not exist.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	var sess Session
	err := s.db.QueryRow(ctx, `
		SELECT id, brand_id, user_id, expires_at, initial_token_used, session_secret, last_activity_at, created_at
		FROM builder_sessions
		WHERE id = $1`, id).Scan(
		&sess.ID, &sess.BrandID, &sess.UserID, &sess.ExpiresAt,
		&sess.InitialTokenUsed, &sess.SessionSecret, &sess.LastActivityAt, &sess.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("builder: get session: %w", err)
	}
	return &sess, nil
}

// ConsumeInitialToken atomically flips initial_token_used and stores the
// freshly minted session secret. The compare-and-set on the flag is what
// makes the invite URL single-use: the second caller sees zero rows
// updated and gets false.
func (s *Store) ConsumeInitialToken(ctx context.Context, id uuid.UUID, secret string, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE builder_sessions
		SET initial_token_used = TRUE, session_secret = $1, last_activity_at = $2
		WHERE id = $3 AND initial_token_used = FALSE`, secret, at.UTC(), id)
	if err != nil {
		return false, fmt.Errorf("builder: consume initial token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Touch bumps last_activity_at.
func (s *Store) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE builder_sessions
		SET last_activity_at = $1
		WHERE id = $2`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("builder: touch session: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions past their expiry, returning how many
// rows went away.
func (s *Store) DeleteExpired(ctx context.Context, asOf time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM builder_sessions
		WHERE expires_at < $1`, asOf.UTC())
	if err != nil {
		return 0, fmt.Errorf("builder: delete expired: %w", err)
	}
	return tag.RowsAffected(), nil
}
