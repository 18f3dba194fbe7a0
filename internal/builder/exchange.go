package builder

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/reislab/travel-platform/pkg/logging"
)

// Exchange failures, ordered roughly by how far the token got.
var (
	ErrInvalidSignature        = errors.New("builder: invalid token signature")
	ErrMissingSessionReference = errors.New("builder: token has no session reference")
	ErrSessionNotFound         = errors.New("builder: session not found")
	ErrSessionExpired          = errors.New("builder: session expired")
	ErrInitialTokenAlreadyUsed = errors.New("builder: initial token already used")
	ErrInvalidSessionToken     = errors.New("builder: session token does not match")
	ErrInvalidTokenType        = errors.New("builder: invalid token type")
)

// SessionStore is the persistence surface the exchanger needs.
type SessionStore interface {
	Create(ctx context.Context, sess *Session) error
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	ConsumeInitialToken(ctx context.Context, id uuid.UUID, secret string, at time.Time) (bool, error)
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
}

// ExchangeResult is what a successful exchange hands back. SessionToken
// is only set when an initial token was consumed.
type ExchangeResult struct {
	Claims       *Claims
	SessionToken string
}

// Exchanger mints builder invites and exchanges their tokens.
type Exchanger struct {
	store      SessionStore
	signer     *Signer
	logger     *logging.Logger
	sessionTTL time.Duration
	tokenTTL   time.Duration
	now        func() time.Time
}

func NewExchanger(store SessionStore, signer *Signer, logger *logging.Logger) *Exchanger {
	if logger == nil {
		logger = logging.Default()
	}
	return &Exchanger{
		store:      store,
		signer:     signer,
		logger:     logger,
		sessionTTL: 2 * time.Hour,
		tokenTTL:   2 * time.Hour,
		now:        time.Now,
	}
}

// WithSessionTTL sets how long a freshly minted session row lives.
func (e *Exchanger) WithSessionTTL(d time.Duration) *Exchanger {
	if d > 0 {
		e.sessionTTL = d
	}
	return e
}

// WithTokenTTL sets the lifetime of issued session JWTs.
func (e *Exchanger) WithTokenTTL(d time.Duration) *Exchanger {
	if d > 0 {
		e.tokenTTL = d
	}
	return e
}

func (e *Exchanger) WithClock(now func() time.Time) *Exchanger {
	if now != nil {
		e.now = now
	}
	return e
}

// Mint creates a session row and signs the single-use initial token that
// goes into the builder invite URL.
func (e *Exchanger) Mint(ctx context.Context, brandID, userID uuid.UUID, scopes []string) (*Session, string, error) {
	now := e.now().UTC()
	sess := &Session{
		BrandID:   brandID,
		UserID:    userID,
		ExpiresAt: now.Add(e.sessionTTL),
	}
	if err := e.store.Create(ctx, sess); err != nil {
		return nil, "", err
	}

	token, err := e.signer.Sign(Claims{
		BrandID:   brandID.String(),
		UserID:    userID.String(),
		Scopes:    scopes,
		SessionID: sess.ID.String(),
		TokenType: TokenTypeInitial,
	}, e.sessionTTL)
	if err != nil {
		return nil, "", err
	}

	e.logger.Info("builder session minted", "session_id", sess.ID, "brand_id", brandID)
	return sess, token, nil
}

// Exchange validates a builder token against its session row. An initial
// token is consumed and traded for a session token; a session token just
// proves itself and bumps activity.
func (e *Exchanger) Exchange(ctx context.Context, tokenString string) (*ExchangeResult, error) {
	claims, err := e.signer.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.SessionID == "" {
		return nil, ErrMissingSessionReference
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil, ErrMissingSessionReference
	}

	sess, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}

	now := e.now().UTC()
	if sess.ExpiresAt.Before(now) {
		return nil, ErrSessionExpired
	}

	switch claims.TokenType {
	case TokenTypeInitial:
		return e.exchangeInitial(ctx, claims, sess, now)
	case TokenTypeSession:
		return e.verifySession(ctx, claims, sess, now)
	default:
		return nil, ErrInvalidTokenType
	}
}

func (e *Exchanger) exchangeInitial(ctx context.Context, claims *Claims, sess *Session, now time.Time) (*ExchangeResult, error) {
	secret := uuid.NewString()
	consumed, err := e.store.ConsumeInitialToken(ctx, sess.ID, secret, now)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, ErrInitialTokenAlreadyUsed
	}

	sessionJWT, err := e.signer.Sign(Claims{
		BrandID:      claims.BrandID,
		UserID:       claims.UserID,
		Scopes:       claims.Scopes,
		SessionID:    claims.SessionID,
		TokenType:    TokenTypeSession,
		SessionToken: secret,
	}, e.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("builder: mint session token: %w", err)
	}

	e.logger.Info("initial token exchanged", "session_id", sess.ID)
	return &ExchangeResult{Claims: claims, SessionToken: sessionJWT}, nil
}

func (e *Exchanger) verifySession(ctx context.Context, claims *Claims, sess *Session, now time.Time) (*ExchangeResult, error) {
	if claims.SessionToken == "" || sess.SessionSecret == nil {
		return nil, ErrInvalidSessionToken
	}
	if subtle.ConstantTimeCompare([]byte(claims.SessionToken), []byte(*sess.SessionSecret)) != 1 {
		return nil, ErrInvalidSessionToken
	}

	if err := e.store.Touch(ctx, sess.ID, now); err != nil {
		e.logger.Warn("session activity bump failed", "session_id", sess.ID, "error", err)
	}
	return &ExchangeResult{Claims: claims}, nil
}
