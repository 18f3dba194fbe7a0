package builder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeSessionStore struct {
	sessions map[uuid.UUID]*Session
	touched  []uuid.UUID
	getErr   error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[uuid.UUID]*Session)}
}

func (s *fakeSessionStore) Create(ctx context.Context, sess *Session) error {
	if sess.ID == uuid.Nil {
		sess.ID = uuid.New()
	}
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *fakeSessionStore) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (s *fakeSessionStore) ConsumeInitialToken(ctx context.Context, id uuid.UUID, secret string, at time.Time) (bool, error) {
	sess, ok := s.sessions[id]
	if !ok || sess.InitialTokenUsed {
		return false, nil
	}
	sess.InitialTokenUsed = true
	sess.SessionSecret = &secret
	sess.LastActivityAt = at
	return true, nil
}

func (s *fakeSessionStore) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.touched = append(s.touched, id)
	if sess, ok := s.sessions[id]; ok {
		sess.LastActivityAt = at
	}
	return nil
}

func newTestExchanger(store SessionStore) *Exchanger {
	return NewExchanger(store, NewSigner("test-secret"), nil)
}

func TestMintAndExchangeInitialToken(t *testing.T) {
	store := newFakeSessionStore()
	ex := newTestExchanger(store)
	ctx := context.Background()

	sess, initial, err := ex.Mint(ctx, uuid.New(), uuid.New(), []string{"builder"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	res, err := ex.Exchange(ctx, initial)
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if res.SessionToken == "" {
		t.Fatal("expected a session token")
	}
	if !store.sessions[sess.ID].InitialTokenUsed {
		t.Fatal("expected initial token consumed")
	}

	// The minted session token must verify on its own.
	res2, err := ex.Exchange(ctx, res.SessionToken)
	if err != nil {
		t.Fatalf("exchange session token: %v", err)
	}
	if res2.SessionToken != "" {
		t.Fatal("session token exchange must not mint another token")
	}
	if res2.Claims.TokenType != TokenTypeSession {
		t.Fatalf("unexpected token type: %q", res2.Claims.TokenType)
	}
	if len(store.touched) != 1 || store.touched[0] != sess.ID {
		t.Fatalf("expected activity bump, got %v", store.touched)
	}
}

func TestExchangeInitialTokenSingleUse(t *testing.T) {
	store := newFakeSessionStore()
	ex := newTestExchanger(store)
	ctx := context.Background()

	_, initial, err := ex.Mint(ctx, uuid.New(), uuid.New(), nil)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, err := ex.Exchange(ctx, initial); err != nil {
		t.Fatalf("first exchange: %v", err)
	}
	if _, err := ex.Exchange(ctx, initial); !errors.Is(err, ErrInitialTokenAlreadyUsed) {
		t.Fatalf("expected ErrInitialTokenAlreadyUsed, got %v", err)
	}
}

func TestExchangeSessionNotFound(t *testing.T) {
	store := newFakeSessionStore()
	ex := newTestExchanger(store)

	token, err := NewSigner("test-secret").Sign(Claims{
		BrandID:   uuid.NewString(),
		SessionID: uuid.NewString(),
		TokenType: TokenTypeInitial,
	}, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := ex.Exchange(context.Background(), token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestExchangeSessionExpired(t *testing.T) {
	store := newFakeSessionStore()
	ex := newTestExchanger(store)
	ctx := context.Background()

	_, initial, err := ex.Mint(ctx, uuid.New(), uuid.New(), nil)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	// Jump past the session row's expiry but keep the JWT itself valid.
	future := time.Now().Add(3 * time.Hour)
	ex.WithClock(func() time.Time { return future })

	if _, err := ex.Exchange(ctx, initial); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestExchangeExpiredSessionRejectsSessionToken(t *testing.T) {
	store := newFakeSessionStore()
	ex := newTestExchanger(store)
	ctx := context.Background()

	_, initial, err := ex.Mint(ctx, uuid.New(), uuid.New(), nil)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	res, err := ex.Exchange(ctx, initial)
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}

	future := time.Now().Add(3 * time.Hour)
	ex.WithClock(func() time.Time { return future })

	if _, err := ex.Exchange(ctx, res.SessionToken); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestSessionTokenLifetimeIndependentOfSession(t *testing.T) {
	store := newFakeSessionStore()
	// Short-lived session row, default 2h token TTL.
	ex := NewExchanger(store, NewSigner("test-secret"), nil).WithSessionTTL(30 * time.Minute)
	ctx := context.Background()

	_, initial, err := ex.Mint(ctx, uuid.New(), uuid.New(), nil)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	res, err := ex.Exchange(ctx, initial)
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}

	claims, err := NewSigner("test-secret").Verify(res.SessionToken)
	if err != nil {
		t.Fatalf("verify session token: %v", err)
	}
	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining < 115*time.Minute || remaining > 125*time.Minute {
		t.Fatalf("expected ~2h token lifetime, got %v", remaining)
	}
}

func TestExchangeMissingSessionReference(t *testing.T) {
	ex := newTestExchanger(newFakeSessionStore())

	token, err := NewSigner("test-secret").Sign(Claims{
		BrandID:   uuid.NewString(),
		TokenType: TokenTypeInitial,
	}, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := ex.Exchange(context.Background(), token); !errors.Is(err, ErrMissingSessionReference) {
		t.Fatalf("expected ErrMissingSessionReference, got %v", err)
	}
}

func TestExchangeInvalidTokenType(t *testing.T) {
	store := newFakeSessionStore()
	ex := newTestExchanger(store)
	ctx := context.Background()

	sess, _, err := ex.Mint(ctx, uuid.New(), uuid.New(), nil)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	token, err := NewSigner("test-secret").Sign(Claims{
		BrandID:   sess.BrandID.String(),
		SessionID: sess.ID.String(),
		TokenType: "refresh",
	}, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := ex.Exchange(ctx, token); !errors.Is(err, ErrInvalidTokenType) {
		t.Fatalf("expected ErrInvalidTokenType, got %v", err)
	}
}

func TestExchangeForgedSessionSecret(t *testing.T) {
	store := newFakeSessionStore()
	ex := newTestExchanger(store)
	ctx := context.Background()

	sess, initial, err := ex.Mint(ctx, uuid.New(), uuid.New(), nil)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ex.Exchange(ctx, initial); err != nil {
		t.Fatalf("exchange: %v", err)
	}

	// Correctly signed token, wrong stored secret.
	forged, err := NewSigner("test-secret").Sign(Claims{
		BrandID:      sess.BrandID.String(),
		SessionID:    sess.ID.String(),
		TokenType:    TokenTypeSession,
		SessionToken: "not-the-secret",
	}, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := ex.Exchange(ctx, forged); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("expected ErrInvalidSessionToken, got %v", err)
	}
}

func TestExchangeInvalidSignature(t *testing.T) {
	ex := newTestExchanger(newFakeSessionStore())
	if _, err := ex.Exchange(context.Background(), "garbage"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}
