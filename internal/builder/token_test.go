package builder

import (
	"errors"
	"testing"
	"time"
)

func TestSignerRoundTrip(t *testing.T) {
	signer := NewSigner("test-secret")

	token, err := signer.Sign(Claims{
		BrandID:   "b-1",
		SessionID: "s-1",
		TokenType: TokenTypeInitial,
	}, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.BrandID != "b-1" || claims.SessionID != "s-1" || claims.TokenType != TokenTypeInitial {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestSignerRejectsWrongSecret(t *testing.T) {
	token, err := NewSigner("secret-a").Sign(Claims{BrandID: "b-1"}, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := NewSigner("secret-b").Verify(token); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestSignerRejectsExpiredToken(t *testing.T) {
	past := time.Now().Add(-3 * time.Hour)
	signer := NewSigner("test-secret").WithClock(func() time.Time { return past })

	token, err := signer.Sign(Claims{BrandID: "b-1"}, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := NewSigner("test-secret").Verify(token); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for expired token, got %v", err)
	}
}

func TestSignerRejectsGarbage(t *testing.T) {
	if _, err := NewSigner("test-secret").Verify("not.a.jwt"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestSignerRejectsMissingBrand(t *testing.T) {
	signer := NewSigner("test-secret")
	token, err := signer.Sign(Claims{SessionID: "s-1"}, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := signer.Verify(token); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}
