package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokenService("test-secret", time.Hour)

	token, err := tokens.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	subject, err := tokens.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if subject != "user-123" {
		t.Errorf("expected subject user-123, got %q", subject)
	}
}

func TestExpiredTokenFailsVerification(t *testing.T) {
	tokens := NewTokenService("test-secret", time.Hour)

	// Signed with the right secret, but already expired.
	token, err := tokens.IssueWithTTL("user-123", -time.Minute)
	if err != nil {
		t.Fatalf("IssueWithTTL: %v", err)
	}

	if _, err := tokens.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestWrongSecretFailsVerification(t *testing.T) {
	issuer := NewTokenService("secret-a", time.Hour)
	verifier := NewTokenService("secret-b", time.Hour)

	token, err := issuer.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestWrongAlgorithmFailsVerification(t *testing.T) {
	tokens := NewTokenService("test-secret", time.Hour)

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   "user-123",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}

	// An unsigned token with otherwise valid claims must not pass; only
	// HMAC-signed tokens are accepted.
	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}
	if _, err := tokens.Verify(noneToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for alg=none token, got %v", err)
	}

	// Same for a token claiming an asymmetric algorithm.
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	rsaToken, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(rsaKey)
	if err != nil {
		t.Fatalf("sign rs256 token: %v", err)
	}
	if _, err := tokens.Verify(rsaToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for RS256 token, got %v", err)
	}
}

func TestGarbageTokenFailsVerification(t *testing.T) {
	tokens := NewTokenService("test-secret", time.Hour)

	for _, tokenString := range []string{
		"",
		"not-a-token",
		"aaa.bbb.ccc",
	} {
		if _, err := tokens.Verify(tokenString); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify(%q): expected ErrInvalidToken, got %v", tokenString, err)
		}
	}
}

func TestTamperedTokenFailsVerification(t *testing.T) {
	tokens := NewTokenService("test-secret", time.Hour)

	token, err := tokens.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tampered := token[:len(token)-2] + "xx"
	if _, err := tokens.Verify(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for tampered token, got %v", err)
	}
}

func TestMissingSubjectFailsVerification(t *testing.T) {
	tokens := NewTokenService("test-secret", time.Hour)

	token, err := tokens.Issue("")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := tokens.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for empty subject, got %v", err)
	}
}
