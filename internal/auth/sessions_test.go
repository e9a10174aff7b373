package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/untoldlabs/untold/backend/internal/authz"
)

func TestSessionManagerIssuesTokensWithRoleClaim(t *testing.T) {
	manager, err := NewSessionManager(SessionManagerConfig{
		SigningSecret: []byte("super-secret"),
		TokenTTL:      30 * time.Minute,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	tokenString, expiresIn, err := manager.IssueSession("alice", authz.RoleUser)
	if err != nil {
		t.Fatalf("expected successful issuance: %v", err)
	}
	if expiresIn <= 0 {
		t.Fatalf("expected positive expiry seconds, got %d", expiresIn)
	}

	claims, err := manager.ValidateSession(tokenString)
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if claims.Subject != "alice" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if claims.Role != string(authz.RoleUser) {
		t.Fatalf("unexpected role claim %q", claims.Role)
	}

	principal := claims.Principal()
	if principal.Username != "alice" || principal.Role != authz.RoleUser {
		t.Fatalf("unexpected principal %+v", principal)
	}
}

func TestSessionManagerRejectsMissingSecret(t *testing.T) {
	if _, err := NewSessionManager(SessionManagerConfig{}); !errors.Is(err, ErrMissingSigningSecret) {
		t.Fatalf("expected missing secret error, got %v", err)
	}
}

func TestSessionManagerRejectsEmptySubject(t *testing.T) {
	manager, err := NewSessionManager(SessionManagerConfig{SigningSecret: []byte("super-secret")})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	if _, _, err := manager.IssueSession("  ", authz.RoleUser); !errors.Is(err, ErrMissingSubject) {
		t.Fatalf("expected missing subject error, got %v", err)
	}
}

func TestSessionManagerRejectsForeignSignature(t *testing.T) {
	manager, err := NewSessionManager(SessionManagerConfig{SigningSecret: []byte("super-secret")})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		Role: string(authz.RoleAdmin),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "mallory",
			Issuer:    "untold-auth",
			Audience:  []string{"untold-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := forged.SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("failed to sign forged token: %v", err)
	}

	if _, err := manager.ValidateSession(signed); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected invalid session error, got %v", err)
	}
}

func TestSessionManagerRejectsExpiredToken(t *testing.T) {
	issuedAt := time.Unix(1700000000, 0)
	issuing, err := NewSessionManager(SessionManagerConfig{
		SigningSecret: []byte("super-secret"),
		TokenTTL:      time.Minute,
		Clock:         func() time.Time { return issuedAt },
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	tokenString, _, err := issuing.IssueSession("alice", authz.RoleUser)
	if err != nil {
		t.Fatalf("issuance failed: %v", err)
	}

	validating, err := NewSessionManager(SessionManagerConfig{
		SigningSecret: []byte("super-secret"),
		Clock:         func() time.Time { return issuedAt.Add(2 * time.Minute) },
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	if _, err := validating.ValidateSession(tokenString); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}
