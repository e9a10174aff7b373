package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/untoldlabs/untold/backend/internal/authz"
)

const (
	defaultTokenTTL = 60 * time.Minute

	sessionIssuer   = "untold-auth"
	sessionAudience = "untold-api"
)

var (
	// ErrMissingSigningSecret indicates the manager was built without a secret.
	ErrMissingSigningSecret = errors.New("auth: signing secret must be provided")
	// ErrMissingSubject indicates a session without a username.
	ErrMissingSubject = errors.New("auth: subject claim must be provided")
	// ErrInvalidSession indicates a malformed, forged, or expired token.
	ErrInvalidSession = errors.New("auth: invalid session token")
)

// SessionClaims is the JWT payload carried by the session cookie. The
// subject is the plaintext username; stories never see it, only its keyed
// hash.
type SessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Principal converts the claims into an authorization principal.
func (c SessionClaims) Principal() authz.Principal {
	return authz.Principal{
		Username: c.Subject,
		Role:     authz.ParseRole(c.Role),
	}
}

// SessionManagerConfig configures session token issuance and validation.
type SessionManagerConfig struct {
	SigningSecret []byte
	TokenTTL      time.Duration
	Clock         func() time.Time
}

// SessionManager issues and validates HS256 session tokens.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	clock  func() time.Time
}

// NewSessionManager constructs a SessionManager with sane defaults.
func NewSessionManager(cfg SessionManagerConfig) (*SessionManager, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingSigningSecret
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SessionManager{
		secret: append([]byte(nil), cfg.SigningSecret...),
		ttl:    ttl,
		clock:  clock,
	}, nil
}

// IssueSession produces a signed token and its expiry in seconds for the
// authenticated username and role.
func (m *SessionManager) IssueSession(username string, role authz.Role) (string, int64, error) {
	if strings.TrimSpace(username) == "" {
		return "", 0, ErrMissingSubject
	}

	now := m.clock().UTC()
	expiresAt := now.Add(m.ttl).UTC()

	claims := SessionClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    sessionIssuer,
			Audience:  []string{sessionAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", 0, err
	}

	return signed, int64(expiresAt.Sub(now).Seconds()), nil
}

// ValidateSession ensures the token is well formed and returns its claims.
func (m *SessionManager) ValidateSession(tokenString string) (SessionClaims, error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", token.Method.Alg())
			}
			return m.secret, nil
		},
		jwt.WithAudience(sessionAudience),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(m.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return SessionClaims{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if parsed == nil || !parsed.Valid {
		return SessionClaims{}, ErrInvalidSession
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return SessionClaims{}, ErrMissingSubject
	}
	return *claims, nil
}
