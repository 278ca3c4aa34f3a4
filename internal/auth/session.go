// Package auth issues and checks admin sessions.
//
// A session is an HS256 JWT carrying the admin username and a session id.
// Logging out revokes the session id until the token would have expired.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrInvalidCredentials     = errors.New("invalid username or password")
)

const issuer = "jewelry-shop"

// Revocations remembers logged-out session ids.
type Revocations interface {
	Revoke(ctx context.Context, sessionID string, until time.Time) error
	Revoked(ctx context.Context, sessionID string) (bool, error)
}

type Claims struct {
	jwt.RegisteredClaims
}

type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Manager struct {
	username     string
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	revoked      Revocations
	now          func() time.Time
}

// NewManager checks the admin credentials against passwordHash (a bcrypt hash).
// revoked may be nil, in which case logout only clears the client cookie.
func NewManager(username, passwordHash, secret string, ttl time.Duration, revoked Revocations) (*Manager, error) {
	if username == "" || passwordHash == "" {
		return nil, errors.New("auth: admin username and password hash are required")
	}
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 bytes")
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, fmt.Errorf("auth: password hash: %w", err)
	}
	return &Manager{
		username:     username,
		passwordHash: []byte(passwordHash),
		secret:       []byte(secret),
		ttl:          ttl,
		revoked:      revoked,
		now:          time.Now,
	}, nil
}

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (m *Manager) TTL() time.Duration { return m.ttl }

func (m *Manager) Login(username, password string) (Session, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(m.username)) == 1
	// always run bcrypt so a wrong username costs the same as a wrong password
	passErr := bcrypt.CompareHashAndPassword(m.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		return Session{}, ErrInvalidCredentials
	}

	now := m.now()
	exp := now.Add(m.ttl)
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    issuer,
		Subject:   m.username,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign session: %w", err)
	}
	return Session{Token: token, Username: m.username, ExpiresAt: exp.UTC()}, nil
}

// Verify returns the claims of a valid, unrevoked session token.
func (m *Manager) Verify(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrAuthenticationRequired
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || claims.ID == "" || claims.Subject != m.username {
		return nil, ErrAuthenticationRequired
	}
	if m.revoked != nil {
		revoked, err := m.revoked.Revoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check session revocation: %w", err)
		}
		if revoked {
			return nil, ErrAuthenticationRequired
		}
	}
	return claims, nil
}

// Logout revokes the session behind token. Invalid tokens are ignored.
func (m *Manager) Logout(ctx context.Context, token string) error {
	claims, err := m.Verify(ctx, token)
	if err != nil || m.revoked == nil {
		return nil
	}
	return m.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}
