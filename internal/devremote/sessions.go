package devremote

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ledgerkeep/ledger-sync/models"
)

const tokenTTL = 8 * time.Hour

// user is one registered dev account. Passwords are stored bcrypt-hashed
// even here so the signin path mirrors the hosted backend.
type user struct {
	id           string
	tenant       string
	email        string
	passwordHash []byte
}

type sessionClaims struct {
	Tenant string `json:"tenant"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// sessionManager issues and validates HS256 session tokens for registered
// users.
type sessionManager struct {
	signingKey []byte

	mu    sync.Mutex
	users map[string]user // by email
}

func newSessionManager(signingKey []byte) *sessionManager {
	if len(signingKey) == 0 {
		signingKey = []byte(uuid.NewString())
	}
	return &sessionManager{
		signingKey: signingKey,
		users:      make(map[string]user),
	}
}

// RegisterUser adds a dev account. Existing accounts with the same email are
// replaced.
func (m *sessionManager) RegisterUser(email, password, tenant string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[email] = user{
		id:           uuid.NewString(),
		tenant:       tenant,
		email:        email,
		passwordHash: hash,
	}
	return nil
}

// SignIn checks credentials and returns the identity with a fresh token.
func (m *sessionManager) SignIn(email, password string) (*models.Identity, error) {
	m.mu.Lock()
	u, ok := m.users[email]
	m.mu.Unlock()

	if !ok {
		return nil, ErrUnknownUser
	}
	if err := bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)); err != nil {
		return nil, ErrUnknownUser
	}

	return m.issue(u)
}

// Refresh validates the presented token and issues a fresh one for the same
// principal.
func (m *sessionManager) Refresh(token string) (*models.Identity, error) {
	claims, err := m.Validate(token)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	u, ok := m.users[claims.Email]
	m.mu.Unlock()
	if !ok {
		return nil, ErrUnknownUser
	}

	return m.issue(u)
}

// Validate parses and verifies a session token.
func (m *sessionManager) Validate(token string) (*sessionClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid session token")
	}
	return claims, nil
}

func (m *sessionManager) issue(u user) (*models.Identity, error) {
	now := time.Now().UTC()
	claims := sessionClaims{
		Tenant: u.tenant,
		Email:  u.email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.signingKey)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	return &models.Identity{
		UserID:   u.id,
		Tenant:   u.tenant,
		Email:    u.email,
		Token:    signed,
		CachedAt: now,
	}, nil
}
