package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoSession = errors.New("no active session")

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Identity prefers the user_id claim and falls back to the subject.
func (c *Claims) Identity() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

type Session struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

func (s Session) Valid(now time.Time) bool {
	if s.AccessToken == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

// Store persists one device's session.
type Store interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

// Sessions is the session accessor handed to the components that talk to
// the API on a user's behalf. Its lifetime runs from Start to Logout.
type Sessions struct {
	mu      sync.RWMutex
	store   Store
	current *Session
	now     func() time.Time
}

func NewSessions(store Store) *Sessions {
	if store == nil {
		store = &MemoryStore{}
	}
	return &Sessions{store: store, now: time.Now}
}

// Start restores a persisted session, if any.
func (s *Sessions) Start(ctx context.Context) error {
	sess, err := s.store.Load(ctx)
	if errors.Is(err, ErrNoSession) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()
	return nil
}

// Set installs new tokens. The user id and expiry come from the access
// token's claims; the signature is checked by whoever issued the token. An
// empty refresh token keeps the previous one.
func (s *Sessions) Set(ctx context.Context, accessToken, refreshToken string) (Session, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return Session{}, fmt.Errorf("parse access token: %w", err)
	}

	sess := Session{UserID: claims.Identity(), AccessToken: accessToken, RefreshToken: refreshToken}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}

	s.mu.Lock()
	if sess.RefreshToken == "" && s.current != nil {
		sess.RefreshToken = s.current.RefreshToken
	}
	s.current = &sess
	s.mu.Unlock()

	if err := s.store.Save(ctx, sess); err != nil {
		return sess, fmt.Errorf("persist session: %w", err)
	}
	return sess, nil
}

func (s *Sessions) Current() (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil || !s.current.Valid(s.now()) {
		return Session{}, ErrNoSession
	}
	return *s.current, nil
}

// AccessToken returns the bearer token, or "" without a valid session.
func (s *Sessions) AccessToken() string {
	sess, err := s.Current()
	if err != nil {
		return ""
	}
	return sess.AccessToken
}

func (s *Sessions) UserID() string {
	sess, err := s.Current()
	if err != nil {
		return ""
	}
	return sess.UserID
}

// Logout forgets the session in memory and in the store.
func (s *Sessions) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	return s.store.Clear(ctx)
}

// MemoryStore keeps the session for the life of the process only.
type MemoryStore struct {
	mu   sync.Mutex
	sess *Session
}

func (m *MemoryStore) Load(context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return Session{}, ErrNoSession
	}
	return *m.sess, nil
}

func (m *MemoryStore) Save(_ context.Context, s Session) error {
	m.mu.Lock()
	m.sess = &s
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	m.sess = nil
	m.mu.Unlock()
	return nil
}
