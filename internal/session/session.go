// Package session issues and verifies bearer tokens. Tokens are stateless
// HS256 JWTs; the only server side state is the registry of tokens revoked by
// logout, kept until they would have expired anyway.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"library-management-api/internal/models"
)

const (
	// ProviderLocal marks sessions backed by a token this server issued.
	ProviderLocal = "local"
	// ProviderFirebase marks sessions backed by a Firebase ID token.
	ProviderFirebase = "firebase"

	cleanupInterval = time.Hour
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrRevoked      = errors.New("token has been revoked")
)

// Session is the authenticated caller of one request.
type Session struct {
	ID        string
	UserID    int64
	Email     string
	Role      models.UserRole
	Provider  string
	User      *models.User
	ExpiresAt time.Time
}

// Authenticator turns a bearer token into a Session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Session, error)
}

// Chain tries each authenticator in order and returns the first success.
// When every one fails the first error is returned.
type Chain []Authenticator

func (c Chain) Authenticate(ctx context.Context, token string) (*Session, error) {
	var first error
	for _, a := range c {
		if a == nil {
			continue
		}
		s, err := a.Authenticate(ctx, token)
		if err == nil {
			return s, nil
		}
		if first == nil {
			first = err
		}
	}
	if first == nil {
		first = ErrInvalidToken
	}
	return nil, first
}

// Claims is the payload of a local token.
type Claims struct {
	jwt.RegisteredClaims
	Role models.UserRole `json:"role"`
}

// Manager issues local tokens and tracks revoked ones.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	revoked map[string]time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewManager creates a Manager and starts the hourly sweep of expired
// revocations. Call Close to stop it.
func NewManager(secret string, ttl time.Duration) *Manager {
	m := &Manager{
		secret:  []byte(secret),
		ttl:     ttl,
		now:     time.Now,
		revoked: make(map[string]time.Time),
		stop:    make(chan struct{}),
	}
	go m.cleanupRevoked(cleanupInterval)
	return m
}

// Close stops the background sweep.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// Issue signs a token for user.
func (m *Manager) Issue(user *models.User) (string, *Session, error) {
	now := m.now()
	s := &Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		Provider:  ProviderLocal,
		User:      user,
		ExpiresAt: now.Add(m.ttl).Truncate(time.Second),
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
		Role: user.Role,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return token, s, nil
}

// Authenticate verifies a local token. The returned session has no User;
// the auth middleware loads it from the store.
func (m *Manager) Authenticate(_ context.Context, token string) (*Session, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}
	if m.IsRevoked(claims.ID) {
		return nil, ErrRevoked
	}

	return &Session{
		ID:        claims.ID,
		UserID:    userID,
		Role:      claims.Role,
		Provider:  ProviderLocal,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Revoke blocks the token with the given id until expiresAt.
func (m *Manager) Revoke(id string, expiresAt time.Time) {
	m.mu.Lock()
	m.revoked[id] = expiresAt
	m.mu.Unlock()
}

// IsRevoked reports whether the token id was revoked.
func (m *Manager) IsRevoked(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.revoked[id]
	return ok
}

func (m *Manager) sweep() {
	now := m.now()
	m.mu.Lock()
	for id, expiresAt := range m.revoked {
		if now.After(expiresAt) {
			delete(m.revoked, id)
		}
	}
	m.mu.Unlock()
}

func (m *Manager) cleanupRevoked(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stop:
			return
		}
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
