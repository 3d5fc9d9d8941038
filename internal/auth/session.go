// Package auth implements login via Discord OAuth and cookie sessions.
package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"recvault/internal/registry"
)

// CookieName is the session cookie set after a successful login.
const CookieName = "recvault_session"

// Identity is the authenticated caller carried by a session.
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// sessionClaims is the JWT payload of a session token.
type sessionClaims struct {
	DisplayName string `json:"name"`
	AvatarURL   string `json:"avatar"`
	jwt.RegisteredClaims
}

// SessionManager signs and verifies session tokens with an HMAC secret.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	clock  registry.Clock
}

// NewSessionManager creates a session manager.
func NewSessionManager(secret string, ttl time.Duration, clock registry.Clock) (*SessionManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("session secret must not be empty")
	}
	return &SessionManager{secret: []byte(secret), ttl: ttl, clock: clock}, nil
}

// Issue creates a signed session token for the given identity.
func (m *SessionManager) Issue(id Identity) (string, error) {
	now := m.clock.Now()
	claims := sessionClaims{
		DisplayName: id.DisplayName,
		AvatarURL:   id.AvatarURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

// Parse verifies a session token and returns the identity it carries.
func (m *SessionManager) Parse(tokenString string) (*Identity, error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.clock.Now))
	if err != nil {
		return nil, fmt.Errorf("parsing session token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("invalid session token")
	}

	return &Identity{
		UserID:      claims.Subject,
		DisplayName: claims.DisplayName,
		AvatarURL:   claims.AvatarURL,
	}, nil
}

// Cookie wraps a signed token in the session cookie.
func (m *SessionManager) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie returns a cookie that removes the session.
func (m *SessionManager) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

// IdentityFromRequest extracts and verifies the session identity from the
// request's cookie. Returns nil when there is no valid session.
func (m *SessionManager) IdentityFromRequest(r *http.Request) *Identity {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	id, err := m.Parse(cookie.Value)
	if err != nil {
		return nil
	}
	return id
}
