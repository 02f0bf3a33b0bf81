package session

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// Sentinel errors returned while resolving the session cookie.
var (
	ErrNoSession      = errors.New("session: no session cookie present")
	ErrInvalidSession = errors.New("session: session token invalid")
)

const tokenIssuer = "marketsquare-api"

// Manager issues and verifies the signed cookie that identifies a shopper's
// cart session. The cookie carries no shopper data, only an opaque session
// identifier; the cart contents live server-side keyed by that identifier.
type Manager struct {
	signingKey []byte
	cookieName string
	ttl        time.Duration
	secure     bool
	now        func() time.Time
}

// ManagerDeps enumerates the dependencies required by NewManager.
type ManagerDeps struct {
	SigningKey string
	CookieName string
	TTL        time.Duration
	Secure     bool
	Now        func() time.Time
}

// NewManager validates the dependencies and constructs a session Manager.
func NewManager(deps ManagerDeps) (*Manager, error) {
	key := strings.TrimSpace(deps.SigningKey)
	if key == "" {
		return nil, errors.New("session: signing key is required")
	}
	cookie := strings.TrimSpace(deps.CookieName)
	if cookie == "" {
		return nil, errors.New("session: cookie name is required")
	}
	if deps.TTL <= 0 {
		return nil, errors.New("session: ttl must be positive")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		signingKey: []byte(key),
		cookieName: cookie,
		ttl:        deps.TTL,
		secure:     deps.Secure,
		now:        func() time.Time { return now().UTC() },
	}, nil
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

// Issue mints a new session identifier, signs it, and sets the cookie on the
// response. It returns the session identifier.
func (m *Manager) Issue(w http.ResponseWriter) (string, error) {
	now := m.now()
	id := ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return "", fmt.Errorf("session: signing token: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})

	return id, nil
}

// Resolve extracts and verifies the session cookie, returning the session
// identifier. ErrNoSession is returned when the cookie is absent and
// ErrInvalidSession when it fails verification or has expired.
func (m *Manager) Resolve(r *http.Request) (string, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return "", ErrNoSession
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("session: unexpected signing method %q", t.Method.Alg())
		}
		return m.signingKey, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil || !token.Valid {
		return "", ErrInvalidSession
	}
	if claims.Issuer != tokenIssuer || strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidSession
	}

	return claims.Subject, nil
}

// ResolveOrIssue returns the current session identifier, minting a fresh
// session when the cookie is missing or invalid.
func (m *Manager) ResolveOrIssue(w http.ResponseWriter, r *http.Request) (string, error) {
	id, err := m.Resolve(r)
	if err == nil {
		return id, nil
	}
	return m.Issue(w)
}

// Clear expires the session cookie on the response.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
