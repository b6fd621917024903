// internal/app/system/auth/auth.go
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Token manager                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

// DefaultTokenTTL is used when NewTokenManager receives a zero TTL.
const DefaultTokenTTL = 24 * time.Hour

// TokenUser is what we encode into the token & inject into r.Context().
type TokenUser struct {
	ID   string
	Name string
	Role string
}

// claims is the JWT payload. Subject carries the user id.
type claims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies bearer tokens for the JSON API.
type TokenManager struct {
	key []byte
	ttl time.Duration
	log *zap.Logger
}

// NewTokenManager creates a TokenManager. The signing key must be
// non-empty; weak keys are the caller's problem (ValidateConfig rejects
// the dev default in prod).
func NewTokenManager(signingKey string, ttl time.Duration, logger *zap.Logger) (*TokenManager, error) {
	if signingKey == "" {
		return nil, errors.New("auth: signing key must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenManager{key: []byte(signingKey), ttl: ttl, log: logger}, nil
}

// Issue returns a signed token for the given user.
func (m *TokenManager) Issue(userID, name, role string) (string, error) {
	now := time.Now().UTC()
	c := claims{
		Name: name,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(m.key)
}

// Parse verifies a token string and returns the embedded user.
func (m *TokenManager) Parse(tokenStr string) (*TokenUser, error) {
	var c claims
	tok, err := jwt.ParseWithClaims(tokenStr, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.key, nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid || c.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return &TokenUser{ID: c.Subject, Name: c.Name, Role: c.Role}, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Current-User helper                                                         |
*─────────────────────────────────────────────────────────────────────────────*/

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user & "found?" flag.
func CurrentUser(r *http.Request) (*TokenUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*TokenUser)
	return u, ok
}

func withUser(r *http.Request, u *TokenUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// WithTestUser injects a user into the request context directly,
// bypassing token parsing. For handler tests only.
func WithTestUser(r *http.Request, u *TokenUser) *http.Request {
	return withUser(r, u)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Middleware                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

// LoadTokenUser injects the user into context when the request carries a
// valid bearer token. Invalid or absent tokens leave the context empty;
// RequireSignedIn decides whether that matters.
func (m *TokenManager) LoadTokenUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		u, err := m.Parse(raw)
		if err != nil {
			if m.log != nil {
				m.log.Debug("rejected bearer token", zap.Error(err))
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, withUser(r, u))
	})
}

// RequireSignedIn ensures there is a user in context (set by
// LoadTokenUser). Unauthenticated requests get 401 with a JSON body.
func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
	})
}

// RequireAdmin ensures the current user holds the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := CurrentUser(r)
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !strings.EqualFold(u.Role, "admin") {
			writeJSONError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
