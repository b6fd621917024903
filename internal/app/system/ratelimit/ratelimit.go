// internal/app/system/ratelimit/ratelimit.go
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// counter tracks attempts for a single key inside a fixed window.
type counter struct {
	attempts int
	resetAt  time.Time
}

// bucket is a fixed-window attempt counter keyed by string.
// Safe for concurrent use. Entries expire lazily and a background
// sweep drops stale keys so the map does not grow without bound.
type bucket struct {
	mu     sync.Mutex
	keys   map[string]*counter
	max    int
	window time.Duration
}

func newBucket(max int, window time.Duration) *bucket {
	b := &bucket{
		keys:   make(map[string]*counter),
		max:    max,
		window: window,
	}
	go b.sweep()
	return b
}

// take records one attempt for key and reports whether it is still
// within the window's allowance.
func (b *bucket) take(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	c := b.keys[key]
	if c == nil || now.After(c.resetAt) {
		b.keys[key] = &counter{attempts: 1, resetAt: now.Add(b.window)}
		return true
	}
	c.attempts++
	return c.attempts <= b.max
}

func (b *bucket) clear(key string) {
	b.mu.Lock()
	delete(b.keys, key)
	b.mu.Unlock()
}

func (b *bucket) sweep() {
	t := time.NewTicker(b.window * 2)
	defer t.Stop()
	for range t.C {
		now := time.Now()
		b.mu.Lock()
		for key, c := range b.keys {
			if now.After(c.resetAt) {
				delete(b.keys, key)
			}
		}
		b.mu.Unlock()
	}
}

// clientIP resolves the caller's address, preferring proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, found := strings.Cut(xff, ","); found || first != "" {
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// LoginLimiter throttles sign-in attempts on two axes: per source IP
// to slow scripted sweeps, and per account email so a single account
// cannot be hammered from many addresses.
type LoginLimiter struct {
	byIP    *bucket
	byEmail *bucket
}

// NewLoginLimiter returns a limiter with the default allowances:
// 10 attempts per IP per minute, 5 per email per five minutes.
func NewLoginLimiter() *LoginLimiter {
	return &LoginLimiter{
		byIP:    newBucket(10, time.Minute),
		byEmail: newBucket(5, 5*time.Minute),
	}
}

// Check records a login attempt and reports whether it may proceed.
// When blocked, reason carries a message suitable for the response body.
func (ll *LoginLimiter) Check(r *http.Request, email string) (allowed bool, reason string) {
	if !ll.byIP.take(clientIP(r)) {
		return false, "Too many login attempts. Please wait a minute before trying again."
	}
	if email != "" {
		if !ll.byEmail.take(strings.ToLower(strings.TrimSpace(email))) {
			return false, "Too many login attempts for this account. Please wait a few minutes."
		}
	}
	return true, ""
}

// ResetEmail forgives an account's attempt count after a successful login.
func (ll *LoginLimiter) ResetEmail(email string) {
	if email != "" {
		ll.byEmail.clear(strings.ToLower(strings.TrimSpace(email)))
	}
}
