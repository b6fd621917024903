// internal/app/system/ratelimit/ratelimit_test.go
package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestBucketFixedWindow(t *testing.T) {
	b := newBucket(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !b.take("k") {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if b.take("k") {
		t.Fatal("fourth attempt should be blocked")
	}
	// Other keys are independent.
	if !b.take("other") {
		t.Fatal("separate key should be allowed")
	}

	b.clear("k")
	if !b.take("k") {
		t.Fatal("cleared key should be allowed again")
	}
}

func TestLoginLimiterBlocksEmailBeforeIP(t *testing.T) {
	ll := NewLoginLimiter()

	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "203.0.113.7:4455"

	// Default email allowance is 5 per window; case and whitespace fold.
	for i := 0; i < 5; i++ {
		ok, _ := ll.Check(req, "Ada@Example.Edu")
		if !ok {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	ok, reason := ll.Check(req, "  ada@example.edu ")
	if ok {
		t.Fatal("sixth attempt for the same account should be blocked")
	}
	if reason == "" {
		t.Fatal("blocked attempt should carry a reason")
	}

	ll.ResetEmail("ada@example.edu")
	if ok, _ := ll.Check(req, "ada@example.edu"); !ok {
		t.Fatal("reset account should be allowed again")
	}
}

func TestLoginLimiterBlocksByIP(t *testing.T) {
	ll := NewLoginLimiter()

	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.1")

	// Rotate emails so only the IP axis accumulates.
	blocked := false
	for i := 0; i < 11; i++ {
		ok, _ := ll.Check(req, "")
		if !ok {
			blocked = true
			break
		}
	}
	if !blocked {
		t.Fatal("eleventh attempt from one IP should be blocked")
	}
}
