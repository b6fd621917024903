package auth

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	userstore "github.com/dalemusser/cohortdesk/internal/app/store/users"
	sysauth "github.com/dalemusser/cohortdesk/internal/app/system/auth"
	"github.com/dalemusser/cohortdesk/internal/domain/models"
	"github.com/dalemusser/cohortdesk/internal/testutil"
	"go.uber.org/zap"
)

func newHandler(t *testing.T) *Handler {
	t.Helper()
	db := testutil.SetupTestDB(t)
	tm, err := sysauth.NewTokenManager("test-signing-key", time.Hour, zap.NewNop())
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	return NewHandler(userstore.New(db), tm, zap.NewNop())
}

func TestRegisterAndLogin(t *testing.T) {
	h := newHandler(t)

	req := testutil.NewJSONRequest(http.MethodPost, "/register",
		`{"full_name":"  Ada Lovelace ","email":"Ada@Example.EDU","password":"correct horse","student_id":"S-100"}`)
	rec := testutil.NewRecorder()
	h.HandleRegister(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusCreated)

	var reg struct {
		Token string `json:"token"`
		User  struct {
			ID       string `json:"id"`
			Email    string `json:"email"`
			FullName string `json:"full_name"`
			Role     string `json:"role"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &reg); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if reg.Token == "" {
		t.Fatal("expected a token in the register response")
	}
	if reg.User.Role != "student" {
		t.Errorf("role: got %q, want student", reg.User.Role)
	}
	if reg.User.Email != "ada@example.edu" {
		t.Errorf("email not normalized: got %q", reg.User.Email)
	}
	if reg.User.FullName != "Ada Lovelace" {
		t.Errorf("full name not trimmed: got %q", reg.User.FullName)
	}

	// Same email again, different casing.
	req = testutil.NewJSONRequest(http.MethodPost, "/register",
		`{"full_name":"Ada Again","email":"ADA@example.edu","password":"another pass"}`)
	rec = testutil.NewRecorder()
	h.HandleRegister(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusConflict)

	// Login with the registered credentials, case-insensitive email.
	req = testutil.NewJSONRequest(http.MethodPost, "/login",
		`{"email":"ADA@Example.edu","password":"correct horse"}`)
	rec = testutil.NewRecorder()
	h.HandleLogin(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"token"`)

	// Wrong password.
	req = testutil.NewJSONRequest(http.MethodPost, "/login",
		`{"email":"ada@example.edu","password":"wrong horse"}`)
	rec = testutil.NewRecorder()
	h.HandleLogin(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusUnauthorized)

	// Unknown account looks identical to a wrong password.
	req = testutil.NewJSONRequest(http.MethodPost, "/login",
		`{"email":"nobody@example.edu","password":"whatever"}`)
	rec = testutil.NewRecorder()
	h.HandleLogin(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusUnauthorized)
}

func TestRegisterValidation(t *testing.T) {
	h := newHandler(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing name", `{"email":"a@b.edu","password":"long enough"}`},
		{"bad email", `{"full_name":"A","email":"not-an-email","password":"long enough"}`},
		{"short password", `{"full_name":"A","email":"a@b.edu","password":"short"}`},
		{"malformed body", `{"full_name":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := testutil.NewJSONRequest(http.MethodPost, "/register", tc.body)
			rec := testutil.NewRecorder()
			h.HandleRegister(rec.ResponseRecorder, req)
			rec.AssertStatus(t, http.StatusBadRequest)
		})
	}
}

func TestLoginRateLimit(t *testing.T) {
	h := newHandler(t)

	// Hammer one email past its window with a bad password.
	var last *testutil.ResponseRecorder
	for i := 0; i < 10; i++ {
		req := testutil.NewJSONRequest(http.MethodPost, "/login",
			`{"email":"target@example.edu","password":"nope"}`)
		last = testutil.NewRecorder()
		h.HandleLogin(last.ResponseRecorder, req)
		if last.Code == http.StatusTooManyRequests {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected a 429 after repeated failures, last status %d", last.Code)
}

func TestServeProfile(t *testing.T) {
	h := newHandler(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	u, err := h.Users.Create(ctx, models.User{
		Email:        "grace@example.edu",
		PasswordHash: "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy",
		FullName:     "Grace Hopper",
		Role:         "student",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	req := testutil.NewAuthenticatedRequest(http.MethodGet, "/me",
		testutil.StudentUserWithID(u.ID))
	rec := testutil.NewRecorder()
	h.ServeProfile(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "grace@example.edu")

	// No user in context.
	req = testutil.NewRequest(http.MethodGet, "/me")
	rec = testutil.NewRecorder()
	h.ServeProfile(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusForbidden)
}
