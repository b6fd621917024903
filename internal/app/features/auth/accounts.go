// internal/app/features/auth/accounts.go
package auth

import (
	"context"
	"errors"
	"net/http"
	"net/mail"

	userstore "github.com/dalemusser/cohortdesk/internal/app/store/users"
	"github.com/dalemusser/cohortdesk/internal/app/system/apperr"
	sysauth "github.com/dalemusser/cohortdesk/internal/app/system/auth"
	"github.com/dalemusser/cohortdesk/internal/app/system/httpjson"
	"github.com/dalemusser/cohortdesk/internal/app/system/normalize"
	"github.com/dalemusser/cohortdesk/internal/app/system/timeouts"
	"github.com/dalemusser/cohortdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

type registerRequest struct {
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	StudentID string `json:"student_id,omitempty"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// HandleRegister handles POST /auth/register. New accounts are always
// students; admins are provisioned out of band.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	req.FullName = normalize.Name(req.FullName)
	if req.FullName == "" {
		httpjson.Error(w, h.Log, apperr.NewValidation("full name is required"))
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		httpjson.Error(w, h.Log, apperr.NewValidation("a valid email is required"))
		return
	}
	if len(req.Password) < minPasswordLength {
		httpjson.Error(w, h.Log, apperr.NewValidation("password must be at least %d characters", minPasswordLength))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		httpjson.Error(w, h.Log, apperr.NewStorage(err, "hash password"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Users.Create(ctx, models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         "student",
		StudentID:    req.StudentID,
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicate) {
			httpjson.Error(w, h.Log, apperr.NewConflict("an account with this email already exists"))
			return
		}
		httpjson.Error(w, h.Log, apperr.NewStorage(err, "create account"))
		return
	}

	token, err := h.Tokens.Issue(u.ID.Hex(), u.FullName, u.Role)
	if err != nil {
		httpjson.Error(w, h.Log, apperr.NewStorage(err, "issue token"))
		return
	}

	h.Log.Info("account registered", zap.String("user_id", u.ID.Hex()))
	httpjson.Write(w, http.StatusCreated, authResponse{Token: token, User: u})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin handles POST /auth/login. Failed attempts are rate
// limited per IP and per account; password mismatches take the same
// path as unknown accounts.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	if allowed, reason := h.Limiter.Check(r, req.Email); !allowed {
		httpjson.Write(w, http.StatusTooManyRequests, map[string]string{"error": reason})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Write(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
			return
		}
		httpjson.Error(w, h.Log, apperr.NewStorage(err, "look up account"))
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		httpjson.Write(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
		return
	}

	token, err := h.Tokens.Issue(u.ID.Hex(), u.FullName, u.Role)
	if err != nil {
		httpjson.Error(w, h.Log, apperr.NewStorage(err, "issue token"))
		return
	}
	h.Limiter.ResetEmail(req.Email)

	h.Log.Info("login",
		zap.String("user_id", u.ID.Hex()),
		zap.String("role", u.Role))
	httpjson.Write(w, http.StatusOK, authResponse{Token: token, User: *u})
}

// ServeProfile handles GET /auth/me.
func (h *Handler) ServeProfile(w http.ResponseWriter, r *http.Request) {
	tu, ok := sysauth.CurrentUser(r)
	if !ok {
		httpjson.Error(w, h.Log, apperr.NewForbidden("sign in required"))
		return
	}
	oid, err := primitive.ObjectIDFromHex(tu.ID)
	if err != nil {
		httpjson.Error(w, h.Log, apperr.NewForbidden("sign in required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, oid)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, h.Log, apperr.NewNotFound("account no longer exists"))
			return
		}
		httpjson.Error(w, h.Log, apperr.NewStorage(err, "load account"))
		return
	}
	httpjson.Write(w, http.StatusOK, u)
}
