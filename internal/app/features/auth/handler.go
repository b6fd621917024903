// internal/app/features/auth/handler.go
package auth

import (
	userstore "github.com/dalemusser/cohortdesk/internal/app/store/users"
	sysauth "github.com/dalemusser/cohortdesk/internal/app/system/auth"
	"github.com/dalemusser/cohortdesk/internal/app/system/ratelimit"
	"go.uber.org/zap"
)

// Handler serves account registration, login, and the profile of the
// signed-in user.
type Handler struct {
	Users   *userstore.Store
	Tokens  *sysauth.TokenManager
	Limiter *ratelimit.LoginLimiter
	Log     *zap.Logger
}

func NewHandler(users *userstore.Store, tokens *sysauth.TokenManager, logger *zap.Logger) *Handler {
	return &Handler{
		Users:   users,
		Tokens:  tokens,
		Limiter: ratelimit.NewLoginLimiter(),
		Log:     logger,
	}
}
