// internal/app/features/submissions/handler.go
package submissions

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/dalemusser/cohortdesk/internal/app/membership"
	"github.com/dalemusser/cohortdesk/internal/app/submission"
	"github.com/dalemusser/cohortdesk/internal/app/system/apperr"
	"github.com/dalemusser/waffle/pantry/storage"
)

// Handler serves the submission workflow: multipart submits, status,
// listings, grading, and attachment downloads.
//
// Storage is the full backend, not the service's narrow slice; the
// download path needs the local/presign split.
type Handler struct {
	Submissions *submission.Service
	Membership  *membership.Service
	Storage     storage.Store
	Log         *zap.Logger
}

func NewHandler(subs *submission.Service, ms *membership.Service, store storage.Store, logger *zap.Logger) *Handler {
	return &Handler{
		Submissions: subs,
		Membership:  ms,
		Storage:     store,
		Log:         logger,
	}
}

func pathID(r *http.Request, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, name))
	if err != nil {
		return primitive.NilObjectID, apperr.NewValidation("malformed %s", name)
	}
	return id, nil
}
