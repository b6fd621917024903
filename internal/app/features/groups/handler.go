// internal/app/features/groups/handler.go
package groups

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/dalemusser/cohortdesk/internal/app/membership"
	"github.com/dalemusser/cohortdesk/internal/app/progress"
	"github.com/dalemusser/cohortdesk/internal/app/system/apperr"
	"github.com/dalemusser/cohortdesk/internal/domain/models"
)

// Handler serves the group aggregate: lifecycle, membership, join
// requests, announcements, resources, chat, and the progress board.
type Handler struct {
	Membership *membership.Service
	Progress   *progress.Service
	Log        *zap.Logger
}

func NewHandler(ms *membership.Service, ps *progress.Service, logger *zap.Logger) *Handler {
	return &Handler{
		Membership: ms,
		Progress:   ps,
		Log:        logger,
	}
}

// groupID pulls and parses the {groupID} route parameter.
func groupID(r *http.Request) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "groupID"))
	if err != nil {
		return primitive.NilObjectID, apperr.NewNotFound("group not found")
	}
	return id, nil
}

// pathID pulls and parses an arbitrary ObjectID route parameter.
func pathID(r *http.Request, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, name))
	if err != nil {
		return primitive.NilObjectID, apperr.NewValidation("malformed %s", name)
	}
	return id, nil
}

// loadGroup resolves the {groupID} parameter to a repaired aggregate.
func (h *Handler) loadGroup(r *http.Request) (models.Group, error) {
	id, err := groupID(r)
	if err != nil {
		return models.Group{}, err
	}
	return h.Membership.GetGroup(r.Context(), id)
}
