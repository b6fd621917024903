// internal/app/features/assignments/handler.go
package assignments

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/dalemusser/cohortdesk/internal/app/progress"
	assignmentstore "github.com/dalemusser/cohortdesk/internal/app/store/assignments"
	groupstore "github.com/dalemusser/cohortdesk/internal/app/store/groups"
	"github.com/dalemusser/cohortdesk/internal/app/submission"
	"github.com/dalemusser/cohortdesk/internal/app/system/apperr"
)

// Handler serves assignment publication and review. Publishing, editing,
// and the grading overview are platform-admin operations; students see
// the assignments that apply to their groups.
//
// Submissions is the workflow service rather than the bare store so the
// delete cascade also releases stored attachments.
type Handler struct {
	Assignments *assignmentstore.Store
	Groups      *groupstore.Store
	Submissions *submission.Service
	Progress    *progress.Service
	Log         *zap.Logger
}

func NewHandler(assignments *assignmentstore.Store, groups *groupstore.Store, submissions *submission.Service, ps *progress.Service, logger *zap.Logger) *Handler {
	return &Handler{
		Assignments: assignments,
		Groups:      groups,
		Submissions: submissions,
		Progress:    ps,
		Log:         logger,
	}
}

// assignmentID pulls and parses the {assignmentID} route parameter.
func assignmentID(r *http.Request) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "assignmentID"))
	if err != nil {
		return primitive.NilObjectID, apperr.NewNotFound("assignment not found")
	}
	return id, nil
}
