// internal/app/features/assignments/crud.go
package assignments

import (
	"errors"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/dalemusser/cohortdesk/internal/app/system/apperr"
	"github.com/dalemusser/cohortdesk/internal/app/system/authz"
	"github.com/dalemusser/cohortdesk/internal/app/system/htmlsanitize"
	"github.com/dalemusser/cohortdesk/internal/app/system/httpjson"
	"github.com/dalemusser/cohortdesk/internal/app/system/normalize"
	"github.com/dalemusser/cohortdesk/internal/domain/models"
)

type assignmentRequest struct {
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	DueDate        time.Time `json:"due_date"`
	ReferenceLink  string    `json:"reference_link"`
	IsForAll       bool      `json:"is_for_all"`
	AssignedGroups []string  `json:"assigned_groups"`
}

func (req *assignmentRequest) toModel() (models.Assignment, error) {
	title := normalize.Name(req.Title)
	if title == "" {
		return models.Assignment{}, apperr.NewValidation("assignment title is required")
	}
	if req.DueDate.IsZero() {
		return models.Assignment{}, apperr.NewValidation("a due date is required")
	}
	a := models.Assignment{
		Title:         title,
		Description:   htmlsanitize.Sanitize(req.Description),
		DueDate:       req.DueDate.UTC(),
		ReferenceLink: req.ReferenceLink,
		IsForAll:      req.IsForAll,
	}
	if !req.IsForAll {
		if len(req.AssignedGroups) == 0 {
			return models.Assignment{}, apperr.NewValidation("a targeted assignment needs at least one group")
		}
		for _, raw := range req.AssignedGroups {
			id, err := primitive.ObjectIDFromHex(raw)
			if err != nil {
				return models.Assignment{}, apperr.NewValidation("malformed group id %q", raw)
			}
			a.AssignedGroups = append(a.AssignedGroups, id)
		}
	}
	return a, nil
}

// HandleCreate handles POST /assignments.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Error(w, h.Log, apperr.NewForbidden("sign in required"))
		return
	}

	var req assignmentRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	a, err := req.toModel()
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	a.CreatedBy = uid

	created, err := h.Assignments.Create(r.Context(), a)
	if err != nil {
		httpjson.Error(w, h.Log, apperr.NewStorage(err, "create assignment"))
		return
	}
	h.Log.Info("assignment published",
		zap.String("assignment_id", created.ID.Hex()),
		zap.Bool("for_all", created.IsForAll))
	httpjson.Write(w, http.StatusCreated, created)
}

// ServeList handles GET /assignments. Admins see everything; students
// see the assignments applicable to at least one of their groups.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Error(w, h.Log, apperr.NewForbidden("sign in required"))
		return
	}

	if authz.IsAdmin(r) {
		list, err := h.Assignments.ListAll(r.Context())
		if err != nil {
			httpjson.Error(w, h.Log, apperr.NewStorage(err, "list assignments"))
			return
		}
		httpjson.Write(w, http.StatusOK, list)
		return
	}

	groups, err := h.Groups.ListByMember(r.Context(), uid)
	if err != nil {
		httpjson.Error(w, h.Log, apperr.NewStorage(err, "list groups"))
		return
	}
	seen := make(map[primitive.ObjectID]bool)
	out := []models.Assignment{}
	for _, g := range groups {
		list, err := h.Assignments.ListForGroup(r.Context(), g.ID)
		if err != nil {
			httpjson.Error(w, h.Log, apperr.NewStorage(err, "list assignments"))
			return
		}
		for _, a := range list {
			if !seen[a.ID] {
				seen[a.ID] = true
				out = append(out, a)
			}
		}
	}
	httpjson.Write(w, http.StatusOK, out)
}

// ServeAssignment handles GET /assignments/{assignmentID}.
func (h *Handler) ServeAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := assignmentID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	a, err := h.Assignments.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, h.Log, apperr.NewNotFound("assignment not found"))
			return
		}
		httpjson.Error(w, h.Log, apperr.NewStorage(err, "load assignment"))
		return
	}
	httpjson.Write(w, http.StatusOK, a)
}

// HandleUpdate handles PATCH /assignments/{assignmentID}. The request
// carries the full mutable field set, same shape as create.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := assignmentID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	var req assignmentRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	a, err := req.toModel()
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	a.ID = id

	if err := h.Assignments.Update(r.Context(), a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, h.Log, apperr.NewNotFound("assignment not found"))
			return
		}
		httpjson.Error(w, h.Log, apperr.NewStorage(err, "update assignment"))
		return
	}

	updated, err := h.Assignments.GetByID(r.Context(), id)
	if err != nil {
		httpjson.Error(w, h.Log, apperr.NewStorage(err, "reload assignment"))
		return
	}
	httpjson.Write(w, http.StatusOK, updated)
}

// HandleDelete handles DELETE /assignments/{assignmentID}. The group
// submissions for the assignment go with it.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := assignmentID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	n, err := h.Assignments.Delete(r.Context(), id)
	if err != nil {
		httpjson.Error(w, h.Log, apperr.NewStorage(err, "delete assignment"))
		return
	}
	if n == 0 {
		httpjson.Error(w, h.Log, apperr.NewNotFound("assignment not found"))
		return
	}
	removed, err := h.Submissions.DeleteForAssignment(r.Context(), id)
	if err != nil {
		h.Log.Warn("submission cleanup after assignment delete failed",
			zap.String("assignment_id", id.Hex()), zap.Error(err))
	}
	h.Log.Info("assignment deleted",
		zap.String("assignment_id", id.Hex()),
		zap.Int64("submissions_removed", removed))
	w.WriteHeader(http.StatusNoContent)
}

// ServeOverview handles GET /assignments/{assignmentID}/overview, the
// grading dashboard for one assignment.
func (h *Handler) ServeOverview(w http.ResponseWriter, r *http.Request) {
	id, err := assignmentID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	ov, err := h.Progress.ForAssignment(r.Context(), id)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, ov)
}
