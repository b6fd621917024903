// internal/app/features/submissions/review.go
package submissions

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/dalemusser/cohortdesk/internal/app/policy/grouppolicy"
	"github.com/dalemusser/cohortdesk/internal/app/system/apperr"
	"github.com/dalemusser/cohortdesk/internal/app/system/authz"
	"github.com/dalemusser/cohortdesk/internal/app/system/httpjson"
)

// ServeSubmission handles GET /submissions/{submissionID}. Admins and
// members of the submitting group may look.
func (h *Handler) ServeSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "submissionID")
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	sub, err := h.Submissions.Get(r.Context(), id)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	g, err := h.Membership.GetGroup(r.Context(), sub.GroupID)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !grouppolicy.CanView(r, &g) {
		httpjson.Error(w, h.Log, apperr.NewForbidden("members only"))
		return
	}
	httpjson.Write(w, http.StatusOK, sub)
}

// ServeForAssignment handles GET /submissions/assignments/{assignmentID},
// the grader's list of everything turned in for one assignment.
func (h *Handler) ServeForAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "assignmentID")
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	list, err := h.Submissions.ListForAssignment(r.Context(), id)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, list)
}

// ServeForGroup handles GET /submissions/groups/{groupID}.
func (h *Handler) ServeForGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "groupID")
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	g, err := h.Membership.GetGroup(r.Context(), id)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !grouppolicy.CanView(r, &g) {
		httpjson.Error(w, h.Log, apperr.NewForbidden("members only"))
		return
	}
	list, err := h.Submissions.ListForGroup(r.Context(), id)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, list)
}

type gradeRequest struct {
	Grade    float64 `json:"grade"`
	Feedback string  `json:"feedback"`
}

// HandleGrade handles POST /submissions/{submissionID}/grade. Grading
// is terminal: a graded submission cannot be regraded or resubmitted.
func (h *Handler) HandleGrade(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "submissionID")
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Error(w, h.Log, apperr.NewForbidden("sign in required"))
		return
	}

	var req gradeRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	sub, err := h.Submissions.Grade(r.Context(), id, req.Grade, req.Feedback, uid)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	h.Log.Info("submission graded",
		zap.String("submission_id", id.Hex()),
		zap.Float64("grade", req.Grade))
	httpjson.Write(w, http.StatusOK, sub)
}
