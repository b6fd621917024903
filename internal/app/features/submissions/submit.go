// internal/app/features/submissions/submit.go
package submissions

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/dalemusser/cohortdesk/internal/app/policy/grouppolicy"
	"github.com/dalemusser/cohortdesk/internal/app/submission"
	"github.com/dalemusser/cohortdesk/internal/app/system/apperr"
	"github.com/dalemusser/cohortdesk/internal/app/system/authz"
	"github.com/dalemusser/cohortdesk/internal/app/system/httpjson"
	"github.com/dalemusser/cohortdesk/internal/app/system/limits"
	"github.com/dalemusser/cohortdesk/internal/domain/models"
)

// HandleSubmit handles
// POST /submissions/assignments/{assignmentID}/groups/{groupID}.
//
// The body is multipart/form-data: a `notes` field plus any number of
// `files` attachments. A second submit for the same pair replaces the
// previous content until the submission is graded.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Error(w, h.Log, apperr.NewForbidden("sign in required"))
		return
	}
	assignmentID, err := pathID(r, "assignmentID")
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	groupID, err := pathID(r, "groupID")
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	g, err := h.Membership.GetGroup(r.Context(), groupID)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !grouppolicy.CanSubmit(r, &g) {
		httpjson.Error(w, h.Log, apperr.NewForbidden("only group members can submit for the group"))
		return
	}

	if err := r.ParseMultipartForm(limits.MaxSubmissionUpload); err != nil {
		httpjson.Error(w, h.Log, apperr.NewValidation("malformed multipart body"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	in := submission.SubmitInput{
		AssignmentID: assignmentID,
		GroupID:      groupID,
		SubmittedBy:  uid,
		Notes:        r.FormValue("notes"),
	}
	for _, fh := range r.MultipartForm.File["files"] {
		f, err := fh.Open()
		if err != nil {
			httpjson.Error(w, h.Log, apperr.NewValidation("unreadable attachment %q", fh.Filename))
			return
		}
		defer f.Close()
		in.Files = append(in.Files, submission.FileUpload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Reader:      f,
		})
	}

	sub, err := h.Submissions.Submit(r.Context(), in)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	h.Log.Info("submission received",
		zap.String("assignment_id", assignmentID.Hex()),
		zap.String("group_id", groupID.Hex()),
		zap.Int("files", len(sub.Files)))
	httpjson.Write(w, http.StatusCreated, sub)
}

// ServeStatus handles
// GET /submissions/assignments/{assignmentID}/groups/{groupID}. When
// the group has not submitted yet, the response is a synthesized
// pending record; nothing is written.
func (h *Handler) ServeStatus(w http.ResponseWriter, r *http.Request) {
	assignmentID, err := pathID(r, "assignmentID")
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	groupID, err := pathID(r, "groupID")
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	g, err := h.Membership.GetGroup(r.Context(), groupID)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !grouppolicy.CanView(r, &g) {
		httpjson.Error(w, h.Log, apperr.NewForbidden("members only"))
		return
	}

	sub, err := h.Submissions.Status(r.Context(), assignmentID, groupID)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	// Resolve the submitter through the member directory so the status
	// card shows a name, not an id.
	submitterName := ""
	if !sub.SubmittedBy.IsZero() {
		if dir, err := h.Membership.MemberDirectory(r.Context(), &g); err == nil {
			submitterName = dir[sub.SubmittedBy].FullName
		}
	}
	httpjson.Write(w, http.StatusOK, struct {
		models.Submission
		SubmittedByName string `json:"submitted_by_name,omitempty"`
	}{sub, submitterName})
}
