// internal/app/features/groups/joinrequests.go
package groups

import (
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/dalemusser/cohortdesk/internal/app/policy/grouppolicy"
	"github.com/dalemusser/cohortdesk/internal/app/system/apperr"
	"github.com/dalemusser/cohortdesk/internal/app/system/authz"
	"github.com/dalemusser/cohortdesk/internal/app/system/httpjson"
)

// joinRequestRow joins a pending request with the requester's
// directory fields for the admissions view.
type joinRequestRow struct {
	UserID      primitive.ObjectID `json:"user_id"`
	FullName    string             `json:"full_name"`
	Email       string             `json:"email,omitempty"`
	StudentID   string             `json:"student_id,omitempty"`
	Message     string             `json:"message,omitempty"`
	RequestedAt time.Time          `json:"requested_at"`
}

// ServeJoinRequests handles GET /groups/{groupID}/join-requests. Group
// admins review who is waiting at the door.
func (h *Handler) ServeJoinRequests(w http.ResponseWriter, r *http.Request) {
	g, err := h.loadGroup(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !grouppolicy.CanManage(r, &g) {
		httpjson.Error(w, h.Log, apperr.NewForbidden("only group admins can review join requests"))
		return
	}

	dir, err := h.Membership.RequesterDirectory(r.Context(), &g)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	rows := make([]joinRequestRow, 0, len(g.JoinRequests))
	for _, jr := range g.JoinRequests {
		u := dir[jr.UserID]
		rows = append(rows, joinRequestRow{
			UserID:      jr.UserID,
			FullName:    u.FullName,
			Email:       u.Email,
			StudentID:   u.StudentID,
			Message:     jr.Message,
			RequestedAt: jr.RequestedAt,
		})
	}
	httpjson.Write(w, http.StatusOK, rows)
}

type joinRequestBody struct {
	Message string `json:"message"`
}

// HandleRequestJoin handles POST /groups/{groupID}/join-requests. The
// caller asks to join on their own behalf; admission is decided by a
// group admin.
func (h *Handler) HandleRequestJoin(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Error(w, h.Log, apperr.NewForbidden("sign in required"))
		return
	}
	id, err := groupID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	var req joinRequestBody
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	if err := h.Membership.RequestJoin(r.Context(), id, uid, req.Message); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	h.Log.Info("join requested",
		zap.String("group_id", id.Hex()),
		zap.String("user_id", uid.Hex()))
	w.WriteHeader(http.StatusAccepted)
}

// HandleCancelRequest handles DELETE /groups/{groupID}/join-requests,
// withdrawing the caller's own pending request. Cancelling a request
// that is not there is a no-op.
func (h *Handler) HandleCancelRequest(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Error(w, h.Log, apperr.NewForbidden("sign in required"))
		return
	}
	id, err := groupID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if err := h.Membership.CancelRequest(r.Context(), id, uid); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleApproveRequest handles
// POST /groups/{groupID}/join-requests/{userID}/approve.
func (h *Handler) HandleApproveRequest(w http.ResponseWriter, r *http.Request) {
	g, err := h.loadGroup(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !grouppolicy.CanManage(r, &g) {
		httpjson.Error(w, h.Log, apperr.NewForbidden("only group admins can approve join requests"))
		return
	}
	uid, err := pathID(r, "userID")
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if err := h.Membership.ApproveRequest(r.Context(), g.ID, uid); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	h.Log.Info("join request approved",
		zap.String("group_id", g.ID.Hex()),
		zap.String("user_id", uid.Hex()))
	w.WriteHeader(http.StatusNoContent)
}

// HandleRejectRequest handles
// POST /groups/{groupID}/join-requests/{userID}/reject.
func (h *Handler) HandleRejectRequest(w http.ResponseWriter, r *http.Request) {
	g, err := h.loadGroup(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !grouppolicy.CanManage(r, &g) {
		httpjson.Error(w, h.Log, apperr.NewForbidden("only group admins can reject join requests"))
		return
	}
	uid, err := pathID(r, "userID")
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if err := h.Membership.RejectRequest(r.Context(), g.ID, uid); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
