// internal/app/features/groups/members.go
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

// memberRow joins a membership entry with the user's directory fields.
type memberRow struct {
	UserID    primitive.ObjectID `json:"user_id"`
	FullName  string             `json:"full_name"`
	Email     string             `json:"email,omitempty"`
	StudentID string             `json:"student_id,omitempty"`
	Role      string             `json:"role"`
	JoinedAt  time.Time          `json:"joined_at"`
}

// ServeMembers handles GET /groups/{groupID}/members.
func (h *Handler) ServeMembers(w http.ResponseWriter, r *http.Request) {
	g, err := h.loadGroup(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !grouppolicy.CanView(r, &g) {
		httpjson.Error(w, h.Log, apperr.NewForbidden("members only"))
		return
	}

	dir, err := h.Membership.MemberDirectory(r.Context(), &g)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	rows := make([]memberRow, 0, len(g.Members))
	for _, m := range g.Members {
		u := dir[m.UserID]
		rows = append(rows, memberRow{
			UserID:    m.UserID,
			FullName:  u.FullName,
			Email:     u.Email,
			StudentID: u.StudentID,
			Role:      m.Role,
			JoinedAt:  m.JoinedAt,
		})
	}
	httpjson.Write(w, http.StatusOK, rows)
}

type addMemberRequest struct {
	// Email or student id; the lookup tries both.
	Identifier string `json:"identifier"`
}

// HandleAddMember handles POST /groups/{groupID}/members. A group admin
// adds a student directly, skipping the request queue.
func (h *Handler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	g, err := h.loadGroup(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !grouppolicy.CanManage(r, &g) {
		httpjson.Error(w, h.Log, apperr.NewForbidden("only group admins can add members"))
		return
	}

	var req addMemberRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	u, err := h.Membership.AddMember(r.Context(), g.ID, req.Identifier)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	h.Log.Info("member added",
		zap.String("group_id", g.ID.Hex()),
		zap.String("user_id", u.ID.Hex()))
	httpjson.Write(w, http.StatusCreated, memberRow{
		UserID:    u.ID,
		FullName:  u.FullName,
		Email:     u.Email,
		StudentID: u.StudentID,
		Role:      "member",
		JoinedAt:  time.Now().UTC(),
	})
}

// HandleRemoveMember handles DELETE /groups/{groupID}/members/{userID}.
// The creator can never be removed, not even by a platform admin.
func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	g, err := h.loadGroup(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	target, err := pathID(r, "userID")
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !grouppolicy.CanRemoveMember(r, &g, target) {
		httpjson.Error(w, h.Log, apperr.NewForbidden("cannot remove this member"))
		return
	}
	if err := h.Membership.RemoveMember(r.Context(), g.ID, target); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	h.Log.Info("member removed",
		zap.String("group_id", g.ID.Hex()),
		zap.String("user_id", target.Hex()))
	w.WriteHeader(http.StatusNoContent)
}

// HandleLeave handles POST /groups/{groupID}/leave.
func (h *Handler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	g, err := h.loadGroup(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Error(w, h.Log, apperr.NewForbidden("sign in required"))
		return
	}
	if !grouppolicy.CanLeave(r, &g) {
		if g.CreatorID == uid {
			httpjson.Error(w, h.Log, apperr.NewForbidden("the creator cannot leave; delete the group instead"))
			return
		}
		httpjson.Error(w, h.Log, apperr.NewForbidden("not a member of this group"))
		return
	}
	if err := h.Membership.RemoveMember(r.Context(), g.ID, uid); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
