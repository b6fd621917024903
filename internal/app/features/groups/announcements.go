// internal/app/features/groups/announcements.go
package groups

import (
	"net/http"

	"github.com/dalemusser/cohortdesk/internal/app/policy/grouppolicy"
	"github.com/dalemusser/cohortdesk/internal/app/system/apperr"
	"github.com/dalemusser/cohortdesk/internal/app/system/authz"
	"github.com/dalemusser/cohortdesk/internal/app/system/httpjson"
)

type postAnnouncementRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	IsPinned bool   `json:"is_pinned"`
}

// HandlePostAnnouncement handles POST /groups/{groupID}/announcements.
func (h *Handler) HandlePostAnnouncement(w http.ResponseWriter, r *http.Request) {
	g, err := h.loadGroup(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !grouppolicy.CanManage(r, &g) {
		httpjson.Error(w, h.Log, apperr.NewForbidden("only group admins can post announcements"))
		return
	}
	_, _, uid, _ := authz.UserCtx(r)

	var req postAnnouncementRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	a, err := h.Membership.PostAnnouncement(r.Context(), g.ID, uid, req.Title, req.Content, req.IsPinned)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, a)
}

// HandleDeleteAnnouncement handles
// DELETE /groups/{groupID}/announcements/{announcementID}.
func (h *Handler) HandleDeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	g, err := h.loadGroup(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !grouppolicy.CanManage(r, &g) {
		httpjson.Error(w, h.Log, apperr.NewForbidden("only group admins can delete announcements"))
		return
	}
	aid, err := pathID(r, "announcementID")
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if err := h.Membership.DeleteAnnouncement(r.Context(), g.ID, aid); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
