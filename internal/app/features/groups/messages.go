// internal/app/features/groups/messages.go
package groups

import (
	"net/http"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dalemusser/cohortdesk/internal/app/policy/grouppolicy"
	"github.com/dalemusser/cohortdesk/internal/app/system/apperr"
	"github.com/dalemusser/cohortdesk/internal/app/system/authz"
	"github.com/dalemusser/cohortdesk/internal/app/system/httpjson"
)

// ServeMessages handles GET /groups/{groupID}/messages?before=&limit=.
// Messages come back oldest-first; pass the oldest returned timestamp
// as `before` to page further into history.
func (h *Handler) ServeMessages(w http.ResponseWriter, r *http.Request) {
	g, err := h.loadGroup(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !grouppolicy.CanView(r, &g) {
		httpjson.Error(w, h.Log, apperr.NewForbidden("members only"))
		return
	}

	var before time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		before, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			httpjson.Error(w, h.Log, apperr.NewValidation("before must be an RFC 3339 timestamp"))
			return
		}
	}
	var limit int64
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpjson.Error(w, h.Log, apperr.NewValidation("limit must be an integer"))
			return
		}
	}

	msgs, err := h.Membership.ListMessages(r.Context(), g.ID, before, limit)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, msgs)
}

type postMessageRequest struct {
	Content string `json:"content"`
	ReplyTo string `json:"reply_to,omitempty"`
}

// HandlePostMessage handles POST /groups/{groupID}/messages.
func (h *Handler) HandlePostMessage(w http.ResponseWriter, r *http.Request) {
	g, err := h.loadGroup(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !grouppolicy.CanPost(r, &g) {
		httpjson.Error(w, h.Log, apperr.NewForbidden("members only"))
		return
	}
	_, _, uid, _ := authz.UserCtx(r)

	var req postMessageRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	var replyTo *primitive.ObjectID
	if req.ReplyTo != "" {
		id, err := primitive.ObjectIDFromHex(req.ReplyTo)
		if err != nil {
			httpjson.Error(w, h.Log, apperr.NewValidation("malformed reply_to id"))
			return
		}
		replyTo = &id
	}

	msg, err := h.Membership.PostMessage(r.Context(), g.ID, uid, req.Content, replyTo)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, msg)
}
