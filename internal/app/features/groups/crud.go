// internal/app/features/groups/crud.go
package groups

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/dalemusser/cohortdesk/internal/app/membership"
	"github.com/dalemusser/cohortdesk/internal/app/policy/grouppolicy"
	groupstore "github.com/dalemusser/cohortdesk/internal/app/store/groups"
	"github.com/dalemusser/cohortdesk/internal/app/system/apperr"
	"github.com/dalemusser/cohortdesk/internal/app/system/authz"
	"github.com/dalemusser/cohortdesk/internal/app/system/httpjson"
	"github.com/dalemusser/cohortdesk/internal/domain/models"
)

type createGroupRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	IsPublic    bool     `json:"is_public"`
	MaxMembers  int      `json:"max_members"`
}

// HandleCreate handles POST /groups.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Error(w, h.Log, apperr.NewForbidden("sign in required"))
		return
	}

	var req createGroupRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	g, err := h.Membership.CreateGroup(r.Context(), uid, membership.CreateGroupInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Tags:        req.Tags,
		IsPublic:    req.IsPublic,
		MaxMembers:  req.MaxMembers,
	})
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	h.Log.Info("group created",
		zap.String("group_id", g.ID.Hex()),
		zap.String("creator_id", uid.Hex()))
	httpjson.Write(w, http.StatusCreated, g)
}

// publicView is the listing shape a non-member sees for a public group.
// Internals (member list, requests, announcements, resources) stay
// member-only.
type publicView struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	MemberCount int      `json:"member_count"`
	MaxMembers  int      `json:"max_members"`
	IsPublic    bool     `json:"is_public"`

	// Caller-relative annotations so listings can render join buttons
	// without a second round trip.
	IsMember     bool `json:"is_member"`
	HasRequested bool `json:"has_requested"`
	IsFull       bool `json:"is_full"`
}

func toPublicView(r *http.Request, g models.Group) publicView {
	v := publicView{
		ID:          g.ID.Hex(),
		Name:        g.Name,
		Description: g.Description,
		Category:    g.Category,
		Tags:        g.Tags,
		MemberCount: len(g.Members),
		MaxMembers:  g.MaxMembers,
		IsPublic:    g.IsPublic,
		IsFull:      g.IsFull(),
	}
	if _, _, uid, ok := authz.UserCtx(r); ok {
		v.IsMember = g.IsMember(uid)
		v.HasRequested = g.HasJoinRequest(uid)
	}
	return v
}

// ServeGroup handles GET /groups/{groupID}. Members get the full
// aggregate; everyone else gets the public listing fields, and private
// groups stay invisible to outsiders.
func (h *Handler) ServeGroup(w http.ResponseWriter, r *http.Request) {
	g, err := h.loadGroup(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if grouppolicy.CanView(r, &g) {
		httpjson.Write(w, http.StatusOK, g)
		return
	}
	if g.IsPublic {
		httpjson.Write(w, http.StatusOK, toPublicView(r, g))
		return
	}
	httpjson.Error(w, h.Log, apperr.NewNotFound("group not found"))
}

type updateGroupRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Category    *string  `json:"category"`
	Tags        []string `json:"tags"`
	IsPublic    *bool    `json:"is_public"`
	MaxMembers  *int     `json:"max_members"`
}

// HandleUpdate handles PATCH /groups/{groupID}. Absent fields are left
// unchanged.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	g, err := h.loadGroup(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !grouppolicy.CanManage(r, &g) {
		httpjson.Error(w, h.Log, apperr.NewForbidden("only group admins can edit group settings"))
		return
	}

	var req updateGroupRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	updated, err := h.Membership.UpdateGroup(r.Context(), g.ID, membership.UpdateGroupInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Tags:        req.Tags,
		IsPublic:    req.IsPublic,
		MaxMembers:  req.MaxMembers,
	})
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, updated)
}

// HandleDelete handles DELETE /groups/{groupID}. Only the creator or a
// platform admin may delete; submissions and chat history go with it.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	g, err := h.loadGroup(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !grouppolicy.CanDelete(r, &g) {
		httpjson.Error(w, h.Log, apperr.NewForbidden("only the group creator can delete the group"))
		return
	}
	if err := h.Membership.DeleteGroup(r.Context(), g.ID); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	h.Log.Info("group deleted", zap.String("group_id", g.ID.Hex()))
	w.WriteHeader(http.StatusNoContent)
}

// ServeMine handles GET /groups, listing the caller's groups most
// recently active first.
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Error(w, h.Log, apperr.NewForbidden("sign in required"))
		return
	}
	list, err := h.Membership.ListMyGroups(r.Context(), uid)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, list)
}

// ServeDiscover handles GET /groups/discover?q=&category=&tags=a,b.
// Results are public groups only, reduced to their listing fields.
func (h *Handler) ServeDiscover(w http.ResponseWriter, r *http.Request) {
	f := groupstore.SearchFilter{
		Query:    strings.TrimSpace(r.URL.Query().Get("q")),
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
	}
	if raw := r.URL.Query().Get("tags"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				f.Tags = append(f.Tags, t)
			}
		}
	}

	list, err := h.Membership.Discover(r.Context(), f)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	out := make([]publicView, 0, len(list))
	for _, g := range list {
		out = append(out, toPublicView(r, g))
	}
	httpjson.Write(w, http.StatusOK, out)
}
