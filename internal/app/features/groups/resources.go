// internal/app/features/groups/resources.go
package groups

import (
	"net/http"

	"github.com/dalemusser/cohortdesk/internal/app/policy/grouppolicy"
	"github.com/dalemusser/cohortdesk/internal/app/system/apperr"
	"github.com/dalemusser/cohortdesk/internal/app/system/authz"
	"github.com/dalemusser/cohortdesk/internal/app/system/httpjson"
)

type addResourceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	FileURL     string `json:"file_url"`
	FileType    string `json:"file_type"`
}

// HandleAddResource handles POST /groups/{groupID}/resources. Any
// member can share a resource link with the group.
func (h *Handler) HandleAddResource(w http.ResponseWriter, r *http.Request) {
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

	var req addResourceRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	res, err := h.Membership.AddResource(r.Context(), g.ID, uid, req.Name, req.Description, req.FileURL, req.FileType)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, res)
}

// HandleDeleteResource handles
// DELETE /groups/{groupID}/resources/{resourceID}. The uploader may
// take their own share down; group admins may remove any.
func (h *Handler) HandleDeleteResource(w http.ResponseWriter, r *http.Request) {
	g, err := h.loadGroup(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	rid, err := pathID(r, "resourceID")
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	if !grouppolicy.CanManage(r, &g) {
		_, _, uid, ok := authz.UserCtx(r)
		owns := false
		for _, res := range g.Resources {
			if res.ID == rid && ok && res.UploadedBy == uid {
				owns = true
				break
			}
		}
		if !owns {
			httpjson.Error(w, h.Log, apperr.NewForbidden("only the uploader or a group admin can remove a resource"))
			return
		}
	}
	if err := h.Membership.DeleteResource(r.Context(), g.ID, rid); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
