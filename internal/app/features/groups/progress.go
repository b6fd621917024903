// internal/app/features/groups/progress.go
package groups

import (
	"net/http"

	"github.com/dalemusser/cohortdesk/internal/app/policy/grouppolicy"
	"github.com/dalemusser/cohortdesk/internal/app/system/apperr"
	"github.com/dalemusser/cohortdesk/internal/app/system/httpjson"
)

// ServeProgress handles GET /groups/{groupID}/progress, the completion
// percentage over applicable assignments.
func (h *Handler) ServeProgress(w http.ResponseWriter, r *http.Request) {
	g, err := h.loadGroup(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !grouppolicy.CanView(r, &g) {
		httpjson.Error(w, h.Log, apperr.NewForbidden("members only"))
		return
	}
	p, err := h.Progress.ForGroup(r.Context(), g.ID)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, p)
}

// ServeBoard handles GET /groups/{groupID}/board, one row per
// applicable assignment with the group's submission status.
func (h *Handler) ServeBoard(w http.ResponseWriter, r *http.Request) {
	g, err := h.loadGroup(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !grouppolicy.CanView(r, &g) {
		httpjson.Error(w, h.Log, apperr.NewForbidden("members only"))
		return
	}
	rows, err := h.Progress.Board(r.Context(), g.ID)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, rows)
}
