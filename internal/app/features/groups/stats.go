// internal/app/features/groups/stats.go
package groups

import (
	"net/http"

	"github.com/dalemusser/cohortdesk/internal/app/policy/grouppolicy"
	"github.com/dalemusser/cohortdesk/internal/app/system/apperr"
	"github.com/dalemusser/cohortdesk/internal/app/system/httpjson"
)

// ServeStats handles GET /groups/{groupID}/stats, the activity snapshot
// for a group's detail page.
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	g, err := h.loadGroup(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !grouppolicy.CanView(r, &g) {
		httpjson.Error(w, h.Log, apperr.NewForbidden("members only"))
		return
	}
	stats, err := h.Membership.Stats(r.Context(), &g)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, stats)
}
