// internal/app/features/groups/routes.go
package groups

import (
	"github.com/go-chi/chi/v5"

	sysauth "github.com/dalemusser/cohortdesk/internal/app/system/auth"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(sysauth.RequireSignedIn)

	r.Get("/", h.ServeMine)
	r.Post("/", h.HandleCreate)
	r.Get("/discover", h.ServeDiscover)

	r.Route("/{groupID}", func(r chi.Router) {
		r.Get("/", h.ServeGroup)
		r.Patch("/", h.HandleUpdate)
		r.Delete("/", h.HandleDelete)

		r.Get("/join-requests", h.ServeJoinRequests)
		r.Post("/join-requests", h.HandleRequestJoin)
		r.Delete("/join-requests", h.HandleCancelRequest)
		r.Post("/join-requests/{userID}/approve", h.HandleApproveRequest)
		r.Post("/join-requests/{userID}/reject", h.HandleRejectRequest)

		r.Get("/members", h.ServeMembers)
		r.Post("/members", h.HandleAddMember)
		r.Delete("/members/{userID}", h.HandleRemoveMember)
		r.Post("/leave", h.HandleLeave)

		r.Post("/announcements", h.HandlePostAnnouncement)
		r.Delete("/announcements/{announcementID}", h.HandleDeleteAnnouncement)

		r.Post("/resources", h.HandleAddResource)
		r.Delete("/resources/{resourceID}", h.HandleDeleteResource)

		r.Get("/messages", h.ServeMessages)
		r.Post("/messages", h.HandlePostMessage)

		r.Get("/progress", h.ServeProgress)
		r.Get("/board", h.ServeBoard)
		r.Get("/stats", h.ServeStats)
	})
	return r
}
