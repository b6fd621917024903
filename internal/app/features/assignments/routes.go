// internal/app/features/assignments/routes.go
package assignments

import (
	"github.com/go-chi/chi/v5"

	sysauth "github.com/dalemusser/cohortdesk/internal/app/system/auth"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(sysauth.RequireSignedIn)

	r.Get("/", h.ServeList)
	r.Get("/{assignmentID}", h.ServeAssignment)

	r.Group(func(r chi.Router) {
		r.Use(sysauth.RequireAdmin)
		r.Post("/", h.HandleCreate)
		r.Patch("/{assignmentID}", h.HandleUpdate)
		r.Delete("/{assignmentID}", h.HandleDelete)
		r.Get("/{assignmentID}/overview", h.ServeOverview)
	})
	return r
}
