// internal/app/features/submissions/routes.go
package submissions

import (
	"github.com/go-chi/chi/v5"

	sysauth "github.com/dalemusser/cohortdesk/internal/app/system/auth"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(sysauth.RequireSignedIn)

	r.Post("/assignments/{assignmentID}/groups/{groupID}", h.HandleSubmit)
	r.Get("/assignments/{assignmentID}/groups/{groupID}", h.ServeStatus)
	r.Get("/groups/{groupID}", h.ServeForGroup)

	r.Get("/{submissionID}", h.ServeSubmission)
	r.Get("/{submissionID}/files/{filename}", h.HandleDownload)

	r.Group(func(r chi.Router) {
		r.Use(sysauth.RequireAdmin)
		r.Get("/assignments/{assignmentID}", h.ServeForAssignment)
		r.Post("/{submissionID}/grade", h.HandleGrade)
	})
	return r
}
