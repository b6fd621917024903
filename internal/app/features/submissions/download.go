// internal/app/features/submissions/download.go
package submissions

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dalemusser/cohortdesk/internal/app/policy/grouppolicy"
	"github.com/dalemusser/cohortdesk/internal/app/system/apperr"
	"github.com/dalemusser/cohortdesk/internal/app/system/httpjson"
	"github.com/dalemusser/cohortdesk/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/storage"
)

// HandleDownload handles
// GET /submissions/{submissionID}/files/{filename}. Local storage
// serves the file directly; other backends get a short-lived signed
// URL and a redirect.
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	id, err := pathID(r, "submissionID")
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	filename := chi.URLParam(r, "filename")

	sub, ref, err := h.Submissions.FindFile(ctx, id, filename)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	g, err := h.Membership.GetGroup(ctx, sub.GroupID)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if !grouppolicy.CanView(r, &g) {
		httpjson.Error(w, h.Log, apperr.NewForbidden("members only"))
		return
	}

	// The record can outlive the blob when a cleanup raced a resubmit;
	// a missing object is a 404, not a backend failure.
	stored, err := h.Storage.Exists(ctx, ref.Path)
	if err != nil {
		httpjson.Error(w, h.Log, apperr.NewStorage(err, "check file"))
		return
	}
	if !stored {
		httpjson.Error(w, h.Log, apperr.NewNotFound("file %q is no longer stored", filename))
		return
	}

	name := ref.OriginalName
	if name == "" {
		name = "download"
	}
	contentDisposition := "attachment; filename=\"" + name + "\""

	// Attachments can be replaced by a resubmit; keep browsers from
	// caching a stale copy.
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")

	if local, ok := h.Storage.(*storage.Local); ok {
		fullPath, err := local.GetFullPath(ref.Path)
		if err != nil {
			h.Log.Error("locating stored attachment failed",
				zap.Error(err), zap.String("path", ref.Path))
			httpjson.Error(w, h.Log, apperr.NewStorage(err, "locate file"))
			return
		}
		w.Header().Set("Content-Disposition", contentDisposition)
		http.ServeFile(w, r, fullPath)
		return
	}

	signedURL, err := h.Storage.PresignedURL(ctx, ref.Path, &storage.PresignOptions{
		Expires:            15 * time.Minute,
		ContentDisposition: contentDisposition,
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httpjson.Error(w, h.Log, apperr.NewNotFound("file %q is no longer stored", filename))
			return
		}
		h.Log.Error("generating signed URL failed",
			zap.Error(err), zap.String("path", ref.Path))
		httpjson.Error(w, h.Log, apperr.NewStorage(err, "generate download link"))
		return
	}
	http.Redirect(w, r, signedURL, http.StatusSeeOther)
}
