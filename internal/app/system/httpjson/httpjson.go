// internal/app/system/httpjson/httpjson.go
//
// Request/response plumbing for the JSON API. Handlers return domain
// errors from the apperr package; Error maps them onto status codes and
// a stable {"error": "..."} body so internals never leak to clients.
package httpjson

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dalemusser/cohortdesk/internal/app/system/apperr"
	"github.com/dalemusser/cohortdesk/internal/app/system/limits"
	"go.uber.org/zap"
)

// Write sends v as JSON with the given status.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// Error writes the JSON error response for err. Unexpected errors are
// logged and surface as a generic 500; apperr errors carry their own
// status and user-safe message.
func Error(w http.ResponseWriter, log *zap.Logger, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
	}
	Write(w, status, errorBody{Error: apperr.UserMessage(err)})
}

// Decode reads a JSON body into dst, bounded by the API body limit.
func Decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperr.NewValidation("request body exceeds %d bytes", maxErr.Limit)
		}
		return apperr.NewValidation("malformed JSON body")
	}
	return nil
}
