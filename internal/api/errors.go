// internal/api/errors.go
//
// Domain error → HTTP response mapping.
//
//	*thread.ValidationError         422  {"error", "fields"}
//	*forum.DuplicateSubmissionError 303  Location: existing thread
//	*forum.RateLimitedError         429  Retry-After (seconds, rounded up)
//	forum.ErrNotFound               404
//	forum.ErrForbidden              403
//	forum.ErrSlugExhausted          409
//	anything else                   500  (logged; cyclic hierarchy at error
//	                                     level with the offending path)
package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/yanizio/adept-forum/internal/forum"
	"github.com/yanizio/adept-forum/internal/thread"
)

type errorBody struct {
	Error      string              `json:"error"`
	Fields     []thread.FieldError `json:"fields,omitempty"`
	URL        string              `json:"url,omitempty"`
	RetryAfter int                 `json:"retry_after,omitempty"`
}

// errBadRequest marks undecodable request bodies and parameters.
var errBadRequest = errors.New("bad request")

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		dup *forum.DuplicateSubmissionError
		rl  *forum.RateLimitedError
		cyc *forum.CyclicHierarchyError
	)
	switch {
	case thread.IsValidationError(err):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "validation failed", Fields: thread.FieldsOf(err)})
	case errors.As(err, &dup):
		seeOther(w, dup.URL(), errorBody{Error: "duplicate submission", URL: dup.URL()})
	case errors.As(err, &rl):
		secs := retrySeconds(rl.RetryAfter)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limited", RetryAfter: secs})
	case errors.Is(err, errBadRequest):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, forum.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, forum.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
	case errors.Is(err, forum.ErrSlugExhausted):
		writeJSON(w, http.StatusConflict, errorBody{Error: "could not allocate a unique slug"})
	case errors.As(err, &cyc):
		h.log.Errorw("forum hierarchy is cyclic", "forum", cyc.ForumID, "path", cyc.Path,
			"request_id", chimw.GetReqID(r.Context()))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	default:
		h.log.Errorw("request failed", "method", r.Method, "path", r.URL.Path, "err", err,
			"request_id", chimw.GetReqID(r.Context()))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// retrySeconds rounds d up to whole seconds, at least one.
func retrySeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}

func seeOther(w http.ResponseWriter, url string, body any) {
	w.Header().Set("Location", url)
	writeJSON(w, http.StatusSeeOther, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
