package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/adept-forum/internal/auth"
	"github.com/yanizio/adept-forum/internal/flood"
	"github.com/yanizio/adept-forum/internal/forum"
	"github.com/yanizio/adept-forum/internal/metrics"
	"github.com/yanizio/adept-forum/internal/site"
	"github.com/yanizio/adept-forum/internal/thread"
)

// maxBody caps request bodies.
const maxBody = 1 << 20

/*──────────────────────────── helpers ─────────────────────────────────────*/

// scope returns the resolved site id and principal.
func scope(r *http.Request) (int64, auth.Principal) {
	var id int64
	if s := site.FromContext(r.Context()); s != nil {
		id = s.ID
	}
	return id, auth.PrincipalFrom(r.Context())
}

func page(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(body).Decode(v); err != nil && err != io.EOF {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

/*──────────────────────────── forums ──────────────────────────────────────*/

func (h *handler) listForums(w http.ResponseWriter, r *http.Request) {
	siteID, p := scope(r)
	idx, err := h.threads.Forums(r.Context(), siteID, p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, idx)
}

// forumRequest exposes the allow-list, which forum.Forum hides from JSON.
type forumRequest struct {
	forum.Forum
	AllowedUsers []int64 `json:"allowed_users"`
}

func (h *handler) saveForum(w http.ResponseWriter, r *http.Request) {
	var req forumRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	f := req.Forum
	f.AllowedUsers = forum.IDSet(req.AllowedUsers...)

	siteID, p := scope(r)
	saved, err := h.threads.SaveForum(r.Context(), siteID, p, f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if req.ID == 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, saved)
}

type forumResponse struct {
	*thread.ForumPage
	Notice *flood.Notice `json:"notice,omitempty"`
}

func (h *handler) forumPage(w http.ResponseWriter, r *http.Request) {
	siteID, p := scope(r)
	slug := chi.URLParam(r, "forum")

	fp, err := h.threads.Forum(r.Context(), siteID, p, slug, page(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := forumResponse{ForumPage: fp}
	if n, ok := h.courtesy.Active(r.Context(), siteID, slug, p); ok {
		resp.Notice = n
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) createThread(w http.ResponseWriter, r *http.Request) {
	siteID, p := scope(r)
	slug := chi.URLParam(r, "forum")

	if n, ok := h.courtesy.Active(r.Context(), siteID, slug, p); ok {
		metrics.CourtesyRedirectsTotal.Inc()
		secs := retrySeconds(n.RetryAfter(h.courtesy.Now()))
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		seeOther(w, n.URL, errorBody{Error: "flood control", URL: n.URL, RetryAfter: secs})
		return
	}

	var sub thread.Submission
	if err := decode(w, r, &sub); err != nil {
		h.writeError(w, r, err)
		return
	}
	t, err := h.threads.Create(r.Context(), siteID, p, slug, sub)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.courtesy.Remember(r.Context(), siteID, slug, p, t)

	w.Header().Set("Location", t.URL())
	writeJSON(w, http.StatusCreated, t)
}

func (h *handler) preview(w http.ResponseWriter, r *http.Request) {
	var sub thread.Submission
	if err := decode(w, r, &sub); err != nil {
		h.writeError(w, r, err)
		return
	}
	siteID, p := scope(r)
	pv, err := h.threads.Preview(r.Context(), siteID, p, chi.URLParam(r, "forum"), sub)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pv)
}

/*──────────────────────────── threads ─────────────────────────────────────*/

func (h *handler) threadPage(w http.ResponseWriter, r *http.Request) {
	siteID, p := scope(r)
	tp, err := h.threads.View(r.Context(), siteID, p, chi.URLParam(r, "thread"), page(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tp)
}

func (h *handler) editThread(w http.ResponseWriter, r *http.Request) {
	var sub thread.Submission
	if err := decode(w, r, &sub); err != nil {
		h.writeError(w, r, err)
		return
	}
	siteID, p := scope(r)
	t, err := h.threads.Edit(r.Context(), siteID, p, chi.URLParam(r, "thread"), sub)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handler) reply(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Body string `json:"body"`
	}
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	siteID, p := scope(r)
	post, err := h.threads.Reply(r.Context(), siteID, p, chi.URLParam(r, "thread"), req.Body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (h *handler) moderate(w http.ResponseWriter, r *http.Request) {
	var fl thread.Flags
	if err := decode(w, r, &fl); err != nil {
		h.writeError(w, r, err)
		return
	}
	siteID, p := scope(r)
	t, err := h.threads.Moderate(r.Context(), siteID, p, chi.URLParam(r, "thread"), fl)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handler) move(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Forum string `json:"forum"`
	}
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Forum == "" {
		h.writeError(w, r, &thread.ValidationError{Fields: []thread.FieldError{{Name: "forum", Message: "This field is required."}}})
		return
	}
	siteID, p := scope(r)
	t, err := h.threads.Move(r.Context(), siteID, p, chi.URLParam(r, "thread"), req.Forum)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handler) ban(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID int64 `json:"user_id"`
	}
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	siteID, p := scope(r)
	if err := h.threads.Ban(r.Context(), siteID, p, chi.URLParam(r, "thread"), req.UserID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) deleteThread(w http.ResponseWriter, r *http.Request) {
	siteID, p := scope(r)
	if err := h.threads.Delete(r.Context(), siteID, p, chi.URLParam(r, "thread")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
