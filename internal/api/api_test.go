// internal/api/api_test.go
//
// End-to-end router tests over the in-memory store and cache.
//
// Run: go test ./internal/api -v
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/yanizio/adept-forum/internal/auth"
	"github.com/yanizio/adept-forum/internal/cache"
	"github.com/yanizio/adept-forum/internal/counter"
	"github.com/yanizio/adept-forum/internal/flood"
	"github.com/yanizio/adept-forum/internal/forum"
	"github.com/yanizio/adept-forum/internal/site"
	"github.com/yanizio/adept-forum/internal/slug"
	"github.com/yanizio/adept-forum/internal/store"
	"github.com/yanizio/adept-forum/internal/thread"
)

const host = "forum.example.com"

var t0 = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

type sites map[string]int64

func (s sites) Resolve(_ context.Context, h string) (*site.Site, error) {
	if id, ok := s[h]; ok {
		return &site.Site{ID: id, Host: h}, nil
	}
	return nil, forum.ErrNotFound
}

type user struct {
	id    int64
	name  string
	roles string
}

var (
	anon   = user{}
	member = user{id: 10, name: "member"}
	other  = user{id: 11, name: "other"}
	staff  = user{id: 13, name: "mod", roles: "staff"}
)

type fixture struct {
	h        http.Handler
	mem      *store.Memory
	checks   map[string]Check
	optional map[string]Check
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	for _, f := range []forum.Forum{
		{SiteID: 1, Title: "General", Slug: "general"},
		{SiteID: 1, Title: "Announcements", Slug: "announcements", OnlyStaffPosts: true},
		{SiteID: 1, Title: "Secret", Slug: "secret", Restricted: true},
		{SiteID: 1, Title: "Classifieds", Slug: "classifieds"},
	} {
		f := f
		if err := mem.SaveForum(ctx, &f); err != nil {
			t.Fatalf("SaveForum: %v", err)
		}
	}

	now := func() time.Time { return t0 }
	c := cache.NewMemory(256)
	c.SetClock(now)
	svc := thread.New(thread.Deps{
		Store:    mem,
		Guard:    flood.NewGuard(mem, 5*time.Minute).WithClock(now),
		Slugs:    slug.NewAllocator(slug.Options{}, slug.WithClock(now)),
		Counters: counter.New(mem, c, counter.Options{}, nil),
		Now:      now,
	})
	courtesy := flood.NewCourtesy(c, map[string]int{"classifieds": 3600}, nil)
	courtesy.SetClock(now)

	fx := &fixture{mem: mem, checks: map[string]Check{}, optional: map[string]Check{"cache": c.Ping}}
	fx.h = New(Deps{
		Threads:      svc,
		Sites:        sites{host: 1},
		Courtesy:     courtesy,
		Checks:       fx.checks,
		Optional:     fx.optional,
		TrustHeaders: true,
	})
	return fx
}

func (fx *fixture) do(t *testing.T, u user, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "http://"+host+path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if u.id != 0 {
		req.Header.Set(auth.HeaderUserID, strconv.FormatInt(u.id, 10))
		req.Header.Set(auth.HeaderUserName, u.name)
		req.Header.Set(auth.HeaderRoles, u.roles)
	}
	rr := httptest.NewRecorder()
	fx.h.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthz(t *testing.T) {
	fx := newFixture(t)
	if rr := fx.do(t, anon, http.MethodGet, "/healthz", ""); rr.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rr.Code)
	}

	fx.optional["cache"] = func(context.Context) error { return errors.New("connection refused") }
	rr := fx.do(t, anon, http.MethodGet, "/healthz", "")
	body := decodeBody[struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}](t, rr)
	if rr.Code != http.StatusOK || body.Status != "degraded" || !strings.HasPrefix(body.Checks["cache"], "degraded") {
		t.Fatalf("cache outage: %d %#v", rr.Code, body)
	}

	fx.checks["db"] = func(context.Context) error { return errors.New("down") }
	if rr := fx.do(t, anon, http.MethodGet, "/healthz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("failing healthz = %d", rr.Code)
	}
}

func TestUnknownHost(t *testing.T) {
	fx := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "http://elsewhere.example.com/forums", nil)
	rr := httptest.NewRecorder()
	fx.h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("code = %d", rr.Code)
	}
}

func TestCreateAndView(t *testing.T) {
	fx := newFixture(t)

	rr := fx.do(t, member, http.MethodPost, "/forums/general/threads", `{"title":"Hello","body":"first"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rr.Code, rr.Body)
	}
	if loc := rr.Header().Get("Location"); loc != "/threads/hello" {
		t.Fatalf("Location = %q", loc)
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("security headers missing")
	}

	rr = fx.do(t, anon, http.MethodGet, "/threads/hello", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("view = %d", rr.Code)
	}
	tp := decodeBody[thread.ThreadPage](t, rr)
	if tp.Thread.Posts != 1 || len(tp.Posts) != 1 || tp.Posts[0].AuthorName != "member" {
		t.Fatalf("page = %#v", tp)
	}

	rr = fx.do(t, other, http.MethodPost, "/threads/hello/posts", `{"body":"reply"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("reply = %d %s", rr.Code, rr.Body)
	}

	rr = fx.do(t, anon, http.MethodGet, "/forums/general", "")
	fp := decodeBody[thread.ForumPage](t, rr)
	if fp.ThreadsTotal != 1 || fp.PostsTotal != 2 || len(fp.Active) != 1 {
		t.Fatalf("forum page = %#v", fp)
	}
}

func TestValidationAndBadRequest(t *testing.T) {
	fx := newFixture(t)

	rr := fx.do(t, member, http.MethodPost, "/forums/general/threads", `{"title":"","body":""}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("code = %d", rr.Code)
	}
	body := decodeBody[errorBody](t, rr)
	if len(body.Fields) != 2 || body.Fields[0].Name != "title" {
		t.Fatalf("fields = %#v", body.Fields)
	}

	if rr := fx.do(t, member, http.MethodPost, "/forums/general/threads", `{"title":`); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad json = %d", rr.Code)
	}
}

func TestGuards(t *testing.T) {
	fx := newFixture(t)
	fx.do(t, member, http.MethodPost, "/forums/general/threads", `{"title":"Hello","body":"b"}`)

	rr := fx.do(t, member, http.MethodPost, "/forums/general/threads", `{"title":"Hello","body":"again"}`)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/threads/hello" {
		t.Fatalf("duplicate = %d %q", rr.Code, rr.Header().Get("Location"))
	}

	rr = fx.do(t, member, http.MethodPost, "/forums/general/threads", `{"title":"Other","body":"b"}`)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") != "300" {
		t.Fatalf("rate = %d retry %q", rr.Code, rr.Header().Get("Retry-After"))
	}
}

func TestCourtesyRedirect(t *testing.T) {
	fx := newFixture(t)

	rr := fx.do(t, member, http.MethodPost, "/forums/classifieds/threads", `{"title":"Bike for sale","body":"b"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create = %d", rr.Code)
	}

	rr = fx.do(t, member, http.MethodPost, "/forums/classifieds/threads", `{"title":"Car for sale","body":"b"}`)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("courtesy = %d", rr.Code)
	}
	if rr.Header().Get("Location") != "/threads/bike-for-sale" || rr.Header().Get("Retry-After") != "3600" {
		t.Fatalf("courtesy headers = %v", rr.Header())
	}

	rr = fx.do(t, member, http.MethodGet, "/forums/classifieds", "")
	page := decodeBody[struct {
		Notice *flood.Notice `json:"notice"`
	}](t, rr)
	if page.Notice == nil || page.Notice.URL != "/threads/bike-for-sale" {
		t.Fatalf("forum page notice = %#v", page.Notice)
	}

	// Other members are unaffected.
	if rr := fx.do(t, other, http.MethodPost, "/forums/classifieds/threads", `{"title":"Sofa","body":"b"}`); rr.Code != http.StatusCreated {
		t.Fatalf("other member = %d", rr.Code)
	}
}

func TestAccess(t *testing.T) {
	fx := newFixture(t)

	if rr := fx.do(t, member, http.MethodGet, "/forums/secret", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("restricted = %d", rr.Code)
	}
	if rr := fx.do(t, member, http.MethodPost, "/forums/announcements/threads", `{"title":"x","body":"y"}`); rr.Code != http.StatusForbidden {
		t.Fatalf("staff-only post = %d", rr.Code)
	}

	fx.do(t, member, http.MethodPost, "/forums/general/threads", `{"title":"Mine","body":"b"}`)
	if rr := fx.do(t, anon, http.MethodPost, "/threads/mine/moderate", `{"closed":true}`); rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous moderate = %d", rr.Code)
	}
	if rr := fx.do(t, member, http.MethodPost, "/threads/mine/moderate", `{"closed":true}`); rr.Code != http.StatusForbidden {
		t.Fatalf("member moderate = %d", rr.Code)
	}
	if rr := fx.do(t, other, http.MethodPatch, "/threads/mine", `{"title":"Hijack","body":"b"}`); rr.Code != http.StatusForbidden {
		t.Fatalf("non-author edit = %d", rr.Code)
	}
	if rr := fx.do(t, member, http.MethodPost, "/forums", `{"title":"New"}`); rr.Code != http.StatusForbidden {
		t.Fatalf("member save forum = %d", rr.Code)
	}
}

func TestStaffActions(t *testing.T) {
	fx := newFixture(t)
	fx.do(t, member, http.MethodPost, "/forums/general/threads", `{"title":"Topic","body":"b"}`)

	rr := fx.do(t, staff, http.MethodPost, "/threads/topic/moderate", `{"sticky":true,"closed":true}`)
	th := decodeBody[forum.Thread](t, rr)
	if rr.Code != http.StatusOK || !th.Sticky || !th.Closed {
		t.Fatalf("moderate = %d %#v", rr.Code, th)
	}
	if rr := fx.do(t, other, http.MethodPost, "/threads/topic/posts", `{"body":"late"}`); rr.Code != http.StatusForbidden {
		t.Fatalf("reply to closed = %d", rr.Code)
	}

	if rr := fx.do(t, staff, http.MethodPost, "/threads/topic/bans", `{"user_id":11}`); rr.Code != http.StatusNoContent {
		t.Fatalf("ban = %d", rr.Code)
	}
	if rr := fx.do(t, other, http.MethodGet, "/threads/topic", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("banned view = %d", rr.Code)
	}

	if rr := fx.do(t, staff, http.MethodPost, "/threads/topic/move", `{}`); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("move without target = %d", rr.Code)
	}
	rr = fx.do(t, staff, http.MethodPost, "/threads/topic/move", `{"forum":"classifieds"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("move = %d %s", rr.Code, rr.Body)
	}

	if rr := fx.do(t, staff, http.MethodDelete, "/threads/topic", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rr.Code)
	}
	if rr := fx.do(t, staff, http.MethodGet, "/threads/topic", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("deleted thread = %d", rr.Code)
	}
}

func TestForumAdministration(t *testing.T) {
	fx := newFixture(t)

	rr := fx.do(t, staff, http.MethodPost, "/forums", `{"title":"Members lounge","restricted":true,"allowed_users":[10]}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("save = %d %s", rr.Code, rr.Body)
	}
	f := decodeBody[forum.Forum](t, rr)
	if f.Slug != "members-lounge" {
		t.Fatalf("slug = %q", f.Slug)
	}

	if rr := fx.do(t, member, http.MethodGet, "/forums/members-lounge", ""); rr.Code != http.StatusOK {
		t.Fatalf("allow-listed member = %d", rr.Code)
	}
	if rr := fx.do(t, other, http.MethodGet, "/forums/members-lounge", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unlisted member = %d", rr.Code)
	}

	idx := decodeBody[thread.Index](t, fx.do(t, member, http.MethodGet, "/forums", ""))
	if len(idx.Restricted) != 1 || idx.Restricted[0].Slug != "members-lounge" {
		t.Fatalf("restricted list = %#v", idx.Restricted)
	}

	if rr := fx.do(t, staff, http.MethodPost, "/forums", `{"title":"General again","slug":"general"}`); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("duplicate slug = %d", rr.Code)
	}
}

func TestPreview(t *testing.T) {
	fx := newFixture(t)
	rr := fx.do(t, member, http.MethodPost, "/forums/general/preview", `{"title":"Draft","body":""}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("preview = %d", rr.Code)
	}
	pv := decodeBody[thread.Preview](t, rr)
	if pv.Thread.Slug != "draft" || len(pv.Errors) != 1 {
		t.Fatalf("preview = %#v", pv)
	}
	if ok, _ := fx.mem.SlugExists(context.Background(), "draft"); ok {
		t.Fatalf("preview stored a thread")
	}
}
