package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFromHeaders(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderUserID, "42")
	h.Set(HeaderUserName, "alice")
	h.Set(HeaderRoles, "Staff, upgraded")

	p := FromHeaders(h)
	if !p.Authenticated || p.ID != 42 || p.Username != "alice" {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if !p.IsStaff() || !p.IsUpgraded() || p.Superuser {
		t.Fatalf("roles not parsed: %+v", p)
	}
}

func TestFromHeaders_InvalidID(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderUserID, "nope")
	h.Set(HeaderRoles, "superuser")

	if p := FromHeaders(h); p.Authenticated || p.IsStaff() {
		t.Fatalf("expected anonymous, got %+v", p)
	}
}

func TestHeaders_UntrustedIgnoresRoles(t *testing.T) {
	var got Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = PrincipalFrom(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "7")
	req.Header.Set(HeaderRoles, "superuser")

	Headers(false)(next).ServeHTTP(httptest.NewRecorder(), req)
	if got.Authenticated {
		t.Fatalf("untrusted headers must be ignored, got %+v", got)
	}

	Headers(true)(next).ServeHTTP(httptest.NewRecorder(), req)
	if !got.Authenticated || got.ID != 7 || !got.IsStaff() {
		t.Fatalf("trusted headers not applied, got %+v", got)
	}
}

func TestPrincipalHelpers(t *testing.T) {
	anon := Anonymous()
	if anon.IsStaff() || anon.IsUpgraded() || anon.DisplayName() != "anonymous" {
		t.Fatalf("anonymous helpers wrong: %+v", anon)
	}

	// Staff flags without authentication never count.
	ghost := Principal{Staff: true, Profile: &Profile{Upgraded: true}}
	if ghost.IsStaff() || ghost.IsUpgraded() {
		t.Fatalf("unauthenticated principal must not be staff or upgraded")
	}

	if _, ok := UserID(WithPrincipal(t.Context(), anon)); ok {
		t.Fatalf("anonymous must not report a user id")
	}
}
