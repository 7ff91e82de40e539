// internal/auth/context.go
//
// Principal abstraction and request-context helpers.
//
// Usage
// -----
//
//	// Attach the principal resolved upstream.
//	ctx = auth.WithPrincipal(ctx, p)
//
//	// Downstream code retrieves it.  Missing values yield Anonymous().
//	p := auth.PrincipalFrom(ctx)
//
// Notes
// -----
//   - Authentication is not performed here.  The principal arrives already
//     authenticated, either from trusted gateway headers (middleware.go) or
//     from callers constructing it directly.
//   - Oxford commas, two spaces after periods.
package auth

import "context"

// Profile carries optional membership attributes.  A nil *Profile is the
// normal state for most users and means "not upgraded".
type Profile struct {
	Upgraded bool `json:"upgraded"`
}

// Principal is the acting user of a request.
type Principal struct {
	ID            int64    `json:"id"`
	Username      string   `json:"username"`
	Authenticated bool     `json:"authenticated"`
	Staff         bool     `json:"staff"`
	Superuser     bool     `json:"superuser"`
	Profile       *Profile `json:"profile,omitempty"`
}

// Anonymous returns the unauthenticated principal.  ID 0 is shared by all
// anonymous callers.
func Anonymous() Principal { return Principal{} }

// IsStaff reports staff or superuser status for authenticated principals.
func (p Principal) IsStaff() bool {
	return p.Authenticated && (p.Staff || p.Superuser)
}

// IsUpgraded reports the profile flag.  Absent profiles are never an error.
func (p Principal) IsUpgraded() bool {
	return p.Authenticated && p.Profile != nil && p.Profile.Upgraded
}

// DisplayName is what gets stored as a post author name.
func (p Principal) DisplayName() string {
	if !p.Authenticated || p.Username == "" {
		return "anonymous"
	}
	return p.Username
}

// principalKey is unexported to avoid context-key collisions.
type principalKey struct{}

// WithPrincipal returns a new context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom extracts the principal from ctx, or Anonymous() if none.
func PrincipalFrom(ctx context.Context) Principal {
	if p, ok := ctx.Value(principalKey{}).(Principal); ok {
		return p
	}
	return Anonymous()
}

// UserID returns the authenticated user id stored in ctx.  It returns
// (0, false) for anonymous requests.
func UserID(ctx context.Context) (int64, bool) {
	p := PrincipalFrom(ctx)
	return p.ID, p.Authenticated
}
