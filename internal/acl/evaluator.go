// internal/acl/evaluator.go
//
// Forum access decisions.
//
// Context
// -------
// Every read or write path asks one of these predicates before touching the
// store.  They are pure: no I/O, no errors.  Callers translate `false` into
// forum.ErrNotFound (read gates) or forum.ErrForbidden (write gates).
//
// Rules
// -----
//  1. Read: only_staff_reads requires staff.  Restricted forums require an
//     authenticated principal on the allow-list.  Anything else is public.
//  2. Post: requires read access first.  only_staff_posts requires staff.
//     only_upgraders requires staff or an upgraded profile.  Unrestricted
//     forums accept anonymous posts.
//  3. Thread overrides: banned principals can neither read nor reply.
//     Closed threads take no replies.  Edits belong to staff or to the
//     authenticated root-post author while the thread is open.
package acl

import (
	"github.com/yanizio/adept-forum/internal/auth"
	"github.com/yanizio/adept-forum/internal/forum"
)

// CanRead reports whether p may see forum f and its threads.
func CanRead(p auth.Principal, f *forum.Forum) bool {
	if f.OnlyStaffReads && !p.IsStaff() {
		return false
	}
	if f.Restricted {
		return p.Authenticated && f.Allows(p.ID)
	}
	return true
}

// CanPost reports whether p may open threads in forum f.
func CanPost(p auth.Principal, f *forum.Forum) bool {
	if !CanRead(p, f) {
		return false
	}
	switch {
	case f.OnlyStaffPosts:
		return p.IsStaff()
	case f.OnlyUpgraders:
		return p.IsStaff() || p.IsUpgraded()
	default:
		return true
	}
}

// CanReadThread layers the thread ban list over CanRead.
func CanReadThread(p auth.Principal, f *forum.Forum, t *forum.Thread) bool {
	if !CanRead(p, f) {
		return false
	}
	return !(p.Authenticated && t.IsBanned(p.ID))
}

// CanReply reports whether p may add a post to thread t.  The ban check is
// independent of the forum-level posting decision.
func CanReply(p auth.Principal, f *forum.Forum, t *forum.Thread) bool {
	if p.Authenticated && t.IsBanned(p.ID) {
		return false
	}
	if t.Closed {
		return false
	}
	return CanPost(p, f)
}

// CanEdit reports whether p may change the title or root body of t.
func CanEdit(p auth.Principal, t *forum.Thread, rootAuthorID int64) bool {
	if p.IsStaff() {
		return true
	}
	if !p.Authenticated || t.Closed {
		return false
	}
	return p.ID == rootAuthorID
}

// CanModerate reports whether p may close, pin, move, delete, or ban.
func CanModerate(p auth.Principal) bool { return p.IsStaff() }
