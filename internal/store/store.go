// internal/store/store.go
//
// Persistence contracts for forums, threads, and posts.
//
// Context
// -------
// The thread service depends on Store only.  Two implementations exist:
//
//   - SQL     ─ sqlx over MySQL or Postgres (production).
//   - Memory  ─ maps behind a mutex (tests, local runs without a database).
//
// Both return forum.ErrNotFound for missing rows and forum.ErrStorageConflict
// when a unique constraint (thread slug, forum slug per site) is violated.
// Site scoping is explicit: lookups that start from a slug take the site id
// and join through forum.site_id.
//
// Notes
// -----
//   - Counter columns change only through AttachPost (delta) and
//     SaveForumTotals (recount); callers never write them directly.
//   - InTx runs fn against a transactional Store.  Nested InTx calls reuse
//     the outer transaction.
package store

import (
	"context"
	"time"

	"github.com/yanizio/adept-forum/internal/forum"
)

// Forums persists forums, their allow-lists, and categories.
type Forums interface {
	ForumByID(ctx context.Context, siteID, id int64) (*forum.Forum, error)
	ForumBySlug(ctx context.Context, siteID int64, slug string) (*forum.Forum, error)
	ForumsBySite(ctx context.Context, siteID int64) ([]forum.Forum, error)
	CategoriesBySite(ctx context.Context, siteID int64) ([]forum.Category, error)
	// SaveForum inserts (ID == 0) or updates f and replaces its allow-list.
	SaveForum(ctx context.Context, f *forum.Forum) error
	SaveForumTotals(ctx context.Context, forumID, threads, posts int64) error
}

// Threads persists threads and their ban lists.
type Threads interface {
	// InsertThread assigns t.ID.  A taken slug yields ErrStorageConflict.
	InsertThread(ctx context.Context, t *forum.Thread) error
	ThreadByID(ctx context.Context, id int64) (*forum.Thread, error)
	ThreadBySlug(ctx context.Context, siteID int64, slug string) (*forum.Thread, error)
	// ThreadsByIDs returns the threads in ids order, skipping missing ones.
	ThreadsByIDs(ctx context.Context, ids []int64) ([]forum.Thread, error)
	// ThreadsByForum lists threads newest activity first.
	ThreadsByForum(ctx context.Context, forumID int64, sticky bool, limit, offset int) ([]forum.Thread, error)
	// ThreadByAuthorTitle finds the first thread in siteID whose root post
	// belongs to authorID and whose title equals title exactly.
	ThreadByAuthorTitle(ctx context.Context, siteID, authorID int64, title string) (*forum.Thread, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	// SetTitle, SetFlags, and SetForum each write only their own columns,
	// so concurrent edits, moderation, and moves never undo each other.
	SetTitle(ctx context.Context, threadID int64, title string) error
	SetFlags(ctx context.Context, threadID int64, fl ThreadFlags) error
	SetForum(ctx context.Context, threadID, forumID int64) error
	SetRootPost(ctx context.Context, threadID, postID int64) error
	// AttachPost adds one to posts and moves latest_post to postID unless
	// the current latest post is newer than at.
	AttachPost(ctx context.Context, threadID, postID int64, at time.Time) error
	IncrementViews(ctx context.Context, threadID int64) error
	DeleteThread(ctx context.Context, threadID int64) error
	BanUser(ctx context.Context, threadID, userID int64) error
	CountThreads(ctx context.Context, forumID int64) (int64, error)
	// SumPosts totals the posts column over forumID's threads.
	SumPosts(ctx context.Context, forumID int64) (int64, error)
}

// ThreadFlags is a partial flag update; nil fields are left alone.
type ThreadFlags struct {
	Sticky   *bool
	Closed   *bool
	Featured *bool
}

// Empty reports whether fl changes nothing.
func (fl ThreadFlags) Empty() bool {
	return fl.Sticky == nil && fl.Closed == nil && fl.Featured == nil
}

// Posts is the post store the forum core depends on.
type Posts interface {
	// CreatePost assigns p.ID.
	CreatePost(ctx context.Context, p *forum.Post) error
	PostByID(ctx context.Context, id int64) (*forum.Post, error)
	// PostsByThread lists posts oldest first.
	PostsByThread(ctx context.Context, threadID int64, limit, offset int) ([]forum.Post, error)
	CountPosts(ctx context.Context, threadID int64) (int64, error)
	// LatestRootPostByAuthor returns authorID's most recent thread-opening
	// post in siteID.
	LatestRootPostByAuthor(ctx context.Context, siteID, authorID int64) (*forum.Post, error)
	UpdatePostBody(ctx context.Context, postID int64, body string) error
	DeletePostsByThread(ctx context.Context, threadID int64) (int64, error)
}

// Store is the full persistence surface.
type Store interface {
	Forums
	Threads
	Posts
	InTx(ctx context.Context, fn func(Store) error) error
}
