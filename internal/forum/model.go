// internal/forum/model.go
//
// Forum domain model.
//
// Context
// -------
// These structs mirror the persisted forum tables and double as the JSON
// shapes returned by the API.  Counters (`Posts`, `LatestPostID`,
// `ThreadsTotal`, `PostsTotal`) are stored columns, never computed views, so
// list pages stay cheap.
//
// Schema reference
//
//	CREATE TABLE category (
//	    id             BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
//	    site_id        BIGINT UNSIGNED NOT NULL,
//	    title          VARCHAR(250) NOT NULL,
//	    slug           VARCHAR(100) NOT NULL,
//	    description    TEXT NOT NULL,
//	    only_upgraders TINYINT(1) NOT NULL DEFAULT 0
//	);
//
//	CREATE TABLE forum (
//	    id               BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
//	    site_id          BIGINT UNSIGNED NOT NULL,
//	    title            VARCHAR(100) NOT NULL,
//	    slug             VARCHAR(100) NOT NULL,
//	    description      TEXT NOT NULL,
//	    parent_id        BIGINT UNSIGNED NULL,
//	    ordering         INT NULL,
//	    category_id      BIGINT UNSIGNED NULL,
//	    only_staff_posts TINYINT(1) NOT NULL DEFAULT 0,
//	    only_staff_reads TINYINT(1) NOT NULL DEFAULT 0,
//	    only_upgraders   TINYINT(1) NOT NULL DEFAULT 0,
//	    restricted       TINYINT(1) NOT NULL DEFAULT 0,
//	    threads_total    BIGINT NOT NULL DEFAULT 0,
//	    posts_total      BIGINT NOT NULL DEFAULT 0,
//	    UNIQUE KEY forum_site_slug (site_id, slug)
//	);
//
//	CREATE TABLE forum_allowed_user (forum_id BIGINT UNSIGNED, user_id BIGINT UNSIGNED,
//	    PRIMARY KEY (forum_id, user_id));
//
//	CREATE TABLE thread (
//	    id             BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
//	    forum_id       BIGINT UNSIGNED NOT NULL,
//	    title          VARCHAR(100) NOT NULL,
//	    slug           VARCHAR(105) NOT NULL UNIQUE,
//	    sticky         TINYINT(1) NOT NULL DEFAULT 0,
//	    closed         TINYINT(1) NOT NULL DEFAULT 0,
//	    featured       TINYINT(1) NOT NULL DEFAULT 0,
//	    posts          BIGINT NOT NULL DEFAULT 0,
//	    views          BIGINT NOT NULL DEFAULT 0,
//	    root_post_id   BIGINT UNSIGNED NULL,
//	    latest_post_id BIGINT UNSIGNED NULL,
//	    latest_post_at TIMESTAMP(6) NULL,
//	    created_at     TIMESTAMP(6) NOT NULL
//	);
//
//	CREATE TABLE thread_banned_user (thread_id BIGINT UNSIGNED, user_id BIGINT UNSIGNED,
//	    PRIMARY KEY (thread_id, user_id));
//
//	CREATE TABLE post (
//	    id           BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
//	    thread_id    BIGINT UNSIGNED NOT NULL,
//	    author_id    BIGINT UNSIGNED NOT NULL,
//	    author_name  VARCHAR(150) NOT NULL,
//	    body         TEXT NOT NULL,
//	    submitted_at TIMESTAMP(6) NOT NULL,
//	    KEY post_thread (thread_id, submitted_at),
//	    KEY post_author (author_id, submitted_at)
//	);
//
// Notes
// -----
//   - Nullable columns are pointers; callers must nil-check before use.
//   - Membership sets (`AllowedUsers`, `Banned`) are loaded by the store and
//     never scanned directly.
//   - Oxford commas, two spaces after periods.
package forum

import (
	"sort"
	"time"
)

// Limits shared by validation and slug allocation.
const (
	TitleMaxLength = 100
	SlugMaxLength  = 105
)

// Category groups forums on the index page.
type Category struct {
	ID            int64  `db:"id"             json:"id"`
	SiteID        int64  `db:"site_id"        json:"-"`
	Title         string `db:"title"          json:"title"`
	Slug          string `db:"slug"           json:"slug"`
	Description   string `db:"description"    json:"description"`
	OnlyUpgraders bool   `db:"only_upgraders" json:"only_upgraders"`
}

// Forum mirrors one row in the `forum` table plus its allow-list.
type Forum struct {
	ID             int64  `db:"id"               json:"id"`
	SiteID         int64  `db:"site_id"          json:"-"`
	Title          string `db:"title"            json:"title"          validate:"required,max=100"`
	Slug           string `db:"slug"             json:"slug"           validate:"required,max=100"`
	Description    string `db:"description"      json:"description"`
	ParentID       *int64 `db:"parent_id"        json:"parent_id,omitempty"`
	Ordering       *int   `db:"ordering"         json:"ordering,omitempty"`
	CategoryID     *int64 `db:"category_id"      json:"category_id,omitempty"`
	OnlyStaffPosts bool   `db:"only_staff_posts" json:"only_staff_posts"`
	OnlyStaffReads bool   `db:"only_staff_reads" json:"only_staff_reads"`
	OnlyUpgraders  bool   `db:"only_upgraders"   json:"only_upgraders"`
	Restricted     bool   `db:"restricted"       json:"restricted"`
	ThreadsTotal   int64  `db:"threads_total"    json:"-"`
	PostsTotal     int64  `db:"posts_total"      json:"-"`

	AllowedUsers map[int64]struct{} `db:"-" json:"-"`
}

// Allows reports whether userID is on the forum allow-list.
func (f *Forum) Allows(userID int64) bool {
	_, ok := f.AllowedUsers[userID]
	return ok
}

// AllowedIDs returns the allow-list sorted ascending.
func (f *Forum) AllowedIDs() []int64 { return sortedIDs(f.AllowedUsers) }

// Thread mirrors one row in the `thread` table plus its ban list.
type Thread struct {
	ID           int64      `db:"id"             json:"id"`
	ForumID      int64      `db:"forum_id"       json:"forum_id"`
	Title        string     `db:"title"          json:"title"`
	Slug         string     `db:"slug"           json:"slug"`
	Sticky       bool       `db:"sticky"         json:"sticky"`
	Closed       bool       `db:"closed"         json:"closed"`
	Featured     bool       `db:"featured"       json:"featured"`
	Posts        int64      `db:"posts"          json:"posts"`
	Views        int64      `db:"views"          json:"views"`
	RootPostID   *int64     `db:"root_post_id"   json:"root_post_id,omitempty"`
	LatestPostID *int64     `db:"latest_post_id" json:"latest_post_id,omitempty"`
	LatestPostAt *time.Time `db:"latest_post_at" json:"latest_post_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at"     json:"created_at"`

	Banned map[int64]struct{} `db:"-" json:"-"`
}

// IsBanned reports whether userID may not read or reply to this thread.
func (t *Thread) IsBanned(userID int64) bool {
	_, ok := t.Banned[userID]
	return ok
}

// URL is the canonical API path of the thread.
func (t *Thread) URL() string { return ThreadURL(t.Slug) }

// Post is a single authored message.  The forum core only creates, counts,
// and orders posts; everything else about them belongs to the post store.
type Post struct {
	ID          int64     `db:"id"           json:"id"`
	ThreadID    int64     `db:"thread_id"    json:"thread_id"`
	AuthorID    int64     `db:"author_id"    json:"author_id"`
	AuthorName  string    `db:"author_name"  json:"author_name"`
	Body        string    `db:"body"         json:"body"`
	SubmittedAt time.Time `db:"submitted_at" json:"submitted_at"`
}

// ThreadURL builds the API path for a thread slug.
func ThreadURL(slug string) string { return "/threads/" + slug }

// ForumURL builds the API path for a forum slug.
func ForumURL(slug string) string { return "/forums/" + slug }

func sortedIDs(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IDSet builds a membership set from ids.
func IDSet(ids ...int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
