package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/adept-forum/internal/forum"
)

const threadColumns = `t.id, t.forum_id, t.title, t.slug, t.sticky, t.closed, t.featured,
       t.posts, t.views, t.root_post_id, t.latest_post_id, t.latest_post_at, t.created_at`

func (s *SQL) InsertThread(ctx context.Context, t *forum.Thread) error {
	id, err := s.insert(ctx,
		`INSERT INTO thread (forum_id, title, slug, sticky, closed, featured, posts, views, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, 0, ?)`,
		t.ForumID, t.Title, t.Slug, t.Sticky, t.Closed, t.Featured, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert thread %q: %w", t.Slug, err)
	}
	t.ID = id
	return nil
}

func (s *SQL) ThreadByID(ctx context.Context, id int64) (*forum.Thread, error) {
	var t forum.Thread
	if err := s.get(ctx, &t, `SELECT `+threadColumns+` FROM thread t WHERE t.id = ?`, id); err != nil {
		return nil, fmt.Errorf("thread %d: %w", id, err)
	}
	return s.withBans(ctx, &t)
}

func (s *SQL) ThreadBySlug(ctx context.Context, siteID int64, slug string) (*forum.Thread, error) {
	var t forum.Thread
	if err := s.get(ctx, &t,
		`SELECT `+threadColumns+`
		   FROM thread t
		   JOIN forum f ON f.id = t.forum_id
		  WHERE f.site_id = ? AND t.slug = ?`, siteID, slug); err != nil {
		return nil, fmt.Errorf("thread %q: %w", slug, err)
	}
	return s.withBans(ctx, &t)
}

func (s *SQL) withBans(ctx context.Context, t *forum.Thread) (*forum.Thread, error) {
	var ids []int64
	if err := s.selectAll(ctx, &ids,
		`SELECT user_id FROM thread_banned_user WHERE thread_id = ?`, t.ID); err != nil {
		return nil, fmt.Errorf("thread %d bans: %w", t.ID, err)
	}
	t.Banned = forum.IDSet(ids...)
	return t, nil
}

// ThreadsByIDs does not load ban lists; callers use it for list pages.
func (s *SQL) ThreadsByIDs(ctx context.Context, ids []int64) ([]forum.Thread, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+threadColumns+` FROM thread t WHERE t.id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var rows []forum.Thread
	if err := s.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("threads by ids: %w", err)
	}

	byID := make(map[int64]forum.Thread, len(rows))
	for _, t := range rows {
		byID[t.ID] = t
	}
	out := make([]forum.Thread, 0, len(ids))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *SQL) ThreadsByForum(ctx context.Context, forumID int64, sticky bool, limit, offset int) ([]forum.Thread, error) {
	var rows []forum.Thread
	if err := s.selectAll(ctx, &rows,
		`SELECT `+threadColumns+`
		   FROM thread t
		  WHERE t.forum_id = ? AND t.sticky = ?
		  ORDER BY COALESCE(t.latest_post_at, t.created_at) DESC, t.id DESC
		  LIMIT ? OFFSET ?`, forumID, sticky, limit, offset); err != nil {
		return nil, fmt.Errorf("threads of forum %d: %w", forumID, err)
	}
	return rows, nil
}

func (s *SQL) ThreadByAuthorTitle(ctx context.Context, siteID, authorID int64, title string) (*forum.Thread, error) {
	var t forum.Thread
	if err := s.get(ctx, &t,
		`SELECT `+threadColumns+`
		   FROM thread t
		   JOIN post p  ON p.id = t.root_post_id
		   JOIN forum f ON f.id = t.forum_id
		  WHERE f.site_id = ? AND p.author_id = ? AND t.title = ?
		  ORDER BY t.id
		  LIMIT 1`, siteID, authorID, title); err != nil {
		return nil, fmt.Errorf("thread by author %d: %w", authorID, err)
	}
	return &t, nil
}

func (s *SQL) SlugExists(ctx context.Context, slug string) (bool, error) {
	var n int
	if err := s.get(ctx, &n, `SELECT COUNT(*) FROM thread WHERE slug = ?`, slug); err != nil {
		return false, fmt.Errorf("slug exists %q: %w", slug, err)
	}
	return n > 0, nil
}

func (s *SQL) SetTitle(ctx context.Context, threadID int64, title string) error {
	if err := s.run(ctx, `UPDATE thread SET title = ? WHERE id = ?`, title, threadID); err != nil {
		return fmt.Errorf("thread %d title: %w", threadID, err)
	}
	return nil
}

// SetFlags updates only the flags fl names.
func (s *SQL) SetFlags(ctx context.Context, threadID int64, fl ThreadFlags) error {
	if fl.Empty() {
		return nil
	}
	var (
		sets []string
		args []any
	)
	for _, c := range []struct {
		col string
		val *bool
	}{{"sticky", fl.Sticky}, {"closed", fl.Closed}, {"featured", fl.Featured}} {
		if c.val != nil {
			sets = append(sets, c.col+" = ?")
			args = append(args, *c.val)
		}
	}
	args = append(args, threadID)
	if err := s.run(ctx, `UPDATE thread SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
		return fmt.Errorf("thread %d flags: %w", threadID, err)
	}
	return nil
}

func (s *SQL) SetForum(ctx context.Context, threadID, forumID int64) error {
	if err := s.run(ctx, `UPDATE thread SET forum_id = ? WHERE id = ?`, forumID, threadID); err != nil {
		return fmt.Errorf("thread %d forum: %w", threadID, err)
	}
	return nil
}

func (s *SQL) SetRootPost(ctx context.Context, threadID, postID int64) error {
	if err := s.exec(ctx, `UPDATE thread SET root_post_id = ? WHERE id = ?`, postID, threadID); err != nil {
		return fmt.Errorf("thread %d root post: %w", threadID, err)
	}
	return nil
}

// AttachPost is a single statement so concurrent replies never lose an
// increment.  latest_post_at is compared before it is reassigned; MySQL
// evaluates SET clauses left to right, so latest_post_id comes first.
func (s *SQL) AttachPost(ctx context.Context, threadID, postID int64, at time.Time) error {
	if err := s.exec(ctx,
		`UPDATE thread
		    SET posts = posts + 1,
		        latest_post_id = CASE WHEN latest_post_at IS NULL OR latest_post_at <= ? THEN ? ELSE latest_post_id END,
		        latest_post_at = CASE WHEN latest_post_at IS NULL OR latest_post_at <= ? THEN ? ELSE latest_post_at END
		  WHERE id = ?`,
		at, postID, at, at, threadID); err != nil {
		return fmt.Errorf("attach post %d to thread %d: %w", postID, threadID, err)
	}
	return nil
}

func (s *SQL) IncrementViews(ctx context.Context, threadID int64) error {
	return s.exec(ctx, `UPDATE thread SET views = views + 1 WHERE id = ?`, threadID)
}

func (s *SQL) DeleteThread(ctx context.Context, threadID int64) error {
	if err := s.run(ctx, `DELETE FROM thread_banned_user WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("delete thread %d bans: %w", threadID, err)
	}
	if err := s.exec(ctx, `DELETE FROM thread WHERE id = ?`, threadID); err != nil {
		return fmt.Errorf("delete thread %d: %w", threadID, err)
	}
	return nil
}

// BanUser is idempotent: banning twice is not a conflict.
func (s *SQL) BanUser(ctx context.Context, threadID, userID int64) error {
	var n int
	if err := s.get(ctx, &n,
		`SELECT COUNT(*) FROM thread_banned_user WHERE thread_id = ? AND user_id = ?`, threadID, userID); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return s.run(ctx, `INSERT INTO thread_banned_user (thread_id, user_id) VALUES (?, ?)`, threadID, userID)
}

func (s *SQL) CountThreads(ctx context.Context, forumID int64) (int64, error) {
	var n int64
	if err := s.get(ctx, &n, `SELECT COUNT(*) FROM thread WHERE forum_id = ?`, forumID); err != nil {
		return 0, fmt.Errorf("count threads of forum %d: %w", forumID, err)
	}
	return n, nil
}

func (s *SQL) SumPosts(ctx context.Context, forumID int64) (int64, error) {
	var n int64
	if err := s.get(ctx, &n, `SELECT COALESCE(SUM(posts), 0) FROM thread WHERE forum_id = ?`, forumID); err != nil {
		return 0, fmt.Errorf("sum posts of forum %d: %w", forumID, err)
	}
	return n, nil
}
