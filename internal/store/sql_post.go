package store

import (
	"context"
	"fmt"

	"github.com/yanizio/adept-forum/internal/forum"
)

const postColumns = `p.id, p.thread_id, p.author_id, p.author_name, p.body, p.submitted_at`

func (s *SQL) CreatePost(ctx context.Context, p *forum.Post) error {
	id, err := s.insert(ctx,
		`INSERT INTO post (thread_id, author_id, author_name, body, submitted_at) VALUES (?, ?, ?, ?, ?)`,
		p.ThreadID, p.AuthorID, p.AuthorName, p.Body, p.SubmittedAt)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	p.ID = id
	return nil
}

func (s *SQL) PostByID(ctx context.Context, id int64) (*forum.Post, error) {
	var p forum.Post
	if err := s.get(ctx, &p, `SELECT `+postColumns+` FROM post p WHERE p.id = ?`, id); err != nil {
		return nil, fmt.Errorf("post %d: %w", id, err)
	}
	return &p, nil
}

func (s *SQL) PostsByThread(ctx context.Context, threadID int64, limit, offset int) ([]forum.Post, error) {
	var ps []forum.Post
	if err := s.selectAll(ctx, &ps,
		`SELECT `+postColumns+` FROM post p
		  WHERE p.thread_id = ?
		  ORDER BY p.submitted_at, p.id
		  LIMIT ? OFFSET ?`, threadID, limit, offset); err != nil {
		return nil, fmt.Errorf("posts of thread %d: %w", threadID, err)
	}
	return ps, nil
}

func (s *SQL) CountPosts(ctx context.Context, threadID int64) (int64, error) {
	var n int64
	if err := s.get(ctx, &n, `SELECT COUNT(*) FROM post WHERE thread_id = ?`, threadID); err != nil {
		return 0, fmt.Errorf("count posts of thread %d: %w", threadID, err)
	}
	return n, nil
}

func (s *SQL) LatestRootPostByAuthor(ctx context.Context, siteID, authorID int64) (*forum.Post, error) {
	var p forum.Post
	if err := s.get(ctx, &p,
		`SELECT `+postColumns+`
		   FROM post p
		   JOIN thread t ON t.root_post_id = p.id
		   JOIN forum f  ON f.id = t.forum_id
		  WHERE f.site_id = ? AND p.author_id = ?
		  ORDER BY p.submitted_at DESC
		  LIMIT 1`, siteID, authorID); err != nil {
		return nil, fmt.Errorf("latest root post of %d: %w", authorID, err)
	}
	return &p, nil
}

func (s *SQL) UpdatePostBody(ctx context.Context, postID int64, body string) error {
	if err := s.run(ctx, `UPDATE post SET body = ? WHERE id = ?`, body, postID); err != nil {
		return fmt.Errorf("update post %d: %w", postID, err)
	}
	return nil
}

func (s *SQL) DeletePostsByThread(ctx context.Context, threadID int64) (int64, error) {
	res, err := s.ext.ExecContext(ctx, s.q(`DELETE FROM post WHERE thread_id = ?`), threadID)
	if err != nil {
		return 0, classify(err)
	}
	return res.RowsAffected()
}
