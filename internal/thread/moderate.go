package thread

import (
	"context"
	"fmt"
	"strings"

	"github.com/yanizio/adept-forum/internal/acl"
	"github.com/yanizio/adept-forum/internal/auth"
	"github.com/yanizio/adept-forum/internal/event"
	"github.com/yanizio/adept-forum/internal/forum"
	"github.com/yanizio/adept-forum/internal/store"
)

// Reply appends a post to threadSlug.
func (s *Service) Reply(ctx context.Context, siteID int64, p auth.Principal, threadSlug, body string) (*forum.Post, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, &ValidationError{Fields: []FieldError{{Name: "body", Message: "This field is required."}}}
	}

	f, t, err := s.readableThread(ctx, siteID, p, threadSlug)
	if err != nil {
		return nil, err
	}
	if !acl.CanReply(p, f, t) {
		return nil, fmt.Errorf("reply to %q: %w", threadSlug, forum.ErrForbidden)
	}

	post := &forum.Post{
		ThreadID:    t.ID,
		AuthorID:    authorID(p),
		AuthorName:  p.DisplayName(),
		Body:        body,
		SubmittedAt: s.now(),
	}
	err = s.store.InTx(ctx, func(tx store.Store) error {
		if err := tx.CreatePost(ctx, post); err != nil {
			return err
		}
		return s.counters.AttachPost(ctx, tx, t, post)
	})
	if err != nil {
		return nil, err
	}
	s.counters.Touch(ctx, f, t)
	return post, nil
}

// Edit rewrites the title and root body.  Flood and duplicate guards do not
// run, and the slug is kept.
func (s *Service) Edit(ctx context.Context, siteID int64, p auth.Principal, threadSlug string, sub Submission) (*forum.Thread, error) {
	sub, err := sub.Validate()
	if err != nil {
		return nil, err
	}
	_, t, err := s.readableThread(ctx, siteID, p, threadSlug)
	if err != nil {
		return nil, err
	}
	root, rootAuthor, err := s.rootAuthor(ctx, t)
	if err != nil {
		return nil, err
	}
	if !acl.CanEdit(p, t, rootAuthor) {
		return nil, fmt.Errorf("edit %q: %w", threadSlug, forum.ErrForbidden)
	}

	err = s.store.InTx(ctx, func(tx store.Store) error {
		if err := tx.SetTitle(ctx, t.ID, sub.Title); err != nil {
			return err
		}
		if root == nil {
			return nil
		}
		return tx.UpdatePostBody(ctx, root.ID, sub.Body)
	})
	if err != nil {
		return nil, err
	}
	return s.store.ThreadByID(ctx, t.ID)
}

// Flags is a partial update of thread flags; nil fields are left alone.
type Flags struct {
	Sticky   *bool `json:"sticky,omitempty"`
	Closed   *bool `json:"closed,omitempty"`
	Featured *bool `json:"featured,omitempty"`
}

// Moderate applies flags to threadSlug.  Staff only.
func (s *Service) Moderate(ctx context.Context, siteID int64, p auth.Principal, threadSlug string, fl Flags) (*forum.Thread, error) {
	_, t, err := s.moderated(ctx, siteID, p, threadSlug)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetFlags(ctx, t.ID, store.ThreadFlags(fl)); err != nil {
		return nil, err
	}
	if t, err = s.store.ThreadByID(ctx, t.ID); err != nil {
		return nil, err
	}
	s.log.Infow("thread moderated", "site", siteID, "thread", t.Slug,
		"sticky", t.Sticky, "closed", t.Closed, "featured", t.Featured, "actor", p.ID)
	return t, nil
}

// Move reassigns threadSlug to forumSlug.  Staff only; the target must be
// readable by the mover.
func (s *Service) Move(ctx context.Context, siteID int64, p auth.Principal, threadSlug, forumSlug string) (*forum.Thread, error) {
	from, t, err := s.moderated(ctx, siteID, p, threadSlug)
	if err != nil {
		return nil, err
	}
	to, err := s.readableForum(ctx, siteID, p, forumSlug)
	if err != nil {
		return nil, err
	}
	if to.ID == from.ID {
		return t, nil
	}

	if err := s.store.SetForum(ctx, t.ID, to.ID); err != nil {
		return nil, err
	}
	if t, err = s.store.ThreadByID(ctx, t.ID); err != nil {
		return nil, err
	}
	s.counters.ThreadMoved(ctx, from, to, t)
	s.events.Emit(ctx, event.NewAt(event.KindThreadMoved, siteID, s.now(), event.ThreadMoved{
		Thread:   *t,
		OldForum: from.ID,
		NewForum: to.ID,
		Actor:    actor(p),
	}))
	s.log.Infow("thread moved", "site", siteID, "thread", t.Slug, "from", from.Slug, "to", to.Slug, "actor", p.ID)
	return t, nil
}

// Delete removes threadSlug and its posts, then recounts the forum.  Staff
// only.
func (s *Service) Delete(ctx context.Context, siteID int64, p auth.Principal, threadSlug string) error {
	f, t, err := s.moderated(ctx, siteID, p, threadSlug)
	if err != nil {
		return err
	}
	err = s.store.InTx(ctx, func(tx store.Store) error {
		if _, err := tx.DeletePostsByThread(ctx, t.ID); err != nil {
			return err
		}
		return tx.DeleteThread(ctx, t.ID)
	})
	if err != nil {
		return err
	}
	if err := s.counters.ThreadDeleted(ctx, f, t); err != nil {
		// The thread is already gone; only the persisted totals are stale.
		s.log.Errorw("forum recount failed", "forum", f.ID, "err", err)
	}
	s.log.Infow("thread deleted", "site", siteID, "thread", t.Slug, "actor", p.ID)
	return nil
}

// Ban bars userID from reading and replying to threadSlug.  Staff only.
func (s *Service) Ban(ctx context.Context, siteID int64, p auth.Principal, threadSlug string, userID int64) error {
	_, t, err := s.moderated(ctx, siteID, p, threadSlug)
	if err != nil {
		return err
	}
	if userID <= 0 {
		return &ValidationError{Fields: []FieldError{{Name: "user_id", Message: "Enter a valid value."}}}
	}
	if err := s.store.BanUser(ctx, t.ID, userID); err != nil {
		return err
	}
	s.log.Infow("user banned from thread", "site", siteID, "thread", t.Slug, "user", userID, "actor", p.ID)
	return nil
}
