package thread

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yanizio/adept-forum/internal/acl"
	"github.com/yanizio/adept-forum/internal/auth"
	"github.com/yanizio/adept-forum/internal/event"
	"github.com/yanizio/adept-forum/internal/forum"
	"github.com/yanizio/adept-forum/internal/hierarchy"
	"github.com/yanizio/adept-forum/internal/store"
)

// Submission is the user input for a new or edited thread.
type Submission struct {
	Title string `json:"title" validate:"required,max=100"`
	Body  string `json:"body"  validate:"required"`
}

func (sub Submission) normalized() Submission {
	return Submission{Title: strings.TrimSpace(sub.Title), Body: strings.TrimSpace(sub.Body)}
}

// Validate trims sub and returns a *ValidationError for bad fields.
func (sub Submission) Validate() (Submission, error) {
	sub = sub.normalized()
	return sub, check(sub)
}

// Create opens a thread in forumSlug with sub as its root post.
//
// Order: validation, read access (ErrNotFound), post access (ErrForbidden),
// flood and duplicate guard, slug allocation, and one transaction for the
// thread, its root post, and the counter delta.  A slug race lost at insert
// time is retried once with a fresh allocation.
func (s *Service) Create(ctx context.Context, siteID int64, p auth.Principal, forumSlug string, sub Submission) (*forum.Thread, error) {
	sub, err := sub.Validate()
	if err != nil {
		return nil, err
	}

	f, err := s.readableForum(ctx, siteID, p, forumSlug)
	if err != nil {
		return nil, err
	}
	if !acl.CanPost(p, f) {
		return nil, fmt.Errorf("post in forum %q: %w", forumSlug, forum.ErrForbidden)
	}
	if err := s.guard.Check(ctx, siteID, p, sub.Title); err != nil {
		return nil, err
	}

	var t *forum.Thread
	for attempt := 0; ; attempt++ {
		slugStr, err := s.slugs.Allocate(ctx, sub.Title, s.store.SlugExists)
		if err != nil {
			return nil, err
		}
		t, err = s.insert(ctx, f, p, sub, slugStr)
		if err == nil {
			break
		}
		if !errors.Is(err, forum.ErrStorageConflict) || attempt > 0 {
			return nil, err
		}
		s.log.Infow("thread slug taken at insert, reallocating", "slug", slugStr, "forum", f.Slug)
	}

	s.counters.Touch(ctx, f, t)
	s.counters.ThreadCreated(ctx, f, t)
	s.events.Emit(ctx, event.NewAt(event.KindThreadCreated, siteID, s.now(), event.ThreadCreated{
		Thread: *t,
		Author: actor(p),
	}))
	s.log.Infow("thread created", "site", siteID, "forum", f.Slug, "thread", t.Slug, "author", authorID(p))
	return t, nil
}

func (s *Service) insert(ctx context.Context, f *forum.Forum, p auth.Principal, sub Submission, slugStr string) (*forum.Thread, error) {
	now := s.now()
	t := &forum.Thread{ForumID: f.ID, Title: sub.Title, Slug: slugStr, CreatedAt: now}

	err := s.store.InTx(ctx, func(tx store.Store) error {
		if err := tx.InsertThread(ctx, t); err != nil {
			return err
		}
		root := &forum.Post{
			ThreadID:    t.ID,
			AuthorID:    authorID(p),
			AuthorName:  p.DisplayName(),
			Body:        sub.Body,
			SubmittedAt: now,
		}
		if err := tx.CreatePost(ctx, root); err != nil {
			return err
		}
		if err := tx.SetRootPost(ctx, t.ID, root.ID); err != nil {
			return err
		}
		t.RootPostID = &root.ID
		return s.counters.AttachPost(ctx, tx, t, root)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Preview is the display shape of a thread that has not been stored.
type Preview struct {
	Thread      forum.Thread      `json:"thread"`
	Forum       forum.Forum       `json:"forum"`
	Body        string            `json:"body"`
	AuthorName  string            `json:"author_name"`
	Breadcrumbs []hierarchy.Crumb `json:"breadcrumbs"`
	Errors      []FieldError      `json:"errors,omitempty"`
}

// Preview projects sub as if it were created, without any writes.  Field
// problems are reported in Preview.Errors instead of failing.  The slug is
// the attempt-0 candidate and may differ from the one Create assigns.
func (s *Service) Preview(ctx context.Context, siteID int64, p auth.Principal, forumSlug string, sub Submission) (*Preview, error) {
	f, err := s.readableForum(ctx, siteID, p, forumSlug)
	if err != nil {
		return nil, err
	}
	if !acl.CanPost(p, f) {
		return nil, fmt.Errorf("post in forum %q: %w", forumSlug, forum.ErrForbidden)
	}

	sub, verr := sub.Validate()
	fields := FieldsOf(verr)
	if verr != nil && fields == nil {
		return nil, verr
	}

	tree, err := s.tree(ctx, siteID)
	if err != nil {
		return nil, err
	}
	crumbs, err := tree.Breadcrumbs(f.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	return &Preview{
		Thread: forum.Thread{
			ForumID:      f.ID,
			Title:        sub.Title,
			Slug:         s.slugs.Base(sub.Title),
			Posts:        1,
			LatestPostAt: &now,
			CreatedAt:    now,
		},
		Forum:       *f,
		Body:        sub.Body,
		AuthorName:  p.DisplayName(),
		Breadcrumbs: crumbs,
		Errors:      fields,
	}, nil
}
