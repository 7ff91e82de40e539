package thread

import (
	"context"
	"errors"
	"fmt"

	"github.com/yanizio/adept-forum/internal/acl"
	"github.com/yanizio/adept-forum/internal/auth"
	"github.com/yanizio/adept-forum/internal/forum"
	"github.com/yanizio/adept-forum/internal/hierarchy"
	"github.com/yanizio/adept-forum/internal/slug"
)

// List sizes on the forum page.
const (
	stickyLimit = 50
	recentLimit = 10
)

// ThreadPage is one page of a thread.
type ThreadPage struct {
	Thread      forum.Thread      `json:"thread"`
	Forum       forum.Forum       `json:"forum"`
	Posts       []forum.Post      `json:"posts"`
	Page        int               `json:"page"`
	HasNext     bool              `json:"has_next"`
	CanReply    bool              `json:"can_reply"`
	CanEdit     bool              `json:"can_edit"`
	Breadcrumbs []hierarchy.Crumb `json:"breadcrumbs"`
}

// View returns page of threadSlug and counts one view.
func (s *Service) View(ctx context.Context, siteID int64, p auth.Principal, threadSlug string, page int) (*ThreadPage, error) {
	f, t, err := s.readableThread(ctx, siteID, p, threadSlug)
	if err != nil {
		return nil, err
	}
	if err := s.store.IncrementViews(ctx, t.ID); err != nil {
		return nil, err
	}
	t.Views++

	page, off := s.offset(page)
	posts, err := s.store.PostsByThread(ctx, t.ID, s.pageSize+1, off)
	if err != nil {
		return nil, err
	}
	hasNext := len(posts) > s.pageSize
	if hasNext {
		posts = posts[:s.pageSize]
	}

	_, rootAuthor, err := s.rootAuthor(ctx, t)
	if err != nil {
		return nil, err
	}
	crumbs, err := s.crumbs(ctx, siteID, f)
	if err != nil {
		return nil, err
	}

	return &ThreadPage{
		Thread:      *t,
		Forum:       *f,
		Posts:       posts,
		Page:        page,
		HasNext:     hasNext,
		CanReply:    acl.CanReply(p, f, t),
		CanEdit:     acl.CanEdit(p, t, rootAuthor),
		Breadcrumbs: crumbs,
	}, nil
}

func (s *Service) crumbs(ctx context.Context, siteID int64, f *forum.Forum) ([]hierarchy.Crumb, error) {
	tree, err := s.tree(ctx, siteID)
	if err != nil {
		return nil, err
	}
	return tree.Breadcrumbs(f.ID)
}

// ForumPage is one page of a forum's thread list.
type ForumPage struct {
	Forum        forum.Forum       `json:"forum"`
	Threads      []forum.Thread    `json:"threads"`
	Sticky       []forum.Thread    `json:"sticky"`
	Active       []forum.Thread    `json:"active"`
	Newest       []forum.Thread    `json:"newest"`
	ThreadsTotal int64             `json:"threads_total"`
	PostsTotal   int64             `json:"posts_total"`
	Page         int               `json:"page"`
	HasNext      bool              `json:"has_next"`
	CanPost      bool              `json:"can_post"`
	Breadcrumbs  []hierarchy.Crumb `json:"breadcrumbs"`
	Subforums    []forum.Forum     `json:"subforums"`
}

// Forum returns page of forumSlug.
func (s *Service) Forum(ctx context.Context, siteID int64, p auth.Principal, forumSlug string, page int) (*ForumPage, error) {
	f, err := s.readableForum(ctx, siteID, p, forumSlug)
	if err != nil {
		return nil, err
	}

	page, off := s.offset(page)
	threads, err := s.store.ThreadsByForum(ctx, f.ID, false, s.pageSize+1, off)
	if err != nil {
		return nil, err
	}
	hasNext := len(threads) > s.pageSize
	if hasNext {
		threads = threads[:s.pageSize]
	}
	sticky, err := s.store.ThreadsByForum(ctx, f.ID, true, stickyLimit, 0)
	if err != nil {
		return nil, err
	}

	active, err := s.store.ThreadsByIDs(ctx, s.counters.RecentThreads(ctx, f, recentLimit))
	if err != nil {
		return nil, err
	}
	newest, err := s.store.ThreadsByIDs(ctx, s.counters.NewestThreads(ctx, f, recentLimit))
	if err != nil {
		return nil, err
	}
	newest = withPosts(newest)

	threadsTotal, err := s.counters.ForumThreadsTotal(ctx, f)
	if err != nil {
		return nil, err
	}
	postsTotal, err := s.counters.ForumPostsTotal(ctx, f)
	if err != nil {
		return nil, err
	}

	tree, err := s.tree(ctx, siteID)
	if err != nil {
		return nil, err
	}
	crumbs, err := tree.Breadcrumbs(f.ID)
	if err != nil {
		return nil, err
	}
	below, err := tree.Descendants(f.ID)
	if err != nil {
		return nil, err
	}
	subs := make([]forum.Forum, 0, len(below))
	for i := range below {
		if acl.CanRead(p, &below[i]) {
			subs = append(subs, below[i])
		}
	}

	return &ForumPage{
		Forum:        *f,
		Threads:      threads,
		Sticky:       sticky,
		Active:       active,
		Newest:       newest,
		ThreadsTotal: threadsTotal,
		PostsTotal:   postsTotal,
		Page:         page,
		HasNext:      hasNext,
		CanPost:      acl.CanPost(p, f),
		Breadcrumbs:  crumbs,
		Subforums:    subs,
	}, nil
}

// withPosts drops threads whose root post never landed.
func withPosts(ts []forum.Thread) []forum.Thread {
	out := ts[:0]
	for _, t := range ts {
		if t.Posts > 0 {
			out = append(out, t)
		}
	}
	return out
}

// ForumSummary is one row of the forum index.
type ForumSummary struct {
	forum.Forum
	URL          string `json:"url"`
	ThreadsTotal int64  `json:"threads_total"`
	PostsTotal   int64  `json:"posts_total"`
}

// Index is the forum list for one principal.
type Index struct {
	Forums     []ForumSummary   `json:"forums"`
	Categories []forum.Category `json:"categories"`
	Restricted []ForumSummary   `json:"restricted"`
}

// Forums lists the site's visible top-level forums, the categories p may
// see, and the restricted forums p is allow-listed for.
func (s *Service) Forums(ctx context.Context, siteID int64, p auth.Principal) (*Index, error) {
	all, err := s.store.ForumsBySite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	tree := hierarchy.New(all)
	cats, err := s.store.CategoriesBySite(ctx, siteID)
	if err != nil {
		return nil, err
	}

	idx := &Index{}
	for _, c := range cats {
		if !c.OnlyUpgraders || p.IsUpgraded() || p.IsStaff() {
			idx.Categories = append(idx.Categories, c)
		}
	}

	for _, f := range tree.Roots() {
		if f.Restricted || !acl.CanRead(p, &f) {
			continue
		}
		sum, err := s.summary(ctx, f)
		if err != nil {
			return nil, err
		}
		idx.Forums = append(idx.Forums, sum)
	}

	if p.Authenticated {
		for _, f := range all {
			if !f.Restricted || !acl.CanRead(p, &f) {
				continue
			}
			sum, err := s.summary(ctx, f)
			if err != nil {
				return nil, err
			}
			idx.Restricted = append(idx.Restricted, sum)
		}
	}
	return idx, nil
}

func (s *Service) summary(ctx context.Context, f forum.Forum) (ForumSummary, error) {
	threads, err := s.counters.ForumThreadsTotal(ctx, &f)
	if err != nil {
		return ForumSummary{}, err
	}
	posts, err := s.counters.ForumPostsTotal(ctx, &f)
	if err != nil {
		return ForumSummary{}, err
	}
	return ForumSummary{Forum: f, URL: forum.ForumURL(f.Slug), ThreadsTotal: threads, PostsTotal: posts}, nil
}

// SaveForum creates or updates a forum.  Staff only.  The forum must not be
// placed below itself or below a forum with the same title, and its slug
// must be unique in the site.
func (s *Service) SaveForum(ctx context.Context, siteID int64, p auth.Principal, f forum.Forum) (*forum.Forum, error) {
	if !acl.CanModerate(p) {
		return nil, fmt.Errorf("save forum: %w", forum.ErrForbidden)
	}
	f.SiteID = siteID
	if f.Slug == "" {
		f.Slug = slug.Make(f.Title, forum.TitleMaxLength)
	}
	if err := check(f); err != nil {
		return nil, err
	}

	tree, err := s.tree(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if f.ID != 0 {
		if _, ok := tree.Forum(f.ID); !ok {
			return nil, fmt.Errorf("forum %d: %w", f.ID, forum.ErrNotFound)
		}
	}
	if err := tree.CheckPlacement(f); err != nil {
		if errors.Is(err, forum.ErrInvalidPlacement) || closesLoop(err, f.ID) {
			return nil, &ValidationError{Fields: []FieldError{{Name: "parent_id", Message: "A forum cannot be placed inside itself."}}}
		}
		return nil, err
	}

	if err := s.store.SaveForum(ctx, &f); err != nil {
		if errors.Is(err, forum.ErrStorageConflict) {
			return nil, &ValidationError{Fields: []FieldError{{Name: "slug", Message: "A forum with this slug already exists."}}}
		}
		return nil, err
	}
	s.log.Infow("forum saved", "site", siteID, "forum", f.Slug, "actor", p.ID)
	return &f, nil
}

// closesLoop reports whether err is the cycle the proposed placement of
// forumID would create, as opposed to one already stored.
func closesLoop(err error, forumID int64) bool {
	var cyc *forum.CyclicHierarchyError
	if forumID == 0 || !errors.As(err, &cyc) || len(cyc.Path) == 0 {
		return false
	}
	return cyc.Path[len(cyc.Path)-1] == forumID
}
