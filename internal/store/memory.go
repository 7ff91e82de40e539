// internal/store/memory.go
//
// In-memory Store for tests and database-less local runs.
//
// Notes
// -----
//   - One mutex guards all maps.  InTx additionally serialises
//     transactions and restores a snapshot when fn fails, so a failed
//     creation leaves no half-written thread behind.
//   - Writes outside a transaction also wait for txMu, so a rollback never
//     discards them.  Reads do not wait and may observe uncommitted writes.
//   - Thread slugs are unique across the store and forum slugs are unique
//     per site, mirroring the SQL unique indexes.
//   - Returned values are copies; mutating them never changes the store.
package store

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/yanizio/adept-forum/internal/forum"
)

// Memory is a map-backed Store.
type Memory struct {
	st   *memState
	inTx bool
}

type memState struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data memData
}

type memData struct {
	forums     map[int64]forum.Forum
	categories map[int64]forum.Category
	threads    map[int64]forum.Thread
	posts      map[int64]forum.Post
	nextID     int64
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{st: &memState{data: memData{
		forums:     map[int64]forum.Forum{},
		categories: map[int64]forum.Category{},
		threads:    map[int64]forum.Thread{},
		posts:      map[int64]forum.Post{},
	}}}
}

func (d memData) clone() memData {
	out := memData{
		forums:     make(map[int64]forum.Forum, len(d.forums)),
		categories: maps.Clone(d.categories),
		threads:    make(map[int64]forum.Thread, len(d.threads)),
		posts:      maps.Clone(d.posts),
		nextID:     d.nextID,
	}
	for id, f := range d.forums {
		f.AllowedUsers = maps.Clone(f.AllowedUsers)
		out.forums[id] = f
	}
	for id, t := range d.threads {
		t.Banned = maps.Clone(t.Banned)
		out.threads[id] = t
	}
	return out
}

func (m *Memory) id() int64 {
	m.st.data.nextID++
	return m.st.data.nextID
}

// InTx runs fn and rolls the store back if fn fails.  The Store handed to
// fn joins this transaction on nested InTx calls.
func (m *Memory) InTx(_ context.Context, fn func(Store) error) error {
	if m.inTx {
		return fn(m)
	}
	m.st.txMu.Lock()
	defer m.st.txMu.Unlock()

	m.st.mu.Lock()
	snap := m.st.data.clone()
	m.st.mu.Unlock()

	if err := fn(&Memory{st: m.st, inTx: true}); err != nil {
		m.st.mu.Lock()
		m.st.data = snap
		m.st.mu.Unlock()
		return err
	}
	return nil
}

// write locks the maps for a mutation.  Outside a transaction it first
// waits for any running one.
func (m *Memory) write() (unlock func()) {
	if !m.inTx {
		m.st.txMu.Lock()
	}
	m.st.mu.Lock()
	return func() {
		m.st.mu.Unlock()
		if !m.inTx {
			m.st.txMu.Unlock()
		}
	}
}

/*──────────────────────────── seeding ─────────────────────────────────────*/

// AddCategory stores c, assigning an id when zero.
func (m *Memory) AddCategory(c forum.Category) forum.Category {
	defer m.write()()
	if c.ID == 0 {
		c.ID = m.id()
	}
	m.st.data.categories[c.ID] = c
	return c
}

/*──────────────────────────── forums ──────────────────────────────────────*/

func (m *Memory) ForumByID(_ context.Context, siteID, id int64) (*forum.Forum, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	f, ok := m.st.data.forums[id]
	if !ok || f.SiteID != siteID {
		return nil, fmt.Errorf("forum %d: %w", id, forum.ErrNotFound)
	}
	f.AllowedUsers = maps.Clone(f.AllowedUsers)
	return &f, nil
}

func (m *Memory) ForumBySlug(_ context.Context, siteID int64, slug string) (*forum.Forum, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	for _, f := range m.st.data.forums {
		if f.SiteID == siteID && f.Slug == slug {
			f.AllowedUsers = maps.Clone(f.AllowedUsers)
			return &f, nil
		}
	}
	return nil, fmt.Errorf("forum %q: %w", slug, forum.ErrNotFound)
}

func (m *Memory) ForumsBySite(_ context.Context, siteID int64) ([]forum.Forum, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var out []forum.Forum
	for _, f := range m.st.data.forums {
		if f.SiteID == siteID {
			f.AllowedUsers = maps.Clone(f.AllowedUsers)
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CategoriesBySite(_ context.Context, siteID int64) ([]forum.Category, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var out []forum.Category
	for _, c := range m.st.data.categories {
		if c.SiteID == siteID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (m *Memory) SaveForum(_ context.Context, f *forum.Forum) error {
	defer m.write()()

	for id, other := range m.st.data.forums {
		if id != f.ID && other.SiteID == f.SiteID && other.Slug == f.Slug {
			return fmt.Errorf("forum slug %q: %w", f.Slug, forum.ErrStorageConflict)
		}
	}
	if f.ID == 0 {
		f.ID = m.id()
	} else if old, ok := m.st.data.forums[f.ID]; ok {
		f.ThreadsTotal, f.PostsTotal = old.ThreadsTotal, old.PostsTotal
	}
	cp := *f
	cp.AllowedUsers = maps.Clone(f.AllowedUsers)
	m.st.data.forums[f.ID] = cp
	return nil
}

func (m *Memory) SaveForumTotals(_ context.Context, forumID, threads, posts int64) error {
	defer m.write()()
	f, ok := m.st.data.forums[forumID]
	if !ok {
		return fmt.Errorf("forum %d: %w", forumID, forum.ErrNotFound)
	}
	f.ThreadsTotal, f.PostsTotal = threads, posts
	m.st.data.forums[forumID] = f
	return nil
}

/*──────────────────────────── threads ─────────────────────────────────────*/

func (m *Memory) InsertThread(_ context.Context, t *forum.Thread) error {
	defer m.write()()
	for _, other := range m.st.data.threads {
		if other.Slug == t.Slug {
			return fmt.Errorf("thread slug %q: %w", t.Slug, forum.ErrStorageConflict)
		}
	}
	t.ID = m.id()
	t.Posts, t.Views = 0, 0
	t.LatestPostID, t.LatestPostAt, t.RootPostID = nil, nil, nil
	cp := *t
	cp.Banned = maps.Clone(t.Banned)
	m.st.data.threads[t.ID] = cp
	return nil
}

func (m *Memory) thread(id int64) (forum.Thread, error) {
	t, ok := m.st.data.threads[id]
	if !ok {
		return forum.Thread{}, fmt.Errorf("thread %d: %w", id, forum.ErrNotFound)
	}
	return t, nil
}

func (m *Memory) siteOf(t forum.Thread) int64 { return m.st.data.forums[t.ForumID].SiteID }

func (m *Memory) ThreadByID(_ context.Context, id int64) (*forum.Thread, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	t, err := m.thread(id)
	if err != nil {
		return nil, err
	}
	t.Banned = maps.Clone(t.Banned)
	return &t, nil
}

func (m *Memory) ThreadBySlug(_ context.Context, siteID int64, slug string) (*forum.Thread, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	for _, t := range m.st.data.threads {
		if t.Slug == slug && m.siteOf(t) == siteID {
			t.Banned = maps.Clone(t.Banned)
			return &t, nil
		}
	}
	return nil, fmt.Errorf("thread %q: %w", slug, forum.ErrNotFound)
}

func (m *Memory) ThreadsByIDs(_ context.Context, ids []int64) ([]forum.Thread, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	out := make([]forum.Thread, 0, len(ids))
	for _, id := range ids {
		if t, ok := m.st.data.threads[id]; ok {
			t.Banned = nil
			out = append(out, t)
		}
	}
	return out, nil
}

func activity(t forum.Thread) time.Time {
	if t.LatestPostAt != nil {
		return *t.LatestPostAt
	}
	return t.CreatedAt
}

func (m *Memory) ThreadsByForum(_ context.Context, forumID int64, sticky bool, limit, offset int) ([]forum.Thread, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var all []forum.Thread
	for _, t := range m.st.data.threads {
		if t.ForumID == forumID && t.Sticky == sticky {
			t.Banned = nil
			all = append(all, t)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		ai, aj := activity(all[i]), activity(all[j])
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return all[i].ID > all[j].ID
	})
	return page(all, limit, offset), nil
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

func (m *Memory) ThreadByAuthorTitle(_ context.Context, siteID, authorID int64, title string) (*forum.Thread, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var best *forum.Thread
	for _, t := range m.st.data.threads {
		if t.Title != title || t.RootPostID == nil || m.siteOf(t) != siteID {
			continue
		}
		if root, ok := m.st.data.posts[*t.RootPostID]; !ok || root.AuthorID != authorID {
			continue
		}
		if best == nil || t.ID < best.ID {
			cp := t
			best = &cp
		}
	}
	if best == nil {
		return nil, fmt.Errorf("thread by author %d: %w", authorID, forum.ErrNotFound)
	}
	best.Banned = maps.Clone(best.Banned)
	return best, nil
}

func (m *Memory) SlugExists(_ context.Context, slug string) (bool, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	for _, t := range m.st.data.threads {
		if t.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) SetTitle(_ context.Context, threadID int64, title string) error {
	return m.updateThread(threadID, func(t *forum.Thread) { t.Title = title })
}

func (m *Memory) SetFlags(_ context.Context, threadID int64, fl ThreadFlags) error {
	return m.updateThread(threadID, func(t *forum.Thread) {
		if fl.Sticky != nil {
			t.Sticky = *fl.Sticky
		}
		if fl.Closed != nil {
			t.Closed = *fl.Closed
		}
		if fl.Featured != nil {
			t.Featured = *fl.Featured
		}
	})
}

func (m *Memory) SetForum(_ context.Context, threadID, forumID int64) error {
	return m.updateThread(threadID, func(t *forum.Thread) { t.ForumID = forumID })
}

func (m *Memory) updateThread(id int64, fn func(*forum.Thread)) error {
	defer m.write()()
	cur, err := m.thread(id)
	if err != nil {
		return err
	}
	fn(&cur)
	m.st.data.threads[id] = cur
	return nil
}

func (m *Memory) SetRootPost(_ context.Context, threadID, postID int64) error {
	defer m.write()()
	t, err := m.thread(threadID)
	if err != nil {
		return err
	}
	t.RootPostID = &postID
	m.st.data.threads[threadID] = t
	return nil
}

func (m *Memory) AttachPost(_ context.Context, threadID, postID int64, at time.Time) error {
	defer m.write()()
	t, err := m.thread(threadID)
	if err != nil {
		return err
	}
	t.Posts++
	if t.LatestPostAt == nil || !at.Before(*t.LatestPostAt) {
		t.LatestPostID, t.LatestPostAt = &postID, &at
	}
	m.st.data.threads[threadID] = t
	return nil
}

func (m *Memory) IncrementViews(_ context.Context, threadID int64) error {
	defer m.write()()
	t, err := m.thread(threadID)
	if err != nil {
		return err
	}
	t.Views++
	m.st.data.threads[threadID] = t
	return nil
}

func (m *Memory) DeleteThread(_ context.Context, threadID int64) error {
	defer m.write()()
	if _, err := m.thread(threadID); err != nil {
		return err
	}
	delete(m.st.data.threads, threadID)
	return nil
}

func (m *Memory) BanUser(_ context.Context, threadID, userID int64) error {
	defer m.write()()
	t, err := m.thread(threadID)
	if err != nil {
		return err
	}
	if t.Banned == nil {
		t.Banned = map[int64]struct{}{}
	}
	t.Banned[userID] = struct{}{}
	m.st.data.threads[threadID] = t
	return nil
}

func (m *Memory) CountThreads(_ context.Context, forumID int64) (int64, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var n int64
	for _, t := range m.st.data.threads {
		if t.ForumID == forumID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) SumPosts(_ context.Context, forumID int64) (int64, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var n int64
	for _, t := range m.st.data.threads {
		if t.ForumID == forumID {
			n += t.Posts
		}
	}
	return n, nil
}

/*──────────────────────────── posts ───────────────────────────────────────*/

func (m *Memory) CreatePost(_ context.Context, p *forum.Post) error {
	defer m.write()()
	if _, err := m.thread(p.ThreadID); err != nil {
		return err
	}
	p.ID = m.id()
	m.st.data.posts[p.ID] = *p
	return nil
}

func (m *Memory) PostByID(_ context.Context, id int64) (*forum.Post, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	p, ok := m.st.data.posts[id]
	if !ok {
		return nil, fmt.Errorf("post %d: %w", id, forum.ErrNotFound)
	}
	return &p, nil
}

func (m *Memory) postsOf(threadID int64) []forum.Post {
	var out []forum.Post
	for _, p := range m.st.data.posts {
		if p.ThreadID == threadID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Memory) PostsByThread(_ context.Context, threadID int64, limit, offset int) ([]forum.Post, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	return page(m.postsOf(threadID), limit, offset), nil
}

func (m *Memory) CountPosts(_ context.Context, threadID int64) (int64, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	return int64(len(m.postsOf(threadID))), nil
}

func (m *Memory) LatestRootPostByAuthor(_ context.Context, siteID, authorID int64) (*forum.Post, error) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	var best *forum.Post
	for _, t := range m.st.data.threads {
		if t.RootPostID == nil || m.siteOf(t) != siteID {
			continue
		}
		p, ok := m.st.data.posts[*t.RootPostID]
		if !ok || p.AuthorID != authorID {
			continue
		}
		if best == nil || p.SubmittedAt.After(best.SubmittedAt) {
			cp := p
			best = &cp
		}
	}
	if best == nil {
		return nil, fmt.Errorf("latest root post of %d: %w", authorID, forum.ErrNotFound)
	}
	return best, nil
}

func (m *Memory) UpdatePostBody(_ context.Context, postID int64, body string) error {
	defer m.write()()
	p, ok := m.st.data.posts[postID]
	if !ok {
		return fmt.Errorf("post %d: %w", postID, forum.ErrNotFound)
	}
	p.Body = body
	m.st.data.posts[postID] = p
	return nil
}

func (m *Memory) DeletePostsByThread(_ context.Context, threadID int64) (int64, error) {
	defer m.write()()
	var n int64
	for id, p := range m.st.data.posts {
		if p.ThreadID == threadID {
			delete(m.st.data.posts, id)
			n++
		}
	}
	return n, nil
}
