// internal/hierarchy/tree.go
//
// Forum tree resolver.
//
// Context
// -------
// Forums form a tree through nullable parent ids.  The resolver loads every
// forum of a site into an arena keyed by id and answers breadcrumb, path,
// and descendant queries by chasing ids.  Parents are never live pointers,
// so a corrupt parent column cannot create a reference cycle in memory.
//
// Every walk keeps a visited set.  Revisiting a forum means the stored
// parent chain loops, which the recursive walk would never escape, so the
// resolver fails with forum.CyclicHierarchyError instead.
//
// Notes
// -----
//   - Children are ordered by (ordering, title), matching the forum index.
//   - A parent id that does not resolve is an integrity fault and surfaces
//     as a wrapped forum.ErrNotFound.
//   - The Tree is read-only after New and safe for concurrent readers.
package hierarchy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yanizio/adept-forum/internal/forum"
	"github.com/yanizio/adept-forum/internal/slug"
)

// Crumb is one breadcrumb entry.
type Crumb struct {
	Title string `json:"title"`
	Slug  string `json:"slug"`
	URL   string `json:"url"`
}

// Tree is an arena of forums indexed by id.
type Tree struct {
	byID     map[int64]*forum.Forum
	children map[int64][]int64
	roots    []int64
}

// New builds a Tree from a flat forum list.
func New(forums []forum.Forum) *Tree {
	t := &Tree{
		byID:     make(map[int64]*forum.Forum, len(forums)),
		children: make(map[int64][]int64),
	}
	for i := range forums {
		f := forums[i]
		t.byID[f.ID] = &f
	}
	for id, f := range t.byID {
		if f.ParentID == nil {
			t.roots = append(t.roots, id)
			continue
		}
		t.children[*f.ParentID] = append(t.children[*f.ParentID], id)
	}
	t.sortIDs(t.roots)
	for _, ids := range t.children {
		t.sortIDs(ids)
	}
	return t
}

// Forum returns the forum with id, if loaded.
func (t *Tree) Forum(id int64) (*forum.Forum, bool) {
	f, ok := t.byID[id]
	return f, ok
}

// Roots returns top-level forums in display order.
func (t *Tree) Roots() []forum.Forum {
	out := make([]forum.Forum, 0, len(t.roots))
	for _, id := range t.roots {
		out = append(out, *t.byID[id])
	}
	return out
}

// Children returns the direct children of id in display order.
func (t *Tree) Children(id int64) []forum.Forum {
	ids := t.children[id]
	out := make([]forum.Forum, 0, len(ids))
	for _, cid := range ids {
		out = append(out, *t.byID[cid])
	}
	return out
}

// Ancestors returns the parent chain of id from the root down to the
// immediate parent.  The forum itself is not included.
func (t *Tree) Ancestors(id int64) ([]forum.Forum, error) {
	f, ok := t.byID[id]
	if !ok {
		return nil, fmt.Errorf("forum %d: %w", id, forum.ErrNotFound)
	}
	return t.chain(f.ID, f.ParentID)
}

// chain walks parent pointers from parent upward.  start is the id the walk
// began from and counts as visited.
func (t *Tree) chain(start int64, parent *int64) ([]forum.Forum, error) {
	visited := map[int64]struct{}{start: {}}
	path := []int64{start}

	var up []forum.Forum
	for parent != nil {
		pid := *parent
		if _, seen := visited[pid]; seen {
			return nil, &forum.CyclicHierarchyError{ForumID: start, Path: append(path, pid)}
		}
		p, ok := t.byID[pid]
		if !ok {
			return nil, fmt.Errorf("forum %d parent %d: %w", start, pid, forum.ErrNotFound)
		}
		visited[pid] = struct{}{}
		path = append(path, pid)
		up = append(up, *p)
		parent = p.ParentID
	}

	// Reverse to root-first order.
	for i, j := 0, len(up)-1; i < j; i, j = i+1, j-1 {
		up[i], up[j] = up[j], up[i]
	}
	return up, nil
}

// AncestorTitles returns ancestor titles root first.
func (t *Tree) AncestorTitles(id int64) ([]string, error) {
	up, err := t.Ancestors(id)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(up))
	for i, f := range up {
		out[i] = f.Title
	}
	return out, nil
}

// AncestorSlugs returns ancestor slugs root first.
func (t *Tree) AncestorSlugs(id int64) ([]string, error) {
	up, err := t.Ancestors(id)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(up))
	for i, f := range up {
		out[i] = f.Slug
	}
	return out, nil
}

// Path returns the slash-joined slug chain ending with the forum itself,
// e.g. "general/announcements".
func (t *Tree) Path(id int64) (string, error) {
	slugs, err := t.AncestorSlugs(id)
	if err != nil {
		return "", err
	}
	f := t.byID[id]
	return strings.Trim(slug.BuildPath(strings.Join(slugs, "/"), f.Slug), "/"), nil
}

// Breadcrumbs returns ancestors plus the forum itself.
func (t *Tree) Breadcrumbs(id int64) ([]Crumb, error) {
	up, err := t.Ancestors(id)
	if err != nil {
		return nil, err
	}
	up = append(up, *t.byID[id])

	out := make([]Crumb, len(up))
	for i, f := range up {
		out[i] = Crumb{Title: f.Title, Slug: f.Slug, URL: forum.ForumURL(f.Slug)}
	}
	return out, nil
}

// Descendants returns every forum below id in pre-order, parent before
// children.  The forum itself is not included.
func (t *Tree) Descendants(id int64) ([]forum.Forum, error) {
	if _, ok := t.byID[id]; !ok {
		return nil, fmt.Errorf("forum %d: %w", id, forum.ErrNotFound)
	}

	visited := map[int64]struct{}{id: {}}
	var out []forum.Forum

	// Explicit stack instead of recursion; children pushed in reverse so
	// they pop in display order.
	type frame struct {
		id   int64
		path []int64
	}
	stack := make([]frame, 0, 8)
	push := func(parent frame) {
		kids := t.children[parent.id]
		for i := len(kids) - 1; i >= 0; i-- {
			p := append(append([]int64(nil), parent.path...), kids[i])
			stack = append(stack, frame{id: kids[i], path: p})
		}
	}
	push(frame{id: id, path: []int64{id}})

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := visited[top.id]; seen {
			return nil, &forum.CyclicHierarchyError{ForumID: id, Path: top.path}
		}
		visited[top.id] = struct{}{}
		out = append(out, *t.byID[top.id])
		push(top)
	}
	return out, nil
}

// CheckPlacement validates f (new or edited) against the tree: its parent
// chain must not reach f itself and its title must not repeat an ancestor
// title.
func (t *Tree) CheckPlacement(f forum.Forum) error {
	if f.ParentID == nil {
		return nil
	}
	if f.ID != 0 && *f.ParentID == f.ID {
		return &forum.CyclicHierarchyError{ForumID: f.ID, Path: []int64{f.ID, f.ID}}
	}

	p, ok := t.byID[*f.ParentID]
	if !ok {
		return fmt.Errorf("parent forum %d: %w", *f.ParentID, forum.ErrNotFound)
	}
	up, err := t.chain(f.ID, p.ParentID)
	if err != nil {
		return err
	}
	// chain excluded the parent itself; include it for the title check.
	up = append(up, *p)
	for _, a := range up {
		if f.ID != 0 && a.ID == f.ID {
			return &forum.CyclicHierarchyError{ForumID: f.ID, Path: []int64{f.ID, *f.ParentID, f.ID}}
		}
		if a.Title == f.Title {
			return fmt.Errorf("forum %q cannot be placed inside itself: %w", f.Title, forum.ErrInvalidPlacement)
		}
	}
	return nil
}

func (t *Tree) sortIDs(ids []int64) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := t.byID[ids[i]], t.byID[ids[j]]
		ao, bo := orderingOf(a), orderingOf(b)
		if ao != bo {
			return ao < bo
		}
		return a.Title < b.Title
	})
}

// orderingOf sorts forums without an ordering hint after those with one.
func orderingOf(f *forum.Forum) int {
	if f.Ordering == nil {
		return int(^uint(0) >> 1)
	}
	return *f.Ordering
}
