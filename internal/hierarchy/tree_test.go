// internal/hierarchy/tree_test.go
//
// Run: go test ./internal/hierarchy -v
package hierarchy

import (
	"errors"
	"reflect"
	"testing"

	"github.com/yanizio/adept-forum/internal/forum"
)

func id(v int64) *int64 { return &v }
func ord(v int) *int    { return &v }

// A → B → C, plus a sibling D under A ordered before B.
func sample() []forum.Forum {
	return []forum.Forum{
		{ID: 1, Title: "A", Slug: "a"},
		{ID: 2, Title: "B", Slug: "b", ParentID: id(1), Ordering: ord(2)},
		{ID: 3, Title: "C", Slug: "c", ParentID: id(2)},
		{ID: 4, Title: "D", Slug: "d", ParentID: id(1), Ordering: ord(1)},
		{ID: 5, Title: "E", Slug: "e"},
	}
}

func TestAncestorTitles(t *testing.T) {
	tr := New(sample())

	got, err := tr.AncestorTitles(3)
	if err != nil {
		t.Fatalf("AncestorTitles: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Fatalf("AncestorTitles(C) = %v", got)
	}

	got, _ = tr.AncestorTitles(1)
	if len(got) != 0 {
		t.Fatalf("root has ancestors: %v", got)
	}
}

func TestPathAndBreadcrumbs(t *testing.T) {
	tr := New(sample())

	p, err := tr.Path(3)
	if err != nil || p != "a/b/c" {
		t.Fatalf("Path = %q, %v", p, err)
	}

	crumbs, err := tr.Breadcrumbs(3)
	if err != nil {
		t.Fatalf("Breadcrumbs: %v", err)
	}
	if len(crumbs) != 3 || crumbs[2].URL != "/forums/c" || crumbs[0].Title != "A" {
		t.Fatalf("unexpected crumbs: %#v", crumbs)
	}
}

func TestDescendantsPreOrder(t *testing.T) {
	tr := New(sample())

	got, err := tr.Descendants(1)
	if err != nil {
		t.Fatalf("Descendants: %v", err)
	}
	var titles []string
	for _, f := range got {
		titles = append(titles, f.Title)
	}
	// D sorts before B by ordering; C follows its parent.
	if !reflect.DeepEqual(titles, []string{"D", "B", "C"}) {
		t.Fatalf("Descendants(A) = %v", titles)
	}

	roots := tr.Roots()
	if len(roots) != 2 || roots[0].Title != "A" || roots[1].Title != "E" {
		t.Fatalf("Roots = %#v", roots)
	}
}

func TestCycleDetected(t *testing.T) {
	fs := sample()
	fs[0].ParentID = id(3) // A.parent = C
	tr := New(fs)

	_, err := tr.AncestorTitles(3)
	var cyc *forum.CyclicHierarchyError
	if !errors.As(err, &cyc) {
		t.Fatalf("err = %v, want CyclicHierarchyError", err)
	}
	if !errors.Is(err, forum.ErrCyclicHierarchy) {
		t.Fatalf("cyclic error does not unwrap to the sentinel")
	}

	// The whole loop is detached from the roots, but a direct walk still
	// terminates.
	if _, err := tr.Descendants(1); !errors.Is(err, forum.ErrCyclicHierarchy) {
		t.Fatalf("Descendants err = %v", err)
	}
}

func TestDanglingParent(t *testing.T) {
	tr := New([]forum.Forum{{ID: 1, Title: "orphan", ParentID: id(99)}})
	if _, err := tr.Ancestors(1); !errors.Is(err, forum.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCheckPlacement(t *testing.T) {
	tr := New(sample())

	// Moving A under C closes a loop.
	err := tr.CheckPlacement(forum.Forum{ID: 1, Title: "A", ParentID: id(3)})
	if !errors.Is(err, forum.ErrCyclicHierarchy) {
		t.Fatalf("A under C: err = %v", err)
	}

	// A new forum named like an ancestor is rejected.
	err = tr.CheckPlacement(forum.Forum{Title: "A", ParentID: id(3)})
	if !errors.Is(err, forum.ErrInvalidPlacement) {
		t.Fatalf("title repeat: err = %v", err)
	}

	if err := tr.CheckPlacement(forum.Forum{Title: "F", ParentID: id(3)}); err != nil {
		t.Fatalf("valid placement rejected: %v", err)
	}
	if err := tr.CheckPlacement(forum.Forum{ID: 2, Title: "B", ParentID: id(2)}); !errors.Is(err, forum.ErrCyclicHierarchy) {
		t.Fatalf("self parent: err = %v", err)
	}
	if err := tr.CheckPlacement(forum.Forum{Title: "G", ParentID: id(42)}); !errors.Is(err, forum.ErrNotFound) {
		t.Fatalf("missing parent: err = %v", err)
	}
}
