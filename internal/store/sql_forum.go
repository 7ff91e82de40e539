package store

import (
	"context"
	"fmt"

	"github.com/yanizio/adept-forum/internal/acl"
	"github.com/yanizio/adept-forum/internal/forum"
)

const forumColumns = `id, site_id, title, slug, description, parent_id, ordering, category_id,
       only_staff_posts, only_staff_reads, only_upgraders, restricted,
       threads_total, posts_total`

func (s *SQL) ForumByID(ctx context.Context, siteID, id int64) (*forum.Forum, error) {
	var f forum.Forum
	if err := s.get(ctx, &f, `SELECT `+forumColumns+` FROM forum WHERE site_id = ? AND id = ?`, siteID, id); err != nil {
		return nil, fmt.Errorf("forum %d: %w", id, err)
	}
	return s.withAllowList(ctx, &f)
}

func (s *SQL) ForumBySlug(ctx context.Context, siteID int64, slug string) (*forum.Forum, error) {
	var f forum.Forum
	if err := s.get(ctx, &f, `SELECT `+forumColumns+` FROM forum WHERE site_id = ? AND slug = ?`, siteID, slug); err != nil {
		return nil, fmt.Errorf("forum %q: %w", slug, err)
	}
	return s.withAllowList(ctx, &f)
}

func (s *SQL) withAllowList(ctx context.Context, f *forum.Forum) (*forum.Forum, error) {
	ids, err := acl.AllowedUsers(ctx, s.ext, f.ID)
	if err != nil {
		return nil, fmt.Errorf("forum %d allow-list: %w", f.ID, err)
	}
	f.AllowedUsers = forum.IDSet(ids...)
	return f, nil
}

// ForumsBySite loads every forum with allow-lists in two queries.
func (s *SQL) ForumsBySite(ctx context.Context, siteID int64) ([]forum.Forum, error) {
	var fs []forum.Forum
	if err := s.selectAll(ctx, &fs,
		`SELECT `+forumColumns+` FROM forum WHERE site_id = ? ORDER BY ordering, title`, siteID); err != nil {
		return nil, fmt.Errorf("forums of site %d: %w", siteID, err)
	}
	lists, err := acl.AllowListsBySite(ctx, s.ext, siteID)
	if err != nil {
		return nil, fmt.Errorf("allow-lists of site %d: %w", siteID, err)
	}
	for i := range fs {
		fs[i].AllowedUsers = forum.IDSet(lists[fs[i].ID]...)
	}
	return fs, nil
}

func (s *SQL) CategoriesBySite(ctx context.Context, siteID int64) ([]forum.Category, error) {
	var cs []forum.Category
	if err := s.selectAll(ctx, &cs,
		`SELECT id, site_id, title, slug, description, only_upgraders
		   FROM category WHERE site_id = ? ORDER BY title`, siteID); err != nil {
		return nil, fmt.Errorf("categories of site %d: %w", siteID, err)
	}
	return cs, nil
}

// SaveForum upserts f and its allow-list in one transaction.
func (s *SQL) SaveForum(ctx context.Context, f *forum.Forum) error {
	return s.InTx(ctx, func(st Store) error {
		tx := st.(*SQL)
		if f.ID == 0 {
			id, err := tx.insert(ctx,
				`INSERT INTO forum (site_id, title, slug, description, parent_id, ordering, category_id,
				                    only_staff_posts, only_staff_reads, only_upgraders, restricted)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				f.SiteID, f.Title, f.Slug, f.Description, f.ParentID, f.Ordering, f.CategoryID,
				f.OnlyStaffPosts, f.OnlyStaffReads, f.OnlyUpgraders, f.Restricted)
			if err != nil {
				return fmt.Errorf("insert forum %q: %w", f.Slug, err)
			}
			f.ID = id
		} else if err := tx.run(ctx,
			`UPDATE forum SET title = ?, slug = ?, description = ?, parent_id = ?, ordering = ?,
			        category_id = ?, only_staff_posts = ?, only_staff_reads = ?, only_upgraders = ?,
			        restricted = ?
			  WHERE id = ? AND site_id = ?`,
			f.Title, f.Slug, f.Description, f.ParentID, f.Ordering, f.CategoryID,
			f.OnlyStaffPosts, f.OnlyStaffReads, f.OnlyUpgraders, f.Restricted,
			f.ID, f.SiteID); err != nil {
			return fmt.Errorf("update forum %d: %w", f.ID, err)
		}
		return classify(acl.ReplaceAllowedUsers(ctx, tx.ext, f.ID, f.AllowedIDs()))
	})
}

func (s *SQL) SaveForumTotals(ctx context.Context, forumID, threads, posts int64) error {
	return s.run(ctx, `UPDATE forum SET threads_total = ?, posts_total = ? WHERE id = ?`, threads, posts, forumID)
}
