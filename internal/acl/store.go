// internal/acl/store.go
//
// Query helpers for the forum allow-list relation.
//
// Context
// -------
// Restricted forums carry an explicit allow-list stored in
//
//	forum_allowed_user (forum_id, user_id)
//
// The store and the forum index need three answers:
//  1. Who may read forum F?                 → `AllowedUsers()`
//  2. Which restricted forums may X read?   → `AllowedForumIDs()`
//  3. Replace F's list wholesale.           → `ReplaceAllowedUsers()`
//
// The helpers accept any sqlx.ExtContext so they run against the pool or
// inside a transaction.  Queries use `?` and are rebound per driver.
//
// Notes
// -----
// • Oxford commas, two spaces after periods.
// • Max line length 100 columns.
package acl

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// AllowedUsers returns the allow-listed user ids for forumID.
func AllowedUsers(ctx context.Context, db sqlx.ExtContext, forumID int64) ([]int64, error) {
	const q = `SELECT user_id FROM forum_allowed_user WHERE forum_id = ? ORDER BY user_id`

	ids := make([]int64, 0, 4)
	if err := sqlx.SelectContext(ctx, db, &ids, db.Rebind(q), forumID); err != nil {
		return nil, err
	}
	return ids, nil
}

// AllowListsBySite returns forum_id → allow-listed user ids for every
// forum in siteID, in one query.
func AllowListsBySite(ctx context.Context, db sqlx.ExtContext, siteID int64) (map[int64][]int64, error) {
	const q = `SELECT fa.forum_id, fa.user_id
                 FROM forum_allowed_user fa
                 JOIN forum f ON f.id = fa.forum_id
                WHERE f.site_id = ?`

	rows := make([]struct {
		ForumID int64 `db:"forum_id"`
		UserID  int64 `db:"user_id"`
	}, 0, 8)
	if err := sqlx.SelectContext(ctx, db, &rows, db.Rebind(q), siteID); err != nil {
		return nil, err
	}

	out := make(map[int64][]int64)
	for _, r := range rows {
		out[r.ForumID] = append(out[r.ForumID], r.UserID)
	}
	return out, nil
}

// AllowedForumIDs returns the restricted forums in siteID that userID is
// allow-listed for.
func AllowedForumIDs(ctx context.Context, db sqlx.ExtContext, siteID, userID int64) ([]int64, error) {
	const q = `SELECT f.id
                 FROM forum_allowed_user fa
                 JOIN forum f ON f.id = fa.forum_id
                WHERE f.site_id = ? AND fa.user_id = ? AND f.restricted = TRUE
                ORDER BY f.id`

	ids := make([]int64, 0, 4)
	if err := sqlx.SelectContext(ctx, db, &ids, db.Rebind(q), siteID, userID); err != nil {
		return nil, err
	}
	return ids, nil
}

// ReplaceAllowedUsers swaps forumID's allow-list for userIDs.  Callers run
// it inside a transaction so readers never see a half-written list.
func ReplaceAllowedUsers(ctx context.Context, db sqlx.ExtContext, forumID int64, userIDs []int64) error {
	if _, err := db.ExecContext(ctx,
		db.Rebind(`DELETE FROM forum_allowed_user WHERE forum_id = ?`), forumID); err != nil {
		return err
	}
	for _, uid := range userIDs {
		if _, err := db.ExecContext(ctx,
			db.Rebind(`INSERT INTO forum_allowed_user (forum_id, user_id) VALUES (?, ?)`),
			forumID, uid); err != nil {
			return err
		}
	}
	return nil
}
