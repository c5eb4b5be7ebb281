// Package subscriptions stores time-boxed resource entitlements in the
// auth_subscription table.
package subscriptions

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/cropdb/internal/common"
	"github.com/dmitrijs2005/cropdb/internal/dbx"
	"github.com/dmitrijs2005/cropdb/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) DeleteNotIn(ctx context.Context, userID int64, kind string, keep []int64) (int64, error) {
	query :=
		`DELETE FROM auth_subscription
		 WHERE user_id = $1 AND kind = $2 AND NOT (item_id = ANY($3::bigint[]))`

	if keep == nil {
		// a nil slice is sent as NULL, which would match nothing
		keep = []int64{}
	}
	res, err := r.db.ExecContext(ctx, query, userID, kind, keep)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ids, nil
}

func (r *PostgresRepository) ItemIDs(ctx context.Context, userID int64, kind string) ([]int64, error) {
	return r.queryIDs(ctx,
		`SELECT item_id FROM auth_subscription WHERE user_id = $1 AND kind = $2 ORDER BY item_id`,
		userID, kind)
}

func (r *PostgresRepository) ExtendAll(ctx context.Context, userID int64, kind string, expires time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE auth_subscription SET expires = $3 WHERE user_id = $1 AND kind = $2`,
		userID, kind, expires)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// Insert adds one row per item id in a single statement.
func (r *PostgresRepository) Insert(ctx context.Context, userID int64, kind string, itemIDs []int64, expires time.Time) error {
	if len(itemIDs) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString(`INSERT INTO auth_subscription (user_id, kind, item_id, expires) VALUES `)
	args := []any{userID, kind, expires}
	for i, id := range itemIDs {
		if i > 0 {
			b.WriteString(", ")
		}
		args = append(args, id)
		b.WriteString("($1, $2, $" + strconv.Itoa(len(args)) + ", $3)")
	}

	if _, err := r.db.ExecContext(ctx, b.String(), args...); err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Available(ctx context.Context, userID int64, kind string, now time.Time) ([]int64, error) {
	return r.queryIDs(ctx,
		`SELECT item_id FROM auth_subscription
		 WHERE user_id = $1 AND kind = $2 AND expires >= $3
		 ORDER BY item_id`,
		userID, kind, now)
}

func (r *PostgresRepository) CountActive(ctx context.Context, userID int64, kind string, itemID int64, now time.Time) (int, error) {
	query :=
		`SELECT COUNT(*) FROM auth_subscription
		 WHERE user_id = $1 AND kind = $2 AND item_id = $3 AND expires >= $4`

	var n int
	if err := r.db.QueryRowContext(ctx, query, userID, kind, itemID, now).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// List returns the user's rows, restricted to kinds when it is not empty.
func (r *PostgresRepository) List(ctx context.Context, userID int64, kinds []string) ([]*models.Subscription, error) {
	d := models.SubscriptionDescriptor

	var b strings.Builder
	b.WriteString(`SELECT id, user_id, kind, item_id, can_put, expires FROM ` + d.Table + ` WHERE user_id = $1`)
	args := []any{userID}
	if len(kinds) > 0 {
		b.WriteString(` AND kind IN (`)
		for i, k := range kinds {
			if i > 0 {
				b.WriteString(", ")
			}
			args = append(args, k)
			b.WriteString("$" + strconv.Itoa(len(args)))
		}
		b.WriteString(`)`)
	}
	b.WriteString(` ORDER BY ` + d.Order)

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Subscription
	for rows.Next() {
		s := &models.Subscription{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.Kind, &s.ItemID, &s.CanPut, &s.Expires); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
