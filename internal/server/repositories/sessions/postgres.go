// Package sessions stores login sessions in the auth_session table.
package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
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

const sessionColumns = `id, user_id, start_time, end_time, active, location`

func (r *PostgresRepository) Create(ctx context.Context, s *models.Session) error {
	query :=
		`INSERT INTO auth_session (id, user_id, start_time, end_time, active, location)
		 VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := r.db.ExecContext(ctx, query, s.ID, s.UserID, s.StartTime, s.EndTime, s.Active, s.Location); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Session, error) {
	s := &models.Session{}
	if err := row.Scan(&s.ID, &s.UserID, &s.StartTime, &s.EndTime, &s.Active, &s.Location); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) GetActive(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM auth_session WHERE id = $1 AND active`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) ActiveForUser(ctx context.Context, userID int64) (*models.Session, error) {
	query :=
		`SELECT ` + sessionColumns + ` FROM auth_session
		 WHERE user_id = $1 AND active
		 ORDER BY start_time DESC
		 LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, userID))
}

func (r *PostgresRepository) Extend(ctx context.Context, id string, end time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE auth_session SET end_time = $2 WHERE id = $1 AND active`, id, end)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) ExpireForUser(ctx context.Context, userID int64, now time.Time) (int64, error) {
	query :=
		`UPDATE auth_session SET active = FALSE, end_time = $2
		 WHERE user_id = $1 AND active`

	res, err := r.db.ExecContext(ctx, query, userID, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
