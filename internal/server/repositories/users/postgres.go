package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

const userColumns = `id, email, password, csrf, created, banned_date, active, banned, admin, wrong_logins, reset`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u          models.User
		csrf       sql.NullString
		reset      sql.NullString
		bannedDate sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Password, &csrf, &u.Created, &bannedDate,
		&u.Active, &u.Banned, &u.Admin, &u.WrongLogins, &reset); err != nil {
		return nil, err
	}
	u.CSRF = csrf.String
	u.Reset = reset.String
	if bannedDate.Valid {
		t := bannedDate.Time
		u.BannedDate = &t
	}
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *models.User) sql.NullTime {
	if t.BannedDate == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t.BannedDate, Valid: true}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO auth_user (email, password, active, admin)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created`

	err := r.db.QueryRowContext(ctx, query, user.Email, user.Password, user.Active, user.Admin).
		Scan(&user.ID, &user.Created)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

// GetOrCreate inserts an inactive account for email unless one exists.
// The bool reports whether a row was created.
func (r *PostgresRepository) GetOrCreate(ctx context.Context, email, passwordHash string) (*models.User, bool, error) {
	query :=
		`INSERT INTO auth_user (email, password)
		 VALUES ($1, $2)
		 ON CONFLICT (email) DO NOTHING
		 RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRowContext(ctx, query, email, passwordHash))
	if err == nil {
		return u, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("db error: %w", err)
	}

	u, err = r.GetByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	return u, false, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM auth_user WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM auth_user WHERE email = $1`, email)
}

func (r *PostgresRepository) LockByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM auth_user WHERE id = $1 FOR UPDATE`, id)
}

// Update writes every mutable column of user.
func (r *PostgresRepository) Update(ctx context.Context, user *models.User) error {
	query :=
		`UPDATE auth_user
		 SET email = $2, password = $3, csrf = $4, banned_date = $5, active = $6,
		     banned = $7, admin = $8, wrong_logins = $9, reset = $10
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, user.ID, user.Email, user.Password,
		nullString(user.CSRF), nullTime(user), user.Active, user.Banned, user.Admin,
		user.WrongLogins, nullString(user.Reset))
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return requireOne(res)
}

// IncrementWrongLogins bumps the failed-login counter in place and returns
// the new value.
func (r *PostgresRepository) IncrementWrongLogins(ctx context.Context, id int64) (int, error) {
	query :=
		`UPDATE auth_user SET wrong_logins = wrong_logins + 1
		 WHERE id = $1
		 RETURNING wrong_logins`

	var n int
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) ResetWrongLogins(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE auth_user SET wrong_logins = 0 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireOne(res)
}

func (r *PostgresRepository) SetCSRF(ctx context.Context, id int64, nonce string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE auth_user SET csrf = $2 WHERE id = $1`, id, nullString(nonce))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireOne(res)
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.User, error) {
	d := models.UserDescriptor
	query := `SELECT ` + userColumns + ` FROM ` + d.Table + ` ORDER BY ` + d.Order

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func requireOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
