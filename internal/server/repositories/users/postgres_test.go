package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/cropdb/internal/common"
	"github.com/dmitrijs2005/cropdb/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	created = time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	cols    = []string{"id", "email", "password", "csrf", "created", "banned_date", "active", "banned", "admin", "wrong_logins", "reset"}
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPostgresRepository(db), mock
}

func aliceRow() *sqlmock.Rows {
	return sqlmock.NewRows(cols).
		AddRow(int64(1), "alice@example.com", "$argon2id$...", nil, created, nil, true, false, false, 0, nil)
}

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+auth_user\s*\(email,\s*password,\s*active,\s*admin\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*RETURNING\s+id,\s*created$`).
		WithArgs("admin@example.com", "hash", true, true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created"}).AddRow(int64(42), created))

	u, err := repo.Create(context.Background(), &models.User{Email: "admin@example.com", Password: "hash", Active: true, Admin: true})
	require.NoError(t, err)
	assert.Equal(t, int64(42), u.ID)
	assert.Equal(t, created, u.Created)
}

func TestCreate_DuplicateEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+auth_user`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), &models.User{Email: "dup@example.com", Password: "h"})
	require.ErrorIs(t, err, common.ErrorConflict)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+auth_user`).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{Email: "a@example.com"})
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
}

func TestGetOrCreate_Inserts(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+auth_user\s*\(email,\s*password\).*ON\s+CONFLICT\s+\(email\)\s+DO\s+NOTHING\s+RETURNING`).
		WithArgs("new@example.com", "placeholder-hash").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(5), "new@example.com", "placeholder-hash", nil, created, nil, false, false, false, 0, nil))

	u, isNew, err := repo.GetOrCreate(context.Background(), "new@example.com", "placeholder-hash")
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, int64(5), u.ID)
	assert.False(t, u.Active)
}

func TestGetOrCreate_Existing(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`ON\s+CONFLICT`).
		WithArgs("alice@example.com", "h").
		WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectQuery(`(?s)SELECT\s+id,.*FROM\s+auth_user\s+WHERE\s+email\s*=\s*\$1$`).
		WithArgs("alice@example.com").
		WillReturnRows(aliceRow())

	u, isNew, err := repo.GetOrCreate(context.Background(), "alice@example.com", "h")
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, int64(1), u.ID)
}

func TestGetByID_ScansNullableColumns(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	banned := created.Add(time.Hour)
	mock.ExpectQuery(`(?s)SELECT\s+id,.*FROM\s+auth_user\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(3), "bob@example.com", "h", "nonce", created, banned, true, true, false, 20, "reset-token"))

	u, err := repo.GetByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "nonce", u.CSRF)
	assert.Equal(t, "reset-token", u.Reset)
	require.NotNil(t, u.BannedDate)
	assert.Equal(t, banned, *u.BannedDate)
	assert.Equal(t, 20, u.WrongLogins)
	assert.False(t, u.IsActive())
}

func TestGetByEmail_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`WHERE\s+email\s*=\s*\$1`).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "ghost@example.com")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestLockByID_UsesForUpdate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`WHERE\s+id\s*=\s*\$1\s+FOR\s+UPDATE$`).
		WithArgs(int64(1)).
		WillReturnRows(aliceRow())

	u, err := repo.LockByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)
}

func TestUpdate_WritesAllColumns(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	banned := created.Add(time.Minute)
	mock.ExpectExec(`(?s)UPDATE\s+auth_user\s+SET\s+email\s*=\s*\$2.*WHERE\s+id\s*=\s*\$1$`).
		WithArgs(int64(1), "alice@example.com", "h2", nil, banned, true, true, false, 0, "tok").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), &models.User{
		ID: 1, Email: "alice@example.com", Password: "h2", BannedDate: &banned,
		Active: true, Banned: true, Reset: "tok",
	})
	require.NoError(t, err)
}

func TestUpdate_MissingRowAndConflict(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`UPDATE\s+auth_user`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE\s+auth_user`).WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Update(context.Background(), &models.User{ID: 9})
	require.ErrorIs(t, err, common.ErrorNotFound)

	err = repo.Update(context.Background(), &models.User{ID: 1, Email: "taken@example.com"})
	require.ErrorIs(t, err, common.ErrorConflict)
}

func TestIncrementWrongLogins(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)UPDATE\s+auth_user\s+SET\s+wrong_logins\s*=\s*wrong_logins\s*\+\s*1\s+WHERE\s+id\s*=\s*\$1\s+RETURNING\s+wrong_logins$`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"wrong_logins"}).AddRow(3))

	n, err := repo.IncrementWrongLogins(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestResetWrongLoginsAndSetCSRF(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`UPDATE\s+auth_user\s+SET\s+wrong_logins\s*=\s*0\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE\s+auth_user\s+SET\s+csrf\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(int64(1), "nonce").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ResetWrongLogins(context.Background(), 1))
	require.NoError(t, repo.SetCSRF(context.Background(), 1, "nonce"))
}

func TestList_OrdersByEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)SELECT\s+id,.*FROM\s+auth_user\s+ORDER\s+BY\s+email$`).
		WillReturnRows(aliceRow().
			AddRow(int64(2), "bob@example.com", "h", nil, created, nil, false, false, true, 0, nil))

	out, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "alice@example.com", out[0].Email)
	assert.True(t, out[1].Admin)
}
