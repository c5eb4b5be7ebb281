package users

import (
	"context"

	"github.com/dmitrijs2005/cropdb/internal/server/models"
)

// Repository persists user accounts. Lookups of absent rows return
// common.ErrorNotFound, duplicate emails return common.ErrorConflict.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetOrCreate(ctx context.Context, email, passwordHash string) (*models.User, bool, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// LockByID loads the row with SELECT ... FOR UPDATE. Only meaningful
	// inside a transaction.
	LockByID(ctx context.Context, id int64) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	IncrementWrongLogins(ctx context.Context, id int64) (int, error)
	ResetWrongLogins(ctx context.Context, id int64) error
	SetCSRF(ctx context.Context, id int64, nonce string) error
	List(ctx context.Context) ([]*models.User, error)
}
