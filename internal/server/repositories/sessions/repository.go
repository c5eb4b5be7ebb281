package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cropdb/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.Session) error
	// GetActive returns the session with id only while it is active.
	GetActive(ctx context.Context, id string) (*models.Session, error)
	// ActiveForUser returns the newest active session of the user.
	ActiveForUser(ctx context.Context, userID int64) (*models.Session, error)
	Extend(ctx context.Context, id string, end time.Time) error
	// ExpireForUser deactivates every active session of the user and returns
	// how many rows changed.
	ExpireForUser(ctx context.Context, userID int64, now time.Time) (int64, error)
}
