package subscriptions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cropdb/internal/server/models"
)

type Repository interface {
	// DeleteNotIn removes the user's rows of kind whose item id is not in keep.
	DeleteNotIn(ctx context.Context, userID int64, kind string, keep []int64) (int64, error)
	ItemIDs(ctx context.Context, userID int64, kind string) ([]int64, error)
	ExtendAll(ctx context.Context, userID int64, kind string, expires time.Time) (int64, error)
	Insert(ctx context.Context, userID int64, kind string, itemIDs []int64, expires time.Time) error
	// Available lists item ids of kind with expires >= now.
	Available(ctx context.Context, userID int64, kind string, now time.Time) ([]int64, error)
	CountActive(ctx context.Context, userID int64, kind string, itemID int64, now time.Time) (int, error)
	List(ctx context.Context, userID int64, kinds []string) ([]*models.Subscription, error)
}
