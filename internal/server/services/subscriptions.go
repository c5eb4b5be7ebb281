package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/cropdb/internal/common"
	"github.com/dmitrijs2005/cropdb/internal/dbx"
	"github.com/dmitrijs2005/cropdb/internal/server/models"
)

// SubscriptionService reconciles and queries time-boxed entitlements.
// It has no notion of admin; callers apply any bypass.
type SubscriptionService struct {
	*core
}

func uniqueSorted(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Reconcile brings the user's rows for every kind in desired to exactly the
// desired ids: rows not listed are deleted, the remaining ones get their
// expiry moved to now+extendDays and missing ids are inserted with the same
// expiry. Kinds absent from desired are untouched. All kinds change in one
// transaction. It returns the newly inserted ids per kind.
func (s *SubscriptionService) Reconcile(ctx context.Context, userID int64, desired map[string][]int64, extendDays int) (map[string][]int64, error) {
	if extendDays <= 0 {
		extendDays = s.cfg.SubscriptionDays
	}
	expires := s.now().AddDate(0, 0, extendDays)

	kinds := make([]string, 0, len(desired))
	for k := range desired {
		if k == "" {
			return nil, fmt.Errorf("%w: empty resource kind", common.ErrorValidation)
		}
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	inserted := make(map[string][]int64, len(kinds))
	err := s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repos.Users(tx).GetByID(ctx, userID); err != nil {
			return err
		}

		repo := s.repos.Subscriptions(tx)
		for _, kind := range kinds {
			keep := uniqueSorted(desired[kind])

			if _, err := repo.DeleteNotIn(ctx, userID, kind, keep); err != nil {
				return err
			}
			existing, err := repo.ItemIDs(ctx, userID, kind)
			if err != nil {
				return err
			}
			if _, err := repo.ExtendAll(ctx, userID, kind, expires); err != nil {
				return err
			}

			have := make(map[int64]struct{}, len(existing))
			for _, id := range existing {
				have[id] = struct{}{}
			}
			missing := []int64{}
			for _, id := range keep {
				if _, ok := have[id]; !ok {
					missing = append(missing, id)
				}
			}
			if err := repo.Insert(ctx, userID, kind, missing, expires); err != nil {
				return err
			}
			inserted[kind] = missing
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	total := 0
	for _, ids := range inserted {
		total += len(ids)
	}
	s.metrics.Reconciled(total)
	s.logger.Info(ctx, "subscriptions reconciled", "user_id", userID, "kinds", len(kinds), "inserted", total)
	return inserted, nil
}

// List returns the user's subscription rows, all kinds when kinds is empty.
func (s *SubscriptionService) List(ctx context.Context, userID int64, kinds []string) ([]*models.Subscription, error) {
	return s.repos.Subscriptions(s.db).List(ctx, userID, kinds)
}

// AvailableItems lists the ids of kind the user is currently entitled to.
func (s *SubscriptionService) AvailableItems(ctx context.Context, userID int64, kind string) ([]int64, error) {
	return s.repos.Subscriptions(s.db).Available(ctx, userID, kind, s.now())
}

// CanAccess reports whether exactly one unexpired row grants the user kind/id.
func (s *SubscriptionService) CanAccess(ctx context.Context, userID int64, kind string, itemID int64) (bool, error) {
	n, err := s.repos.Subscriptions(s.db).CountActive(ctx, userID, kind, itemID, s.now())
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
