package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/cropdb/internal/common"
	"github.com/dmitrijs2005/cropdb/internal/server/models"
)

// BootstrapKind and BootstrapItems are granted to the test account on start.
const BootstrapKind = "product"

var BootstrapItems = []int64{2}

// Bootstrap creates the configured admin and test accounts when missing and
// refreshes the test account's subscription. Accounts with an empty email
// or password are skipped.
func (s *Services) Bootstrap(ctx context.Context) error {
	cfg := s.Users.cfg

	if cfg.AdminUser != "" && cfg.AdminPass != "" {
		if _, err := s.Users.ensure(ctx, cfg.AdminUser, cfg.AdminPass, true); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	if cfg.TestUser != "" && cfg.TestPass != "" {
		u, err := s.Users.ensure(ctx, cfg.TestUser, cfg.TestPass, false)
		if err != nil {
			return fmt.Errorf("bootstrap test user: %w", err)
		}
		if _, err := s.Subscriptions.Reconcile(ctx, u.ID, map[string][]int64{BootstrapKind: BootstrapItems}, 0); err != nil {
			return fmt.Errorf("bootstrap subscription: %w", err)
		}
	}
	return nil
}

// ensure creates an active account with the given password unless the
// email is taken, in which case the existing account is returned as is.
func (s *UserService) ensure(ctx context.Context, email, password string, admin bool) (*models.User, error) {
	repo := s.repos.Users(s.db)

	u, err := repo.GetByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u, err = repo.Create(ctx, &models.User{Email: email, Password: hash, Active: true, Admin: admin})
	if errors.Is(err, common.ErrorConflict) {
		return repo.GetByEmail(ctx, email)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "bootstrap user created", "user_id", u.ID, "admin", admin)
	return u, nil
}
