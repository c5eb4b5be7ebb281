package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/cropdb/internal/common"
	"github.com/dmitrijs2005/cropdb/internal/dbx"
	"github.com/dmitrijs2005/cropdb/internal/server/credentials"
	"github.com/dmitrijs2005/cropdb/internal/server/metrics"
	"github.com/dmitrijs2005/cropdb/internal/server/models"
	"github.com/dmitrijs2005/cropdb/internal/server/token"
)

// Reset token purposes.
const (
	WhichEmail    = "email"
	WhichPassword = "password"
)

// UserService owns the account state machine:
//
//	Inactive -> Active <-> Banned, with admin as an orthogonal flag.
//
// Transitions that end sessions do so in the same transaction as the flag
// change.
type UserService struct {
	*core
	reset *ResetService
}

// transition mutates a locked user row. It returns false when the
// precondition does not hold and nothing should be written.
type transition func(ctx context.Context, tx dbx.DBTX, u *models.User) (bool, error)

func (s *UserService) apply(ctx context.Context, userID int64, t transition) (*models.User, error) {
	var out *models.User
	err := s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		u, err := s.repos.Users(tx).LockByID(ctx, userID)
		if err != nil {
			return err
		}
		changed, err := t(ctx, tx, u)
		if err != nil {
			return err
		}
		if changed {
			if err := s.repos.Users(tx).Update(ctx, u); err != nil {
				return err
			}
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *UserService) activate(_ context.Context, _ dbx.DBTX, u *models.User) (bool, error) {
	if u.Active {
		return false, nil
	}
	u.Active = true
	return true, nil
}

func (s *UserService) inactivate(ctx context.Context, tx dbx.DBTX, u *models.User) (bool, error) {
	if !u.Active {
		return false, nil
	}
	if err := s.expireSessions(ctx, tx, u.ID); err != nil {
		return false, err
	}
	u.Active = false
	return true, nil
}

func (s *UserService) ban(ctx context.Context, tx dbx.DBTX, u *models.User) (bool, error) {
	if u.Banned {
		return false, nil
	}
	if err := s.expireSessions(ctx, tx, u.ID); err != nil {
		return false, err
	}
	now := s.now()
	u.Banned = true
	u.BannedDate = &now
	s.metrics.Banned()
	s.logger.Warn(ctx, "user banned", "user_id", u.ID)
	return true, nil
}

func (s *UserService) unban(_ context.Context, _ dbx.DBTX, u *models.User) (bool, error) {
	if !u.Banned {
		return false, nil
	}
	u.Banned = false
	u.BannedDate = nil
	return true, nil
}

func (s *UserService) setPassword(cleartext string) transition {
	return func(ctx context.Context, tx dbx.DBTX, u *models.User) (bool, error) {
		if err := s.expireSessions(ctx, tx, u.ID); err != nil {
			return false, err
		}
		hash, err := s.hasher.Hash(cleartext)
		if err != nil {
			return false, fmt.Errorf("hash password: %w", err)
		}
		u.Password = hash
		return true, nil
	}
}

func (s *UserService) Activate(ctx context.Context, userID int64) (*models.User, error) {
	return s.apply(ctx, userID, s.activate)
}

func (s *UserService) Inactivate(ctx context.Context, userID int64) (*models.User, error) {
	return s.apply(ctx, userID, s.inactivate)
}

func (s *UserService) Ban(ctx context.Context, userID int64) (*models.User, error) {
	return s.apply(ctx, userID, s.ban)
}

func (s *UserService) Unban(ctx context.Context, userID int64) (*models.User, error) {
	return s.apply(ctx, userID, s.unban)
}

// SetPassword replaces the hash and ends every session of the user.
func (s *UserService) SetPassword(ctx context.Context, userID int64, cleartext string) (*models.User, error) {
	return s.apply(ctx, userID, s.setPassword(cleartext))
}

// SetState runs the admin transition named by state.
func (s *UserService) SetState(ctx context.Context, userID int64, state models.UserState) (*models.User, error) {
	transitions := map[models.UserState]transition{
		models.StateActivate:   s.activate,
		models.StateInactivate: s.inactivate,
		models.StateBan:        s.ban,
		models.StateUnban:      s.unban,
	}
	t, ok := transitions[state]
	if !ok {
		return nil, fmt.Errorf("%w: unknown state %q", common.ErrorValidation, state)
	}
	return s.apply(ctx, userID, t)
}

// Register returns the account for email, creating an inactive one with an
// unusable placeholder password when it does not exist yet.
func (s *UserService) Register(ctx context.Context, email string) (*models.User, bool, error) {
	placeholder, err := credentials.GeneratePlaceholderPassword(credentials.PlaceholderLength)
	if err != nil {
		return nil, false, err
	}
	hash, err := s.hasher.Hash(placeholder)
	if err != nil {
		return nil, false, fmt.Errorf("hash password: %w", err)
	}

	u, created, err := s.repos.Users(s.db).GetOrCreate(ctx, email, hash)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.logger.Info(ctx, "user registered", "user_id", u.ID)
	}
	return u, created, nil
}

// Authenticate checks email and password. Unknown, inactive and banned
// accounts and wrong passwords all yield common.ErrorUnauthorized. A wrong
// password bumps the failure counter and bans the account once it reaches
// the configured number of attempts.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	repo := s.repos.Users(s.db)

	u, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.Login(metrics.LoginRejected)
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}

	if !u.IsActive() {
		s.metrics.Login(metrics.LoginRejected)
		return nil, common.ErrorUnauthorized
	}

	if !s.hasher.Verify(password, u.Password) {
		banned := false
		err := s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
			n, err := s.repos.Users(tx).IncrementWrongLogins(ctx, u.ID)
			if err != nil {
				return err
			}
			if n < s.cfg.AuthAttempts {
				return nil
			}
			locked, err := s.repos.Users(tx).LockByID(ctx, u.ID)
			if err != nil {
				return err
			}
			changed, err := s.ban(ctx, tx, locked)
			if err != nil || !changed {
				return err
			}
			banned = true
			return s.repos.Users(tx).Update(ctx, locked)
		})
		if err != nil {
			return nil, err
		}
		if banned {
			s.metrics.Login(metrics.LoginBanned)
		} else {
			s.metrics.Login(metrics.LoginRejected)
		}
		return nil, common.ErrorUnauthorized
	}

	if err := repo.ResetWrongLogins(ctx, u.ID); err != nil {
		return nil, err
	}
	u.WrongLogins = 0

	if s.hasher.NeedsRehash(u.Password) {
		if err := s.rehash(ctx, u.ID, u.Password, password); err != nil {
			s.logger.Warn(ctx, "password rehash failed", "user_id", u.ID, "error", err)
		}
	}

	s.metrics.Login(metrics.LoginOK)
	return u, nil
}

// rehash upgrades the stored hash on the locked row. It is skipped when the
// account stopped being active or the hash changed since it was verified.
func (s *UserService) rehash(ctx context.Context, userID int64, verified, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		locked, err := s.repos.Users(tx).LockByID(ctx, userID)
		if err != nil {
			return err
		}
		if !locked.IsActive() || locked.Password != verified {
			return nil
		}
		locked.Password = hash
		return s.repos.Users(tx).Update(ctx, locked)
	})
}

// ChangePassword replaces the password of an authenticated user after
// checking the old one.
func (s *UserService) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	if oldPassword == newPassword {
		return fmt.Errorf("%w: new password equals old password", common.ErrorValidation)
	}
	u, err := s.repos.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(oldPassword, u.Password) {
		return common.ErrorUnauthorized
	}
	_, err = s.SetPassword(ctx, userID, newPassword)
	return err
}

// ChangeEmail starts an email change: it issues an "email" reset token
// carrying the new address, hands it to the notifier and inactivates the
// account until ConfirmEmailChange.
func (s *UserService) ChangeEmail(ctx context.Context, userID int64, oldEmail, newEmail, password string) error {
	repo := s.repos.Users(s.db)

	u, err := repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if oldEmail != u.Email || !s.hasher.Verify(password, u.Password) {
		return common.ErrorUnauthorized
	}
	if newEmail == u.Email {
		return fmt.Errorf("%w: new email equals old email", common.ErrorValidation)
	}
	if _, err := repo.GetByEmail(ctx, newEmail); err == nil {
		return common.ErrorConflict
	} else if !errors.Is(err, common.ErrorNotFound) {
		return err
	}

	var tok string
	_, err = s.apply(ctx, userID, func(ctx context.Context, tx dbx.DBTX, u *models.User) (bool, error) {
		var err error
		tok, err = s.reset.issue(ctx, tx, u, WhichEmail, token.Payload{"new_email": newEmail})
		if err != nil {
			return false, err
		}
		if _, err := s.inactivate(ctx, tx, u); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return err
	}

	return s.notifier.Notify(ctx, newEmail, WhichEmail, tok)
}

// ConfirmEmailChange applies the address carried by an "email" reset token.
// The token must be the one stored on the account, and the account must not
// be banned. The account is re-activated.
func (s *UserService) ConfirmEmailChange(ctx context.Context, tok string) (*models.User, error) {
	p, ok := s.codec.Verify(tok, token.SaltReset)
	if !ok {
		return nil, common.ErrInvalidToken
	}
	which, _ := p.String("which")
	userID, okID := p.Int64("user")
	newEmail, okEmail := p.String("new_email")
	if which != WhichEmail || !okID || !okEmail || newEmail == "" {
		return nil, common.ErrInvalidToken
	}

	u, err := s.apply(ctx, userID, func(_ context.Context, _ dbx.DBTX, u *models.User) (bool, error) {
		if u.Banned || subtle.ConstantTimeCompare([]byte(u.Reset), []byte(tok)) != 1 {
			return false, common.ErrInvalidToken
		}
		u.Email = newEmail
		u.Reset = ""
		u.Active = true
		return true, nil
	})
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrInvalidToken
	}
	return u, err
}

// IssueCSRF stores a fresh nonce on the user and returns it. Each call
// replaces the previous nonce, so only the latest one is accepted.
func (s *UserService) IssueCSRF(ctx context.Context, userID int64) (string, error) {
	nonce, err := common.MakeRandHexString(16)
	if err != nil {
		return "", err
	}
	if err := s.repos.Users(s.db).SetCSRF(ctx, userID, nonce); err != nil {
		return "", err
	}
	return nonce, nil
}

// CheckCSRF compares value with the nonce stored on u.
func (s *UserService) CheckCSRF(u *models.User, value string) bool {
	if u == nil || u.CSRF == "" || value == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(u.CSRF), []byte(value)) == 1
}

func (s *UserService) Get(ctx context.Context, userID int64) (*models.User, error) {
	return s.repos.Users(s.db).GetByID(ctx, userID)
}

func (s *UserService) List(ctx context.Context) ([]*models.User, error) {
	return s.repos.Users(s.db).List(ctx)
}
