package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/cropdb/internal/common"
	"github.com/dmitrijs2005/cropdb/internal/dbx"
	"github.com/dmitrijs2005/cropdb/internal/server/models"
	"github.com/dmitrijs2005/cropdb/internal/server/token"
)

// ResetService issues and checks reset tokens for the email-change and
// forgotten-password flows. A user holds at most one outstanding token.
type ResetService struct {
	*core
}

// issue mints a reset token for the locked user u and stores it on the row
// object; the caller writes u back.
func (s *ResetService) issue(ctx context.Context, tx dbx.DBTX, u *models.User, which string, extra token.Payload) (string, error) {
	if !u.IsActive() {
		return "", common.ErrorUnauthorized
	}
	if u.Reset != "" {
		if _, ok := s.codec.Verify(u.Reset, token.SaltReset); ok {
			return "", common.ErrResetPending
		}
	}

	if err := s.expireSessions(ctx, tx, u.ID); err != nil {
		return "", err
	}

	payload := token.Payload{}
	for k, v := range extra {
		payload[k] = v
	}
	payload["user"] = u.ID
	payload["which"] = which

	tok, err := s.codec.Create(payload, token.SaltReset, s.cfg.ResetTimeout)
	if err != nil {
		return "", err
	}
	u.Reset = tok
	s.metrics.ResetIssued(which)
	return tok, nil
}

// CreateResetToken issues a reset token of purpose which for the user.
// Banned or inactive users get common.ErrorUnauthorized; a user whose
// previous token still verifies gets common.ErrResetPending.
func (s *ResetService) CreateResetToken(ctx context.Context, userID int64, which string, extra token.Payload) (string, error) {
	var tok string
	err := s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		u, err := s.repos.Users(tx).LockByID(ctx, userID)
		if err != nil {
			return err
		}
		tok, err = s.issue(ctx, tx, u, which, extra)
		if err != nil {
			return err
		}
		return s.repos.Users(tx).Update(ctx, u)
	})
	if err != nil {
		return "", err
	}
	return tok, nil
}

// VerifyResetToken returns the active user a reset token of purpose which
// was issued to. Verification does not consume the token.
func (s *ResetService) VerifyResetToken(ctx context.Context, tok, which string) (*models.User, error) {
	p, ok := s.codec.Verify(tok, token.SaltReset)
	if !ok {
		return nil, common.ErrInvalidToken
	}
	if w, _ := p.String("which"); w != which {
		return nil, common.ErrInvalidToken
	}
	userID, ok := p.Int64("user")
	if !ok {
		return nil, common.ErrInvalidToken
	}

	u, err := s.repos.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, err
	}
	if !u.IsActive() {
		return nil, common.ErrInvalidToken
	}
	return u, nil
}

// ClearReset drops the stored reset token of the user.
func (s *ResetService) ClearReset(ctx context.Context, userID int64) error {
	return s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		u, err := s.repos.Users(tx).LockByID(ctx, userID)
		if err != nil {
			return err
		}
		if u.Reset == "" {
			return nil
		}
		u.Reset = ""
		return s.repos.Users(tx).Update(ctx, u)
	})
}

// RequestPasswordReset issues a "password" token for email and passes it
// to the notifier. Unknown, inactive and already-pending accounts succeed
// silently so callers cannot probe which emails exist.
func (s *ResetService) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.repos.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return err
	}

	tok, err := s.CreateResetToken(ctx, u.ID, WhichPassword, nil)
	switch {
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrResetPending):
		s.logger.Info(ctx, "password reset not issued", "user_id", u.ID, "reason", err.Error())
		return nil
	case err != nil:
		return err
	}

	return s.notifier.Notify(ctx, u.Email, WhichPassword, tok)
}

// CompletePasswordReset sets a new password using a "password" token. The
// token must still be the one stored on the account, and is cleared.
func (s *ResetService) CompletePasswordReset(ctx context.Context, tok, newPassword string) error {
	u, err := s.VerifyResetToken(ctx, tok, WhichPassword)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		locked, err := s.repos.Users(tx).LockByID(ctx, u.ID)
		if err != nil {
			return err
		}
		if subtle.ConstantTimeCompare([]byte(locked.Reset), []byte(tok)) != 1 {
			return common.ErrInvalidToken
		}
		if err := s.expireSessions(ctx, tx, locked.ID); err != nil {
			return err
		}
		hash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		locked.Password = hash
		locked.Reset = ""
		return s.repos.Users(tx).Update(ctx, locked)
	})
}
