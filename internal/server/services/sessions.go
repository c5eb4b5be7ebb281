package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/cropdb/internal/common"
	"github.com/dmitrijs2005/cropdb/internal/dbx"
	"github.com/dmitrijs2005/cropdb/internal/server/models"
	"github.com/dmitrijs2005/cropdb/internal/server/token"
	"github.com/google/uuid"
)

// SessionService keeps at most one active session per user.
type SessionService struct {
	*core
}

func (s *SessionService) mint(sessionID string) (string, error) {
	return s.codec.Create(token.Payload{"session": sessionID}, token.SaltSession, s.cfg.AuthTimeout)
}

// Create starts a new session for the user, ending any previous one. The
// user row is locked for the duration so concurrent logins serialise.
// Inactive or banned users get common.ErrorUnauthorized.
func (s *SessionService) Create(ctx context.Context, userID int64, location string) (*models.SessionToken, error) {
	var out *models.SessionToken
	err := s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		u, err := s.repos.Users(tx).LockByID(ctx, userID)
		if err != nil {
			return err
		}
		if !u.IsActive() {
			return common.ErrorUnauthorized
		}
		if err := s.expireSessions(ctx, tx, u.ID); err != nil {
			return err
		}

		now := s.now()
		sess := &models.Session{
			ID:        uuid.NewString(),
			UserID:    u.ID,
			StartTime: now,
			EndTime:   now.Add(s.cfg.AuthTimeout),
			Active:    true,
			Location:  location,
		}
		if err := s.repos.Sessions(tx).Create(ctx, sess); err != nil {
			return err
		}

		tok, err := s.mint(sess.ID)
		if err != nil {
			return err
		}
		out = &models.SessionToken{Token: tok, ExpiresAt: sess.EndTime}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.SessionCreated()
	s.logger.Info(ctx, "session created", "user_id", userID, "location", location)
	return out, nil
}

// Refresh extends the active session of u and mints a new token for it.
// It fails with common.ErrorUnauthorized when u is not active, has no
// active session, or the session is already past its end time. An overdue
// row is left as is.
func (s *SessionService) Refresh(ctx context.Context, u *models.User) (*models.SessionToken, error) {
	if !u.IsActive() {
		return nil, common.ErrorUnauthorized
	}

	repo := s.repos.Sessions(s.db)
	sess, err := repo.ActiveForUser(ctx, u.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}

	now := s.now()
	if !now.Before(sess.EndTime) {
		return nil, common.ErrorUnauthorized
	}

	tok, err := s.mint(sess.ID)
	if err != nil {
		return nil, err
	}
	end := now.Add(s.cfg.AuthTimeout)
	if err := repo.Extend(ctx, sess.ID, end); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	return &models.SessionToken{Token: tok, ExpiresAt: end}, nil
}

// Verify resolves a session token to its user. Any failure, including an
// expired or superseded session and an inactive owner, yields
// common.ErrInvalidToken.
func (s *SessionService) Verify(ctx context.Context, tok string) (*models.User, error) {
	p, ok := s.codec.Verify(tok, token.SaltSession)
	if !ok {
		return nil, common.ErrInvalidToken
	}
	sid, ok := p.String("session")
	if !ok {
		return nil, common.ErrInvalidToken
	}
	if _, err := uuid.Parse(sid); err != nil {
		return nil, common.ErrInvalidToken
	}

	sess, err := s.repos.Sessions(s.db).GetActive(ctx, sid)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, err
	}
	if !s.now().Before(sess.EndTime) {
		return nil, common.ErrInvalidToken
	}

	u, err := s.repos.Users(s.db).GetByID(ctx, sess.UserID)
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

// Expire ends every active session of the user. Safe to repeat.
func (s *SessionService) Expire(ctx context.Context, userID int64) error {
	return s.expireSessions(ctx, s.db, userID)
}

// IsAuthenticated reports whether u is active and holds an active session.
func (s *SessionService) IsAuthenticated(ctx context.Context, u *models.User) (bool, error) {
	if !u.IsActive() {
		return false, nil
	}
	_, err := s.repos.Sessions(s.db).ActiveForUser(ctx, u.ID)
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
