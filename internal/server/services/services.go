// Package services contains the server-side auth core: user lifecycle,
// sessions, reset tokens and subscription entitlements. Every multi-row
// change runs inside dbx.WithTx.
package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/cropdb/internal/dbx"
	"github.com/dmitrijs2005/cropdb/internal/logging"
	"github.com/dmitrijs2005/cropdb/internal/server/config"
	"github.com/dmitrijs2005/cropdb/internal/server/credentials"
	"github.com/dmitrijs2005/cropdb/internal/server/metrics"
	"github.com/dmitrijs2005/cropdb/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cropdb/internal/server/token"
)

// Deps are the collaborators shared by all services. Logger, Metrics,
// Notifier and Now are optional.
type Deps struct {
	DB       *sql.DB
	Repos    repomanager.RepositoryManager
	Config   *config.Config
	Hasher   *credentials.Hasher
	Notifier Notifier
	Logger   logging.Logger
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

// Services groups the auth core.
type Services struct {
	Users         *UserService
	Sessions      *SessionService
	Reset         *ResetService
	Subscriptions *SubscriptionService
}

type core struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	cfg      *config.Config
	hasher   *credentials.Hasher
	codec    *token.Codec
	notifier Notifier
	logger   logging.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func New(d Deps) *Services {
	c := &core{
		db:       d.DB,
		repos:    d.Repos,
		cfg:      d.Config,
		hasher:   d.Hasher,
		notifier: d.Notifier,
		logger:   d.Logger,
		metrics:  d.Metrics,
		now:      d.Now,
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = logging.NewNop()
	}
	if c.notifier == nil {
		c.notifier = NewLogNotifier(c.logger)
	}
	c.codec = token.NewCodec(d.Config.SecretKey).WithClock(c.now)

	reset := &ResetService{core: c}
	return &Services{
		Users:         &UserService{core: c, reset: reset},
		Sessions:      &SessionService{core: c},
		Reset:         reset,
		Subscriptions: &SubscriptionService{core: c},
	}
}

func (c *core) withTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return dbx.WithTx(ctx, c.db, nil, fn)
}

// expireSessions deactivates every active session of the user on tx.
func (c *core) expireSessions(ctx context.Context, tx dbx.DBTX, userID int64) error {
	n, err := c.repos.Sessions(tx).ExpireForUser(ctx, userID, c.now())
	if err != nil {
		return err
	}
	if n > 0 {
		c.logger.Debug(ctx, "sessions expired", "user_id", userID, "count", n)
	}
	return nil
}
