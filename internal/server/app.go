// Package server wires the auth core together: it opens the database, runs
// migrations, seeds bootstrap accounts and serves gRPC and metrics until a
// termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/cropdb/internal/logging"
	"github.com/dmitrijs2005/cropdb/internal/server/config"
	"github.com/dmitrijs2005/cropdb/internal/server/credentials"
	"github.com/dmitrijs2005/cropdb/internal/server/metrics"
	"github.com/dmitrijs2005/cropdb/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cropdb/internal/server/services"

	gs "github.com/dmitrijs2005/cropdb/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	metrics  *metrics.Metrics
	services *services.Services
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	db, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	hasher, err := credentials.NewHasher(credentials.DefaultParams)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	m := metrics.New()
	svc := services.New(services.Deps{
		DB:      db,
		Repos:   repos,
		Config:  c,
		Hasher:  hasher,
		Logger:  logger,
		Metrics: m,
	})

	return &App{config: c, logger: logger, db: db, metrics: m, services: svc}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, gs.FromServices(app.services), gs.WithMetrics(app.metrics))
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startMetricsServer(ctx context.Context, cancelFunc context.CancelFunc) {
	app.logger.Info(ctx, "Starting metrics server", "address", app.config.MetricsAddr)
	if err := app.metrics.Serve(ctx, app.config.MetricsAddr); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run seeds bootstrap accounts and serves until ctx is cancelled or a
// signal arrives. The database is closed on return.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.db.Close()

	app.logger.Info(ctx, "Starting app...")

	if err := app.services.Bootstrap(ctx); err != nil {
		return err
	}

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	if app.config.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startMetricsServer(ctx, cancelFunc)
		}()
	}

	wg.Wait()
	return nil
}
