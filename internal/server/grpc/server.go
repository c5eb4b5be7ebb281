// Package grpc exposes the auth core over gRPC using the JSON codec from
// internal/api.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/cropdb/internal/api"
	"github.com/dmitrijs2005/cropdb/internal/logging"
	"github.com/dmitrijs2005/cropdb/internal/server/metrics"
	"github.com/dmitrijs2005/cropdb/internal/server/models"
	"github.com/dmitrijs2005/cropdb/internal/server/services"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
)

type UserService interface {
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error
	ChangeEmail(ctx context.Context, userID int64, oldEmail, newEmail, password string) error
	ConfirmEmailChange(ctx context.Context, tok string) (*models.User, error)
	IssueCSRF(ctx context.Context, userID int64) (string, error)
	CheckCSRF(u *models.User, value string) bool
	Register(ctx context.Context, email string) (*models.User, bool, error)
	List(ctx context.Context) ([]*models.User, error)
	SetState(ctx context.Context, userID int64, state models.UserState) (*models.User, error)
}

type SessionService interface {
	Create(ctx context.Context, userID int64, location string) (*models.SessionToken, error)
	Verify(ctx context.Context, tok string) (*models.User, error)
	Refresh(ctx context.Context, u *models.User) (*models.SessionToken, error)
	Expire(ctx context.Context, userID int64) error
}

type ResetService interface {
	RequestPasswordReset(ctx context.Context, email string) error
	CompletePasswordReset(ctx context.Context, tok, newPassword string) error
}

type SubscriptionService interface {
	Reconcile(ctx context.Context, userID int64, desired map[string][]int64, extendDays int) (map[string][]int64, error)
	List(ctx context.Context, userID int64, kinds []string) ([]*models.Subscription, error)
	AvailableItems(ctx context.Context, userID int64, kind string) ([]int64, error)
	CanAccess(ctx context.Context, userID int64, kind string, itemID int64) (bool, error)
}

// Backend is the set of services the server calls into.
type Backend struct {
	Users         UserService
	Sessions      SessionService
	Reset         ResetService
	Subscriptions SubscriptionService
}

// FromServices adapts the auth core to a Backend.
func FromServices(s *services.Services) Backend {
	return Backend{Users: s.Users, Sessions: s.Sessions, Reset: s.Reset, Subscriptions: s.Subscriptions}
}

type GRPCServer struct {
	address string
	backend Backend
	logger  logging.Logger
	metrics *metrics.Metrics
	limiter *peerLimiter
}

type Option func(*GRPCServer)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *GRPCServer) { s.metrics = m }
}

// WithLoginLimit sets the per-peer token bucket applied to Login.
func WithLoginLimit(r rate.Limit, burst int) Option {
	return func(s *GRPCServer) { s.limiter = newPeerLimiter(r, burst, 5*time.Minute) }
}

func NewGRPCServer(a string, l logging.Logger, b Backend, opts ...Option) *GRPCServer {
	s := &GRPCServer{
		address: a,
		backend: b,
		logger:  l.With("module", "grpc_server"),
		limiter: newPeerLimiter(rate.Every(time.Second), 10, 5*time.Minute),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.interceptor))
	api.RegisterAuthServiceServer(srv, &handler{backend: s.backend, logger: s.logger})
	return srv
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())
	return srv.Serve(lis)
}

func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}
