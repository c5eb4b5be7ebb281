package grpc

import (
	"context"
	"errors"
	"net"
	"path"
	"time"

	"github.com/dmitrijs2005/cropdb/internal/api"
	"github.com/dmitrijs2005/cropdb/internal/common"
	"github.com/dmitrijs2005/cropdb/internal/ids"
	"github.com/dmitrijs2005/cropdb/internal/logging"
	"github.com/dmitrijs2005/cropdb/internal/server/guard"
	"github.com/dmitrijs2005/cropdb/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type ctxKey string

const userKey ctxKey = "user"

// RequestIDHeaderName carries the correlation id; generated when absent.
const RequestIDHeaderName = "x-request-id"

func userFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

func firstValue(md metadata.MD, key string) string {
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}

func peerHost(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}
	return host
}

func sessionHeader(st *models.SessionToken) metadata.MD {
	return metadata.Pairs(
		common.SessionTokenHeaderName, st.Token,
		common.SessionExpiresHeaderName, st.ExpiresAt.UTC().Format(time.RFC3339),
	)
}

func (s *GRPCServer) interceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	method := path.Base(info.FullMethod)

	md, _ := metadata.FromIncomingContext(ctx)
	reqID := firstValue(md, RequestIDHeaderName)
	if reqID == "" {
		reqID = ids.New()
	}
	_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeaderName, reqID))
	log := s.logger.With("request_id", reqID, "method", method)

	resp, err := s.authorize(ctx, log, md, req, info, handler)

	s.metrics.ObserveRPC(method, status.Code(err).String(), time.Since(start))
	return resp, err
}

func (s *GRPCServer) authorize(ctx context.Context, log logging.Logger, md metadata.MD, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	policy, ok := policyFor(info.FullMethod)
	if !ok {
		return nil, status.Error(codes.Unimplemented, "unknown method")
	}

	if v, ok := req.(api.Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
	}

	if info.FullMethod == api.FullMethod(api.MethodLogin) && !s.limiter.Allow(peerHost(ctx)) {
		return nil, status.Error(codes.ResourceExhausted, "too many login attempts")
	}

	var u *models.User
	if policy.NeedsUser() {
		if tok := firstValue(md, common.SessionTokenHeaderName); tok != "" {
			var err error
			u, err = s.backend.Sessions.Verify(ctx, tok)
			if err != nil && !errors.Is(err, common.ErrInvalidToken) {
				return nil, toStatus(ctx, log, err)
			}
		}
	}

	d := guard.Run(guard.Request{User: u, CSRF: firstValue(md, common.CSRFHeaderName)},
		policy.Guards(s.backend.Users.CheckCSRF)...)
	if !d.Allowed {
		log.Debug(ctx, "access denied", "reason", d.Reason.String())
		return nil, denial(d)
	}
	if u != nil {
		ctx = context.WithValue(ctx, userKey, u)
	}

	resp, err := handler(ctx, req)
	if err != nil {
		return nil, toStatus(ctx, log, err)
	}

	if u != nil {
		st, err := s.backend.Sessions.Refresh(ctx, u)
		if err != nil {
			log.Debug(ctx, "session not refreshed", "error", err)
		} else {
			_ = grpc.SetHeader(ctx, sessionHeader(st))
		}
	}
	return resp, nil
}

// denial hides the admin surface behind NotFound.
func denial(d guard.Decision) error {
	switch d.Reason {
	case guard.ReasonAdmin:
		return status.Error(codes.NotFound, "not found")
	case guard.ReasonCSRF:
		return status.Error(codes.PermissionDenied, d.Reason.String())
	default:
		return status.Error(codes.Unauthenticated, "unauthenticated")
	}
}

// toStatus maps core errors to gRPC codes. The reason an authentication
// failed is never disclosed.
func toStatus(ctx context.Context, log logging.Logger, err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, "unauthenticated")
	case errors.Is(err, common.ErrorConflict):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, common.ErrResetPending):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, common.ErrorValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	}
	log.Error(ctx, "call failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}
