package grpc

import (
	"context"

	"github.com/dmitrijs2005/cropdb/internal/api"
	"github.com/dmitrijs2005/cropdb/internal/logging"
	"github.com/dmitrijs2005/cropdb/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// handler implements api.AuthServiceServer. Access checks and error mapping
// happen in the interceptor; protected methods find the caller in ctx.
type handler struct {
	backend Backend
	logger  logging.Logger
}

var _ api.AuthServiceServer = (*handler)(nil)

func toAPIUser(u *models.User) api.User {
	return api.User{
		ID:         u.ID,
		Email:      u.Email,
		Created:    u.Created,
		BannedDate: u.BannedDate,
		Active:     u.Active,
		Banned:     u.Banned,
		Admin:      u.Admin,
	}
}

func caller(ctx context.Context) (*models.User, error) {
	u := userFromContext(ctx)
	if u == nil {
		return nil, status.Error(codes.Unauthenticated, "unauthenticated")
	}
	return u, nil
}

func (h *handler) Ping(context.Context, *api.Empty) (*api.PingResponse, error) {
	return &api.PingResponse{Status: "OK"}, nil
}

func (h *handler) Login(ctx context.Context, req *api.LoginRequest) (*api.LoginResponse, error) {
	u, err := h.backend.Users.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	st, err := h.backend.Sessions.Create(ctx, u.ID, peerHost(ctx))
	if err != nil {
		return nil, err
	}
	_ = grpc.SetHeader(ctx, sessionHeader(st))

	h.logger.Info(ctx, "Logged in", "user_id", u.ID)
	return &api.LoginResponse{Token: st.Token, ExpiresAt: st.ExpiresAt, User: toAPIUser(u)}, nil
}

func (h *handler) Logout(ctx context.Context, _ *api.Empty) (*api.Empty, error) {
	u, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.backend.Sessions.Expire(ctx, u.ID); err != nil {
		return nil, err
	}
	return &api.Empty{}, nil
}

func (h *handler) Whoami(ctx context.Context, _ *api.Empty) (*api.User, error) {
	u, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	out := toAPIUser(u)
	return &out, nil
}

func (h *handler) Csrf(ctx context.Context, _ *api.Empty) (*api.CsrfResponse, error) {
	u, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	nonce, err := h.backend.Users.IssueCSRF(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return &api.CsrfResponse{Token: nonce}, nil
}

func (h *handler) ChangePassword(ctx context.Context, req *api.ChangePasswordRequest) (*api.Empty, error) {
	u, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.backend.Users.ChangePassword(ctx, u.ID, req.OldPassword, req.NewPassword); err != nil {
		return nil, err
	}
	return &api.Empty{}, nil
}

func (h *handler) ChangeEmail(ctx context.Context, req *api.ChangeEmailRequest) (*api.Empty, error) {
	u, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.backend.Users.ChangeEmail(ctx, u.ID, req.OldEmail, req.NewEmail, req.Password); err != nil {
		return nil, err
	}
	return &api.Empty{}, nil
}

func (h *handler) ConfirmEmail(ctx context.Context, req *api.TokenRequest) (*api.User, error) {
	u, err := h.backend.Users.ConfirmEmailChange(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	out := toAPIUser(u)
	return &out, nil
}

func (h *handler) RequestPasswordReset(ctx context.Context, req *api.RequestPasswordResetRequest) (*api.Empty, error) {
	if err := h.backend.Reset.RequestPasswordReset(ctx, req.Email); err != nil {
		return nil, err
	}
	return &api.Empty{}, nil
}

func (h *handler) ResetPassword(ctx context.Context, req *api.ResetPasswordRequest) (*api.Empty, error) {
	if err := h.backend.Reset.CompletePasswordReset(ctx, req.Token, req.NewPassword); err != nil {
		return nil, err
	}
	return &api.Empty{}, nil
}

func (h *handler) AvailableItems(ctx context.Context, req *api.AvailableItemsRequest) (*api.AvailableItemsResponse, error) {
	u, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	items, err := h.backend.Subscriptions.AvailableItems(ctx, u.ID, req.Kind)
	if err != nil {
		return nil, err
	}
	return &api.AvailableItemsResponse{Items: items}, nil
}

// CanAccess lets admins through without consulting subscriptions.
func (h *handler) CanAccess(ctx context.Context, req *api.CanAccessRequest) (*api.CanAccessResponse, error) {
	u, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if u.Admin {
		return &api.CanAccessResponse{Allowed: true}, nil
	}
	ok, err := h.backend.Subscriptions.CanAccess(ctx, u.ID, req.Kind, req.ItemID)
	if err != nil {
		return nil, err
	}
	return &api.CanAccessResponse{Allowed: ok}, nil
}

func (h *handler) RegisterUser(ctx context.Context, req *api.RegisterUserRequest) (*api.RegisterUserResponse, error) {
	u, created, err := h.backend.Users.Register(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	return &api.RegisterUserResponse{User: toAPIUser(u), Created: created}, nil
}

func (h *handler) ListUsers(ctx context.Context, _ *api.Empty) (*api.ListUsersResponse, error) {
	list, err := h.backend.Users.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]api.User, 0, len(list))
	for _, u := range list {
		out = append(out, toAPIUser(u))
	}
	return &api.ListUsersResponse{Users: out}, nil
}

func (h *handler) SetUserState(ctx context.Context, req *api.SetUserStateRequest) (*api.User, error) {
	u, err := h.backend.Users.SetState(ctx, req.UserID, models.UserState(req.State))
	if err != nil {
		return nil, err
	}
	out := toAPIUser(u)
	return &out, nil
}

func (h *handler) SetSubscriptions(ctx context.Context, req *api.SetSubscriptionsRequest) (*api.SetSubscriptionsResponse, error) {
	items := req.Items
	if items == nil {
		items = map[string][]int64{}
	}
	inserted, err := h.backend.Subscriptions.Reconcile(ctx, req.UserID, items, req.Days)
	if err != nil {
		return nil, err
	}
	return &api.SetSubscriptionsResponse{Inserted: inserted}, nil
}

func (h *handler) ListSubscriptions(ctx context.Context, req *api.ListSubscriptionsRequest) (*api.ListSubscriptionsResponse, error) {
	subs, err := h.backend.Subscriptions.List(ctx, req.UserID, req.Kinds)
	if err != nil {
		return nil, err
	}
	out := make([]api.Subscription, 0, len(subs))
	for _, s := range subs {
		out = append(out, api.Subscription{Kind: s.Kind, ItemID: s.ItemID, CanPut: s.CanPut, Expires: s.Expires})
	}
	return &api.ListSubscriptionsResponse{Subscriptions: out}, nil
}
