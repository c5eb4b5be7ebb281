// Package api defines the wire contract of the cropdb auth service: the
// request and response messages, a hand-written gRPC service descriptor
// and a typed client. Messages travel as JSON.
package api

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "cropdb.auth.AuthService"

// Method names.
const (
	MethodPing                 = "Ping"
	MethodLogin                = "Login"
	MethodLogout               = "Logout"
	MethodWhoami               = "Whoami"
	MethodCsrf                 = "Csrf"
	MethodChangePassword       = "ChangePassword"
	MethodChangeEmail          = "ChangeEmail"
	MethodConfirmEmail         = "ConfirmEmail"
	MethodRequestPasswordReset = "RequestPasswordReset"
	MethodResetPassword        = "ResetPassword"
	MethodAvailableItems       = "AvailableItems"
	MethodCanAccess            = "CanAccess"
	MethodRegisterUser         = "RegisterUser"
	MethodListUsers            = "ListUsers"
	MethodSetUserState         = "SetUserState"
	MethodSetSubscriptions     = "SetSubscriptions"
	MethodListSubscriptions    = "ListSubscriptions"
)

// FullMethod returns the gRPC path of a method, e.g. "/cropdb.auth.AuthService/Login".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// AuthServiceServer is implemented by the server.
type AuthServiceServer interface {
	Ping(context.Context, *Empty) (*PingResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	Logout(context.Context, *Empty) (*Empty, error)
	Whoami(context.Context, *Empty) (*User, error)
	Csrf(context.Context, *Empty) (*CsrfResponse, error)
	ChangePassword(context.Context, *ChangePasswordRequest) (*Empty, error)
	ChangeEmail(context.Context, *ChangeEmailRequest) (*Empty, error)
	ConfirmEmail(context.Context, *TokenRequest) (*User, error)
	RequestPasswordReset(context.Context, *RequestPasswordResetRequest) (*Empty, error)
	ResetPassword(context.Context, *ResetPasswordRequest) (*Empty, error)
	AvailableItems(context.Context, *AvailableItemsRequest) (*AvailableItemsResponse, error)
	CanAccess(context.Context, *CanAccessRequest) (*CanAccessResponse, error)
	RegisterUser(context.Context, *RegisterUserRequest) (*RegisterUserResponse, error)
	ListUsers(context.Context, *Empty) (*ListUsersResponse, error)
	SetUserState(context.Context, *SetUserStateRequest) (*User, error)
	SetSubscriptions(context.Context, *SetSubscriptionsRequest) (*SetSubscriptionsResponse, error)
	ListSubscriptions(context.Context, *ListSubscriptionsRequest) (*ListSubscriptionsResponse, error)
}

func unary[Req, Resp any](method string, call func(AuthServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AuthServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AuthServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodPing, AuthServiceServer.Ping),
		unary(MethodLogin, AuthServiceServer.Login),
		unary(MethodLogout, AuthServiceServer.Logout),
		unary(MethodWhoami, AuthServiceServer.Whoami),
		unary(MethodCsrf, AuthServiceServer.Csrf),
		unary(MethodChangePassword, AuthServiceServer.ChangePassword),
		unary(MethodChangeEmail, AuthServiceServer.ChangeEmail),
		unary(MethodConfirmEmail, AuthServiceServer.ConfirmEmail),
		unary(MethodRequestPasswordReset, AuthServiceServer.RequestPasswordReset),
		unary(MethodResetPassword, AuthServiceServer.ResetPassword),
		unary(MethodAvailableItems, AuthServiceServer.AvailableItems),
		unary(MethodCanAccess, AuthServiceServer.CanAccess),
		unary(MethodRegisterUser, AuthServiceServer.RegisterUser),
		unary(MethodListUsers, AuthServiceServer.ListUsers),
		unary(MethodSetUserState, AuthServiceServer.SetUserState),
		unary(MethodSetSubscriptions, AuthServiceServer.SetSubscriptions),
		unary(MethodListSubscriptions, AuthServiceServer.ListSubscriptions),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cropdb/auth.json",
}

func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// AuthServiceClient calls the service over a client connection. Every call
// uses the JSON codec.
type AuthServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAuthServiceClient(cc grpc.ClientConnInterface) *AuthServiceClient {
	return &AuthServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AuthServiceClient) Ping(ctx context.Context, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c.cc, MethodPing, &Empty{}, opts)
}

func (c *AuthServiceClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, MethodLogin, in, opts)
}

func (c *AuthServiceClient) Logout(ctx context.Context, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c.cc, MethodLogout, &Empty{}, opts)
	return err
}

func (c *AuthServiceClient) Whoami(ctx context.Context, opts ...grpc.CallOption) (*User, error) {
	return invoke[User](ctx, c.cc, MethodWhoami, &Empty{}, opts)
}

func (c *AuthServiceClient) Csrf(ctx context.Context, opts ...grpc.CallOption) (*CsrfResponse, error) {
	return invoke[CsrfResponse](ctx, c.cc, MethodCsrf, &Empty{}, opts)
}

func (c *AuthServiceClient) ChangePassword(ctx context.Context, in *ChangePasswordRequest, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c.cc, MethodChangePassword, in, opts)
	return err
}

func (c *AuthServiceClient) ChangeEmail(ctx context.Context, in *ChangeEmailRequest, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c.cc, MethodChangeEmail, in, opts)
	return err
}

func (c *AuthServiceClient) ConfirmEmail(ctx context.Context, in *TokenRequest, opts ...grpc.CallOption) (*User, error) {
	return invoke[User](ctx, c.cc, MethodConfirmEmail, in, opts)
}

func (c *AuthServiceClient) RequestPasswordReset(ctx context.Context, in *RequestPasswordResetRequest, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c.cc, MethodRequestPasswordReset, in, opts)
	return err
}

func (c *AuthServiceClient) ResetPassword(ctx context.Context, in *ResetPasswordRequest, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c.cc, MethodResetPassword, in, opts)
	return err
}

func (c *AuthServiceClient) AvailableItems(ctx context.Context, in *AvailableItemsRequest, opts ...grpc.CallOption) (*AvailableItemsResponse, error) {
	return invoke[AvailableItemsResponse](ctx, c.cc, MethodAvailableItems, in, opts)
}

func (c *AuthServiceClient) CanAccess(ctx context.Context, in *CanAccessRequest, opts ...grpc.CallOption) (*CanAccessResponse, error) {
	return invoke[CanAccessResponse](ctx, c.cc, MethodCanAccess, in, opts)
}

func (c *AuthServiceClient) RegisterUser(ctx context.Context, in *RegisterUserRequest, opts ...grpc.CallOption) (*RegisterUserResponse, error) {
	return invoke[RegisterUserResponse](ctx, c.cc, MethodRegisterUser, in, opts)
}

func (c *AuthServiceClient) ListUsers(ctx context.Context, opts ...grpc.CallOption) (*ListUsersResponse, error) {
	return invoke[ListUsersResponse](ctx, c.cc, MethodListUsers, &Empty{}, opts)
}

func (c *AuthServiceClient) SetUserState(ctx context.Context, in *SetUserStateRequest, opts ...grpc.CallOption) (*User, error) {
	return invoke[User](ctx, c.cc, MethodSetUserState, in, opts)
}

func (c *AuthServiceClient) SetSubscriptions(ctx context.Context, in *SetSubscriptionsRequest, opts ...grpc.CallOption) (*SetSubscriptionsResponse, error) {
	return invoke[SetSubscriptionsResponse](ctx, c.cc, MethodSetSubscriptions, in, opts)
}

func (c *AuthServiceClient) ListSubscriptions(ctx context.Context, in *ListSubscriptionsRequest, opts ...grpc.CallOption) (*ListSubscriptionsResponse, error) {
	return invoke[ListSubscriptionsResponse](ctx, c.cc, MethodListSubscriptions, in, opts)
}
