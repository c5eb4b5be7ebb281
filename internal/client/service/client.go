// Package service is the CLI's connection to the auth server. It keeps the
// session token the server hands back on every authenticated call and
// fetches a CSRF nonce before each mutating call.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/cropdb/internal/api"
	"github.com/dmitrijs2005/cropdb/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var ErrNotLoggedIn = errors.New("not logged in")

type Client struct {
	endpointURL string
	timeout     time.Duration
	conn        *grpc.ClientConn
	api         *api.AuthServiceClient

	mu      sync.Mutex
	session string
	expires time.Time
	csrf    string
}

func NewClient(endpointURL string, timeout time.Duration) *Client {
	return &Client{endpointURL: endpointURL, timeout: timeout}
}

// Connect creates the client connection; extra options are appended to the
// defaults.
func (c *Client) Connect(opts ...grpc.DialOption) error {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.sessionInterceptor),
	}, opts...)
	conn, err := grpc.NewClient(c.endpointURL, opts...)
	if err != nil {
		return err
	}
	c.conn = conn
	c.api = api.NewAuthServiceClient(conn)
	return nil
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// sessionInterceptor attaches the current session token and CSRF nonce and
// picks up the refreshed token from the response headers. An
// Unauthenticated reply drops the local session.
func (c *Client) sessionInterceptor(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	c.mu.Lock()
	kv := make([]string, 0, 4)
	if c.session != "" {
		kv = append(kv, common.SessionTokenHeaderName, c.session)
	}
	if c.csrf != "" {
		kv = append(kv, common.CSRFHeaderName, c.csrf)
	}
	c.mu.Unlock()
	if len(kv) > 0 {
		ctx = metadata.AppendToOutgoingContext(ctx, kv...)
	}

	var hdr metadata.MD
	opts = append(opts, grpc.Header(&hdr))
	err := invoker(ctx, method, req, reply, cc, opts...)

	c.mu.Lock()
	defer c.mu.Unlock()
	if tokens := hdr.Get(common.SessionTokenHeaderName); len(tokens) > 0 && tokens[0] != "" {
		c.session = tokens[0]
		if exp := hdr.Get(common.SessionExpiresHeaderName); len(exp) > 0 {
			if t, perr := time.Parse(time.RFC3339, exp[0]); perr == nil {
				c.expires = t
			}
		}
	}
	if status.Code(err) == codes.Unauthenticated && method != api.FullMethod(api.MethodLogin) {
		c.session, c.csrf, c.expires = "", "", time.Time{}
	}
	return err
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// LoggedIn reports whether a session token is held.
func (c *Client) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != ""
}

// SessionExpires returns the expiry of the held session.
func (c *Client) SessionExpires() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expires
}

func (c *Client) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session, c.csrf, c.expires = "", "", time.Time{}
}

// refreshCSRF fetches a fresh nonce; the server keeps only the latest one.
func (c *Client) refreshCSRF(ctx context.Context) error {
	if !c.LoggedIn() {
		return ErrNotLoggedIn
	}
	resp, err := c.api.Csrf(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.csrf = resp.Token
	c.mu.Unlock()
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	_, err := c.api.Ping(ctx)
	return err
}

func (c *Client) Login(ctx context.Context, email, password string) (*api.User, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	c.clear()
	resp, err := c.api.Login(ctx, &api.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.session, c.expires = resp.Token, resp.ExpiresAt
	c.mu.Unlock()
	return &resp.User, nil
}

func (c *Client) Logout(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.refreshCSRF(ctx); err != nil {
		return err
	}
	err := c.api.Logout(ctx)
	c.clear()
	return err
}

func (c *Client) Whoami(ctx context.Context) (*api.User, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.api.Whoami(ctx)
}

// ChangePassword ends the session on success; log in again afterwards.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.refreshCSRF(ctx); err != nil {
		return err
	}
	if err := c.api.ChangePassword(ctx, &api.ChangePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword}); err != nil {
		return err
	}
	c.clear()
	return nil
}

func (c *Client) ChangeEmail(ctx context.Context, oldEmail, newEmail, password string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.refreshCSRF(ctx); err != nil {
		return err
	}
	if err := c.api.ChangeEmail(ctx, &api.ChangeEmailRequest{OldEmail: oldEmail, NewEmail: newEmail, Password: password}); err != nil {
		return err
	}
	c.clear()
	return nil
}

func (c *Client) ConfirmEmail(ctx context.Context, tok string) (*api.User, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.api.ConfirmEmail(ctx, &api.TokenRequest{Token: tok})
}

func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.api.RequestPasswordReset(ctx, &api.RequestPasswordResetRequest{Email: email})
}

func (c *Client) ResetPassword(ctx context.Context, tok, newPassword string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.api.ResetPassword(ctx, &api.ResetPasswordRequest{Token: tok, NewPassword: newPassword})
}

func (c *Client) AvailableItems(ctx context.Context, kind string) ([]int64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	resp, err := c.api.AvailableItems(ctx, &api.AvailableItemsRequest{Kind: kind})
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) CanAccess(ctx context.Context, kind string, itemID int64) (bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	resp, err := c.api.CanAccess(ctx, &api.CanAccessRequest{Kind: kind, ItemID: itemID})
	if err != nil {
		return false, err
	}
	return resp.Allowed, nil
}

func (c *Client) RegisterUser(ctx context.Context, email string) (*api.RegisterUserResponse, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := c.refreshCSRF(ctx); err != nil {
		return nil, err
	}
	return c.api.RegisterUser(ctx, &api.RegisterUserRequest{Email: email})
}

func (c *Client) ListUsers(ctx context.Context) ([]api.User, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	resp, err := c.api.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return resp.Users, nil
}

func (c *Client) SetUserState(ctx context.Context, userID int64, state string) (*api.User, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := c.refreshCSRF(ctx); err != nil {
		return nil, err
	}
	return c.api.SetUserState(ctx, &api.SetUserStateRequest{UserID: userID, State: state})
}

func (c *Client) SetSubscriptions(ctx context.Context, userID int64, items map[string][]int64, days int) (map[string][]int64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := c.refreshCSRF(ctx); err != nil {
		return nil, err
	}
	resp, err := c.api.SetSubscriptions(ctx, &api.SetSubscriptionsRequest{UserID: userID, Items: items, Days: days})
	if err != nil {
		return nil, err
	}
	return resp.Inserted, nil
}

func (c *Client) ListSubscriptions(ctx context.Context, userID int64, kinds []string) ([]api.Subscription, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	resp, err := c.api.ListSubscriptions(ctx, &api.ListSubscriptionsRequest{UserID: userID, Kinds: kinds})
	if err != nil {
		return nil, err
	}
	return resp.Subscriptions, nil
}
