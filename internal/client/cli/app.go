package cli

import (
	"bufio"
	"context"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/cropdb/internal/api"
	"github.com/dmitrijs2005/cropdb/internal/client/config"
	"github.com/dmitrijs2005/cropdb/internal/client/service"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

const statusCheckInterval = 10 * time.Second

// AuthClient is the remote surface the CLI drives. *service.Client
// satisfies it.
type AuthClient interface {
	Close() error
	Ping(ctx context.Context) error
	LoggedIn() bool
	SessionExpires() time.Time
	Login(ctx context.Context, email, password string) (*api.User, error)
	Logout(ctx context.Context) error
	Whoami(ctx context.Context) (*api.User, error)
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
	ChangeEmail(ctx context.Context, oldEmail, newEmail, password string) error
	ConfirmEmail(ctx context.Context, tok string) (*api.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, tok, newPassword string) error
	AvailableItems(ctx context.Context, kind string) ([]int64, error)
	CanAccess(ctx context.Context, kind string, itemID int64) (bool, error)
	RegisterUser(ctx context.Context, email string) (*api.RegisterUserResponse, error)
	ListUsers(ctx context.Context) ([]api.User, error)
	SetUserState(ctx context.Context, userID int64, state string) (*api.User, error)
	SetSubscriptions(ctx context.Context, userID int64, items map[string][]int64, days int) (map[string][]int64, error)
	ListSubscriptions(ctx context.Context, userID int64, kinds []string) ([]api.Subscription, error)
}

type App struct {
	config *config.Config
	client AuthClient
	reader *bufio.Reader
	out    io.Writer
	user   *api.User

	mu   sync.Mutex
	mode Mode
}

func NewApp(c *config.Config) (*App, error) {
	cl := service.NewClient(c.ServerEndpointAddr, c.CallTimeout)
	if err := cl.Connect(); err != nil {
		return nil, err
	}
	return newApp(c, cl, os.Stdin, os.Stdout), nil
}

func newApp(c *config.Config, cl AuthClient, in io.Reader, out io.Writer) *App {
	return &App{config: c, client: cl, reader: bufio.NewReader(in), out: out}
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode != mode {
		a.mode = mode
		log.Printf("Switched to %s mode\n", mode)
	}
}

func (a *App) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// Run blocks in the REPL until the user exits, then closes the connection.
func (a *App) Run(ctx context.Context) {
	defer a.client.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.StartOnlineStatusWatcher(ctx, statusCheckInterval)

	printlnFn("Welcome to cropdb CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

// isLoggedIn trusts the client: a rejected token drops the session there.
func (a *App) isLoggedIn() bool {
	if !a.client.LoggedIn() {
		a.user = nil
		return false
	}
	return a.user != nil
}

func (a *App) isAdmin() bool {
	return a.isLoggedIn() && a.user.Admin
}

func (a *App) getStatus() string {
	s := ""
	if a.isLoggedIn() {
		s = a.user.Email + " "
	}
	if m := a.Mode(); m != "" {
		s = s + string(m)
	}
	if s != "" {
		s = "(" + s + ")"
	}
	return s
}

// StartOnlineStatusWatcher pings the server every interval and flips the mode
// accordingly until ctx is done.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	a.checkOnline(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) checkOnline(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := a.client.Ping(ctx); err != nil {
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)
}
