package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/status"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	isAdmin() bool

	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Whoami(ctx context.Context) error
	ChangePassword(ctx context.Context) error
	ChangeEmail(ctx context.Context) error
	ConfirmEmail(ctx context.Context, args []string) error
	RequestReset(ctx context.Context) error
	ResetPassword(ctx context.Context, args []string) error

	Items(ctx context.Context, args []string) error
	Access(ctx context.Context, args []string) error

	Users(ctx context.Context) error
	Register(ctx context.Context, args []string) error
	SetState(ctx context.Context, args []string) error
	Subscribe(ctx context.Context, args []string) error
	Subscriptions(ctx context.Context, args []string) error
}

type usageError string

func (e usageError) Error() string { return "usage: " + string(e) }

// describeErr strips the gRPC framing from remote errors.
func describeErr(err error) string {
	var u usageError
	if errors.As(err, &u) {
		return u.Error()
	}
	if st, ok := status.FromError(err); ok {
		return fmt.Sprintf("%s (%s)", st.Message(), st.Code())
	}
	return err.Error()
}

// runREPL starts a simple read–eval–print loop for the cropdb CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command and dispatches to methods on 'a' with the remaining tokens as
// arguments. Handler errors are printed and the loop continues. The loop
// exits on scanner EOF or when the user types "exit" or "quit".
//
//	Always:
//	  - help                              show available commands
//	  - login                             authenticate
//	  - reset                             request a password reset token
//	  - resetpw <token>                   set a new password with a reset token
//	  - confirm <token>                   confirm an email change
//	  - exit | quit                       leave the program
//
//	Logged in:
//	  - whoami | passwd | email | logout
//	  - items <kind>                      list entitled item ids
//	  - access <kind> <id>                check a single item
//
//	Admin:
//	  - users
//	  - register <email>
//	  - state <user> <activate|inactivate|ban|unban>
//	  - subscribe <user> <kind> <ids|-> [days]
//	  - subs <user> [kinds...]
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("cropdb %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			switch {
			case a.isAdmin():
				printlnFn("Available commands: whoami, items, access, passwd, email, logout, users, register, state, subscribe, subs, exit")
			case a.isLoggedIn():
				printlnFn("Available commands: whoami, items, access, passwd, email, logout, exit")
			default:
				printlnFn("Available commands: login, reset, resetpw, confirm, exit")
			}

		case "login":
			err = a.Login(ctx)
		case "logout":
			err = a.Logout(ctx)
		case "whoami":
			err = a.Whoami(ctx)
		case "passwd":
			err = a.ChangePassword(ctx)
		case "email":
			err = a.ChangeEmail(ctx)
		case "confirm":
			err = a.ConfirmEmail(ctx, args)
		case "reset":
			err = a.RequestReset(ctx)
		case "resetpw":
			err = a.ResetPassword(ctx, args)

		case "items":
			err = a.Items(ctx, args)
		case "access":
			err = a.Access(ctx, args)

		case "users":
			err = a.Users(ctx)
		case "register":
			err = a.Register(ctx, args)
		case "state":
			err = a.SetState(ctx, args)
		case "subscribe":
			err = a.Subscribe(ctx, args)
		case "subs":
			err = a.Subscriptions(ctx, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", describeErr(err))
		}
	}
}
