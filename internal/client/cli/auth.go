package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cropdb/internal/api"
	"github.com/dmitrijs2005/cropdb/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

var errNotLoggedIn = errors.New("not logged in, use 'login' first")

// readSecret prompts for a password and returns it as a string, wiping the
// raw buffer.
func (a *App) readSecret(prompt string) (string, error) {
	pw, err := getPassword(a.out, prompt)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)
	return string(pw), nil
}

func (a *App) printUser(u *api.User) {
	flags := ""
	if u.Admin {
		flags += " admin"
	}
	if u.Banned {
		flags += " banned"
	} else if !u.Active {
		flags += " inactive"
	}
	fmt.Fprintf(a.out, "#%d %s%s\n", u.ID, u.Email, flags)
}

// Login prompts for credentials and opens a session. A previous session of
// the same account on other devices is ended by the server.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := a.readSecret("Enter password")
	if err != nil {
		return err
	}

	u, err := a.client.Login(ctx, email, password)
	if err != nil {
		a.user = nil
		return err
	}
	a.user = u
	fmt.Fprintf(a.out, "Logged in, session valid until %s\n", a.client.SessionExpires().Local().Format(time.DateTime))
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	err := a.client.Logout(ctx)
	a.user = nil
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) Whoami(ctx context.Context) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	u, err := a.client.Whoami(ctx)
	if err != nil {
		return err
	}
	a.user = u
	a.printUser(u)
	return nil
}

// ChangePassword ends every session of the account, so the user is logged
// out afterwards.
func (a *App) ChangePassword(ctx context.Context) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	oldPassword, err := a.readSecret("Current password")
	if err != nil {
		return err
	}
	newPassword, err := a.readSecret("New password")
	if err != nil {
		return err
	}
	repeat, err := a.readSecret("Repeat new password")
	if err != nil {
		return err
	}
	if newPassword != repeat {
		return errors.New("passwords do not match")
	}

	if err := a.client.ChangePassword(ctx, oldPassword, newPassword); err != nil {
		return err
	}
	a.user = nil
	fmt.Fprintln(a.out, "Password changed, please log in again")
	return nil
}

// ChangeEmail deactivates the account until the confirmation token sent to
// the new address is redeemed with 'confirm'.
func (a *App) ChangeEmail(ctx context.Context) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	oldEmail, err := getSimpleText(a.reader, "Current email", a.out)
	if err != nil {
		return err
	}
	newEmail, err := getSimpleText(a.reader, "New email", a.out)
	if err != nil {
		return err
	}
	password, err := a.readSecret("Password")
	if err != nil {
		return err
	}

	if err := a.client.ChangeEmail(ctx, oldEmail, newEmail, password); err != nil {
		return err
	}
	a.user = nil
	fmt.Fprintln(a.out, "Confirmation sent to", newEmail)
	return nil
}

func (a *App) ConfirmEmail(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("confirm <token>")
	}
	u, err := a.client.ConfirmEmail(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprint(a.out, "Email confirmed: ")
	a.printUser(u)
	return nil
}

// RequestReset always reports success; the server does not reveal whether
// the address is known.
func (a *App) RequestReset(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	if err := a.client.RequestPasswordReset(ctx, email); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "If the address is registered, a reset token has been sent")
	return nil
}

func (a *App) ResetPassword(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("resetpw <token>")
	}
	password, err := a.readSecret("New password")
	if err != nil {
		return err
	}
	if err := a.client.ResetPassword(ctx, args[0], password); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password updated, you can log in now")
	return nil
}
