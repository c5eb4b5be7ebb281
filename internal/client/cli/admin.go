package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"
)

var errNotAdmin = errors.New("admin privileges required")

func (a *App) requireAdmin() error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	if !a.isAdmin() {
		return errNotAdmin
	}
	return nil
}

func (a *App) Users(ctx context.Context) error {
	if err := a.requireAdmin(); err != nil {
		return err
	}
	users, err := a.client.ListUsers(ctx)
	if err != nil {
		return err
	}
	for i := range users {
		a.printUser(&users[i])
	}
	fmt.Fprintf(a.out, "%d user(s)\n", len(users))
	return nil
}

func (a *App) Register(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("register <email>")
	}
	if err := a.requireAdmin(); err != nil {
		return err
	}
	resp, err := a.client.RegisterUser(ctx, args[0])
	if err != nil {
		return err
	}
	if resp.Created {
		fmt.Fprint(a.out, "Created ")
	} else {
		fmt.Fprint(a.out, "Exists ")
	}
	a.printUser(&resp.User)
	return nil
}

func (a *App) SetState(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usageError("state <user> <activate|inactivate|ban|unban>")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := a.requireAdmin(); err != nil {
		return err
	}
	u, err := a.client.SetUserState(ctx, id, args[1])
	if err != nil {
		return err
	}
	a.printUser(u)
	return nil
}

// Subscribe replaces the user's entitlements of one kind with ids and
// extends the ones kept. Without days the server default applies.
func (a *App) Subscribe(ctx context.Context, args []string) error {
	if len(args) != 3 && len(args) != 4 {
		return usageError("subscribe <user> <kind> <ids|-> [days]")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	ids, err := parseIDs(args[2])
	if err != nil {
		return err
	}
	days := 0
	if len(args) == 4 {
		days, err = strconv.Atoi(args[3])
		if err != nil || days <= 0 {
			return fmt.Errorf("invalid days %q", args[3])
		}
	}
	if err := a.requireAdmin(); err != nil {
		return err
	}

	inserted, err := a.client.SetSubscriptions(ctx, id, map[string][]int64{args[1]: ids}, days)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: new %s\n", args[1], joinIDs(inserted[args[1]]))
	return nil
}

func (a *App) Subscriptions(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usageError("subs <user> [kinds...]")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := a.requireAdmin(); err != nil {
		return err
	}
	subs, err := a.client.ListSubscriptions(ctx, id, args[1:])
	if err != nil {
		return err
	}
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].Kind != subs[j].Kind {
			return subs[i].Kind < subs[j].Kind
		}
		return subs[i].ItemID < subs[j].ItemID
	})
	for _, s := range subs {
		mode := "ro"
		if s.CanPut {
			mode = "rw"
		}
		fmt.Fprintf(a.out, "%s %d %s until %s\n", s.Kind, s.ItemID, mode, s.Expires.Format(time.DateOnly))
	}
	fmt.Fprintf(a.out, "%d subscription(s)\n", len(subs))
	return nil
}
