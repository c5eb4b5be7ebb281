package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// parseIDs reads a comma separated id list; "-" is the empty list.
func parseIDs(s string) ([]int64, error) {
	if s == "-" {
		return []int64{}, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := parseID(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func joinIDs(ids []int64) string {
	if len(ids) == 0 {
		return "none"
	}
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(s, ", ")
}

func (a *App) Items(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("items <kind>")
	}
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	ids, err := a.client.AvailableItems(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: %s\n", args[0], joinIDs(ids))
	return nil
}

func (a *App) Access(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usageError("access <kind> <id>")
	}
	id, err := parseID(args[1])
	if err != nil {
		return err
	}
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	ok, err := a.client.CanAccess(ctx, args[0], id)
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintf(a.out, "%s %d: allowed\n", args[0], id)
	} else {
		fmt.Fprintf(a.out, "%s %d: denied\n", args[0], id)
	}
	return nil
}
