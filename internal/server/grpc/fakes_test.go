package grpc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/cropdb/internal/common"
	"github.com/dmitrijs2005/cropdb/internal/server/models"
)

var fixedExpiry = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeState struct {
	mu        sync.Mutex
	users     map[int64]*models.User
	passwords map[int64]string
	sessions  map[string]int64
	subs      map[int64]map[string][]int64
	resets    []string
	nextTok   int
}

func newFakeState() *fakeState {
	return &fakeState{
		users:     map[int64]*models.User{},
		passwords: map[int64]string{},
		sessions:  map[string]int64{},
		subs:      map[int64]map[string][]int64{},
	}
}

func (f *fakeState) addUser(id int64, email, password string, admin bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = &models.User{ID: id, Email: email, Active: true, Admin: admin}
	f.passwords[id] = password
}

func (f *fakeState) backend() Backend {
	return Backend{
		Users:         fakeUsers{f},
		Sessions:      fakeSessions{f},
		Reset:         fakeReset{f},
		Subscriptions: fakeSubs{f},
	}
}

func (f *fakeState) mintLocked(userID int64) string {
	for tok, id := range f.sessions {
		if id == userID {
			delete(f.sessions, tok)
		}
	}
	f.nextTok++
	tok := fmt.Sprintf("tok-%d", f.nextTok)
	f.sessions[tok] = userID
	return tok
}

type fakeUsers struct{ *fakeState }

func (f fakeUsers) Authenticate(_ context.Context, email, password string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, u := range f.users {
		if u.Email == email && u.IsActive() && f.passwords[id] == password {
			return u, nil
		}
	}
	return nil, common.ErrorUnauthorized
}

func (f fakeUsers) ChangePassword(_ context.Context, userID int64, oldPassword, newPassword string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.passwords[userID] != oldPassword {
		return common.ErrorUnauthorized
	}
	f.passwords[userID] = newPassword
	for tok, id := range f.sessions {
		if id == userID {
			delete(f.sessions, tok)
		}
	}
	return nil
}

func (f fakeUsers) ChangeEmail(context.Context, int64, string, string, string) error {
	return common.ErrResetPending
}

func (f fakeUsers) ConfirmEmailChange(_ context.Context, tok string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tok != "good" {
		return nil, common.ErrInvalidToken
	}
	return f.users[1], nil
}

func (f fakeUsers) IssueCSRF(_ context.Context, userID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	nonce := fmt.Sprintf("csrf-%d-%d", userID, f.nextTok)
	f.users[userID].CSRF = nonce
	return nonce, nil
}

func (f fakeUsers) CheckCSRF(u *models.User, value string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.users[u.ID]
	return ok && stored.CSRF != "" && stored.CSRF == value
}

func (f fakeUsers) Register(_ context.Context, email string) (*models.User, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, false, nil
		}
	}
	id := int64(len(f.users) + 1)
	u := &models.User{ID: id, Email: email}
	f.users[id] = u
	return u, true, nil
}

func (f fakeUsers) List(context.Context) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeUsers) SetState(_ context.Context, userID int64, state models.UserState) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	switch state {
	case models.StateBan:
		u.Banned = true
	case models.StateUnban:
		u.Banned = false
	case models.StateActivate:
		u.Active = true
	case models.StateInactivate:
		u.Active = false
	}
	return u, nil
}

type fakeSessions struct{ *fakeState }

func (f fakeSessions) Create(_ context.Context, userID int64, _ string) (*models.SessionToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &models.SessionToken{Token: f.mintLocked(userID), ExpiresAt: fixedExpiry}, nil
}

func (f fakeSessions) Verify(_ context.Context, tok string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tok == "db-down" {
		return nil, errors.New("connection refused")
	}
	id, ok := f.sessions[tok]
	if !ok || !f.users[id].IsActive() {
		return nil, common.ErrInvalidToken
	}
	return f.users[id], nil
}

func (f fakeSessions) Refresh(_ context.Context, u *models.User) (*models.SessionToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.sessions {
		if id == u.ID {
			return &models.SessionToken{Token: f.mintLocked(u.ID), ExpiresAt: fixedExpiry}, nil
		}
	}
	return nil, common.ErrorUnauthorized
}

func (f fakeSessions) Expire(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for tok, id := range f.sessions {
		if id == userID {
			delete(f.sessions, tok)
		}
	}
	return nil
}

type fakeReset struct{ *fakeState }

func (f fakeReset) RequestPasswordReset(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, email)
	return nil
}

func (f fakeReset) CompletePasswordReset(_ context.Context, tok, _ string) error {
	if tok != "good" {
		return common.ErrInvalidToken
	}
	return nil
}

type fakeSubs struct{ *fakeState }

func (f fakeSubs) Reconcile(_ context.Context, userID int64, desired map[string][]int64, _ int) (map[string][]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := desired["boom"]; ok {
		return nil, errors.New("disk on fire")
	}
	if f.subs[userID] == nil {
		f.subs[userID] = map[string][]int64{}
	}
	for k, ids := range desired {
		f.subs[userID][k] = ids
	}
	return desired, nil
}

func (f fakeSubs) List(_ context.Context, userID int64, _ []string) ([]*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Subscription
	for kind, ids := range f.subs[userID] {
		for _, id := range ids {
			out = append(out, &models.Subscription{UserID: userID, Kind: kind, ItemID: id, Expires: fixedExpiry})
		}
	}
	return out, nil
}

func (f fakeSubs) AvailableItems(_ context.Context, userID int64, kind string) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[userID][kind], nil
}

func (f fakeSubs) CanAccess(_ context.Context, userID int64, kind string, itemID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.subs[userID][kind] {
		if id == itemID {
			return true, nil
		}
	}
	return false, nil
}
