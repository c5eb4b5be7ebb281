package services

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/cropdb/internal/common"
	"github.com/dmitrijs2005/cropdb/internal/dbx"
	"github.com/dmitrijs2005/cropdb/internal/logging"
	"github.com/dmitrijs2005/cropdb/internal/server/config"
	"github.com/dmitrijs2005/cropdb/internal/server/credentials"
	"github.com/dmitrijs2005/cropdb/internal/server/models"
	"github.com/dmitrijs2005/cropdb/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/cropdb/internal/server/repositories/subscriptions"
	"github.com/dmitrijs2005/cropdb/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// --- clock ---

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- in-memory store ---

type subKey struct {
	user int64
	kind string
	item int64
}

type memStore struct {
	mu       sync.Mutex
	users    map[int64]models.User
	nextUser int64
	sessions map[string]models.Session
	subs     map[subKey]models.Subscription
	nextSub  int64

	// onResetWrongLogins runs after the counter reset, outside the lock.
	onResetWrongLogins func(id int64)
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[int64]models.User{},
		sessions: map[string]models.Session{},
		subs:     map[subKey]models.Subscription{},
	}
}

func (m *memStore) user(id int64) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

func (m *memStore) activeSessions(userID int64) []models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Session
	for _, s := range m.sessions {
		if s.UserID == userID && s.Active {
			out = append(out, s)
		}
	}
	return out
}

func (m *memStore) session(id string) models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

func (m *memStore) sub(userID int64, kind string, item int64) (models.Subscription, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[subKey{userID, kind, item}]
	return s, ok
}

func (m *memStore) setSubExpiry(userID int64, kind string, item int64, exp time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := subKey{userID, kind, item}
	s := m.subs[k]
	s.Expires = exp
	m.subs[k] = s
}

func (m *memStore) addUser(u models.User) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextUser++
	u.ID = m.nextUser
	m.users[u.ID] = u
	return &u
}

// users.Repository

type memUsers struct{ *memStore }

var _ users.Repository = memUsers{}

func (r memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return nil, common.ErrorConflict
		}
	}
	r.nextUser++
	u.ID = r.nextUser
	r.users[u.ID] = *u
	return u, nil
}

func (r memUsers) GetOrCreate(ctx context.Context, email, hash string) (*models.User, bool, error) {
	if u, err := r.GetByEmail(ctx, email); err == nil {
		return u, false, nil
	}
	u, err := r.Create(ctx, &models.User{Email: email, Password: hash})
	return u, err == nil, err
}

func (r memUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memUsers) LockByID(ctx context.Context, id int64) (*models.User, error) {
	return r.GetByID(ctx, id)
}

func (r memUsers) Update(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		return common.ErrorNotFound
	}
	for id, existing := range r.users {
		if id != u.ID && existing.Email == u.Email {
			return common.ErrorConflict
		}
	}
	r.users[u.ID] = *u
	return nil
}

func (r memUsers) IncrementWrongLogins(_ context.Context, id int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return 0, common.ErrorNotFound
	}
	u.WrongLogins++
	r.users[id] = u
	return u.WrongLogins, nil
}

func (r memUsers) ResetWrongLogins(_ context.Context, id int64) error {
	r.mu.Lock()
	u := r.users[id]
	u.WrongLogins = 0
	r.users[id] = u
	hook := r.onResetWrongLogins
	r.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	return nil
}

func (r memUsers) SetCSRF(_ context.Context, id int64, nonce string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.CSRF = nonce
	r.users[id] = u
	return nil
}

func (r memUsers) List(context.Context) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.User, 0, len(r.users))
	for _, u := range r.users {
		u := u
		out = append(out, &u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// sessions.Repository

type memSessions struct{ *memStore }

var _ sessions.Repository = memSessions{}

func (r memSessions) Create(_ context.Context, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = *s
	return nil
}

func (r memSessions) GetActive(_ context.Context, id string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || !s.Active {
		return nil, common.ErrorNotFound
	}
	return &s, nil
}

func (r memSessions) ActiveForUser(_ context.Context, userID int64) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *models.Session
	for _, s := range r.sessions {
		if s.UserID == userID && s.Active && (best == nil || s.StartTime.After(best.StartTime)) {
			s := s
			best = &s
		}
	}
	if best == nil {
		return nil, common.ErrorNotFound
	}
	return best, nil
}

func (r memSessions) Extend(_ context.Context, id string, end time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || !s.Active {
		return common.ErrorNotFound
	}
	s.EndTime = end
	r.sessions[id] = s
	return nil
}

func (r memSessions) ExpireForUser(_ context.Context, userID int64, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.sessions {
		if s.UserID == userID && s.Active {
			s.Active = false
			s.EndTime = now
			r.sessions[id] = s
			n++
		}
	}
	return n, nil
}

// subscriptions.Repository

type memSubs struct{ *memStore }

var _ subscriptions.Repository = memSubs{}

func (r memSubs) DeleteNotIn(_ context.Context, userID int64, kind string, keep []int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := map[int64]bool{}
	for _, id := range keep {
		k[id] = true
	}
	var n int64
	for key := range r.subs {
		if key.user == userID && key.kind == kind && !k[key.item] {
			delete(r.subs, key)
			n++
		}
	}
	return n, nil
}

func (r memSubs) ids(userID int64, kind string, pred func(models.Subscription) bool) []int64 {
	out := []int64{}
	for key, s := range r.subs {
		if key.user == userID && key.kind == kind && pred(s) {
			out = append(out, key.item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r memSubs) ItemIDs(_ context.Context, userID int64, kind string) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ids(userID, kind, func(models.Subscription) bool { return true }), nil
}

func (r memSubs) ExtendAll(_ context.Context, userID int64, kind string, expires time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for key, s := range r.subs {
		if key.user == userID && key.kind == kind {
			s.Expires = expires
			r.subs[key] = s
			n++
		}
	}
	return n, nil
}

func (r memSubs) Insert(_ context.Context, userID int64, kind string, ids []int64, expires time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		key := subKey{userID, kind, id}
		if _, ok := r.subs[key]; ok {
			return common.ErrorConflict
		}
		r.nextSub++
		r.subs[key] = models.Subscription{ID: r.nextSub, UserID: userID, Kind: kind, ItemID: id, Expires: expires}
	}
	return nil
}

func (r memSubs) Available(_ context.Context, userID int64, kind string, now time.Time) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ids(userID, kind, func(s models.Subscription) bool { return s.Entitled(now) }), nil
}

func (r memSubs) CountActive(_ context.Context, userID int64, kind string, item int64, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[subKey{userID, kind, item}]
	if ok && s.Entitled(now) {
		return 1, nil
	}
	return 0, nil
}

func (r memSubs) List(_ context.Context, userID int64, kinds []string) ([]*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := map[string]bool{}
	for _, k := range kinds {
		want[k] = true
	}
	var out []*models.Subscription
	for key, s := range r.subs {
		if key.user == userID && (len(kinds) == 0 || want[key.kind]) {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out, nil
}

type memRepoManager struct{ store *memStore }

func (m *memRepoManager) RunMigrations(context.Context, *sql.DB) error      { return nil }
func (m *memRepoManager) Users(dbx.DBTX) users.Repository                   { return memUsers{m.store} }
func (m *memRepoManager) Sessions(dbx.DBTX) sessions.Repository             { return memSessions{m.store} }
func (m *memRepoManager) Subscriptions(dbx.DBTX) subscriptions.Repository   { return memSubs{m.store} }

// --- notifier ---

type sent struct {
	email, which, token string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sent
}

func (n *recordingNotifier) Notify(_ context.Context, email, which, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{email, which, token})
	return nil
}

func (n *recordingNotifier) last(t *testing.T) sent {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent)
	return n.sent[len(n.sent)-1]
}

// --- harness ---

var testParams = credentials.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type harness struct {
	svc      *Services
	store    *memStore
	clock    *testClock
	notifier *recordingNotifier
	hasher   *credentials.Hasher
	cfg      *config.Config
}

func txDB(t *testing.T) *sql.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := sql.Open("sqlite", "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.AuthAttempts = 3

	hasher, err := credentials.NewHasher(testParams)
	require.NoError(t, err)

	h := &harness{
		store:    newMemStore(),
		clock:    &testClock{now: time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)},
		notifier: &recordingNotifier{},
		hasher:   hasher,
		cfg:      cfg,
	}
	h.svc = New(Deps{
		DB:       txDB(t),
		Repos:    &memRepoManager{store: h.store},
		Config:   cfg,
		Hasher:   hasher,
		Notifier: h.notifier,
		Logger:   logging.NewNop(),
		Now:      h.clock.Now,
	})
	return h
}

// activeUser stores an active account with the given password.
func (h *harness) activeUser(t *testing.T, email, password string) *models.User {
	t.Helper()
	hash, err := h.hasher.Hash(password)
	require.NoError(t, err)
	return h.store.addUser(models.User{Email: email, Password: hash, Active: true, Created: h.clock.Now()})
}
