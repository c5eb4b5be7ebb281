package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/cropdb/internal/common"
	"github.com/dmitrijs2005/cropdb/internal/server/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("token resolves to user", func(t *testing.T) {
		h := newHarness(t)
		u := h.activeUser(t, "a@example.com", "pw")

		st, err := h.svc.Sessions.Create(ctx, u.ID, "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, h.clock.Now().Add(h.cfg.AuthTimeout), st.ExpiresAt)

		got, err := h.svc.Sessions.Verify(ctx, st.Token)
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)

		active := h.store.activeSessions(u.ID)
		require.Len(t, active, 1)
		assert.Equal(t, "10.0.0.1", active[0].Location)
	})

	t.Run("new login supersedes old session", func(t *testing.T) {
		h := newHarness(t)
		u := h.activeUser(t, "a@example.com", "pw")

		first, err := h.svc.Sessions.Create(ctx, u.ID, "")
		require.NoError(t, err)
		h.clock.Advance(time.Second)
		second, err := h.svc.Sessions.Create(ctx, u.ID, "")
		require.NoError(t, err)

		assert.Len(t, h.store.activeSessions(u.ID), 1)

		_, err = h.svc.Sessions.Verify(ctx, first.Token)
		require.ErrorIs(t, err, common.ErrInvalidToken)
		_, err = h.svc.Sessions.Verify(ctx, second.Token)
		require.NoError(t, err)
	})

	t.Run("inactive user", func(t *testing.T) {
		h := newHarness(t)
		u, _, err := h.svc.Users.Register(ctx, "a@example.com")
		require.NoError(t, err)

		_, err = h.svc.Sessions.Create(ctx, u.ID, "")
		require.ErrorIs(t, err, common.ErrorUnauthorized)
		assert.Empty(t, h.store.activeSessions(u.ID))
	})
}

func TestSessionService_Expire(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.activeUser(t, "a@example.com", "pw")

	_, err := h.svc.Sessions.Create(ctx, u.ID, "")
	require.NoError(t, err)

	ok, err := h.svc.Sessions.IsAuthenticated(ctx, u)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, h.svc.Sessions.Expire(ctx, u.ID))
	require.NoError(t, h.svc.Sessions.Expire(ctx, u.ID))

	ok, err = h.svc.Sessions.IsAuthenticated(ctx, u)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionService_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("extends end time", func(t *testing.T) {
		h := newHarness(t)
		u := h.activeUser(t, "a@example.com", "pw")
		st, err := h.svc.Sessions.Create(ctx, u.ID, "")
		require.NoError(t, err)

		h.clock.Advance(30 * time.Minute)
		refreshed, err := h.svc.Sessions.Refresh(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, h.clock.Now().Add(h.cfg.AuthTimeout), refreshed.ExpiresAt)
		assert.True(t, refreshed.ExpiresAt.After(st.ExpiresAt))

		// Past the original end, inside the extended one.
		h.clock.Advance(45 * time.Minute)
		_, err = h.svc.Sessions.Verify(ctx, refreshed.Token)
		require.NoError(t, err)
	})

	t.Run("overdue session is rejected and left in place", func(t *testing.T) {
		h := newHarness(t)
		u := h.activeUser(t, "a@example.com", "pw")
		_, err := h.svc.Sessions.Create(ctx, u.ID, "")
		require.NoError(t, err)
		before := h.store.activeSessions(u.ID)
		require.Len(t, before, 1)

		h.clock.Advance(h.cfg.AuthTimeout)
		_, err = h.svc.Sessions.Refresh(ctx, u)
		require.ErrorIs(t, err, common.ErrorUnauthorized)

		after := h.store.session(before[0].ID)
		assert.True(t, after.Active)
		assert.Equal(t, before[0].EndTime, after.EndTime)
	})

	t.Run("no session", func(t *testing.T) {
		h := newHarness(t)
		u := h.activeUser(t, "a@example.com", "pw")
		_, err := h.svc.Sessions.Refresh(ctx, u)
		require.ErrorIs(t, err, common.ErrorUnauthorized)
	})

	t.Run("inactive user", func(t *testing.T) {
		h := newHarness(t)
		u := h.activeUser(t, "a@example.com", "pw")
		_, err := h.svc.Sessions.Create(ctx, u.ID, "")
		require.NoError(t, err)
		u.Banned = true

		_, err = h.svc.Sessions.Refresh(ctx, u)
		require.ErrorIs(t, err, common.ErrorUnauthorized)
	})
}

func TestSessionService_Verify(t *testing.T) {
	ctx := context.Background()

	t.Run("expired session", func(t *testing.T) {
		h := newHarness(t)
		u := h.activeUser(t, "a@example.com", "pw")
		st, err := h.svc.Sessions.Create(ctx, u.ID, "")
		require.NoError(t, err)

		h.clock.Advance(h.cfg.AuthTimeout + time.Second)
		_, err = h.svc.Sessions.Verify(ctx, st.Token)
		require.ErrorIs(t, err, common.ErrInvalidToken)
	})

	t.Run("reset token is not a session token", func(t *testing.T) {
		h := newHarness(t)
		u := h.activeUser(t, "a@example.com", "pw")
		tok, err := h.svc.Reset.CreateResetToken(ctx, u.ID, WhichPassword, nil)
		require.NoError(t, err)

		_, err = h.svc.Sessions.Verify(ctx, tok)
		require.ErrorIs(t, err, common.ErrInvalidToken)
	})

	t.Run("well signed token for unknown session", func(t *testing.T) {
		h := newHarness(t)
		tok, err := token.CreateToken(token.Payload{"session": "8b0b4c1e-7f43-4b5e-9b0e-2f6d1f3f2a10"},
			h.cfg.SecretKey, token.SaltSession, time.Hour)
		require.NoError(t, err)

		_, err = h.svc.Sessions.Verify(ctx, tok)
		require.ErrorIs(t, err, common.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.svc.Sessions.Verify(ctx, "not-a-token")
		require.ErrorIs(t, err, common.ErrInvalidToken)
	})
}
