package chat_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokomaju/livechat/internal/logging"
	model "github.com/tokomaju/livechat/internal/model/chat"
	chat "github.com/tokomaju/livechat/internal/service/chat"
	"github.com/tokomaju/livechat/internal/store"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

func newRegistry(t *testing.T) (*chat.Registry, store.Store) {
	t.Helper()
	st := store.NewMemory(store.Options{})
	return chat.NewRegistry(st, testLogger()), st
}

func TestCreateAndGet(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Create(ctx, "s1", "Budi dari PT Maju"))

	session, err := reg.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", session.ID)
	assert.Equal(t, "Budi dari PT Maju", session.GuestName)
	assert.Equal(t, model.StatusOpen, session.Status)
	assert.Empty(t, session.LastMessage)
	assert.False(t, session.CreatedAt.IsZero())
	assert.False(t, session.UpdatedAt.IsZero())
}

func TestCreateRequiresID(t *testing.T) {
	reg, _ := newRegistry(t)

	assert.ErrorIs(t, reg.Create(context.Background(), "", "x"), chat.ErrSessionID)
}

func TestGetNotFound(t *testing.T) {
	reg, _ := newRegistry(t)

	_, err := reg.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestTouchRefreshesSummary(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Create(ctx, "s1", "Budi"))
	before, err := reg.Get(ctx, "s1")
	require.NoError(t, err)

	require.NoError(t, reg.Touch(ctx, "s1", chat.TouchOptions{LastMessage: "Halo"}))

	after, err := reg.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Halo", after.LastMessage)
	assert.Equal(t, model.StatusOpen, after.Status, "touch without override keeps status")
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
	assert.Equal(t, before.CreatedAt, after.CreatedAt, "createdAt is set once")
}

func TestTouchStatusOverrideReopens(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Create(ctx, "s1", "Budi"))
	require.NoError(t, reg.Close(ctx, "s1"))

	open := model.StatusOpen
	require.NoError(t, reg.Touch(ctx, "s1", chat.TouchOptions{LastMessage: "Admin: halo", StatusOverride: &open}))

	session, err := reg.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, session.Status)
}

func TestTouchMissingSession(t *testing.T) {
	reg, _ := newRegistry(t)

	err := reg.Touch(context.Background(), "missing", chat.TouchOptions{LastMessage: "x"})
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestCloseIsIdempotent(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Create(ctx, "s1", "Budi"))
	require.NoError(t, reg.Close(ctx, "s1"))
	require.NoError(t, reg.Close(ctx, "s1"))

	session, err := reg.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusClosed, session.Status)
}

func TestSubscribeOrdersByRecency(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Create(ctx, "older", "A"))
	require.NoError(t, reg.Create(ctx, "newer", "B"))

	snapshots := make(chan []model.Session, 16)
	unsub, err := reg.Subscribe(func(sessions []model.Session) {
		snapshots <- sessions
	})
	require.NoError(t, err)
	defer unsub()

	got := waitForSessions(t, snapshots, func(s []model.Session) bool { return len(s) == 2 })
	assert.Equal(t, "newer", got[0].ID, "most recent activity first")

	// Touching the older session moves it to the top.
	require.NoError(t, reg.Touch(ctx, "older", chat.TouchOptions{LastMessage: "ping"}))
	waitForSessions(t, snapshots, func(s []model.Session) bool {
		return len(s) == 2 && s[0].ID == "older"
	})
}

func waitForSessions(t *testing.T, ch <-chan []model.Session, ok func([]model.Session) bool) []model.Session {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case sessions := <-ch:
			if ok(sessions) {
				return sessions
			}
		case <-deadline:
			t.Fatal("timed out waiting for session snapshot")
			return nil
		}
	}
}
