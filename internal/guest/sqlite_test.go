// ABOUTME: Tests for the SQLite guest store
// ABOUTME: Covers thread CRUD, quota counters, the send path, and delete purging

package guest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devassist/assist/internal/chat"
)

// fakeSender is an AnonymousSender with a scripted reply or error.
type fakeSender struct {
	reply string
	err   error
	calls int
}

func (f *fakeSender) SendAnonymous(_ context.Context, content string, modeID int) (*chat.Message, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &chat.Message{
		Role:      chat.RoleAssistant,
		Content:   f.reply,
		ModeID:    modeID,
		Delivery:  chat.DeliveryDelivered,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// setupTestStore creates a temporary SQLite guest store for testing.
func setupTestStore(t *testing.T, sender AnonymousSender) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "guest.db")

	store, err := NewStore(dbPath, sender, 1, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func TestStore_Create(t *testing.T) {
	store := setupTestStore(t, &fakeSender{})
	ctx := context.Background()

	thread, err := store.Create(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, thread.ID)
	assert.Equal(t, DefaultTitle, thread.Title)
	assert.Empty(t, thread.Messages)

	retrieved, err := store.Get(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, thread.ID, retrieved.ID)
}

func TestStore_Create_LimitReached(t *testing.T) {
	store := setupTestStore(t, &fakeSender{})
	ctx := context.Background()

	_, err := store.Create(ctx)
	require.NoError(t, err)

	// A second guest thread is a quota outcome, not a second thread
	_, err = store.Create(ctx)
	assert.ErrorIs(t, err, chat.ErrThreadLimit)

	count, err := store.ThreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_Get_NotFound(t *testing.T) {
	store := setupTestStore(t, &fakeSender{})

	_, err := store.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, chat.ErrNotFound)
}

func TestStore_Rename(t *testing.T) {
	store := setupTestStore(t, &fakeSender{})
	ctx := context.Background()

	thread, err := store.Create(ctx)
	require.NoError(t, err)

	renamed, err := store.Rename(ctx, thread.ID, "My project")
	require.NoError(t, err)
	assert.Equal(t, "My project", renamed.Title)
	assert.False(t, renamed.UpdatedAt.Before(thread.UpdatedAt))

	// Round-trip: a persisted-state read returns the new title
	retrieved, err := store.Get(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, "My project", retrieved.Title)
}

func TestStore_Rename_NotFound(t *testing.T) {
	store := setupTestStore(t, &fakeSender{})

	_, err := store.Rename(context.Background(), "nonexistent", "title")
	assert.ErrorIs(t, err, chat.ErrNotFound)
}

func TestStore_SendMessage(t *testing.T) {
	sender := &fakeSender{reply: "hi there"}
	store := setupTestStore(t, sender)
	ctx := context.Background()

	thread, err := store.Create(ctx)
	require.NoError(t, err)

	reply, err := store.SendMessage(ctx, thread.ID, "hello", 1)
	require.NoError(t, err)
	assert.Equal(t, chat.RoleAssistant, reply.Role)
	assert.Equal(t, "hi there", reply.Content)
	assert.Equal(t, 1, sender.calls)

	// Both turns persisted, user turn delivered
	retrieved, err := store.Get(ctx, thread.ID)
	require.NoError(t, err)
	require.Len(t, retrieved.Messages, 2)
	assert.Equal(t, chat.RoleUser, retrieved.Messages[0].Role)
	assert.Equal(t, "hello", retrieved.Messages[0].Content)
	assert.Equal(t, chat.DeliveryDelivered, retrieved.Messages[0].Delivery)
	assert.Equal(t, chat.RoleAssistant, retrieved.Messages[1].Role)
	assert.False(t, retrieved.UpdatedAt.Before(thread.UpdatedAt))
}

func TestStore_SendMessage_BackendFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("backend down")}
	store := setupTestStore(t, sender)
	ctx := context.Background()

	thread, err := store.Create(ctx)
	require.NoError(t, err)

	_, err = store.SendMessage(ctx, thread.ID, "hello", 1)
	require.Error(t, err)

	// The user's turn is kept, marked failed, with no assistant reply
	retrieved, err := store.Get(ctx, thread.ID)
	require.NoError(t, err)
	require.Len(t, retrieved.Messages, 1)
	assert.Equal(t, chat.RoleUser, retrieved.Messages[0].Role)
	assert.Equal(t, chat.DeliveryFailed, retrieved.Messages[0].Delivery)
}

func TestStore_SendMessage_UnknownThread(t *testing.T) {
	sender := &fakeSender{reply: "hi"}
	store := setupTestStore(t, sender)

	_, err := store.SendMessage(context.Background(), "nonexistent", "hello", 1)
	assert.ErrorIs(t, err, chat.ErrNotFound)
	assert.Zero(t, sender.calls, "no network call for unknown thread")
}

func TestStore_Counters(t *testing.T) {
	store := setupTestStore(t, &fakeSender{})
	ctx := context.Background()

	count, err := store.MessageCount(ctx, "t1")
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = store.IncrementMessageCount(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.IncrementMessageCount(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Counters are per thread
	count, err = store.MessageCount(ctx, "t2")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStore_Delete_PurgesEverything(t *testing.T) {
	sender := &fakeSender{reply: "hi"}
	store := setupTestStore(t, sender)
	ctx := context.Background()

	thread, err := store.Create(ctx)
	require.NoError(t, err)

	_, err = store.SendMessage(ctx, thread.ID, "hello", 1)
	require.NoError(t, err)
	_, err = store.IncrementMessageCount(ctx, thread.ID)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, thread.ID))

	_, err = store.Get(ctx, thread.ID)
	assert.ErrorIs(t, err, chat.ErrNotFound)

	// Quota state purged with the thread
	count, err := store.MessageCount(ctx, thread.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	threadCount, err := store.ThreadCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, threadCount, "a new thread can be created after delete")
}

func TestStore_Delete_Idempotent(t *testing.T) {
	store := setupTestStore(t, &fakeSender{})
	ctx := context.Background()

	thread, err := store.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, thread.ID))
	// Deleting again is a no-op, never an error
	require.NoError(t, store.Delete(ctx, thread.ID))
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "guest.db")
	sender := &fakeSender{reply: "hi"}
	ctx := context.Background()

	store, err := NewStore(dbPath, sender, 1, nil)
	require.NoError(t, err)

	thread, err := store.Create(ctx)
	require.NoError(t, err)
	_, err = store.SendMessage(ctx, thread.ID, "hello", 1)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopen: a page-reload equivalent keeps threads, messages, and counters
	reopened, err := NewStore(dbPath, sender, 1, nil)
	require.NoError(t, err)
	defer reopened.Close()

	threads, err := reopened.List(ctx)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Len(t, threads[0].Messages, 2)
}
