// ABOUTME: Tests for the guest quota guard
// ABOUTME: Uses an in-memory counter store to cover allow/deny boundaries

package quota

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devassist/assist/internal/chat"
)

// memCounters is an in-memory Counters implementation.
type memCounters struct {
	threads  int
	messages map[string]int
}

func newMemCounters() *memCounters {
	return &memCounters{messages: make(map[string]int)}
}

func (m *memCounters) ThreadCount(context.Context) (int, error) {
	return m.threads, nil
}

func (m *memCounters) MessageCount(_ context.Context, threadID string) (int, error) {
	return m.messages[threadID], nil
}

func (m *memCounters) IncrementMessageCount(_ context.Context, threadID string) (int, error) {
	m.messages[threadID]++
	return m.messages[threadID], nil
}

func TestGuard_CanCreateThread(t *testing.T) {
	counters := newMemCounters()
	guard := New(counters, 1, 10, nil)
	ctx := context.Background()
	guest := chat.Guest()

	ok, err := guard.CanCreateThread(ctx, guest)
	require.NoError(t, err)
	assert.True(t, ok)

	counters.threads = 1
	ok, err = guard.CanCreateThread(ctx, guest)
	require.NoError(t, err)
	assert.False(t, ok, "second guest thread must be denied")
}

func TestGuard_CanCreateThread_Authenticated(t *testing.T) {
	counters := newMemCounters()
	counters.threads = 100
	guard := New(counters, 1, 10, nil)

	ok, err := guard.CanCreateThread(context.Background(), chat.Authenticated(chat.User{ID: 1}))
	require.NoError(t, err)
	assert.True(t, ok, "authenticated identities always allow")
}

func TestGuard_CanSendMessage_Boundary(t *testing.T) {
	counters := newMemCounters()
	guard := New(counters, 1, 10, nil)
	ctx := context.Background()
	guest := chat.Guest()

	// The first 10 sends are allowed, the 11th is denied
	for i := 0; i < 10; i++ {
		ok, err := guard.CanSendMessage(ctx, guest, "t1")
		require.NoError(t, err)
		require.True(t, ok, "send %d should be allowed", i+1)
		require.NoError(t, guard.RecordMessageSent(ctx, "t1"))
	}

	ok, err := guard.CanSendMessage(ctx, guest, "t1")
	require.NoError(t, err)
	assert.False(t, ok, "11th send must be denied")

	// Other threads are unaffected
	ok, err = guard.CanSendMessage(ctx, guest, "t2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGuard_CanSendMessage_Authenticated(t *testing.T) {
	counters := newMemCounters()
	counters.messages["t1"] = 1000
	guard := New(counters, 1, 10, nil)

	ok, err := guard.CanSendMessage(context.Background(), chat.Authenticated(chat.User{ID: 1}), "t1")
	require.NoError(t, err)
	assert.True(t, ok)
}
