// ABOUTME: Tests for the remote chat store HTTP client
// ABOUTME: Uses httptest fake backends to assert paths, bodies, and auth headers

package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devassist/assist/internal/chat"
)

// staticTokens is a TokenSource returning a fixed token.
type staticTokens string

func (s staticTokens) Token() (string, error) {
	if s == "" {
		return "", errors.New("no token")
	}
	return string(s), nil
}

func setupStore(t *testing.T, handler http.HandlerFunc) *Store {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, staticTokens("tok-abc"), 5*time.Second, nil)
}

func TestStore_Create(t *testing.T) {
	store := setupStore(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat/create", r.URL.Path)
		require.Equal(t, "Bearer tok-abc", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]any{
			"id": 12, "title": "New chat",
			"created_at": "2026-08-30T10:00:00", "updated_at": "2026-08-30T10:00:00",
		})
	})

	thread, err := store.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "12", thread.ID)
	assert.Equal(t, "New chat", thread.Title)
	assert.False(t, thread.CreatedAt.IsZero())
	assert.Nil(t, thread.Messages, "create returns no messages")
}

func TestStore_List(t *testing.T) {
	// Backend emits creation order; the first thread was updated most recently
	store := setupStore(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/get-all", r.URL.Path)
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "title": "First", "created_at": "2026-08-30T10:00:00", "updated_at": "2026-08-30T12:00:00"},
			{"id": 2, "title": "Second", "created_at": "2026-08-30T11:00:00", "updated_at": "2026-08-30T11:00:00"},
			{"id": 3, "title": "Third", "created_at": "2026-08-30T11:30:00", "updated_at": "2026-08-30T11:30:00"},
		})
	})

	threads, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, threads, 3)
	assert.Equal(t, "1", threads[0].ID, "most recently updated first")
	assert.Equal(t, "3", threads[1].ID)
	assert.Equal(t, "2", threads[2].ID)
}

func TestStore_Get_WithMessages(t *testing.T) {
	store := setupStore(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/12", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"id": 12, "title": "Debugging",
			"created_at": "2026-08-30T10:00:00", "updated_at": "2026-08-30T10:05:00",
			"messages": []map[string]any{
				{"id": 1, "chat_id": 12, "content": "hello", "role": "user", "timestamp": "2026-08-30T10:01:00", "mode_id": 2},
				{"id": 2, "chat_id": 12, "content": "hi there", "role": "assistant", "timestamp": "2026-08-30T10:01:05", "mode_id": 2},
			},
		})
	})

	thread, err := store.Get(context.Background(), "12")
	require.NoError(t, err)
	require.Len(t, thread.Messages, 2)
	assert.Equal(t, chat.RoleUser, thread.Messages[0].Role)
	assert.Equal(t, chat.RoleAssistant, thread.Messages[1].Role)
	assert.Equal(t, 2, thread.Messages[0].ModeID)
	assert.Equal(t, chat.DeliveryDelivered, thread.Messages[0].Delivery)
}

func TestStore_Get_NotFound(t *testing.T) {
	store := setupStore(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := store.Get(context.Background(), "999")
	assert.ErrorIs(t, err, chat.ErrNotFound)
}

func TestStore_Rename(t *testing.T) {
	store := setupStore(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/chat/12", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Renamed", body["title"])

		json.NewEncoder(w).Encode(map[string]any{
			"id": 12, "title": body["title"],
			"created_at": "2026-08-30T10:00:00", "updated_at": "2026-08-30T12:00:00",
		})
	})

	thread, err := store.Rename(context.Background(), "12", "Renamed")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", thread.Title)
}

func TestStore_Delete_Idempotent(t *testing.T) {
	deleted := false
	store := setupStore(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		if deleted {
			http.NotFound(w, r)
			return
		}
		deleted = true
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, store.Delete(context.Background(), "12"))
	// Second delete hits a 404 and is still a no-op success
	require.NoError(t, store.Delete(context.Background(), "12"))
}

func TestStore_SendMessage(t *testing.T) {
	store := setupStore(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages/send", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(12), body["chat_id"])
		assert.Equal(t, "hello", body["content"])
		assert.Equal(t, float64(2), body["mode_id"])

		json.NewEncoder(w).Encode(map[string]any{
			"id": 34, "chat_id": 12, "content": "hi there", "role": "assistant",
			"timestamp": "2026-08-30T10:01:05", "mode_id": 2,
		})
	})

	msg, err := store.SendMessage(context.Background(), "12", "hello", 2)
	require.NoError(t, err)
	assert.Equal(t, chat.RoleAssistant, msg.Role)
	assert.Equal(t, "hi there", msg.Content)
}

func TestStore_SendMessage_BadThreadID(t *testing.T) {
	store := setupStore(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request should be issued for a non-backend id")
	})

	_, err := store.SendMessage(context.Background(), "guest-uuid", "hello", 2)
	require.Error(t, err)
}

func TestStore_SendAnonymous(t *testing.T) {
	store := setupStore(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages/send-anonymous", r.URL.Path)
		// Anonymous sends carry no credential and no thread id
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasChatID := body["chat_id"]
		assert.False(t, hasChatID)

		json.NewEncoder(w).Encode(map[string]any{
			"id": 1, "chat_id": 0, "content": "hi guest", "role": "assistant",
			"timestamp": "2026-08-30T10:01:05", "mode_id": 1,
		})
	})

	msg, err := store.SendAnonymous(context.Background(), "hello", 1)
	require.NoError(t, err)
	assert.Equal(t, "hi guest", msg.Content)
}

func TestStore_ListModes(t *testing.T) {
	store := setupStore(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages/modes", r.URL.Path)
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "name": "default", "description": "General assistant"},
			{"id": 2, "name": "coder", "description": "Code-focused answers"},
		})
	})

	modes, err := store.ListModes(context.Background())
	require.NoError(t, err)
	require.Len(t, modes, 2)
	assert.Equal(t, "default", modes[0].Name)
	assert.Equal(t, 2, modes[1].ID)
}

func TestStore_MissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request should be issued without a token")
	}))
	defer srv.Close()

	store := New(srv.URL, staticTokens(""), 5*time.Second, nil)
	_, err := store.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bearer token required")
}
