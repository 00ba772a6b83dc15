// ABOUTME: HTTP client implementing the chat.Store interface against the assistant backend
// ABOUTME: JSON over REST with bearer auth; no retry policy, that belongs to callers

package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/devassist/assist/internal/chat"
)

// TokenSource supplies the bearer token for authenticated calls.
type TokenSource interface {
	Token() (string, error)
}

// Store implements chat.Store against the backend's REST endpoints.
// Every operation except SendAnonymous requires a bearer token; a missing
// token is a programming error surfaced as a wrapped error, not a retryable
// runtime case.
type Store struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  *slog.Logger
}

// New creates a remote store for the given backend base URL.
func New(baseURL string, tokens TokenSource, timeout time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		logger:  logger.With("component", "remote"),
	}
}

// chatResponse is the backend's thread shape.
type chatResponse struct {
	ID        int               `json:"id"`
	Title     string            `json:"title"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
	Messages  []messageResponse `json:"messages,omitempty"`
}

// messageResponse is the backend's message shape.
type messageResponse struct {
	ID        int    `json:"id"`
	ChatID    int    `json:"chat_id"`
	Content   string `json:"content"`
	Role      string `json:"role"`
	Timestamp string `json:"timestamp"`
	ModeID    *int   `json:"mode_id"`
}

// modeResponse is the backend's mode shape.
type modeResponse struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// sendRequest is the JSON body for POST /messages/send.
type sendRequest struct {
	ChatID  int    `json:"chat_id"`
	Content string `json:"content"`
	ModeID  int    `json:"mode_id"`
}

// anonymousSendRequest is the JSON body for POST /messages/send-anonymous.
// Guest conversations are never server-persisted, so no thread id crosses
// the wire.
type anonymousSendRequest struct {
	Content string `json:"content"`
	ModeID  int    `json:"mode_id"`
}

// renameRequest is the JSON body for PATCH /chat/{id}.
type renameRequest struct {
	Title string `json:"title"`
}

// Create starts a new thread on the backend.
func (s *Store) Create(ctx context.Context) (*chat.Thread, error) {
	var resp chatResponse
	if err := s.do(ctx, http.MethodPost, "/chat/create", nil, &resp, true); err != nil {
		return nil, fmt.Errorf("creating thread: %w", err)
	}
	return resp.toThread(), nil
}

// List returns all of the user's threads, most recently updated first. The
// backend emits creation order, so the list is re-sorted here to keep both
// store implementations on the same contract.
func (s *Store) List(ctx context.Context) ([]*chat.Thread, error) {
	var resp []chatResponse
	if err := s.do(ctx, http.MethodGet, "/chat/get-all", nil, &resp, true); err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}

	threads := make([]*chat.Thread, len(resp))
	for i := range resp {
		threads[i] = resp[i].toThread()
	}
	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].UpdatedAt.After(threads[j].UpdatedAt)
	})
	return threads, nil
}

// Get returns one thread with its full message history.
func (s *Store) Get(ctx context.Context, id string) (*chat.Thread, error) {
	var resp chatResponse
	if err := s.do(ctx, http.MethodGet, "/chat/"+id, nil, &resp, true); err != nil {
		return nil, fmt.Errorf("fetching thread %s: %w", id, err)
	}
	return resp.toThread(), nil
}

// Rename updates a thread's title and returns the updated thread.
func (s *Store) Rename(ctx context.Context, id, title string) (*chat.Thread, error) {
	var resp chatResponse
	if err := s.do(ctx, http.MethodPatch, "/chat/"+id, renameRequest{Title: title}, &resp, true); err != nil {
		return nil, fmt.Errorf("renaming thread %s: %w", id, err)
	}
	return resp.toThread(), nil
}

// Delete removes a thread. A 404 is treated as success: the thread is
// already gone.
func (s *Store) Delete(ctx context.Context, id string) error {
	err := s.do(ctx, http.MethodDelete, "/chat/"+id, nil, nil, true)
	if err != nil && !errors.Is(err, chat.ErrNotFound) {
		return fmt.Errorf("deleting thread %s: %w", id, err)
	}
	return nil
}

// SendMessage relays a user turn and returns the assistant's reply.
func (s *Store) SendMessage(ctx context.Context, threadID, content string, modeID int) (*chat.Message, error) {
	chatID, err := strconv.Atoi(threadID)
	if err != nil {
		return nil, fmt.Errorf("thread id %q is not a backend id: %w", threadID, err)
	}

	var resp messageResponse
	req := sendRequest{ChatID: chatID, Content: content, ModeID: modeID}
	if err := s.do(ctx, http.MethodPost, "/messages/send", req, &resp, true); err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}
	return resp.toMessage(), nil
}

// SendAnonymous relays a single guest exchange. Requires no credential.
func (s *Store) SendAnonymous(ctx context.Context, content string, modeID int) (*chat.Message, error) {
	var resp messageResponse
	req := anonymousSendRequest{Content: content, ModeID: modeID}
	if err := s.do(ctx, http.MethodPost, "/messages/send-anonymous", req, &resp, false); err != nil {
		return nil, fmt.Errorf("sending anonymous message: %w", err)
	}
	return resp.toMessage(), nil
}

// ListModes returns the server-defined assistant modes in server order.
func (s *Store) ListModes(ctx context.Context) ([]chat.Mode, error) {
	var resp []modeResponse
	if err := s.do(ctx, http.MethodGet, "/messages/modes", nil, &resp, true); err != nil {
		return nil, fmt.Errorf("listing modes: %w", err)
	}

	modes := make([]chat.Mode, len(resp))
	for i, m := range resp {
		modes[i] = chat.Mode{ID: m.ID, Name: m.Name, Description: m.Description}
	}
	return modes, nil
}

// do performs one JSON request/response cycle. A nil body sends no payload;
// a nil out discards the response body. 404 maps to chat.ErrNotFound.
func (s *Store) do(ctx context.Context, method, path string, body, out any, authed bool) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if authed {
		token, err := s.tokens.Token()
		if err != nil {
			return fmt.Errorf("bearer token required: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return chat.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

func (r *chatResponse) toThread() *chat.Thread {
	thread := &chat.Thread{
		ID:        strconv.Itoa(r.ID),
		Title:     r.Title,
		CreatedAt: parseTimestamp(r.CreatedAt),
		UpdatedAt: parseTimestamp(r.UpdatedAt),
	}
	if r.Messages != nil {
		thread.Messages = make([]chat.Message, len(r.Messages))
		for i := range r.Messages {
			thread.Messages[i] = *r.Messages[i].toMessage()
		}
	}
	return thread
}

func (r *messageResponse) toMessage() *chat.Message {
	msg := &chat.Message{
		ID:        strconv.Itoa(r.ID),
		Role:      r.Role,
		Content:   r.Content,
		Delivery:  chat.DeliveryDelivered,
		CreatedAt: parseTimestamp(r.Timestamp),
	}
	if r.ModeID != nil {
		msg.ModeID = *r.ModeID
	}
	return msg
}

// parseTimestamp accepts RFC3339 and the timezone-less ISO form the backend
// emits for naive datetimes. Unparseable values yield the zero time.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
