// ABOUTME: Core domain types for the assistant client: threads, messages, modes, identity
// ABOUTME: Defines the Store interface implemented by both the remote and guest backends

package chat

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested thread does not exist
var ErrNotFound = errors.New("not found")

// ErrThreadLimit signals that the guest thread quota is exhausted.
// It is an ordinary outcome, not a failure; callers route it to an upgrade prompt.
var ErrThreadLimit = errors.New("guest thread limit reached")

// ErrMessageLimit signals that a guest thread's message quota is exhausted.
var ErrMessageLimit = errors.New("guest message limit reached")

// ErrSendPending is returned when a send is submitted while another send
// is still in flight for the same thread.
var ErrSendPending = errors.New("send already pending for thread")

// ErrEmptyMessage is returned for a submission with no content.
var ErrEmptyMessage = errors.New("empty message")

// Role constants for message authorship
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DeliveryState tracks the lifecycle of an optimistically appended message.
type DeliveryState string

const (
	DeliveryDelivered DeliveryState = "delivered" // confirmed by the backend (or local commit)
	DeliveryPending   DeliveryState = "pending"   // appended locally, awaiting the backend
	DeliveryFailed    DeliveryState = "failed"    // backend call failed, message kept visible
)

// Document is an attachment descriptor carried on a user message.
type Document struct {
	Title string
}

// Message is a single turn within a thread.
type Message struct {
	ID        string
	Role      string // "user" or "assistant"
	Content   string
	ModeID    int
	Documents []Document // user-side only
	Delivery  DeliveryState
	CreatedAt time.Time
}

// Thread is a conversation: an ordered, append-only message sequence with a
// mutable title. Remote threads carry nil Messages until loaded; guest threads
// are always held in full.
type Thread struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Messages  []Message
}

// Mode is a named behavioral configuration applied to outgoing messages.
type Mode struct {
	ID          int
	Name        string
	Description string
}

// User holds the account fields of an authenticated identity.
type User struct {
	ID       int
	Email    string
	FullName string
	RoleID   string
}

// Identity is exactly one of Guest or Authenticated(user).
type Identity struct {
	user *User
}

// Guest returns the anonymous identity.
func Guest() Identity {
	return Identity{}
}

// Authenticated returns an identity for the given account.
func Authenticated(u User) Identity {
	return Identity{user: &u}
}

// IsGuest reports whether the identity is anonymous.
func (id Identity) IsGuest() bool {
	return id.user == nil
}

// User returns the account for an authenticated identity, or nil for guests.
func (id Identity) User() *User {
	return id.user
}

// Store is the capability interface over a conversation backend. The session
// layer binds to exactly one implementation per identity: the remote store for
// authenticated users, the guest store for anonymous ones.
type Store interface {
	// Create starts a new thread. Guest implementations return ErrThreadLimit
	// when a guest thread already exists.
	Create(ctx context.Context) (*Thread, error)

	// List returns all threads, most recently updated first.
	List(ctx context.Context) ([]*Thread, error)

	// Get returns one thread with its full message history.
	Get(ctx context.Context, id string) (*Thread, error)

	// Rename updates a thread's title and returns the updated thread.
	Rename(ctx context.Context, id, title string) (*Thread, error)

	// Delete removes a thread by id. Deleting an absent thread is a no-op.
	Delete(ctx context.Context, id string) error

	// SendMessage relays a user turn to the assistant backend and returns the
	// assistant's reply.
	SendMessage(ctx context.Context, threadID, content string, modeID int) (*Message, error)
}
