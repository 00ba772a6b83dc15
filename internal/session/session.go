// ABOUTME: SessionController owning the active thread, the thread list, and identity binding
// ABOUTME: Composes the stores, quota guard, mode registry, and exchange protocol

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/devassist/assist/internal/chat"
	"github.com/devassist/assist/internal/exchange"
	"github.com/devassist/assist/internal/modes"
	"github.com/devassist/assist/internal/quota"
)

// UpgradeAction is the suggested navigation for an interrupted guest.
type UpgradeAction string

const (
	UpgradeLogin    UpgradeAction = "login"
	UpgradeRegister UpgradeAction = "register"
)

// QuotaEvent signals that a guest usage limit interrupted an operation.
type QuotaEvent struct {
	// Reason is chat.ErrThreadLimit or chat.ErrMessageLimit.
	Reason error
	// Suggested is the recommended next action.
	Suggested UpgradeAction
}

// Listener receives thread-list mutations and quota signals. Downstream
// components never touch the list directly; the controller stays the single
// source of truth.
type Listener interface {
	OnThreadCreated(thread *chat.Thread)
	OnThreadUpdated(thread *chat.Thread)
	OnThreadDeleted(id string)
	OnQuotaExceeded(event QuotaEvent)
}

// ModeSource is what the controller needs from the mode registry.
type ModeSource interface {
	List(ctx context.Context, identity chat.Identity) []chat.Mode
}

// Backends bundles the two store implementations the controller can bind.
type Backends struct {
	Remote chat.Store
	Guest  chat.Store
}

// ErrNoActiveThread is returned when an operation needs an active thread
// and none is selected.
var ErrNoActiveThread = errors.New("no active thread")

// ErrNoModeSelected is returned by Send when the mode list is empty, which
// happens when the backend mode fetch degraded at identity bind time.
var ErrNoModeSelected = errors.New("no assistant mode selected")

// Controller is the top-level session orchestrator. It owns exactly one
// active thread id, the ordered thread list (most recently updated first),
// and the resolved identity, and it binds to the remote or guest store once
// per identity. All list and active-id mutations are serialized under one
// mutex; the exchange protocol mutates threads only through the Events
// callbacks implemented here.
type Controller struct {
	mu sync.Mutex

	identity chat.Identity
	store    chat.Store
	threads  []*chat.Thread
	activeID string

	modeList []chat.Mode
	selected chat.Mode
	hasMode  bool

	backends  Backends
	guard     *quota.Guard
	modes     ModeSource
	protocol  *exchange.Protocol
	listeners []Listener
	logger    *slog.Logger
}

// New creates a controller. The session starts as Guest bound to the guest
// store; call SetIdentity to bind an authenticated session.
func New(backends Backends, guard *quota.Guard, modeSource ModeSource, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		identity: chat.Guest(),
		store:    backends.Guest,
		backends: backends,
		guard:    guard,
		modes:    modeSource,
		logger:   logger.With("component", "session"),
	}
	c.protocol = exchange.New(guard, c, logger)
	return c
}

// AddListener registers a thread-list and quota event listener.
func (c *Controller) AddListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// SetIdentity transitions the session to a new identity. The active thread
// id and the in-memory thread list are always cleared; guest-persisted data
// is never touched, so logging out and returning to guest identity resumes
// the persisted guest thread. Authenticated transitions eagerly load the
// full thread list.
func (c *Controller) SetIdentity(ctx context.Context, identity chat.Identity) error {
	c.mu.Lock()
	c.identity = identity
	c.activeID = ""
	c.threads = nil
	c.hasMode = false
	if identity.IsGuest() {
		c.store = c.backends.Guest
	} else {
		c.store = c.backends.Remote
	}
	store := c.store
	c.mu.Unlock()

	threads, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("loading thread list: %w", err)
	}

	modeList := c.modes.List(ctx, identity)
	selected, hasMode := modes.Default(modeList)

	c.mu.Lock()
	c.threads = threads
	c.modeList = modeList
	c.selected = selected
	c.hasMode = hasMode
	c.mu.Unlock()

	c.logger.Debug("identity bound",
		"guest", identity.IsGuest(),
		"threads", len(threads),
		"modes", len(modeList))
	return nil
}

// Identity returns the current identity.
func (c *Controller) Identity() chat.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Threads returns a snapshot of the thread list, most recently updated first.
func (c *Controller) Threads() []*chat.Thread {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*chat.Thread, len(c.threads))
	copy(out, c.threads)
	return out
}

// ActiveID returns the active thread id, or "" when none is selected.
func (c *Controller) ActiveID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeID
}

// ActiveThread returns the active thread, or nil.
func (c *Controller) ActiveThread() *chat.Thread {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeID == "" {
		return nil
	}
	return c.findLocked(c.activeID)
}

// Pending reports whether a send is in flight for the active thread.
func (c *Controller) Pending() bool {
	id := c.ActiveID()
	if id == "" {
		return false
	}
	return c.protocol.Pending(id)
}

// Modes returns the modes available to the current identity.
func (c *Controller) Modes() []chat.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modeList
}

// SelectedMode returns the mode applied to the next send.
func (c *Controller) SelectedMode() (chat.Mode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected, c.hasMode
}

// SelectMode switches the mode applied to subsequent sends.
func (c *Controller) SelectMode(id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.modeList {
		if m.ID == id {
			c.selected = m
			c.hasMode = true
			return nil
		}
	}
	return fmt.Errorf("mode %d not available", id)
}

// NewThread creates a thread in the bound store and makes it active. Guest
// quota denial is an ordinary outcome routed to the upgrade prompt.
func (c *Controller) NewThread(ctx context.Context) (*chat.Thread, error) {
	c.mu.Lock()
	identity := c.identity
	store := c.store
	c.mu.Unlock()

	ok, err := c.guard.CanCreateThread(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("quota check: %w", err)
	}
	if !ok {
		c.quotaExceeded(chat.ErrThreadLimit)
		return nil, chat.ErrThreadLimit
	}

	thread, err := store.Create(ctx)
	if err != nil {
		if errors.Is(err, chat.ErrThreadLimit) {
			c.quotaExceeded(chat.ErrThreadLimit)
			return nil, err
		}
		return nil, fmt.Errorf("creating thread: %w", err)
	}

	c.mu.Lock()
	// New threads insert at the head: most recently updated first
	c.threads = append([]*chat.Thread{thread}, c.threads...)
	c.activeID = thread.ID
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	for _, l := range listeners {
		l.OnThreadCreated(thread)
	}
	return thread, nil
}

// OpenThread selects a thread and loads its full message history. Remote
// threads load lazily here; guest threads are already held in full.
func (c *Controller) OpenThread(ctx context.Context, id string) (*chat.Thread, error) {
	c.mu.Lock()
	store := c.store
	c.mu.Unlock()

	loaded, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	thread := c.findLocked(id)
	if thread == nil {
		// Not in the visible list yet (e.g. opened by id directly)
		c.threads = append(c.threads, loaded)
		thread = loaded
	} else {
		thread.Title = loaded.Title
		thread.UpdatedAt = loaded.UpdatedAt
		thread.Messages = loaded.Messages
	}
	c.activeID = id
	c.mu.Unlock()

	return thread, nil
}

// DeleteThread removes a thread everywhere: the store, the list, and the
// active selection if it pointed there. Deleting an absent thread is a no-op.
func (c *Controller) DeleteThread(ctx context.Context, id string) error {
	c.mu.Lock()
	store := c.store
	c.mu.Unlock()

	if err := store.Delete(ctx, id); err != nil {
		return err
	}

	c.mu.Lock()
	removed := false
	for i, t := range c.threads {
		if t.ID == id {
			c.threads = append(c.threads[:i], c.threads[i+1:]...)
			removed = true
			break
		}
	}
	if c.activeID == id {
		c.activeID = ""
	}
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	if removed {
		for _, l := range listeners {
			l.OnThreadDeleted(id)
		}
	}
	return nil
}

// Send submits a message on the active thread with the selected mode.
// Quota denial clears the active selection and fires the upgrade prompt so
// the interrupted guest thread is not left selected underneath the auth
// screen.
func (c *Controller) Send(ctx context.Context, content string, documents []chat.Document) (*chat.Message, error) {
	c.mu.Lock()
	identity := c.identity
	store := c.store
	activeID := c.activeID
	modeID := c.selected.ID
	hasMode := c.hasMode
	c.mu.Unlock()

	if activeID == "" {
		return nil, ErrNoActiveThread
	}
	if !hasMode {
		return nil, ErrNoModeSelected
	}

	reply, err := c.protocol.Send(ctx, store, &exchange.SendRequest{
		Identity:  identity,
		ThreadID:  activeID,
		Content:   content,
		ModeID:    modeID,
		Documents: documents,
	})
	if errors.Is(err, chat.ErrMessageLimit) {
		c.quotaExceeded(chat.ErrMessageLimit)
		return nil, err
	}
	return reply, err
}

// AppendMessage implements exchange.Events.
func (c *Controller) AppendMessage(threadID string, msg chat.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if thread := c.findLocked(threadID); thread != nil {
		thread.Messages = append(thread.Messages, msg)
	}
}

// SetDelivery implements exchange.Events.
func (c *Controller) SetDelivery(threadID, messageID string, state chat.DeliveryState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	thread := c.findLocked(threadID)
	if thread == nil {
		return
	}
	for i := range thread.Messages {
		if thread.Messages[i].ID == messageID {
			thread.Messages[i].Delivery = state
			return
		}
	}
}

// ThreadBumped implements exchange.Events: refreshes updated_at, moves the
// thread to the head of the list, and propagates the update. The result of
// an in-flight send is applied to its thread even if the user has switched
// away in the meantime.
func (c *Controller) ThreadBumped(threadID string, at time.Time) {
	c.mu.Lock()
	thread := c.findLocked(threadID)
	if thread == nil {
		c.mu.Unlock()
		return
	}
	thread.UpdatedAt = at
	c.moveToFrontLocked(threadID)
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	for _, l := range listeners {
		l.OnThreadUpdated(thread)
	}
}

// applyRename updates a renamed thread in the list and propagates it.
// Called by the title editor after a successful commit.
func (c *Controller) applyRename(updated *chat.Thread) {
	c.mu.Lock()
	thread := c.findLocked(updated.ID)
	if thread != nil {
		thread.Title = updated.Title
		thread.UpdatedAt = updated.UpdatedAt
		c.moveToFrontLocked(updated.ID)
	} else {
		thread = updated
	}
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	for _, l := range listeners {
		l.OnThreadUpdated(thread)
	}
}

// currentStore returns the store bound to the current identity.
func (c *Controller) currentStore() chat.Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store
}

// quotaExceeded clears the active selection and fires the upgrade prompt.
// The interrupted thread must not stay selected underneath the auth screen,
// whichever limit tripped. Guests hitting a limit most likely have no
// account yet, so registration is the suggested action.
func (c *Controller) quotaExceeded(reason error) {
	c.mu.Lock()
	c.activeID = ""
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	event := QuotaEvent{Reason: reason, Suggested: UpgradeRegister}
	c.logger.Debug("quota exceeded", "reason", reason)
	for _, l := range listeners {
		l.OnQuotaExceeded(event)
	}
}

// findLocked returns the thread with the given id. Caller holds c.mu.
func (c *Controller) findLocked(id string) *chat.Thread {
	for _, t := range c.threads {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// moveToFrontLocked repositions a thread at the head. Caller holds c.mu.
func (c *Controller) moveToFrontLocked(id string) {
	for i, t := range c.threads {
		if t.ID == id {
			if i == 0 {
				return
			}
			c.threads = append(c.threads[:i], c.threads[i+1:]...)
			c.threads = append([]*chat.Thread{t}, c.threads...)
			return
		}
	}
}

// snapshotListeners copies the listener slice. Caller holds c.mu.
func (c *Controller) snapshotListeners() []Listener {
	out := make([]Listener, len(c.listeners))
	copy(out, c.listeners)
	return out
}
