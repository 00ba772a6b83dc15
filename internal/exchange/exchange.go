// ABOUTME: Optimistic send/receive state machine shared by both chat backends
// ABOUTME: Appends the user turn first, enforces one in-flight send per thread, reconciles results

package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devassist/assist/internal/chat"
)

// Events is what the protocol needs from the session layer: the thread list
// and message sequences live there, and the protocol mutates them only
// through these callbacks.
type Events interface {
	// AppendMessage adds a message to the end of a thread's sequence.
	AppendMessage(threadID string, msg chat.Message)
	// SetDelivery updates the delivery state of a previously appended message.
	SetDelivery(threadID, messageID string, state chat.DeliveryState)
	// ThreadBumped refreshes a thread's updated_at and repositions it in the list.
	ThreadBumped(threadID string, at time.Time)
}

// Quota is what the protocol needs from the quota guard.
type Quota interface {
	CanSendMessage(ctx context.Context, identity chat.Identity, threadID string) (bool, error)
	RecordMessageSent(ctx context.Context, threadID string) error
}

// SendRequest carries everything needed for one exchange.
type SendRequest struct {
	Identity  chat.Identity
	ThreadID  string
	Content   string
	ModeID    int
	Documents []chat.Document
}

// Protocol drives one send at a time per thread through
// idle -> pending -> {fulfilled, failed}. The user's message is appended
// optimistically before the backend call; on failure it stays visible,
// tagged failed, with no assistant reply. There is no queueing and no
// cancellation of an in-flight call.
type Protocol struct {
	mu      sync.Mutex
	pending map[string]bool

	guard  Quota
	events Events
	logger *slog.Logger
}

// New creates a protocol instance over the given guard and event sink.
func New(guard Quota, events Events, logger *slog.Logger) *Protocol {
	if logger == nil {
		logger = slog.Default()
	}
	return &Protocol{
		pending: make(map[string]bool),
		guard:   guard,
		events:  events,
		logger:  logger.With("component", "exchange"),
	}
}

// Pending reports whether a send is in flight for the thread.
func (p *Protocol) Pending(threadID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending[threadID]
}

// Send runs one exchange against the given store. Ordering is strict:
// validation, single-flight check, quota check, optimistic append, counter
// record, backend call, reconciliation. A quota denial returns
// chat.ErrMessageLimit before anything is appended and before any network
// traffic.
func (p *Protocol) Send(ctx context.Context, store chat.Store, req *SendRequest) (*chat.Message, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, chat.ErrEmptyMessage
	}

	if err := p.begin(req.ThreadID); err != nil {
		return nil, err
	}
	defer p.end(req.ThreadID)

	if req.Identity.IsGuest() {
		ok, err := p.guard.CanSendMessage(ctx, req.Identity, req.ThreadID)
		if err != nil {
			return nil, fmt.Errorf("quota check: %w", err)
		}
		if !ok {
			// Straight back to idle: no append, no network call
			return nil, chat.ErrMessageLimit
		}
	}

	// Optimistic append before any network confirmation
	userMsg := chat.Message{
		ID:        uuid.New().String(),
		Role:      chat.RoleUser,
		Content:   req.Content,
		ModeID:    req.ModeID,
		Documents: req.Documents,
		Delivery:  chat.DeliveryPending,
		CreatedAt: time.Now(),
	}
	p.events.AppendMessage(req.ThreadID, userMsg)

	if req.Identity.IsGuest() {
		if err := p.guard.RecordMessageSent(ctx, req.ThreadID); err != nil {
			p.events.SetDelivery(req.ThreadID, userMsg.ID, chat.DeliveryFailed)
			return nil, fmt.Errorf("recording message: %w", err)
		}
	}

	reply, err := store.SendMessage(ctx, req.ThreadID, req.Content, req.ModeID)
	if err != nil {
		// Lenient failure: keep the user's turn, mark it failed, append nothing
		p.events.SetDelivery(req.ThreadID, userMsg.ID, chat.DeliveryFailed)
		p.logger.Error("send failed",
			"error", err,
			"thread_id", req.ThreadID)
		return nil, fmt.Errorf("send failed: %w", err)
	}

	p.events.SetDelivery(req.ThreadID, userMsg.ID, chat.DeliveryDelivered)
	p.events.AppendMessage(req.ThreadID, *reply)

	bumpedAt := reply.CreatedAt
	if bumpedAt.IsZero() {
		bumpedAt = time.Now()
	}
	p.events.ThreadBumped(req.ThreadID, bumpedAt)

	p.logger.Debug("exchange fulfilled",
		"thread_id", req.ThreadID,
		"mode_id", req.ModeID)
	return reply, nil
}

// begin transitions a thread to pending, rejecting a second submission while
// one is already in flight.
func (p *Protocol) begin(threadID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending[threadID] {
		return chat.ErrSendPending
	}
	p.pending[threadID] = true
	return nil
}

// end clears the pending flag for a thread.
func (p *Protocol) end(threadID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pending, threadID)
}
