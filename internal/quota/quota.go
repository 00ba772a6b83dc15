// ABOUTME: Guest usage quota decisions over persisted counters
// ABOUTME: Checks are client-local and synchronous so they can never race a network call

package quota

import (
	"context"
	"log/slog"

	"github.com/devassist/assist/internal/chat"
)

// Counters is what the guard needs from the guest store: persisted usage
// state that survives restarts.
type Counters interface {
	ThreadCount(ctx context.Context) (int, error)
	MessageCount(ctx context.Context, threadID string) (int, error)
	IncrementMessageCount(ctx context.Context, threadID string) (int, error)
}

// Guard decides when guest usage limits are exceeded. Denials are ordinary
// outcomes the session layer turns into an upgrade prompt; they never reach
// the network. For authenticated identities every check allows.
type Guard struct {
	counters    Counters
	maxThreads  int
	maxMessages int
	logger      *slog.Logger
}

// New creates a guard over the given counter store and limits.
func New(counters Counters, maxThreads, maxMessages int, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		counters:    counters,
		maxThreads:  maxThreads,
		maxMessages: maxMessages,
		logger:      logger.With("component", "quota"),
	}
}

// CanCreateThread reports whether the identity may start another thread.
func (g *Guard) CanCreateThread(ctx context.Context, identity chat.Identity) (bool, error) {
	if !identity.IsGuest() {
		return true, nil
	}

	count, err := g.counters.ThreadCount(ctx)
	if err != nil {
		return false, err
	}
	if count >= g.maxThreads {
		g.logger.Debug("guest thread quota exceeded", "count", count, "limit", g.maxThreads)
		return false, nil
	}
	return true, nil
}

// CanSendMessage reports whether the identity may send another message on
// the thread. The decision reads only local persisted state, strictly before
// any send call is issued.
func (g *Guard) CanSendMessage(ctx context.Context, identity chat.Identity, threadID string) (bool, error) {
	if !identity.IsGuest() {
		return true, nil
	}

	count, err := g.counters.MessageCount(ctx, threadID)
	if err != nil {
		return false, err
	}
	if count >= g.maxMessages {
		g.logger.Debug("guest message quota exceeded",
			"thread_id", threadID, "count", count, "limit", g.maxMessages)
		return false, nil
	}
	return true, nil
}

// RecordMessageSent increments and persists the per-thread counter. Only
// called for guest identities, after CanSendMessage allowed the send.
func (g *Guard) RecordMessageSent(ctx context.Context, threadID string) error {
	count, err := g.counters.IncrementMessageCount(ctx, threadID)
	if err != nil {
		return err
	}
	g.logger.Debug("guest message recorded", "thread_id", threadID, "count", count)
	return nil
}
