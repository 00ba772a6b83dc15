// ABOUTME: Inline rename flow: optimistic local apply with backend confirmation
// ABOUTME: Guest commits are immediate; remote failures leave the edit session open

package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/devassist/assist/internal/chat"
)

// TitleEdit is one open rename session.
type TitleEdit struct {
	ThreadID string
	Original string
	open     bool
}

// Open reports whether the edit session is still awaiting a successful commit.
func (e *TitleEdit) Open() bool {
	return e.open
}

// Editor drives the inline rename flow against the controller's bound store.
type Editor struct {
	controller *Controller
	logger     *slog.Logger
}

// NewEditor creates a title editor for the given controller.
func NewEditor(c *Controller, logger *slog.Logger) *Editor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Editor{
		controller: c,
		logger:     logger.With("component", "titles"),
	}
}

// BeginEdit opens a rename session for a thread in the visible list.
func (e *Editor) BeginEdit(threadID string) (*TitleEdit, error) {
	c := e.controller
	c.mu.Lock()
	thread := c.findLocked(threadID)
	c.mu.Unlock()

	if thread == nil {
		return nil, chat.ErrNotFound
	}
	return &TitleEdit{ThreadID: threadID, Original: thread.Title, open: true}, nil
}

// CommitEdit applies the new title. The local list is updated optimistically;
// the bound store then confirms (immediately for guests, via the backend for
// authenticated users). On a backend failure the edit session stays open and
// the optimistic title is not reverted, so the user can retry or correct it.
// On success the updated thread is propagated to the thread list.
func (e *Editor) CommitEdit(ctx context.Context, edit *TitleEdit, newTitle string) error {
	newTitle = strings.TrimSpace(newTitle)
	if newTitle == "" {
		return fmt.Errorf("title must not be empty")
	}
	if !edit.open {
		return fmt.Errorf("edit session already committed")
	}

	c := e.controller

	// Optimistic apply: the side list and active view update immediately
	c.mu.Lock()
	if thread := c.findLocked(edit.ThreadID); thread != nil {
		thread.Title = newTitle
	}
	c.mu.Unlock()

	updated, err := c.currentStore().Rename(ctx, edit.ThreadID, newTitle)
	if err != nil {
		e.logger.Error("rename failed, edit session stays open",
			"error", err,
			"thread_id", edit.ThreadID)
		return fmt.Errorf("renaming thread: %w", err)
	}

	edit.open = false
	c.applyRename(updated)
	return nil
}
