// ABOUTME: Mode registry supplying assistant behavior modes per identity
// ABOUTME: Remote list for authenticated users, one fixed synthetic mode for guests

package modes

import (
	"context"
	"log/slog"

	"github.com/devassist/assist/internal/chat"
)

// GuestMode is the single fixed mode guests are pinned to. It is synthetic:
// never fetched from the backend.
var GuestMode = chat.Mode{ID: 1, Name: "default", Description: "General assistant"}

// Lister is what the registry needs from the remote store.
type Lister interface {
	ListModes(ctx context.Context) ([]chat.Mode, error)
}

// Registry supplies the modes available to the current identity.
type Registry struct {
	lister Lister
	logger *slog.Logger
}

// New creates a registry backed by the given remote lister.
func New(lister Lister, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		lister: lister,
		logger: logger.With("component", "modes"),
	}
}

// List returns the modes for the identity. Guests get exactly the synthetic
// default mode with no network call. For authenticated users the backend's
// order is preserved; a backend failure degrades to an empty list so the
// session still loads; mode selection is simply unavailable until a retry.
func (r *Registry) List(ctx context.Context, identity chat.Identity) []chat.Mode {
	if identity.IsGuest() {
		return []chat.Mode{GuestMode}
	}

	modes, err := r.lister.ListModes(ctx)
	if err != nil {
		r.logger.Error("listing modes failed", "error", err)
		return []chat.Mode{}
	}
	return modes
}

// Default returns the initially selected mode: the first one listed.
func Default(modes []chat.Mode) (chat.Mode, bool) {
	if len(modes) == 0 {
		return chat.Mode{}, false
	}
	return modes[0], true
}
