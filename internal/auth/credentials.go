// ABOUTME: Credential persistence for the assistant client
// ABOUTME: Stores the bearer token and user snapshot under the XDG config dir

package auth

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/devassist/assist/internal/chat"
)

// Credentials persists the bearer token and the account snapshot across runs.
// The token lives in a plain file (ASSIST_TOKEN env var overrides it); the
// user snapshot lives in a JSON file next to it.
type Credentials struct {
	tokenPath string
	userPath  string
	logger    *slog.Logger
}

// NewCredentials creates a credential store. An empty tokenPath uses the
// default location (~/.config/assist/token).
func NewCredentials(tokenPath string, logger *slog.Logger) *Credentials {
	if logger == nil {
		logger = slog.Default()
	}
	if tokenPath == "" {
		tokenPath = defaultTokenPath()
	}
	return &Credentials{
		tokenPath: tokenPath,
		userPath:  filepath.Join(filepath.Dir(tokenPath), "user.json"),
		logger:    logger.With("component", "auth"),
	}
}

// defaultTokenPath returns ~/.config/assist/token, honoring XDG_CONFIG_HOME.
func defaultTokenPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "token"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "assist", "token")
}

// Token returns the stored bearer token. The ASSIST_TOKEN environment
// variable takes precedence over the token file. Returns ErrNoCredentials
// when neither is set.
func (c *Credentials) Token() (string, error) {
	if token := os.Getenv("ASSIST_TOKEN"); token != "" {
		return token, nil
	}

	data, err := os.ReadFile(c.tokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoCredentials
		}
		return "", fmt.Errorf("reading token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoCredentials
	}
	return token, nil
}

// Save persists the token and user snapshot.
func (c *Credentials) Save(token string, user *chat.User) error {
	if err := os.MkdirAll(filepath.Dir(c.tokenPath), 0700); err != nil {
		return fmt.Errorf("creating credential directory: %w", err)
	}

	if err := os.WriteFile(c.tokenPath, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encoding user: %w", err)
	}
	if err := os.WriteFile(c.userPath, data, 0600); err != nil {
		return fmt.Errorf("writing user file: %w", err)
	}

	c.logger.Debug("credentials saved", "user_id", user.ID)
	return nil
}

// User returns the stored account snapshot, or ErrNoCredentials if none exists.
func (c *Credentials) User() (*chat.User, error) {
	data, err := os.ReadFile(c.userPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCredentials
		}
		return nil, fmt.Errorf("reading user file: %w", err)
	}

	var user chat.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("decoding user file: %w", err)
	}
	return &user, nil
}

// Clear removes the stored token and user snapshot. Used on logout.
// Guest-side data is untouched; it lives in the guest store, not here.
func (c *Credentials) Clear() error {
	for _, path := range []string{c.tokenPath, c.userPath} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}
	c.logger.Debug("credentials cleared")
	return nil
}

// Resolve determines the starting identity: Authenticated when a stored,
// unexpired token and user snapshot exist, Guest otherwise.
func (c *Credentials) Resolve(now time.Time) chat.Identity {
	token, err := c.Token()
	if err != nil {
		return chat.Guest()
	}

	claims, err := InspectToken(token)
	if err != nil {
		c.logger.Debug("stored token unreadable, starting as guest", "error", err)
		return chat.Guest()
	}
	if claims.Expired(now) {
		c.logger.Debug("stored token expired, starting as guest",
			"expired_at", claims.ExpiresAt)
		return chat.Guest()
	}

	user, err := c.User()
	if err != nil {
		c.logger.Debug("no stored user snapshot, starting as guest", "error", err)
		return chat.Guest()
	}

	return chat.Authenticated(*user)
}
