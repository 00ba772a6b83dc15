// ABOUTME: HTTP client for the backend auth endpoints
// ABOUTME: Handles login, registration, and current-user lookup

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/devassist/assist/internal/chat"
)

// Client calls the backend's auth endpoints. Token issuance and verification
// are entirely server-side; this client only relays credentials and stores
// what comes back.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates an auth client for the given backend base URL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("component", "auth"),
	}
}

// userResponse is the backend's user shape.
type userResponse struct {
	ID       int    `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	RoleID   string `json:"role_id"`
}

func (u *userResponse) toUser() chat.User {
	return chat.User{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		RoleID:   u.RoleID,
	}
}

// loginRequest is the JSON body for POST /auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is the backend's response to a successful login.
type loginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        userResponse `json:"user"`
}

// registerRequest is the JSON body for POST /auth/register.
type registerRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

// Session is the result of a successful login: a bearer token plus the account.
type Session struct {
	Token string
	User  chat.User
}

// Login exchanges email/password for a bearer token and account snapshot.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var resp loginResponse
	err := c.post(ctx, "/auth/login", loginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	c.logger.Debug("login succeeded", "user_id", resp.User.ID)
	return &Session{Token: resp.AccessToken, User: resp.User.toUser()}, nil
}

// Register creates a new account. The backend does not log the account in;
// callers follow up with Login.
func (c *Client) Register(ctx context.Context, email, fullName, password string) (*chat.User, error) {
	var resp userResponse
	err := c.post(ctx, "/auth/register", registerRequest{
		Email:    email,
		FullName: fullName,
		Password: password,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	c.logger.Debug("registration succeeded", "user_id", resp.ID)
	user := resp.toUser()
	return &user, nil
}

// Me fetches the account behind the given bearer token.
func (c *Client) Me(ctx context.Context, token string) (*chat.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/me", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching current user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	var ur userResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	user := ur.toUser()
	return &user, nil
}

// post sends a JSON body and decodes a JSON response into out.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little of the body for the error message
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}
