// Package chatrix provides a client for the Chatrix chat server, including
// the local-first conversation with the AI assistant.
package chatrix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Client is a Chatrix API client.
type Client struct {
	BaseURL    string
	ConfigDir  string
	Token      string
	UserID     string
	HTTPClient *http.Client
}

// Config holds the persisted session.
type Config struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

// NewClient creates a new Chatrix client and loads any saved session.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	configDir := os.Getenv("CHATRIX_CONFIG")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".chatrix")
	}

	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ConfigDir:  configDir,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	_ = c.LoadConfig()
	return c
}

// LoadConfig loads the saved session from disk.
func (c *Client) LoadConfig() error {
	data, err := os.ReadFile(filepath.Join(c.ConfigDir, "session.json"))
	if err != nil {
		return err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return err
	}

	c.UserID = config.UserID
	c.Token = config.Token
	return nil
}

// SaveConfig saves the session to disk.
func (c *Client) SaveConfig() error {
	if err := os.MkdirAll(c.ConfigDir, 0700); err != nil {
		return err
	}

	data, _ := json.MarshalIndent(Config{UserID: c.UserID, Token: c.Token}, "", "  ")
	return os.WriteFile(filepath.Join(c.ConfigDir, "session.json"), data, 0600)
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	// Reason is the server-supplied message, if any.
	Reason string
	Header http.Header
}

func (e *APIError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("chatrix: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("chatrix: HTTP %d: %s", e.StatusCode, e.Reason)
}

// RateLimited reports whether the server rejected the call with 429.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// RetryAfter returns the number of seconds until the limit resets, read
// from the first present of RateLimit-Reset, X-RateLimit-Reset and
// Retry-After. Values larger than now are taken as unix timestamps,
// smaller ones as a delta.
func (e *APIError) RetryAfter(now time.Time) (int64, bool) {
	for _, name := range []string{"RateLimit-Reset", "X-RateLimit-Reset", "Retry-After"} {
		raw := strings.TrimSpace(e.Header.Get(name))
		if raw == "" {
			continue
		}
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, false
		}
		secs := int64(n)
		if nowSec := now.Unix(); secs > nowSec {
			secs -= nowSec
		}
		return secs, secs > 0
	}
	return 0, false
}

// doRequest performs an HTTP request and decodes a JSON response into out.
func (c *Client) doRequest(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		reason := errResp.Message
		if reason == "" {
			reason = errResp.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Reason: reason, Header: resp.Header}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// SessionResponse is the response from registration.
type SessionResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// Register creates an account and stores the session on the client.
func (c *Client) Register(ctx context.Context, fullName, email string) (*User, error) {
	var resp SessionResponse
	err := c.doRequest(ctx, http.MethodPost, "/auth/register", map[string]string{
		"fullName": fullName,
		"email":    email,
	}, &resp)
	if err != nil {
		return nil, err
	}

	c.Token = resp.Token
	c.UserID = resp.User.ID
	return &resp.User, nil
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.doRequest(ctx, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Users lists chat contacts.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.doRequest(ctx, http.MethodGet, "/messages/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Messages returns the conversation with peerID.
func (c *Client) Messages(ctx context.Context, peerID string) ([]Message, error) {
	var msgs []Message
	if err := c.doRequest(ctx, http.MethodGet, "/messages/"+peerID, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Send sends text to peerID and returns the server's copy.
func (c *Client) Send(ctx context.Context, peerID, text string) (*Message, error) {
	var msg Message
	if err := c.doRequest(ctx, http.MethodPost, "/messages/send/"+peerID, map[string]string{"text": text}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ChatAI asks the AI assistant to reply to text given prior history.
func (c *Client) ChatAI(ctx context.Context, text string, history []Turn) (string, error) {
	if history == nil {
		history = []Turn{}
	}
	var resp struct {
		Text string `json:"text"`
	}
	err := c.doRequest(ctx, http.MethodPost, "/ai/chat", map[string]any{
		"message": text,
		"history": history,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// HealthResponse is the response from the health endpoint.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Region    string                 `json:"region,omitempty"`
	Checks    map[string]interface{} `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// Health checks server health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	err := c.doRequest(ctx, http.MethodGet, "/health", nil, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
