// Package client talks to the digitizing backend: fetching radargram
// metadata, pulling the caller's latest submission and submitting finished
// documents.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"firnline/api/internal/document"
	"firnline/api/internal/radar"
)

// ErrNotAuthenticated is returned when the backend answers 401. The session
// keeps its unsaved work; the caller is expected to re-authenticate and
// retry.
var ErrNotAuthenticated = errors.New("not authenticated")

// TransportError wraps failures where no HTTP response was obtained at all
// (connection refused, timeout, DNS). It is distinct from a server rejection.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// ServerError is a non-2xx response that is not an authentication failure.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server rejected request (%d): %s", e.StatusCode, e.Message)
}

// Client is a stateful backend connection holding a session token after
// Login. The zero value is not usable; construct with New.
type Client struct {
	baseURL string
	httpc   *http.Client
	token   string
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Login exchanges credentials for a bearer token used on all subsequent
// calls. Bad credentials surface as ErrNotAuthenticated.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body := map[string]string{"username": username, "password": password}
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/login", body, &out); err != nil {
		return err
	}
	c.token = out.Token
	return nil
}

// Logout invalidates the session token server-side and forgets it locally.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/logout", nil, nil)
	c.token = ""
	return err
}

// Authenticated reports whether the client holds a session token. It does
// not verify the token is still valid server-side.
func (c *Client) Authenticated() bool { return c.token != "" }

// FetchMeta loads the radargram's metadata document.
func (c *Client) FetchMeta(ctx context.Context, radarKey string) (*radar.Meta, error) {
	var meta radar.Meta
	if err := c.do(ctx, http.MethodGet, "/radargram_meta/"+radarKey+".json", nil, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// FetchLatest returns the caller's most recent submission for the radargram,
// or nil if they have never submitted one. The backend signals "none" with
// an empty JSON object rather than an error.
func (c *Client) FetchLatest(ctx context.Context, radarKey string) (*document.Document, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/radargram_latest_submission/"+radarKey+".json", nil, &raw); err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("{}")) {
		return nil, nil
	}

	var doc document.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode latest submission: %w", err)
	}
	return &doc, nil
}

// Submit uploads a finished document and returns the backend's confirmation
// message.
func (c *Client) Submit(ctx context.Context, doc *document.Document) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/submit-digitized", doc, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrNotAuthenticated
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ServerError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func errorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return string(bytes.TrimSpace(data))
}
