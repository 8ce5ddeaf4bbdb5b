package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"
)

// ErrUnauthorized is returned on a 401 response.
var ErrUnauthorized = errors.New("unauthorized")

// ErrRateLimited is returned on a 429 response.
var ErrRateLimited = errors.New("rate limited")

// ErrUnavailable is returned when the backend cannot be reached or answers
// with a 5xx status.
var ErrUnavailable = errors.New("backend unavailable")

// ValidationError is returned on a non-auth 4xx response (bad credentials
// format, duplicate username, and so on). Message is the server-provided
// user-facing text.
type ValidationError struct {
	StatusCode int
	Message    string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("validation failed (status %d)", e.StatusCode)
	}
	return e.Message
}

// Profile is the read-only user snapshot returned by login, register, and
// verify. It is replaced wholesale on every successful call, never
// partially mutated.
type Profile struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	DisplayName    string `json:"displayName"`
	Role           string `json:"role"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// LoginResult is the payload of a successful login or register call. The
// refresh credential accompanies it as an HTTP-only cookie.
type LoginResult struct {
	User        Profile `json:"user"`
	AccessToken string  `json:"accessToken"`
}

// RegisterInput carries the fields for /auth/register.
type RegisterInput struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Client calls the Platefeed auth endpoints. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	mu          sync.RWMutex
	defaultAuth string
}

// NewClient creates a client for the backend at baseURL. When httpClient
// is nil a client with a fresh cookie jar and a 15s timeout is built; when
// a client without a jar is supplied, a jar is attached so the refresh
// cookie can round-trip.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return nil, errors.New("httpapi: base URL required")
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		httpClient.Jar = jar
	}

	return &Client{
		baseURL: baseURL,
		http:    httpClient,
	}, nil
}

// SetDefaultAuthorization installs the Authorization header value attached
// to every subsequent request that does not carry its own. An empty value
// removes it.
func (c *Client) SetDefaultAuthorization(value string) {
	c.mu.Lock()
	c.defaultAuth = value
	c.mu.Unlock()
}

// DefaultAuthorization returns the currently installed header value.
func (c *Client) DefaultAuthorization() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultAuth
}

// HTTPClient exposes the underlying client so the request interceptor can
// send arbitrary authenticated API requests through the same cookie jar.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login exchanges credentials for a profile and access token.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	body := map[string]string{"username": username, "password": password}

	var result LoginResult
	if err := c.postJSON(ctx, "/auth/login", body, "", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Register creates an account and logs it in.
func (c *Client) Register(ctx context.Context, input RegisterInput) (*LoginResult, error) {
	var result LoginResult
	if err := c.postJSON(ctx, "/auth/register", input, "", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Verify validates tok against the backend and returns the account it
// belongs to. Returns ErrUnauthorized when tok is invalid or expired.
func (c *Client) Verify(ctx context.Context, tok string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/verify", nil)
	if err != nil {
		return nil, err
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	var payload struct {
		User Profile `json:"user"`
	}
	if err := c.do(req, &payload); err != nil {
		return nil, err
	}
	return &payload.User, nil
}

// Refresh mints a new access token. The refresh credential travels in the
// cookie jar; this method sends no body and no bearer token. Returns
// ErrUnauthorized when the refresh credential itself is invalid.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	var payload struct {
		AccessToken string `json:"accessToken"`
	}
	if err := c.postJSON(ctx, "/auth/refresh", nil, "", &payload); err != nil {
		return "", err
	}
	if payload.AccessToken == "" {
		return "", errors.Join(ErrUnavailable, errors.New("refresh response missing access token"))
	}
	return payload.AccessToken, nil
}

// Logout asks the backend to invalidate the refresh credential.
func (c *Client) Logout(ctx context.Context, tok string) error {
	auth := ""
	if tok != "" {
		auth = "Bearer " + tok
	}
	return c.postJSON(ctx, "/auth/logout", nil, auth, nil)
}

func (c *Client) postJSON(ctx context.Context, path string, body any, auth string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if req.Header.Get("Authorization") == "" {
		if auth := c.DefaultAuthorization(); auth != "" {
			req.Header.Set("Authorization", auth)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}

func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	default:
		return &ValidationError{
			StatusCode: resp.StatusCode,
			Message:    readErrorMessage(resp.Body),
		}
	}
}

func readErrorMessage(body io.Reader) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(body, 4096)).Decode(&payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
