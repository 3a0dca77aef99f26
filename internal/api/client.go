// Package api is a thin HTTP client for the school backend REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/schoolone/portal/internal/model"
)

// Client talks to the backend over JSON/HTTP. It handles Bearer token
// authentication and retries with backoff on HTTP 429. A Client is safe
// for concurrent use; the token may be swapped while polls are running.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	log        zerolog.Logger

	mu    sync.RWMutex
	token string
}

// NewClient creates a client for the API rooted at cfg.BaseURL
// (e.g. http://127.0.0.1:8000/api/v1).
func NewClient(cfg model.APIConfig, logger zerolog.Logger) *Client {
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout(),
		},
		maxRetries: retries,
		log:        logger.With().Str("component", "api").Logger(),
	}
}

// SetToken sets the Bearer token sent with every request. An empty token
// sends no Authorization header.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Login exchanges credentials for an access token. It does not store the
// token; callers decide via SetToken.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var result LoginResult
	err := c.do(ctx, http.MethodPost, "/auth/login",
		LoginRequest{Email: email, Password: password}, &result)
	if err != nil {
		return nil, err
	}
	if result.AccessToken == "" {
		return nil, &ParseError{
			Op:  "POST /auth/login",
			Err: fmt.Errorf("response carries no access_token"),
		}
	}
	if result.User.Email == "" {
		result.User.Email = email
	}
	return &result, nil
}

// FetchNotifications returns the full list of notifications visible to the
// logged-in user.
func (c *Client) FetchNotifications(ctx context.Context) ([]model.Notification, error) {
	var ns []model.Notification
	if err := c.do(ctx, http.MethodGet, "/notifications/", nil, &ns); err != nil {
		return nil, err
	}
	if ns == nil {
		ns = []model.Notification{}
	}
	return ns, nil
}

// MarkNotificationRead marks a single notification as read on the server.
func (c *Client) MarkNotificationRead(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodPut, "/notifications/"+strconv.Itoa(id)+"/read", nil, nil)
}

// do builds the request, handles auth and rate limiting with exponential
// backoff, and decodes the JSON response into result when non-nil.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	op := method + " " + path
	url := c.baseURL + path

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	for attempt := 0; ; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token := c.currentToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &NetworkError{Op: op, Err: err}
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return &NetworkError{Op: op, Err: fmt.Errorf("reading response body: %w", readErr)}
		}

		c.log.Debug().
			Str("op", op).
			Int("status", resp.StatusCode).
			Dur("elapsed", time.Since(start)).
			Msg("api request")

		if resp.StatusCode == http.StatusTooManyRequests && attempt < c.maxRetries {
			wait := retryAfterDuration(resp, attempt)
			c.log.Warn().Str("op", op).Dur("wait", wait).Msg("rate limited, retrying")

			select {
			case <-ctx.Done():
				return &NetworkError{Op: op, Err: ctx.Err()}
			case <-time.After(wait):
				continue
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			srvErr := &ServerError{Op: op, Status: resp.StatusCode}
			var errResp errorResponse
			if json.Unmarshal(respBody, &errResp) == nil {
				srvErr.Detail = errResp.text()
			}
			return srvErr
		}

		// No content to parse (e.g. 204).
		if result == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return &ParseError{Op: op, Err: err}
		}

		return nil
	}
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
